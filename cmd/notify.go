/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/imzleep/abibuilder-sub000/config"
	"github.com/imzleep/abibuilder-sub000/internal/logging"
	"github.com/imzleep/abibuilder-sub000/internal/mq"
	"github.com/imzleep/abibuilder-sub000/internal/services"
	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var notifyTopic string

// notifyCmd consumes build lifecycle events from the broker.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Consume build moderation events",
	Long: `Subscribes to build lifecycle events on the configured broker and
logs each one. Usage:

	abibuilder notify --topic builds.moderated
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		logger, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		broker, err := mq.Connect(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		handler := mq.JSONHandler(func(_ context.Context, ev types.BuildEvent, msg mq.Message) error {
			logger.Info("build event",
				zap.String("topic", notifyTopic),
				zap.String("message_id", msg.ID),
				zap.Int64("build_id", ev.BuildID),
				zap.Int64("user_id", ev.UserID),
				zap.Int64("actor_id", ev.ActorID),
				zap.String("status", string(ev.Status)),
				zap.String("title", ev.Title),
				zap.Time("occurred_at", ev.OccurredAt),
			)
			return nil
		}, func(msg mq.Message, err error) {
			logger.Warn("dropping malformed build event", zap.String("message_id", msg.ID), zap.Error(err))
		})

		logger.Info("consuming build events", zap.String("topic", notifyTopic), zap.String("backend", cfg.MQ.Backend))
		if err := broker.Subscribe(ctx, notifyTopic, handler); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)

	notifyCmd.Flags().StringVar(&notifyTopic, "topic", services.TopicBuildModerated, "Broker channel to consume")
}
