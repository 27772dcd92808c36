package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/imzleep/abibuilder-sub000/config"
	"github.com/imzleep/abibuilder-sub000/internal/catalog"
	"github.com/imzleep/abibuilder-sub000/internal/db"
	"github.com/imzleep/abibuilder-sub000/internal/handlers"
	"github.com/imzleep/abibuilder-sub000/internal/logging"
	"github.com/imzleep/abibuilder-sub000/internal/mq"
	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/services"
	"github.com/imzleep/abibuilder-sub000/internal/storage"
	"github.com/imzleep/abibuilder-sub000/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	weaponCacheSize = 256

	// images are served by the API itself when no public URL is configured
	localImagePath = "/images"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sqlx.DB
	broker     *mq.MQ
	redis      *redis.Client
	logger     *zap.Logger
}

// New wires the stores, services and routes of the API.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Server{db: dbConn, logger: logger}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	s.broker, err = mq.Connect(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("init mq: %w", err)
	}

	var statsCache services.StatsCache
	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		statsCache = s.redis
	}

	buildRepo := store.NewBuildRepository(dbConn)
	profileRepo := store.NewProfileRepository(dbConn)
	ledgerRepo := store.NewLedgerRepository(dbConn)
	statsRepo := store.NewStatsRepository(dbConn)
	weapons := catalog.New(store.NewWeaponRepository(dbConn), weaponCacheSize)

	var (
		objectStore  services.ObjectStore
		objectReader handlers.ObjectReader
		publicURL    = cfg.Storage.PublicBaseURL
	)
	if objects != nil {
		objectStore = objects
		if publicURL == "" {
			publicURL = localImagePath
			objectReader = objects
		}
		logger.Info("object storage enabled", zap.String("backend", objects.Name()), zap.String("bucket", objects.Bucket()))
	}

	var publisher services.Publisher
	if s.broker != nil {
		publisher = s.broker
		logger.Info("event broker enabled", zap.String("backend", cfg.MQ.Backend))
	}
	events := services.NewEventPublisher(publisher, logger.Named("events"))

	imageService := services.NewImageService(objectStore, publicURL, services.DefaultMaxImageBytes)
	buildService := services.NewBuildService(services.BuildServiceDeps{
		Builds:   buildRepo,
		Weapons:  weapons,
		Profiles: profileRepo,
		Ledger:   ledgerRepo,
		Images:   imageService,
		Events:   events,
		Logger:   logger.Named("builds"),
		PageSize: cfg.PageSize,
	})
	ledgerService := services.NewLedgerService(buildRepo, ledgerRepo)
	moderationService := services.NewModerationService(buildRepo, buildService, events)
	profileService := services.NewProfileService(profileRepo, buildRepo, ledgerRepo)
	statsService := services.NewStatsService(statsRepo, statsCache, logger.Named("stats"))

	auth := handlers.NewAuthHandler(profileService, permission.NewResolver(profileRepo), cfg.JWTSecret, logger)
	buildHandler := handlers.NewBuildHandler(buildService, ledgerService, logger)
	moderationHandler := handlers.NewModerationHandler(moderationService, logger)
	userHandler := handlers.NewUserHandler(profileService, buildService, logger)
	imageHandler := handlers.NewImageHandler(imageService, objectReader, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.Middleware(logger.Named("http")),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(dbConn, logger))
	router.Get("/stats", handlers.Stats(statsService))
	router.Route("/weapons", func(r chi.Router) {
		handlers.WeaponRouter(r, handlers.NewWeaponHandler(weapons, logger))
	})
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, auth)
	})
	router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth)
		r.Route("/builds", func(r chi.Router) {
			handlers.BuildRouter(r, buildHandler)
		})
		r.Route("/moderation", func(r chi.Router) {
			handlers.ModerationRouter(r, moderationHandler)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userHandler, auth.RequireAuth)
		})
		r.Route(localImagePath, func(r chi.Router) {
			handlers.ImageRouter(r, imageHandler)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn("close mq", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("close redis", zap.Error(err))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
