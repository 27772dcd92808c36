package services

import (
	"context"

	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/types"
)

// ModerationService gates publication of builds.
type ModerationService struct {
	builds  BuildRepository
	listing *BuildService
	events  *EventPublisher
}

// NewModerationService returns a workflow that reviews builds and
// publishes moderation events.
func NewModerationService(builds BuildRepository, listing *BuildService, events *EventPublisher) *ModerationService {
	return &ModerationService{builds: builds, listing: listing, events: events}
}

// CanTransition reports whether a build may move from one status to
// another. Rejected is terminal and nothing returns to pending.
func CanTransition(from, to types.BuildStatus) bool {
	switch from {
	case types.BuildStatusPending:
		return to == types.BuildStatusVerified || to == types.BuildStatusRejected
	case types.BuildStatusVerified:
		return to == types.BuildStatusRejected
	default:
		return false
	}
}

// Queue lists pending builds for review.
func (s *ModerationService) Queue(ctx context.Context, viewer permission.Viewer, f query.FilterSet, pageSize int) (types.BuildPage, error) {
	if err := requireModerator(viewer); err != nil {
		return types.BuildPage{}, err
	}
	return s.listing.listPage(ctx, viewer, f, query.ModerationScope(), pageSize)
}

// SetBuildStatus moves a build to status.
func (s *ModerationService) SetBuildStatus(ctx context.Context, viewer permission.Viewer, buildID int64, status types.BuildStatus) error {
	_, err := s.ReviewBuild(ctx, viewer, buildID, nil, status)
	return err
}

// ReviewBuild applies optional content edits and then the status decision.
// The transition is checked before anything is written.
func (s *ModerationService) ReviewBuild(ctx context.Context, viewer permission.Viewer, buildID int64, edits *types.BuildPayload, status types.BuildStatus) (types.ProjectedBuild, error) {
	if err := requireModerator(viewer); err != nil {
		return types.ProjectedBuild{}, err
	}
	status, err := types.ParseBuildStatus(string(status))
	if err != nil {
		return types.ProjectedBuild{}, invalid("status", "must be pending, verified or rejected")
	}

	row, err := s.builds.GetRow(ctx, buildID)
	if err != nil {
		return types.ProjectedBuild{}, storeErr("get build", err)
	}
	if row.Status != status && !CanTransition(row.Status, status) {
		return types.ProjectedBuild{}, invalid("status", "cannot move a "+string(row.Status)+" build to "+string(status))
	}

	if edits != nil {
		if err := s.listing.applyEdits(ctx, row.Build, *edits); err != nil {
			return types.ProjectedBuild{}, err
		}
	}

	if row.Status != status {
		if err := s.builds.UpdateStatus(ctx, buildID, status); err != nil {
			return types.ProjectedBuild{}, storeErr("update build status", err)
		}
		s.events.Publish(ctx, TopicBuildModerated, types.BuildEvent{
			BuildID: buildID,
			UserID:  row.UserID,
			ActorID: viewer.UserID,
			Status:  status,
			Title:   row.Title,
		})
	}

	return s.listing.GetBuild(ctx, viewer, buildID)
}

func requireModerator(viewer permission.Viewer) error {
	if !viewer.Authenticated() {
		return ErrAuthRequired
	}
	if !viewer.CanModerate() {
		return ErrUnauthorized
	}
	return nil
}
