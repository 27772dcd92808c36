package services

import (
	"context"

	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/types"
)

// LedgerService toggles votes and bookmarks for the calling viewer.
type LedgerService struct {
	builds BuildRepository
	ledger LedgerRepository
}

// NewLedgerService returns a ledger over the build and vote/bookmark stores.
func NewLedgerService(builds BuildRepository, ledger LedgerRepository) *LedgerService {
	return &LedgerService{builds: builds, ledger: ledger}
}

// ToggleVote applies dir to the viewer's vote on a build: no vote becomes
// dir, dir becomes no vote, and the opposite direction flips to dir. The
// build's counters are then recomputed from the ledger.
func (s *LedgerService) ToggleVote(ctx context.Context, viewer permission.Viewer, buildID int64, dir types.VoteDirection) (types.VoteResult, error) {
	if !viewer.Authenticated() {
		return types.VoteResult{}, ErrAuthRequired
	}
	dir, err := types.ParseVoteDirection(string(dir))
	if err != nil {
		return types.VoteResult{}, invalid("direction", "must be up or down")
	}
	if err := s.requireVisible(ctx, viewer, buildID); err != nil {
		return types.VoteResult{}, err
	}

	current, ok, err := s.ledger.GetVote(ctx, viewer.UserID, buildID)
	if err != nil {
		return types.VoteResult{}, storeErr("get vote", err)
	}

	result := types.VoteResult{BuildID: buildID}
	if ok && current == dir {
		if err := s.ledger.DeleteVote(ctx, viewer.UserID, buildID); err != nil {
			return types.VoteResult{}, storeErr("delete vote", err)
		}
	} else {
		if err := s.ledger.UpsertVote(ctx, viewer.UserID, buildID, dir); err != nil {
			return types.VoteResult{}, storeErr("upsert vote", err)
		}
		result.UserVote = &dir
	}

	counts, err := s.builds.RecountVotes(ctx, buildID)
	if err != nil {
		return types.VoteResult{}, storeErr("recount votes", err)
	}
	result.VoteCounts = counts
	return result, nil
}

// ToggleBookmark adds the bookmark when missing and removes it otherwise.
func (s *LedgerService) ToggleBookmark(ctx context.Context, viewer permission.Viewer, buildID int64) (types.BookmarkResult, error) {
	if !viewer.Authenticated() {
		return types.BookmarkResult{}, ErrAuthRequired
	}
	if err := s.requireVisible(ctx, viewer, buildID); err != nil {
		return types.BookmarkResult{}, err
	}

	exists, err := s.ledger.HasBookmark(ctx, viewer.UserID, buildID)
	if err != nil {
		return types.BookmarkResult{}, storeErr("get bookmark", err)
	}

	if exists {
		if err := s.ledger.RemoveBookmark(ctx, viewer.UserID, buildID); err != nil {
			return types.BookmarkResult{}, storeErr("remove bookmark", err)
		}
	} else {
		if err := s.ledger.AddBookmark(ctx, viewer.UserID, buildID); err != nil {
			return types.BookmarkResult{}, storeErr("add bookmark", err)
		}
	}
	return types.BookmarkResult{BuildID: buildID, IsBookmarked: !exists}, nil
}

func (s *LedgerService) requireVisible(ctx context.Context, viewer permission.Viewer, buildID int64) error {
	row, err := s.builds.GetRow(ctx, buildID)
	if err != nil {
		return storeErr("get build", err)
	}
	if !viewer.CanView(row.UserID, row.Status) {
		return ErrNotFound
	}
	return nil
}
