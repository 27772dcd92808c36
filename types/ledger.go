package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// VoteDirection is the direction of a vote.
type VoteDirection string

// Supported vote directions.
const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// ParseVoteDirection converts a raw string into a VoteDirection.
func ParseVoteDirection(raw string) (VoteDirection, error) {
	switch dir := VoteDirection(strings.ToLower(strings.TrimSpace(raw))); dir {
	case VoteUp, VoteDown:
		return dir, nil
	default:
		return "", fmt.Errorf("unknown vote direction %q", raw)
	}
}

func (d *VoteDirection) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	dir, err := ParseVoteDirection(raw)
	if err != nil {
		return err
	}
	*d = dir
	return nil
}

// Vote is a single vote ledger row. A user has at most one vote per build.
type Vote struct {
	UserID    int64         `json:"user_id" db:"user_id"`
	BuildID   int64         `json:"build_id" db:"build_id"`
	Direction VoteDirection `json:"direction" db:"direction"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// Bookmark is a single bookmark ledger row.
type Bookmark struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	BuildID   int64     `json:"build_id" db:"build_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// VoteCounts are the cached counters of a build.
type VoteCounts struct {
	Upvotes   int `json:"upvotes" db:"upvotes"`
	Downvotes int `json:"downvotes" db:"downvotes"`
}

// VoteResult is the outcome of a vote toggle.
type VoteResult struct {
	BuildID  int64          `json:"build_id"`
	UserVote *VoteDirection `json:"user_vote"`
	VoteCounts
}

// BookmarkResult is the outcome of a bookmark toggle.
type BookmarkResult struct {
	BuildID      int64 `json:"build_id"`
	IsBookmarked bool  `json:"is_bookmarked"`
}

// LandingStats are the aggregate counters shown on the landing page.
type LandingStats struct {
	Builds   int `json:"builds" db:"builds"`
	Profiles int `json:"profiles" db:"profiles"`
	Votes    int `json:"votes" db:"votes"`
}

// BuildEvent is published on the message broker when a build is submitted
// or moderated.
type BuildEvent struct {
	BuildID    int64       `json:"build_id"`
	UserID     int64       `json:"user_id"`
	ActorID    int64       `json:"actor_id"`
	Status     BuildStatus `json:"status"`
	Title      string      `json:"title"`
	OccurredAt time.Time   `json:"occurred_at"`
}
