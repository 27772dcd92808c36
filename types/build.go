package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StreamerBuildTag is the derived tag shown on builds authored by streamers.
// It is computed at read time and never stored on the build itself.
const StreamerBuildTag = "Streamer Build"

// Build represents a user-submitted weapon configuration.
// It carries the build code, stats, tags and moderation status.
type Build struct {
	// ID is the unique identifier of the build.
	ID int64 `json:"id" db:"id"`

	// UserID identifies the profile that submitted the build.
	UserID int64 `json:"user_id" db:"user_id"`

	// WeaponID references the weapon this build is for.
	WeaponID int64 `json:"weapon_id" db:"weapon_id"`

	// WeaponName is the weapon display name, denormalized at write time
	// so listings do not need to join the weapon table.
	WeaponName string `json:"weapon_name" db:"weapon_name"`

	// WeaponImage is the canonical weapon image URL, denormalized at
	// write time. It is empty when the weapon has no canonical image.
	WeaponImage string `json:"weapon_image" db:"weapon_image"`

	// ImageURL is the public URL of the image uploaded with the build.
	ImageURL string `json:"image_url" db:"image_url"`

	// Title is the human-readable name of the build.
	Title string `json:"title" db:"title"`

	// Description is free text written by the author.
	Description string `json:"description" db:"description"`

	// BuildCode is the in-game build code. It is opaque to the server.
	BuildCode string `json:"build_code" db:"build_code"`

	// Price is the estimated cost of the build in in-game currency.
	Price int64 `json:"price" db:"price"`

	// Stats holds the eight weapon stats reported for the build.
	Stats Stats `json:"stats"`

	// Tags are the stored labels of the build. Duplicates are suppressed.
	Tags []string `json:"tags" db:"tags"`

	// Status is the moderation state of the build.
	Status BuildStatus `json:"status" db:"status"`

	// Upvotes is the cached number of up votes in the vote ledger.
	Upvotes int `json:"upvotes" db:"upvotes"`

	// Downvotes is the cached number of down votes in the vote ledger.
	Downvotes int `json:"downvotes" db:"downvotes"`

	// CreatedAt is the timestamp at which the build was submitted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent change to the build.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Stats are the weapon stats of a build. All values are within 0..100
// except EffectiveRange and MuzzleVelocity, which are plain magnitudes.
type Stats struct {
	VerticalRecoil   int `json:"vertical_recoil" db:"vertical_recoil"`
	HorizontalRecoil int `json:"horizontal_recoil" db:"horizontal_recoil"`
	Ergonomics       int `json:"ergonomics" db:"ergonomics"`
	WeaponStability  int `json:"weapon_stability" db:"weapon_stability"`
	Accuracy         int `json:"accuracy" db:"accuracy"`
	HipfireStability int `json:"hipfire_stability" db:"hipfire_stability"`
	EffectiveRange   int `json:"effective_range" db:"effective_range"`
	MuzzleVelocity   int `json:"muzzle_velocity" db:"muzzle_velocity"`
}

// BuildStatus is the moderation state of a build.
type BuildStatus string

// Supported build statuses.
const (
	// BuildStatusPending is the initial state of every submitted build.
	BuildStatusPending BuildStatus = "pending"

	// BuildStatusVerified marks a build approved for the public feed.
	BuildStatusVerified BuildStatus = "verified"

	// BuildStatusRejected marks a build declined by a moderator.
	BuildStatusRejected BuildStatus = "rejected"
)

// ParseBuildStatus converts a raw string into a BuildStatus.
func ParseBuildStatus(raw string) (BuildStatus, error) {
	switch status := BuildStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case BuildStatusPending, BuildStatusVerified, BuildStatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("unknown build status %q", raw)
	}
}

func (s *BuildStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status, err := ParseBuildStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Author is the subset of a profile joined onto build listings.
type Author struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	IsAdmin     bool   `json:"is_admin"`
	IsModerator bool   `json:"is_moderator"`
	IsStreamer  bool   `json:"is_streamer"`
	IsVerified  bool   `json:"is_verified"`
	IsSupporter bool   `json:"is_supporter"`
}

// BuildRow is a stored build joined with its author. It is the raw shape
// handed from the store to the projection layer.
type BuildRow struct {
	Build
	Author Author
}

// ProjectedBuild is the externally visible shape of a build, annotated
// for the viewer that requested it.
type ProjectedBuild struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	WeaponID    int64       `json:"weapon_id"`
	WeaponName  string      `json:"weapon_name"`
	WeaponImage string      `json:"weapon_image"`
	ImageURL    string      `json:"image_url"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	BuildCode   string      `json:"build_code"`
	Price       int64       `json:"price"`
	Stats       Stats       `json:"stats"`
	Tags        []string    `json:"tags"`
	Status      BuildStatus `json:"status"`
	Upvotes     int         `json:"upvotes"`
	Downvotes   int         `json:"downvotes"`
	CreatedAt   time.Time   `json:"created_at"`
	Author      Author      `json:"author"`

	// UserVote is the viewer's own vote on the build, if any.
	UserVote *VoteDirection `json:"user_vote"`

	// IsBookmarked reports whether the viewer bookmarked the build.
	IsBookmarked bool `json:"is_bookmarked"`

	CanDelete bool `json:"can_delete"`
	CanEdit   bool `json:"can_edit"`
}

// BuildPayload is the content submitted when creating or editing a build.
// Pointer stats distinguish a missing value from zero.
type BuildPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	BuildCode   string   `json:"build_code"`
	WeaponID    int64    `json:"weapon_id"`
	WeaponName  string   `json:"weapon"`
	ImageURL    string   `json:"image_url"`
	Price       *int64   `json:"price"`
	Tags        []string `json:"tags"`

	VerticalRecoil   *int `json:"vertical_recoil"`
	HorizontalRecoil *int `json:"horizontal_recoil"`
	Ergonomics       *int `json:"ergonomics"`
	WeaponStability  *int `json:"weapon_stability"`
	Accuracy         *int `json:"accuracy"`
	HipfireStability *int `json:"hipfire_stability"`
	EffectiveRange   *int `json:"effective_range"`
	MuzzleVelocity   *int `json:"muzzle_velocity"`
}

// BuildPage is one page of projected builds plus the total number of
// builds matching the same filters.
type BuildPage struct {
	Builds     []ProjectedBuild `json:"builds"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

// FeedPage is a build page plus the reference lists shown next to the feed.
type FeedPage struct {
	BuildPage
	Weapons   []Weapon `json:"weapons"`
	Streamers []Author `json:"streamers"`
}
