package types

import "time"

// Profile represents an account in the system.
// It contains identity, public profile fields, role flags and audit metadata.
type Profile struct {
	// ID is the unique identifier of the profile.
	ID int64 `json:"id" db:"id"`

	// Username is the unique handle of the user. Uniqueness is
	// case-insensitive.
	Username string `json:"username" db:"username"`

	// Email is the user's email address.
	Email string `json:"email,omitempty" db:"email"`

	// DisplayName is the name shown next to the user's builds.
	DisplayName string `json:"display_name" db:"display_name"`

	// AvatarURL is the public URL of the user's avatar image.
	AvatarURL string `json:"avatar_url" db:"avatar_url"`

	// Bio is a short free-text description written by the user.
	Bio string `json:"bio" db:"bio"`

	// Role flags. They are managed by admins and never self-service.
	IsAdmin     bool `json:"is_admin" db:"is_admin"`
	IsModerator bool `json:"is_moderator" db:"is_moderator"`
	IsStreamer  bool `json:"is_streamer" db:"is_streamer"`
	IsVerified  bool `json:"is_verified" db:"is_verified"`
	IsSupporter bool `json:"is_supporter" db:"is_supporter"`

	// UsernameChangedAt is the time of the last username change, if any.
	// A new change is allowed only after UsernameChangeCooldown.
	UsernameChangedAt *time.Time `json:"username_changed_at,omitempty" db:"username_changed_at"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the profile was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the profile.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UsernameChangeCooldown is the minimum time between two username changes.
const UsernameChangeCooldown = 30 * 24 * time.Hour

// RoleFlags is the set of admin-managed flags of a profile.
type RoleFlags struct {
	IsAdmin     bool `json:"is_admin"`
	IsModerator bool `json:"is_moderator"`
	IsStreamer  bool `json:"is_streamer"`
	IsVerified  bool `json:"is_verified"`
	IsSupporter bool `json:"is_supporter"`
}

// ProfileUpdate carries the self-service fields of a profile. Nil fields
// are left unchanged.
type ProfileUpdate struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
}

// ProfileSummary is a public profile with its on-demand counters.
type ProfileSummary struct {
	Profile
	BuildCount    int `json:"build_count"`
	BookmarkCount int `json:"bookmark_count"`
}
