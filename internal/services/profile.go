package services

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/types"
	"golang.org/x/sync/errgroup"
)

const (
	maxDisplayNameLength = 50
	maxBioLength         = 500
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,24}$`)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	query.ProfileLookup
	GetByID(ctx context.Context, id int64) (types.Profile, error)
	GetByUsername(ctx context.Context, username string) (types.Profile, error)
	ListStreamers(ctx context.Context) ([]types.Profile, error)
	Create(ctx context.Context, profile types.Profile) (types.Profile, error)
	Update(ctx context.Context, profile types.Profile) (types.Profile, error)
	UpdateRoles(ctx context.Context, id int64, roles types.RoleFlags) error
}

// ProfileService encapsulates profile use-cases.
type ProfileService struct {
	repo   ProfileRepository
	builds BuildRepository
	ledger LedgerRepository
	now    func() time.Time
}

// NewProfileService creates a new ProfileService.
func NewProfileService(repo ProfileRepository, builds BuildRepository, ledger LedgerRepository) *ProfileService {
	return &ProfileService{repo: repo, builds: builds, ledger: ledger, now: time.Now}
}

func (s *ProfileService) GetByID(ctx context.Context, id int64) (types.Profile, error) {
	profile, err := s.repo.GetByID(ctx, id)
	return profile, storeErr("get profile", err)
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (types.Profile, error) {
	profile, err := s.repo.GetByUsername(ctx, username)
	return profile, storeErr("get profile", err)
}

// Create registers a new profile. The password must already be hashed.
func (s *ProfileService) Create(ctx context.Context, profile types.Profile) (types.Profile, error) {
	profile.Username = strings.TrimSpace(profile.Username)
	if err := ValidateUsername(profile.Username); err != nil {
		return types.Profile{}, err
	}
	if profile.DisplayName == "" {
		profile.DisplayName = profile.Username
	}
	created, err := s.repo.Create(ctx, profile)
	if err != nil {
		return types.Profile{}, storeErr("create profile", err)
	}
	return created, nil
}

// ValidateUsername checks the username format.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return invalid("username", "must be 3-24 letters, digits or underscores")
	}
	return nil
}

// Summary returns a public profile with its build and bookmark counts.
// Owners see counts over every build status and their own email.
func (s *ProfileService) Summary(ctx context.Context, viewer permission.Viewer, username string) (types.ProfileSummary, error) {
	profile, err := s.GetByUsername(ctx, username)
	if err != nil {
		return types.ProfileSummary{}, err
	}

	owner := viewer.IsOwner(profile.ID)
	var statuses []types.BuildStatus
	if !owner {
		statuses = []types.BuildStatus{types.BuildStatusVerified}
		profile.Email = ""
	}

	summary := types.ProfileSummary{Profile: profile}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.builds.CountByUser(gctx, profile.ID, statuses...)
		summary.BuildCount = n
		return storeErr("count builds", err)
	})
	g.Go(func() error {
		n, err := s.ledger.CountBookmarks(gctx, profile.ID)
		summary.BookmarkCount = n
		return storeErr("count bookmarks", err)
	})
	if err := g.Wait(); err != nil {
		return types.ProfileSummary{}, err
	}
	return summary, nil
}

// UpdateProfile applies the viewer's self-service edits. A username change
// is allowed once per types.UsernameChangeCooldown.
func (s *ProfileService) UpdateProfile(ctx context.Context, viewer permission.Viewer, upd types.ProfileUpdate) (types.Profile, error) {
	if !viewer.Authenticated() {
		return types.Profile{}, ErrAuthRequired
	}

	profile, err := s.GetByID(ctx, viewer.UserID)
	if err != nil {
		return types.Profile{}, err
	}

	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if username != profile.Username {
			if err := ValidateUsername(username); err != nil {
				return types.Profile{}, err
			}
			now := s.now()
			if last := profile.UsernameChangedAt; last != nil && now.Sub(*last) < types.UsernameChangeCooldown {
				return types.Profile{}, invalid("username", "can only be changed once every 30 days")
			}
			profile.Username = username
			profile.UsernameChangedAt = &now
		}
	}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if utf8.RuneCountInString(name) > maxDisplayNameLength {
			return types.Profile{}, invalid("display_name", "is too long")
		}
		profile.DisplayName = name
	}
	if upd.AvatarURL != nil {
		profile.AvatarURL = strings.TrimSpace(*upd.AvatarURL)
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			return types.Profile{}, invalid("bio", "is too long")
		}
		profile.Bio = bio
	}

	updated, err := s.repo.Update(ctx, profile)
	if err != nil {
		return types.Profile{}, storeErr("update profile", err)
	}
	return updated, nil
}

// SetRoles replaces the role flags of a profile. Admin only.
func (s *ProfileService) SetRoles(ctx context.Context, viewer permission.Viewer, userID int64, roles types.RoleFlags) error {
	if !viewer.Authenticated() {
		return ErrAuthRequired
	}
	if !viewer.IsAdmin {
		return ErrUnauthorized
	}
	return storeErr("update roles", s.repo.UpdateRoles(ctx, userID, roles))
}
