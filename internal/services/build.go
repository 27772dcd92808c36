package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/projection"
	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/internal/store"
	"github.com/imzleep/abibuilder-sub000/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 2000
	maxBuildCodeLength   = 512
	maxTags              = 10
	maxStatPercent       = 100
)

// BuildRepository defines persistence operations for builds.
type BuildRepository interface {
	List(ctx context.Context, q query.Query) ([]types.BuildRow, int, error)
	GetRow(ctx context.Context, id int64) (types.BuildRow, error)
	Create(ctx context.Context, build types.Build) (types.Build, error)
	UpdateContent(ctx context.Context, build types.Build) (types.Build, error)
	UpdateStatus(ctx context.Context, id int64, status types.BuildStatus) error
	Delete(ctx context.Context, id int64) error
	RecountVotes(ctx context.Context, buildID int64) (types.VoteCounts, error)
	CountByUser(ctx context.Context, userID int64, statuses ...types.BuildStatus) (int, error)
}

// WeaponCatalog resolves weapon references.
type WeaponCatalog interface {
	query.WeaponLookup
	GetByID(ctx context.Context, id int64) (types.Weapon, error)
	GetByName(ctx context.Context, name string) (types.Weapon, error)
}

// LedgerRepository defines persistence operations for votes and bookmarks.
type LedgerRepository interface {
	GetVote(ctx context.Context, userID, buildID int64) (types.VoteDirection, bool, error)
	UpsertVote(ctx context.Context, userID, buildID int64, dir types.VoteDirection) error
	DeleteVote(ctx context.Context, userID, buildID int64) error
	HasBookmark(ctx context.Context, userID, buildID int64) (bool, error)
	AddBookmark(ctx context.Context, userID, buildID int64) error
	RemoveBookmark(ctx context.Context, userID, buildID int64) error
	ViewerMarks(ctx context.Context, userID int64, buildIDs []int64) (map[int64]types.VoteDirection, map[int64]bool, error)
	CountBookmarks(ctx context.Context, userID int64) (int, error)
}

// ImageRemover deletes an uploaded image by its public URL.
type ImageRemover interface {
	DeleteURL(ctx context.Context, url string) error
}

// BuildServiceDeps groups the collaborators of a BuildService. Images and
// Events are optional.
type BuildServiceDeps struct {
	Builds   BuildRepository
	Weapons  WeaponCatalog
	Profiles ProfileRepository
	Ledger   LedgerRepository
	Images   ImageRemover
	Events   *EventPublisher
	Logger   *zap.Logger
	PageSize int
}

// BuildService encapsulates build listing and submission use-cases.
type BuildService struct {
	builds   BuildRepository
	weapons  WeaponCatalog
	profiles ProfileRepository
	ledger   LedgerRepository
	images   ImageRemover
	events   *EventPublisher
	compiler *query.Compiler
	logger   *zap.Logger
	pageSize int
}

// NewBuildService wires a BuildService from deps. A zero page size uses
// the default.
func NewBuildService(deps BuildServiceDeps) *BuildService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = query.DefaultPageSize
	}
	return &BuildService{
		builds:   deps.Builds,
		weapons:  deps.Weapons,
		profiles: deps.Profiles,
		ledger:   deps.Ledger,
		images:   deps.Images,
		events:   deps.Events,
		compiler: query.NewCompiler(deps.Weapons, deps.Profiles, logger),
		logger:   logger,
		pageSize: pageSize,
	}
}

// ListBuilds lists verified builds.
func (s *BuildService) ListBuilds(ctx context.Context, viewer permission.Viewer, f query.FilterSet, pageSize int) (types.BuildPage, error) {
	return s.listPage(ctx, viewer, f, query.PublicScope(), pageSize)
}

// ListUserBuilds lists the builds of userID. Owners see every status.
func (s *BuildService) ListUserBuilds(ctx context.Context, viewer permission.Viewer, userID int64, f query.FilterSet, pageSize int) (types.BuildPage, error) {
	return s.listPage(ctx, viewer, f, query.OwnerScope(userID, viewer.IsOwner(userID)), pageSize)
}

// ListUserBookmarks lists the builds bookmarked by userID that the viewer
// may see: verified builds, the viewer's own builds, or everything for
// moderators.
func (s *BuildService) ListUserBookmarks(ctx context.Context, viewer permission.Viewer, userID int64, f query.FilterSet, pageSize int) (types.BuildPage, error) {
	return s.listPage(ctx, viewer, f, query.BookmarkScope(userID, viewer.UserID, viewer.CanModerate()), pageSize)
}

// FeedPage loads a page of verified builds together with the weapon and
// streamer lists. The three reads run concurrently.
func (s *BuildService) FeedPage(ctx context.Context, viewer permission.Viewer, f query.FilterSet, pageSize int) (types.FeedPage, error) {
	var (
		page      types.BuildPage
		weapons   []types.Weapon
		streamers []types.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = s.ListBuilds(gctx, viewer, f, pageSize)
		return err
	})
	g.Go(func() error {
		var err error
		weapons, err = s.weapons.Weapons(gctx)
		return storeErr("list weapons", err)
	})
	g.Go(func() error {
		var err error
		streamers, err = s.profiles.ListStreamers(gctx)
		return storeErr("list streamers", err)
	})
	if err := g.Wait(); err != nil {
		return types.FeedPage{}, err
	}

	feed := types.FeedPage{
		BuildPage: page,
		Weapons:   weapons,
		Streamers: make([]types.Author, 0, len(streamers)),
	}
	if feed.Weapons == nil {
		feed.Weapons = []types.Weapon{}
	}
	for _, p := range streamers {
		feed.Streamers = append(feed.Streamers, authorOf(p))
	}
	return feed, nil
}

func (s *BuildService) listPage(ctx context.Context, viewer permission.Viewer, f query.FilterSet, scope query.Scope, pageSize int) (types.BuildPage, error) {
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	if f.Page < 1 {
		f.Page = 1
	}

	q := s.compiler.Compile(ctx, f, scope, pageSize)
	rows, total, err := s.builds.List(ctx, q)
	if err != nil {
		return types.BuildPage{}, storeErr("list builds", err)
	}

	state, err := s.viewerState(ctx, viewer, rows)
	if err != nil {
		return types.BuildPage{}, err
	}

	return types.BuildPage{
		Builds:     projection.ProjectAll(rows, viewer, state),
		TotalCount: total,
		Page:       f.Page,
		PageSize:   q.Limit,
	}, nil
}

// viewerState batch-loads the viewer's votes and bookmarks for rows.
// Anonymous viewers skip the lookup.
func (s *BuildService) viewerState(ctx context.Context, viewer permission.Viewer, rows []types.BuildRow) (projection.ViewerState, error) {
	if !viewer.Authenticated() || len(rows) == 0 {
		return projection.ViewerState{}, nil
	}
	votes, bookmarks, err := s.ledger.ViewerMarks(ctx, viewer.UserID, projection.BuildIDs(rows))
	if err != nil {
		return projection.ViewerState{}, storeErr("load viewer marks", err)
	}
	return projection.ViewerState{Votes: votes, Bookmarks: bookmarks}, nil
}

// GetBuild returns a single build. Builds the viewer may not see are
// reported as not found.
func (s *BuildService) GetBuild(ctx context.Context, viewer permission.Viewer, id int64) (types.ProjectedBuild, error) {
	row, err := s.visibleRow(ctx, viewer, id)
	if err != nil {
		return types.ProjectedBuild{}, err
	}
	state, err := s.viewerState(ctx, viewer, []types.BuildRow{row})
	if err != nil {
		return types.ProjectedBuild{}, err
	}
	return projection.Project(row, viewer, state), nil
}

func (s *BuildService) visibleRow(ctx context.Context, viewer permission.Viewer, id int64) (types.BuildRow, error) {
	row, err := s.builds.GetRow(ctx, id)
	if err != nil {
		return types.BuildRow{}, storeErr("get build", err)
	}
	if !viewer.CanView(row.UserID, row.Status) {
		return types.BuildRow{}, ErrNotFound
	}
	return row, nil
}

// CreateBuild validates and stores a new pending build.
func (s *BuildService) CreateBuild(ctx context.Context, viewer permission.Viewer, payload types.BuildPayload) (types.Build, error) {
	if !viewer.Authenticated() {
		return types.Build{}, ErrAuthRequired
	}

	build, err := s.buildFromPayload(ctx, payload)
	if err != nil {
		return types.Build{}, err
	}
	build.UserID = viewer.UserID
	build.Status = types.BuildStatusPending

	created, err := s.builds.Create(ctx, build)
	if err != nil {
		return types.Build{}, storeErr("create build", err)
	}

	s.events.Publish(ctx, TopicBuildSubmitted, types.BuildEvent{
		BuildID: created.ID,
		UserID:  created.UserID,
		ActorID: viewer.UserID,
		Status:  created.Status,
		Title:   created.Title,
	})
	return created, nil
}

// UpdateBuild replaces the content of a build. Only moderators and admins
// may edit; owners cannot.
func (s *BuildService) UpdateBuild(ctx context.Context, viewer permission.Viewer, id int64, payload types.BuildPayload) (types.ProjectedBuild, error) {
	if !viewer.Authenticated() {
		return types.ProjectedBuild{}, ErrAuthRequired
	}
	if !viewer.CanEdit() {
		return types.ProjectedBuild{}, ErrUnauthorized
	}

	row, err := s.builds.GetRow(ctx, id)
	if err != nil {
		return types.ProjectedBuild{}, storeErr("get build", err)
	}
	if err := s.applyEdits(ctx, row.Build, payload); err != nil {
		return types.ProjectedBuild{}, err
	}
	return s.GetBuild(ctx, viewer, id)
}

// applyEdits validates payload and writes it over current.
func (s *BuildService) applyEdits(ctx context.Context, current types.Build, payload types.BuildPayload) error {
	edited, err := s.buildFromPayload(ctx, payload)
	if err != nil {
		return err
	}
	edited.ID = current.ID
	edited.UserID = current.UserID
	edited.Status = current.Status
	if edited.ImageURL == "" {
		edited.ImageURL = current.ImageURL
	}

	if _, err := s.builds.UpdateContent(ctx, edited); err != nil {
		return storeErr("update build", err)
	}
	return nil
}

// DeleteBuild removes a build and its ledger rows. The uploaded image is
// removed best-effort afterwards.
func (s *BuildService) DeleteBuild(ctx context.Context, viewer permission.Viewer, id int64) error {
	if !viewer.Authenticated() {
		return ErrAuthRequired
	}

	row, err := s.visibleRow(ctx, viewer, id)
	if err != nil {
		return err
	}
	if !viewer.CanDelete(row.UserID) {
		return ErrUnauthorized
	}

	if err := s.builds.Delete(ctx, id); err != nil {
		return storeErr("delete build", err)
	}

	if s.images != nil && row.ImageURL != "" {
		if err := s.images.DeleteURL(ctx, row.ImageURL); err != nil {
			s.logger.Warn("remove build image failed",
				zap.Int64("build_id", id),
				zap.String("image_url", row.ImageURL),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *BuildService) buildFromPayload(ctx context.Context, p types.BuildPayload) (types.Build, error) {
	stats, err := validatePayload(p)
	if err != nil {
		return types.Build{}, err
	}

	weapon, err := s.resolveWeapon(ctx, p)
	if err != nil {
		return types.Build{}, err
	}

	return types.Build{
		WeaponID:    weapon.ID,
		WeaponName:  weapon.Name,
		WeaponImage: weapon.ImageURL,
		ImageURL:    strings.TrimSpace(p.ImageURL),
		Title:       strings.TrimSpace(p.Title),
		Description: strings.TrimSpace(p.Description),
		BuildCode:   strings.TrimSpace(p.BuildCode),
		Price:       *p.Price,
		Stats:       stats,
		Tags:        storedTags(p.Tags),
	}, nil
}

func (s *BuildService) resolveWeapon(ctx context.Context, p types.BuildPayload) (types.Weapon, error) {
	var (
		weapon types.Weapon
		err    error
	)
	if p.WeaponID > 0 {
		weapon, err = s.weapons.GetByID(ctx, p.WeaponID)
	} else {
		weapon, err = s.weapons.GetByName(ctx, strings.TrimSpace(p.WeaponName))
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Weapon{}, invalid("weapon", "unknown weapon")
		}
		return types.Weapon{}, storeErr("resolve weapon", err)
	}
	return weapon, nil
}

func validatePayload(p types.BuildPayload) (types.Stats, error) {
	title := strings.TrimSpace(p.Title)
	switch {
	case title == "":
		return types.Stats{}, invalid("title", "is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		return types.Stats{}, invalid("title", "is too long")
	}
	if p.WeaponID <= 0 && strings.TrimSpace(p.WeaponName) == "" {
		return types.Stats{}, invalid("weapon", "is required")
	}
	code := strings.TrimSpace(p.BuildCode)
	switch {
	case code == "":
		return types.Stats{}, invalid("build_code", "is required")
	case len(code) > maxBuildCodeLength:
		return types.Stats{}, invalid("build_code", "is too long")
	}
	if utf8.RuneCountInString(p.Description) > maxDescriptionLength {
		return types.Stats{}, invalid("description", "is too long")
	}
	if p.Price == nil {
		return types.Stats{}, invalid("price", "is required")
	}
	if *p.Price < 0 {
		return types.Stats{}, invalid("price", "must not be negative")
	}
	if len(p.Tags) > maxTags {
		return types.Stats{}, invalid("tags", "too many tags")
	}

	bounded := []struct {
		field string
		value *int
	}{
		{"vertical_recoil", p.VerticalRecoil},
		{"horizontal_recoil", p.HorizontalRecoil},
		{"ergonomics", p.Ergonomics},
		{"weapon_stability", p.WeaponStability},
		{"accuracy", p.Accuracy},
		{"hipfire_stability", p.HipfireStability},
	}
	for _, stat := range bounded {
		if stat.value == nil {
			return types.Stats{}, invalid(stat.field, "is required")
		}
		if *stat.value < 0 || *stat.value > maxStatPercent {
			return types.Stats{}, invalid(stat.field, "must be between 0 and 100")
		}
	}

	magnitudes := []struct {
		field string
		value *int
	}{
		{"effective_range", p.EffectiveRange},
		{"muzzle_velocity", p.MuzzleVelocity},
	}
	for _, stat := range magnitudes {
		if stat.value == nil {
			return types.Stats{}, invalid(stat.field, "is required")
		}
		if *stat.value < 0 {
			return types.Stats{}, invalid(stat.field, "must not be negative")
		}
	}

	return types.Stats{
		VerticalRecoil:   *p.VerticalRecoil,
		HorizontalRecoil: *p.HorizontalRecoil,
		Ergonomics:       *p.Ergonomics,
		WeaponStability:  *p.WeaponStability,
		Accuracy:         *p.Accuracy,
		HipfireStability: *p.HipfireStability,
		EffectiveRange:   *p.EffectiveRange,
		MuzzleVelocity:   *p.MuzzleVelocity,
	}, nil
}

// storedTags trims and deduplicates submitted tags. The derived streamer
// tag is never stored.
func storedTags(tags []string) []string {
	trimmed := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || tag == types.StreamerBuildTag {
			continue
		}
		trimmed = append(trimmed, tag)
	}
	return projection.DedupeTags(trimmed)
}

func authorOf(p types.Profile) types.Author {
	return types.Author{
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		IsAdmin:     p.IsAdmin,
		IsModerator: p.IsModerator,
		IsStreamer:  p.IsStreamer,
		IsVerified:  p.IsVerified,
		IsSupporter: p.IsSupporter,
	}
}
