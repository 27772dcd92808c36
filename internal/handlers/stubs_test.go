package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/internal/services"
	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubBuilds struct {
	viewer   permission.Viewer
	filters  query.FilterSet
	pageSize int
	payload  types.BuildPayload
	id       int64
	err      error
}

func (s *stubBuilds) ListBuilds(_ context.Context, v permission.Viewer, f query.FilterSet, pageSize int) (types.BuildPage, error) {
	s.viewer, s.filters, s.pageSize = v, f, pageSize
	return types.BuildPage{Builds: []types.ProjectedBuild{{ID: 1}}, TotalCount: 1, Page: f.Page, PageSize: pageSize}, s.err
}

func (s *stubBuilds) FeedPage(_ context.Context, v permission.Viewer, f query.FilterSet, pageSize int) (types.FeedPage, error) {
	s.viewer, s.filters, s.pageSize = v, f, pageSize
	return types.FeedPage{Weapons: []types.Weapon{{ID: 1, Name: "M4A1"}}}, s.err
}

func (s *stubBuilds) GetBuild(_ context.Context, v permission.Viewer, id int64) (types.ProjectedBuild, error) {
	s.viewer, s.id = v, id
	return types.ProjectedBuild{ID: id}, s.err
}

func (s *stubBuilds) CreateBuild(_ context.Context, v permission.Viewer, p types.BuildPayload) (types.Build, error) {
	s.viewer, s.payload = v, p
	return types.Build{ID: 42, Title: p.Title, Status: types.BuildStatusPending}, s.err
}

func (s *stubBuilds) UpdateBuild(_ context.Context, v permission.Viewer, id int64, p types.BuildPayload) (types.ProjectedBuild, error) {
	s.viewer, s.id, s.payload = v, id, p
	return types.ProjectedBuild{ID: id, Title: p.Title}, s.err
}

func (s *stubBuilds) DeleteBuild(_ context.Context, v permission.Viewer, id int64) error {
	s.viewer, s.id = v, id
	return s.err
}

func (s *stubBuilds) ListUserBuilds(_ context.Context, v permission.Viewer, userID int64, f query.FilterSet, pageSize int) (types.BuildPage, error) {
	s.viewer, s.id, s.filters, s.pageSize = v, userID, f, pageSize
	return types.BuildPage{Builds: []types.ProjectedBuild{}}, s.err
}

func (s *stubBuilds) ListUserBookmarks(_ context.Context, v permission.Viewer, userID int64, f query.FilterSet, pageSize int) (types.BuildPage, error) {
	s.viewer, s.id, s.filters, s.pageSize = v, -userID, f, pageSize
	return types.BuildPage{Builds: []types.ProjectedBuild{}}, s.err
}

type stubLedger struct {
	dir types.VoteDirection
	err error
}

func (s *stubLedger) ToggleVote(_ context.Context, _ permission.Viewer, id int64, dir types.VoteDirection) (types.VoteResult, error) {
	s.dir = dir
	up := types.VoteUp
	return types.VoteResult{BuildID: id, UserVote: &up, VoteCounts: types.VoteCounts{Upvotes: 1}}, s.err
}

func (s *stubLedger) ToggleBookmark(_ context.Context, _ permission.Viewer, id int64) (types.BookmarkResult, error) {
	return types.BookmarkResult{BuildID: id, IsBookmarked: true}, s.err
}

// stubProfiles backs both the auth and user endpoints.
type stubProfiles struct {
	byID    map[int64]types.Profile
	nextID  int64
	upd     types.ProfileUpdate
	roles   types.RoleFlags
	rolesOf int64
	err     error
}

func newStubProfiles(profiles ...types.Profile) *stubProfiles {
	s := &stubProfiles{byID: map[int64]types.Profile{}, nextID: 10}
	for _, p := range profiles {
		s.byID[p.ID] = p
	}
	return s
}

func (s *stubProfiles) Create(_ context.Context, p types.Profile) (types.Profile, error) {
	for _, existing := range s.byID {
		if strings.EqualFold(existing.Username, p.Username) {
			return types.Profile{}, services.ErrConflict
		}
	}
	s.nextID++
	p.ID = s.nextID
	s.byID[p.ID] = p
	return p, nil
}

func (s *stubProfiles) GetByID(_ context.Context, id int64) (types.Profile, error) {
	p, ok := s.byID[id]
	if !ok {
		return types.Profile{}, services.ErrNotFound
	}
	return p, nil
}

func (s *stubProfiles) GetByUsername(_ context.Context, username string) (types.Profile, error) {
	for _, p := range s.byID {
		if strings.EqualFold(p.Username, username) {
			return p, nil
		}
	}
	return types.Profile{}, services.ErrNotFound
}

func (s *stubProfiles) Summary(ctx context.Context, _ permission.Viewer, username string) (types.ProfileSummary, error) {
	p, err := s.GetByUsername(ctx, username)
	if err != nil {
		return types.ProfileSummary{}, err
	}
	return types.ProfileSummary{Profile: p, BuildCount: 2}, nil
}

func (s *stubProfiles) UpdateProfile(_ context.Context, v permission.Viewer, upd types.ProfileUpdate) (types.Profile, error) {
	if s.err != nil {
		return types.Profile{}, s.err
	}
	s.upd = upd
	p := s.byID[v.UserID]
	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	return p, nil
}

func (s *stubProfiles) SetRoles(_ context.Context, v permission.Viewer, userID int64, roles types.RoleFlags) error {
	if !v.IsAdmin {
		return services.ErrUnauthorized
	}
	s.rolesOf, s.roles = userID, roles
	return nil
}

// viewerStub resolves every identity to the configured roles.
type viewerStub struct {
	admin, moderator bool
}

func (r viewerStub) Resolve(_ context.Context, id *permission.Identity) (permission.Viewer, error) {
	if id == nil {
		return permission.Anonymous(), nil
	}
	return permission.Viewer{UserID: id.UserID, IsAdmin: r.admin, IsModerator: r.moderator}, nil
}

func newTestAuth(profiles *stubProfiles, resolver ViewerResolver) *AuthHandler {
	return NewAuthHandler(profiles, resolver, testSecret, nil)
}

func tokenFor(t *testing.T, userID int64) string {
	t.Helper()
	token, err := issueToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

// serve runs a request against router with an optional bearer token.
func serve(router http.Handler, method, target string, body io.Reader, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// mount builds a chi router with optional auth installed, as the server does.
func mount(auth *AuthHandler, pattern string, register func(chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Route(pattern, func(r chi.Router) {
		r.Use(auth.OptionalAuth)
		register(r)
	})
	return r
}
