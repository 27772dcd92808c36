package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthRouter(profiles *stubProfiles, resolver ViewerResolver) *chi.Mux {
	h := newTestAuth(profiles, resolver)
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) { AuthRouter(r, h) })
	return r
}

func TestRegisterThenMe(t *testing.T) {
	profiles := newStubProfiles()
	router := newAuthRouter(profiles, viewerStub{})

	rec := serve(router, http.MethodPost, "/auth/register",
		strings.NewReader(`{"username":"kenji","email":"kenji@example.com","password":"hunter2hunter2"}`), "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "kenji", resp.Profile.Username)
	assert.NotContains(t, rec.Body.String(), "password")

	stored := profiles.byID[resp.Profile.ID]
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2hunter2")))

	rec = serve(router, http.MethodGet, "/auth/me", nil, resp.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var me types.Profile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, resp.Profile.ID, me.ID)
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing fields", `{"username":"a"}`, http.StatusBadRequest},
		{"bad email", `{"username":"kenji","email":"nope","password":"hunter2hunter2"}`, http.StatusBadRequest},
		{"short password", `{"username":"kenji","email":"k@example.com","password":"short"}`, http.StatusBadRequest},
		{"long password", `{"username":"kenji","email":"k@example.com","password":"` + strings.Repeat("p", 73) + `"}`, http.StatusBadRequest},
		{"taken", `{"username":"GHOST","email":"k@example.com","password":"hunter2hunter2"}`, http.StatusConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newAuthRouter(newStubProfiles(types.Profile{ID: 2, Username: "ghost"}), viewerStub{})
			rec := serve(router, http.MethodPost, "/auth/register", strings.NewReader(tc.body), "")
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	profiles := newStubProfiles(types.Profile{ID: 3, Username: "ghost", PasswordHash: string(hash)})
	router := newAuthRouter(profiles, viewerStub{})

	rec := serve(router, http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ghost","password":"correct horse"}`), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	subject, err := parseTokenSubject(resp.Token, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, "3", subject)

	rec = serve(router, http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ghost","password":"wrong"}`), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, http.MethodPost, "/auth/login", strings.NewReader(`{"username":"nobody","password":"wrong"}`), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_RequiresToken(t *testing.T) {
	router := newAuthRouter(newStubProfiles(), viewerStub{})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/auth/me", nil, "").Code)

	expired, err := issueToken(1, []byte(testSecret), -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/auth/me", nil, expired).Code)

	forged, err := issueToken(1, []byte("other-secret"), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/auth/me", nil, forged).Code)
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, *permission.Identity) (permission.Viewer, error) {
	return permission.Anonymous(), errors.New("db down")
}

func TestOptionalAuth(t *testing.T) {
	var got permission.Viewer
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = viewerFromRequest(r)
		w.WriteHeader(http.StatusOK)
	})

	h := newTestAuth(newStubProfiles(), viewerStub{moderator: true})
	rec := serve(h.OptionalAuth(next), http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, got.Authenticated())

	rec = serve(h.OptionalAuth(next), http.MethodGet, "/", nil, tokenFor(t, 8))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, permission.Viewer{UserID: 8, IsModerator: true}, got)

	failing := newTestAuth(newStubProfiles(), failingResolver{})
	rec = serve(failing.OptionalAuth(next), http.MethodGet, "/", nil, tokenFor(t, 8))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBearerToken(t *testing.T) {
	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer"} {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", header)
		_, err := bearerToken(r)
		assert.Error(t, err, header)
	}
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer abc.def")
	token, err := bearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)
}
