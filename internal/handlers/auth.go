package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/services"
	"github.com/imzleep/abibuilder-sub000/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL   = 24 * time.Hour
	minPasswordLength = 8
	maxPasswordLength = 72
)

// AccountService is the profile surface used by the auth endpoints.
type AccountService interface {
	Create(ctx context.Context, profile types.Profile) (types.Profile, error)
	GetByID(ctx context.Context, id int64) (types.Profile, error)
	GetByUsername(ctx context.Context, username string) (types.Profile, error)
}

// ViewerResolver loads the role flags of an identity.
type ViewerResolver interface {
	Resolve(ctx context.Context, identity *permission.Identity) (permission.Viewer, error)
}

// AuthHandler provides JWT authentication endpoints and the middleware
// that turns a bearer token into a permission.Viewer.
type AuthHandler struct {
	profiles AccountService
	resolver ViewerResolver
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(profiles AccountService, resolver ViewerResolver, jwtSecret string, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		profiles: profiles,
		resolver: resolver,
		secret:   []byte(jwtSecret),
		tokenTTL: defaultTokenTTL,
		logger:   logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.With(h.RequireAuth).Get("/me", h.Me)
}

// OptionalAuth resolves the viewer when a bearer token is present and lets
// anonymous requests through. A token that does not verify is rejected.
func (h *AuthHandler) OptionalAuth(next http.Handler) http.Handler {
	return h.authenticate(false, next)
}

// RequireAuth rejects requests without a valid bearer token.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return h.authenticate(true, next)
}

func (h *AuthHandler) authenticate(required bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !required && strings.TrimSpace(r.Header.Get("Authorization")) == "" {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		subject, err := parseTokenSubject(tokenString, h.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID, err := strconv.ParseInt(subject, 10, 64)
		if err != nil || userID < 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		viewer, err := h.resolver.Resolve(r.Context(), &permission.Identity{UserID: userID})
		if err != nil {
			writeServiceError(w, h.logger, &services.StoreError{Op: "resolve viewer", Err: err})
			return
		}

		ctx := context.WithValue(r.Context(), contextSubjectKey, userID)
		ctx = context.WithValue(ctx, contextViewerKey, viewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Register creates a new profile and returns a JWT.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	switch {
	case strings.TrimSpace(req.Username) == "" || req.Email == "" || req.Password == "":
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	case !strings.Contains(req.Email, "@"):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid email", Field: "email"})
		return
	case len(req.Password) < minPasswordLength || len(req.Password) > maxPasswordLength:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "password must be 8-72 bytes", Field: "password"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}

	profile, err := h.profiles.Create(r.Context(), types.Profile{
		Username:     req.Username,
		Email:        req.Email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: string(hashed),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	token, err := issueToken(profile.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, Profile: profile})
}

// Login verifies credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	profile, err := h.profiles.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, h.logger, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := issueToken(profile.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, Profile: profile})
}

// Me returns the current authenticated profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.profiles.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token   string        `json:"token"`
	Profile types.Profile `json:"profile"`
}

func issueToken(userID int64, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
