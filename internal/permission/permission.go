// Package permission resolves the requesting identity into a Viewer whose
// role flags gate edit, delete and moderation actions.
package permission

import (
	"context"
	"errors"

	"github.com/imzleep/abibuilder-sub000/internal/store"
	"github.com/imzleep/abibuilder-sub000/types"
)

// Identity is the authenticated caller as reported by the session layer.
// A nil *Identity means the caller is anonymous.
type Identity struct {
	UserID int64
}

// Viewer is the per-request role bundle. The zero value is an anonymous
// viewer.
type Viewer struct {
	UserID      int64
	IsAdmin     bool
	IsModerator bool
}

// Anonymous returns a viewer with no identity.
func Anonymous() Viewer {
	return Viewer{}
}

// Authenticated reports whether the viewer has an identity.
func (v Viewer) Authenticated() bool {
	return v.UserID > 0
}

// IsOwner reports whether the viewer owns a resource belonging to ownerID.
func (v Viewer) IsOwner(ownerID int64) bool {
	return v.Authenticated() && v.UserID == ownerID
}

// CanModerate reports moderator-level capability. Admins have it too.
func (v Viewer) CanModerate() bool {
	return v.Authenticated() && (v.IsModerator || v.IsAdmin)
}

// CanDelete reports whether the viewer may delete a build owned by ownerID.
func (v Viewer) CanDelete(ownerID int64) bool {
	return v.IsOwner(ownerID) || v.CanModerate()
}

// CanEdit reports whether the viewer may edit build content. Owners
// cannot edit; only moderators and admins can.
func (v Viewer) CanEdit() bool {
	return v.CanModerate()
}

// CanView reports whether the viewer may see a build in the given status.
func (v Viewer) CanView(ownerID int64, status types.BuildStatus) bool {
	return status == types.BuildStatusVerified || v.IsOwner(ownerID) || v.CanModerate()
}

// ProfileGetter loads a profile by id.
type ProfileGetter interface {
	GetByID(ctx context.Context, id int64) (types.Profile, error)
}

// Resolver turns an Identity into a Viewer with one profile lookup.
type Resolver struct {
	profiles ProfileGetter
}

// NewResolver returns a resolver backed by profiles.
func NewResolver(profiles ProfileGetter) *Resolver {
	return &Resolver{profiles: profiles}
}

// Resolve fetches the role flags of the identity once. Anonymous callers
// resolve without touching the store. An identity whose profile no longer
// exists resolves to an authenticated viewer without roles.
func (r *Resolver) Resolve(ctx context.Context, identity *Identity) (Viewer, error) {
	if identity == nil || identity.UserID < 1 {
		return Anonymous(), nil
	}

	profile, err := r.profiles.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Viewer{UserID: identity.UserID}, nil
		}
		return Anonymous(), err
	}

	return Viewer{
		UserID:      profile.ID,
		IsAdmin:     profile.IsAdmin,
		IsModerator: profile.IsModerator,
	}, nil
}
