package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/imzleep/abibuilder-sub000/types"
	"go.uber.org/zap"
)

// WeaponCatalog lists the weapon reference data.
type WeaponCatalog interface {
	Weapons(ctx context.Context) ([]types.Weapon, error)
}

type WeaponHandler struct {
	catalog WeaponCatalog
	logger  *zap.Logger
}

// NewWeaponHandler constructs a handler over the weapon catalog.
func NewWeaponHandler(catalog WeaponCatalog, logger *zap.Logger) *WeaponHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeaponHandler{catalog: catalog, logger: logger}
}

func WeaponRouter(r chi.Router, h *WeaponHandler) {
	r.Get("/", h.ListWeapons)
}

func (h *WeaponHandler) ListWeapons(w http.ResponseWriter, r *http.Request) {
	weapons, err := h.catalog.Weapons(r.Context())
	if err != nil {
		h.logger.Error("list weapons", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if weapons == nil {
		weapons = []types.Weapon{}
	}
	writeJSON(w, http.StatusOK, weapons)
}
