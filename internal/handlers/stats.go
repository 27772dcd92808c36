package handlers

import (
	"context"
	"net/http"

	"github.com/imzleep/abibuilder-sub000/types"
)

// LandingStats reports the landing page counters.
type LandingStats interface {
	Landing(ctx context.Context) types.LandingStats
}

// Stats serves the landing counters. It never fails; counters degrade to
// zero when the store is unavailable.
func Stats(stats LandingStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stats.Landing(r.Context()))
	}
}
