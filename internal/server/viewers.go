package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/unklstewy/atc-radar/internal/auth"
	"github.com/unklstewy/atc-radar/internal/db"
	"github.com/unklstewy/atc-radar/internal/metrics"
)

type registerViewerRequest struct {
	ViewerID string `json:"viewerId"`
}

// handleRegisterViewer records a viewer heartbeat. An empty body registers
// a new viewer.
func (s *Server) handleRegisterViewer(w http.ResponseWriter, r *http.Request) {
	if s.viewers == nil {
		respondError(w, http.StatusServiceUnavailable, "Viewer tracking disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req registerViewerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	id, active := s.viewers.Register(req.ViewerID)
	metrics.ActiveViewers.Set(float64(active))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"viewerId":      id,
		"activeViewers": active,
	})
}

func (s *Server) handleViewerStats(w http.ResponseWriter, r *http.Request) {
	if s.viewers == nil {
		respondError(w, http.StatusServiceUnavailable, "Viewer tracking disabled")
		return
	}

	stats := s.viewers.Stats()
	metrics.ActiveViewers.Set(float64(stats.Active))
	respondJSON(w, http.StatusOK, stats)
}

// handleCapabilities reports what the caller's role allows. Anonymous
// callers, bad tokens and lookup failures all resolve to FREE so the
// client can always render.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, auth.CapabilitiesFor(s.roleFor(r)))
}

func (s *Server) roleFor(r *http.Request) auth.Role {
	if s.authSvc == nil || s.roles == nil {
		return auth.RoleFree
	}

	claims, err := s.authSvc.FromRequest(r)
	if err != nil {
		if !errors.Is(err, auth.ErrNoToken) && !errors.Is(err, auth.ErrDisabled) {
			s.log.Debug().Err(err).Msg("capability token rejected")
		}
		return auth.RoleFree
	}

	role, err := s.roles.GetRole(r.Context(), claims.UserID)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			s.log.Warn().Err(err).Int("user_id", claims.UserID).Msg("role lookup failed")
		}
		return auth.RoleFree
	}
	return auth.ParseRole(role)
}
