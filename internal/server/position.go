package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/unklstewy/atc-radar/internal/metrics"
	"github.com/unklstewy/atc-radar/pkg/position"
)

// requiredFields are the parts of a report without which it is rejected.
type requiredFields struct {
	Callsign  string   `validate:"required"`
	Latitude  *float64 `validate:"required"`
	Longitude *float64 `validate:"required"`
}

// detailRecord is a record in the single-read shape. The nil LastSeen
// shadows the embedded one so the stamp is reported beside the record.
type detailRecord struct {
	position.Record
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type detailResponse struct {
	Aircraft detailRecord `json:"aircraft"`
	LastSeen time.Time    `json:"lastSeen"`
}

// handlePostPosition accepts one position report.
func (s *Server) handlePostPosition(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var fields position.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || fields == nil {
		metrics.ReportsRejected.WithLabelValues("malformed").Inc()
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := s.checkRequired(fields); err != nil {
		metrics.ReportsRejected.WithLabelValues("missing_fields").Inc()
		s.log.Debug().Err(err).Msg("report rejected")
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	rec := s.store.Upsert(fields.Key(), fields)
	metrics.ReportsAccepted.Inc()
	s.log.Debug().
		Str("key", rec.ID).
		Str("callsign", rec.Callsign).
		Msg("report accepted")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"timestamp": time.Now().UTC(),
	})
}

// checkRequired enforces a non-empty callsign and numeric lat/lon.
func (s *Server) checkRequired(fields position.Fields) error {
	req := requiredFields{Callsign: fields.String("callsign")}
	if fields.IsNumber("lat") {
		lat := fields.Float("lat")
		req.Latitude = &lat
	}
	if fields.IsNumber("lon") {
		lon := fields.Float("lon")
		req.Longitude = &lon
	}
	if err := s.validate.Struct(req); err != nil {
		return errors.Join(errors.New("missing required fields"), err)
	}
	return nil
}

// handleGetPosition reads one record by id or callsign, a search result,
// or the full live set.
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if id := query.Get("id"); id != "" {
		rec, ok := s.store.Get(id)
		if !ok {
			respondError(w, http.StatusNotFound, "Aircraft not found")
			return
		}
		respondJSON(w, http.StatusOK, detail(rec))
		return
	}

	if callsign := query.Get("callsign"); callsign != "" {
		rec, ok := s.store.FindByCallsign(callsign)
		if !ok {
			respondError(w, http.StatusNotFound, "Aircraft not found")
			return
		}
		respondJSON(w, http.StatusOK, detail(rec))
		return
	}

	if query.Has("q") {
		respondJSON(w, http.StatusOK, position.NewSnapshot(s.store.Search(query.Get("q")), time.Now().UTC()))
		return
	}

	respondJSON(w, http.StatusOK, s.store.Snapshot())
}

func detail(rec position.Record) detailResponse {
	return detailResponse{
		Aircraft: detailRecord{Record: rec},
		LastSeen: rec.LastSeen,
	}
}
