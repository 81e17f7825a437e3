package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

// ZoneResponse is a zone with its live state. Time is in minutes.
type ZoneResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	GPIO           int        `json:"gpio"`
	Time           int        `json:"time"`
	Enabled        bool       `json:"enabled"`
	AutoOff        bool       `json:"auto_off"`
	SystemOrder    int        `json:"system_order"`
	State          bool       `json:"state"`
	PendingAutoOff bool       `json:"pending_auto_off"`
	AutoOffAt      *time.Time `json:"auto_off_at,omitempty"`
}

type ZoneToggleRequest struct {
	ID    int64 `json:"id"`
	State bool  `json:"state"`
}

type ZoneCreateRequest struct {
	Name    string `json:"name"`
	GPIO    int    `json:"gpio"`
	Time    int    `json:"time"`
	Enabled *bool  `json:"enabled"`
	AutoOff *bool  `json:"auto_off"`
}

type ZoneDeleteRequest struct {
	ID int64 `json:"id"`
}

type ZoneUpdateRequest struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	GPIO        int    `json:"gpio"`
	Time        int    `json:"time"`
	Enabled     bool   `json:"enabled"`
	AutoOff     bool   `json:"auto_off"`
	SystemOrder int    `json:"system_order"`
}

type ZoneOrderRequest struct {
	Order []int `json:"order"`
}

func toZoneResponse(st model.ZoneStatus) ZoneResponse {
	resp := ZoneResponse{
		ID:             st.ID,
		Name:           st.Name,
		GPIO:           st.Pin,
		Time:           st.Minutes(),
		Enabled:        st.Enabled,
		AutoOff:        st.AutoOff,
		SystemOrder:    st.SystemOrder,
		State:          st.Active,
		PendingAutoOff: st.PendingAutoOff,
	}
	if st.PendingAutoOff {
		at := st.AutoOffAt
		resp.AutoOffAt = &at
	}
	return resp
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (s *Server) getZones(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.registry.Statuses(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	response := make([]ZoneResponse, 0, len(statuses))
	for _, st := range statuses {
		response = append(response, toZoneResponse(st))
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) getZone(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := s.registry.Status(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toZoneResponse(st))
}

// toggleZone opens a zone unattended (every other zone is closed first) or closes it.
func (s *Server) toggleZone(w http.ResponseWriter, r *http.Request) {
	var req ZoneToggleRequest
	if !s.decode(w, r, &req) {
		return
	}

	var err error
	if req.State {
		err = s.registry.Activate(r.Context(), req.ID)
	} else {
		err = s.registry.Deactivate(r.Context(), req.ID)
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	st, err := s.registry.Status(r.Context(), req.ID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	log.Info().Int64("zone_id", req.ID).Bool("state", req.State).Msg("Zone toggled via API")
	s.writeJSON(w, http.StatusOK, toZoneResponse(st))
}

func (s *Server) createZone(w http.ResponseWriter, r *http.Request) {
	var req ZoneCreateRequest
	if !s.decode(w, r, &req) {
		return
	}

	d, err := zone.DurationFromMinutes(req.Time)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	created, err := s.registry.Create(r.Context(), model.Zone{
		Name:        req.Name,
		Pin:         req.GPIO,
		RunDuration: d,
		Enabled:     boolOr(req.Enabled, true),
		AutoOff:     boolOr(req.AutoOff, true),
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toZoneResponse(model.ZoneStatus{Zone: created}))
}

func (s *Server) deleteZone(w http.ResponseWriter, r *http.Request) {
	var req ZoneDeleteRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.registry.Delete(r.Context(), req.ID); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) updateZone(w http.ResponseWriter, r *http.Request) {
	var req ZoneUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	d, err := zone.DurationFromMinutes(req.Time)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	err = s.registry.Update(r.Context(), model.Zone{
		ID:          req.ID,
		Name:        req.Name,
		Pin:         req.GPIO,
		RunDuration: d,
		Enabled:     req.Enabled,
		AutoOff:     req.AutoOff,
		SystemOrder: req.SystemOrder,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	st, err := s.registry.Status(r.Context(), req.ID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toZoneResponse(st))
}

func (s *Server) reorderZones(w http.ResponseWriter, r *http.Request) {
	var req ZoneOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.registry.Reorder(r.Context(), req.Order); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
