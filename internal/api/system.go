package api

import (
	"errors"
	"net/http"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/internal/controllers/systemcontroller"
	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
)

type SystemStateResponse struct {
	SystemEnabled bool `json:"system_enabled"`
}

type SystemStateRequest struct {
	SystemEnabled bool `json:"system_enabled"`
}

type JobStatusResponse struct {
	Current *model.Job `json:"current"`
	Last    *model.Job `json:"last"`
}

func (s *Server) getSystemState(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.system.Enabled(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SystemStateResponse{SystemEnabled: enabled})
}

func (s *Server) setSystemState(w http.ResponseWriter, r *http.Request) {
	var req SystemStateRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.system.SetEnabled(r.Context(), req.SystemEnabled); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	log.Info().Bool("enabled", req.SystemEnabled).Msg("System state updated via API")
	s.writeJSON(w, http.StatusOK, SystemStateResponse{SystemEnabled: req.SystemEnabled})
}

// startJob queues run, winterize or test on the worker, named by the last path element.
func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	kind := model.JobKind(path.Base(r.URL.Path))

	job, err := s.system.Start(kind)
	if errors.Is(err, systemcontroller.ErrBusy) {
		s.writeJSON(w, http.StatusConflict, JobStatusResponse{Current: &job})
		return
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) abortJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.system.Abort()
	if errors.Is(err, systemcontroller.ErrIdle) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	var resp JobStatusResponse
	if current, ok := s.system.Current(); ok {
		resp.Current = &current
	}
	if last, ok := s.system.Last(); ok {
		resp.Last = &last
	}
	s.writeJSON(w, http.StatusOK, resp)
}
