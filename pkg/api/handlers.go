package api

import (
	"context"
	"net/http"

	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

const maxRequestBodyBytes = 64 * 1024

type handlers struct {
	contract domain.Contract
	logger   logging.Logger
}

type proposeResponse struct {
	Target  string `json:"target"`
	Version uint64 `json:"version"`
}

type commandResponse struct {
	Target  string `json:"target"`
	Command string `json:"command"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	respondData(w, h.logger, http.StatusOK, map[string]string{"health": "ok"})
}

func (h *handlers) listTargets(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.contract.Status(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, h.logger, http.StatusOK, statuses)
}

func (h *handlers) getTarget(w http.ResponseWriter, r *http.Request) {
	status, err := h.contract.TargetStatus(r.Context(), targetParam(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, h.logger, http.StatusOK, status)
}

func (h *handlers) putConfig(w http.ResponseWriter, r *http.Request) {
	id := targetParam(r)

	var record domain.ConfigRecord
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&record); err != nil {
		respondError(w, h.logger, errors.NewValidationError("malformed configuration record", err).WithContext("target", id))
		return
	}
	if err := validateRecord(&record); err != nil {
		respondError(w, h.logger, err)
		return
	}

	version, err := h.contract.ProposeConfig(r.Context(), id, record)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, h.logger, http.StatusOK, proposeResponse{Target: id, Version: version})
}

func (h *handlers) startTarget(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "start", h.contract.StartTarget)
}

func (h *handlers) stopTarget(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "stop", h.contract.StopTarget)
}

func (h *handlers) command(w http.ResponseWriter, r *http.Request, name string, run func(ctx context.Context, id string) error) {
	id := targetParam(r)
	if err := run(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, h.logger, http.StatusAccepted, commandResponse{Target: id, Command: name})
}

func targetParam(r *http.Request) string {
	return chi.URLParam(r, "kind") + "/" + chi.URLParam(r, "name")
}
