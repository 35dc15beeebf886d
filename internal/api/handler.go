package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zjrosen/vhosts/internal/application/hosts"
	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/log"
)

// maxBodyBytes caps request bodies; a registry of a few thousand hosts fits easily.
const maxBodyBytes = 8 << 20

// HostHandler handles /api/hosts endpoints.
type HostHandler struct {
	svc    HostService
	lister hosts.Lister
}

// invalidator is implemented by listers that keep decoded registries in memory.
type invalidator interface {
	Invalidate(ctx context.Context) error
}

// written drops anything the lister remembers after a successful write.
func (h *HostHandler) written(ctx context.Context) {
	inv, ok := h.lister.(invalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx); err != nil {
		log.ErrorErr(log.CatAPI, "Failed to invalidate list cache", err)
	}
}

// ToggleResponse is returned by POST /api/hosts/{domain}/toggle.
type ToggleResponse struct {
	Domain string `json:"domain"`
	Active bool   `json:"active"`
}

// BulkResponse is returned by activate-all and deactivate-all.
type BulkResponse struct {
	Active  bool `json:"active"`
	Changed int  `json:"changed"`
}

// List returns the registry in its on-disk shape.
func (h *HostHandler) List(w http.ResponseWriter, r *http.Request) {
	reg, err := h.lister.ListHosts(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	data, err := vhost.EncodeRegistry(reg)
	if err != nil {
		handleError(w, err)
		return
	}
	respondRaw(w, http.StatusOK, data)
}

// Replace overwrites the whole registry with the request body.
func (h *HostHandler) Replace(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reg, skipped, err := vhost.DecodeRegistry(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(skipped) > 0 {
		log.Warn(log.CatAPI, "Skipped malformed entries in replace body", "domains", skipped)
	}
	if err := h.svc.ReplaceAll(r.Context(), reg); err != nil {
		handleError(w, err)
		return
	}
	h.written(r.Context())
	respondJSON(w, http.StatusOK, map[string]int{"hosts": len(reg)})
}

// Upsert creates or replaces the host named in the path.
func (h *HostHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	host, ok := vhost.DecodeHost(domain, body)
	if !ok {
		respondError(w, http.StatusBadRequest, "host must be a JSON object")
		return
	}
	created, err := h.svc.UpsertHost(r.Context(), host)
	if err != nil {
		handleError(w, err)
		return
	}
	h.written(r.Context())
	data, err := vhost.EncodeHost(host)
	if err != nil {
		handleError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondRaw(w, status, data)
}

// Delete removes the host named in the path.
func (h *HostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteOne(r.Context(), chi.URLParam(r, "domain")); err != nil {
		handleError(w, err)
		return
	}
	h.written(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Toggle flips the active flag of the host named in the path.
func (h *HostHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	host, err := h.svc.ToggleActive(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		handleError(w, err)
		return
	}
	h.written(r.Context())
	respondJSON(w, http.StatusOK, ToggleResponse{Domain: host.Domain, Active: host.Active})
}

// ActivateAll marks every host active.
func (h *HostHandler) ActivateAll(w http.ResponseWriter, r *http.Request) {
	h.setAll(w, r, true)
}

// DeactivateAll marks every host inactive.
func (h *HostHandler) DeactivateAll(w http.ResponseWriter, r *http.Request) {
	h.setAll(w, r, false)
}

func (h *HostHandler) setAll(w http.ResponseWriter, r *http.Request, active bool) {
	changed, err := h.svc.SetAllActive(r.Context(), active)
	if err != nil {
		handleError(w, err)
		return
	}
	h.written(r.Context())
	respondJSON(w, http.StatusOK, BulkResponse{Active: active, Changed: changed})
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}
