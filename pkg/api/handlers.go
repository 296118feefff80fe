// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

// Package api serves the part-numbering REST surface. Every route except
// the health check sits behind bearer-token validation; reads require the
// read scope, writes require the write scope.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cml1010101/onshape-part-manager/pkg/auth"
	"github.com/cml1010101/onshape-part-manager/pkg/logger"
	"github.com/cml1010101/onshape-part-manager/pkg/partdb"
)

// Scopes gating the API.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
)

// Handler serves the part database over HTTP.
type Handler struct {
	db        *partdb.Store
	validator *auth.BearerValidator
}

// NewHandler creates the API handler.
func NewHandler(db *partdb.Store, validator *auth.BearerValidator) (*Handler, error) {
	if db == nil {
		return nil, errors.New("part database is required")
	}
	if validator == nil {
		return nil, errors.New("bearer validator is required")
	}
	return &Handler{db: db, validator: validator}, nil
}

// Routes registers the API endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(h.validator.Middleware)

		r.Get("/api/database/summary", h.DatabaseSummary)
		r.Post("/api/projects", h.CreateProject)
		r.Post("/api/projects/{projectID}/subsystems", h.CreateSubsystem)
		r.Post("/api/projects/{projectID}/subsystems/{subsystemID}/parts", h.CreatePart)
		r.Post("/api/projects/{projectID}/subsystems/{subsystemID}/assemblies", h.CreateAssembly)
	})
}

// Health reports service liveness. Unauthenticated.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"storage": "in-memory",
	})
}

// DatabaseSummary returns counts and all projects.
func (h *Handler) DatabaseSummary(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, ScopeRead) {
		return
	}
	writeJSON(w, http.StatusOK, h.db.Summary())
}

// CreateProject creates a project.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, ScopeWrite) {
		return
	}

	var in partdb.ProjectInput
	if !decodeBody(w, r, &in) {
		return
	}

	project, err := h.db.CreateProject(in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logger.Infow("project created",
		"project_id", project.ID,
		"identifier", project.Identifier,
		"project_code", project.ProjectCode,
	)
	writeJSON(w, http.StatusCreated, project)
}

// CreateSubsystem creates a subsystem in a project, allocating its number.
func (h *Handler) CreateSubsystem(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, ScopeWrite) {
		return
	}

	var in struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &in) {
		return
	}

	subsystem, err := h.db.CreateSubsystem(chi.URLParam(r, "projectID"), in.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logger.Infow("subsystem created",
		"subsystem_id", subsystem.ID,
		"subsystem_number", subsystem.Number,
	)
	writeJSON(w, http.StatusCreated, subsystem)
}

// CreatePart creates a part in a subsystem, assigning its part number.
func (h *Handler) CreatePart(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, ScopeWrite) {
		return
	}

	var in partdb.PartInput
	if !decodeBody(w, r, &in) {
		return
	}

	part, err := h.db.CreatePart(chi.URLParam(r, "projectID"), chi.URLParam(r, "subsystemID"), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logger.Infow("part created", "part_id", part.ID, "number", part.Number)
	writeJSON(w, http.StatusCreated, part)
}

// CreateAssembly creates an assembly in a subsystem, assigning its number.
func (h *Handler) CreateAssembly(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, ScopeWrite) {
		return
	}

	var in partdb.AssemblyInput
	if !decodeBody(w, r, &in) {
		return
	}

	assembly, err := h.db.CreateAssembly(chi.URLParam(r, "projectID"), chi.URLParam(r, "subsystemID"), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logger.Infow("assembly created", "assembly_id", assembly.ID, "number", assembly.Number)
	writeJSON(w, http.StatusCreated, assembly)
}

// requireScope enforces a scope on the request's identity. Returns false
// after writing a 403 when the scope is missing.
func requireScope(w http.ResponseWriter, r *http.Request, scope string) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || !identity.HasScope(scope) {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "insufficient_scope",
		})
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid_request_body",
		})
		return false
	}
	return true
}

// writeDomainError maps part database errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, partdb.ErrProjectNotFound),
		errors.Is(err, partdb.ErrSubsystemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, partdb.ErrInvalidIdentifier),
		errors.Is(err, partdb.ErrProjectCodeRequired),
		errors.Is(err, partdb.ErrProjectCodeForbidden),
		errors.Is(err, partdb.ErrDuplicateProjectCode),
		errors.Is(err, partdb.ErrDuplicateNFRProject):
		status = http.StatusBadRequest
	case errors.Is(err, partdb.ErrSubsystemNumbersExhausted),
		errors.Is(err, partdb.ErrItemNumbersExhausted):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorw("failed to write response", "error", err)
	}
}
