package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matthewbaird/caseforms/internal/authoring"
	"github.com/matthewbaird/caseforms/internal/depindex"
	"github.com/matthewbaird/caseforms/internal/engine"
	"github.com/matthewbaird/caseforms/internal/event"
	"github.com/matthewbaird/caseforms/internal/expr"
	"github.com/matthewbaird/caseforms/internal/form"
	"github.com/matthewbaird/caseforms/internal/integrity"
	"github.com/matthewbaird/caseforms/internal/store"
)

// DefinitionHandler implements the HTTP surface for form definitions.
type DefinitionHandler struct {
	store    store.Store
	sessions *authoring.Manager
	engine   *engine.Engine
	recorder event.Recorder
}

// NewDefinitionHandler creates a DefinitionHandler. Item edits go through
// sessions so they share the tree live evaluators read.
func NewDefinitionHandler(st store.Store, sessions *authoring.Manager, eng *engine.Engine, rec event.Recorder) *DefinitionHandler {
	return &DefinitionHandler{store: st, sessions: sessions, engine: eng, recorder: rec}
}

// recordEvent records a domain event if a recorder is configured. Errors
// are logged but do not fail the request.
func (h *DefinitionHandler) recordEvent(ctx context.Context, evt event.DomainEvent) {
	if h.recorder == nil {
		return
	}
	if err := h.recorder.Record(ctx, evt); err != nil {
		log.Printf("event recording failed: %v", err)
	}
}

func (h *DefinitionHandler) functions() expr.Registry {
	return h.engine.Functions()
}

// definitionResponse is returned after a save.
type definitionResponse struct {
	Summary    store.Summary    `json:"summary"`
	Definition *form.Definition `json:"definition"`
}

// SaveDefinition validates and stores a definition. Malformed expressions
// fail the save with PARSE_ERROR; other defects with INVALID_DEFINITION.
// POST /v1/definitions
func (h *DefinitionHandler) SaveDefinition(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	def, err := form.DecodeBytes(body, requestFormat(r))
	if err != nil {
		if _, ok := err.(*form.ValidationError); ok {
			domainErrorToHTTP(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if _, err := authoring.Validate(def, h.functions()); err != nil {
		domainErrorToHTTP(w, err)
		return
	}

	ctx := r.Context()
	created, err := h.store.Save(ctx, def)
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	if err := h.sessions.Reload(ctx, def.ID); err != nil {
		log.Printf("handler: reload session %s: %v", def.ID, err)
	}
	sum := summaryOf(def)
	h.recordEvent(ctx, event.NewDefinitionSaved(event.DefinitionSavedPayload{
		DefinitionID: def.ID,
		Title:        def.Title,
		ItemCount:    sum.Items,
		Created:      created,
	}))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, definitionResponse{Summary: sum, Definition: def})
}

// ListDefinitions returns every stored definition.
// GET /v1/definitions
func (h *DefinitionHandler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"definitions": list})
}

// GetDefinition returns one definition as saved.
// GET /v1/definitions/{id}
func (h *DefinitionHandler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// DeleteDefinition removes a definition.
// DELETE /v1/definitions/{id}
func (h *DefinitionHandler) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()
	if err := h.store.Delete(ctx, id); err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	h.sessions.Forget(id)
	h.recordEvent(ctx, event.NewDefinitionDeleted(event.DefinitionDeletedPayload{DefinitionID: id}))
	w.WriteHeader(http.StatusNoContent)
}

// dependencyView is one item's entry in the dependency listing.
type dependencyView struct {
	LinkID     string              `json:"linkId"`
	Label      string              `json:"label"`
	Path       []string            `json:"path"`
	References map[string][]string `json:"references"`
	Dependents map[string][]string `json:"dependents"`
}

// GetDependencies returns the dependency index: for each item the names
// its rules read, the items whose rules read it, and its ancestor path.
// GET /v1/definitions/{id}/dependencies
func (h *DefinitionHandler) GetDependencies(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	snap := s.Snapshot()
	idx := snap.Index
	items := make([]dependencyView, 0, len(idx.LinkIDs()))
	for _, id := range idx.LinkIDs() {
		v := dependencyView{
			LinkID:     id,
			Label:      idx.Item(id).DisplayLabel(),
			Path:       idx.Path(id),
			References: map[string][]string{},
			Dependents: map[string][]string{},
		}
		deps := idx.Dependents(id)
		for _, k := range depindex.Kinds {
			if refs := idx.ReferencesOf(id, k); len(refs) > 0 {
				v.References[k.String()] = refs
			}
			for _, it := range deps.Of(k) {
				v.Dependents[k.String()] = append(v.Dependents[k.String()], it.LinkID)
			}
		}
		items = append(items, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"revision": snap.Revision,
		"items":    items,
	})
}

// evaluateRequest is the body of an evaluate call.
type evaluateRequest struct {
	Answers   map[string]any  `json:"answers"`
	Constants map[string]any  `json:"constants"`
	Subject   *engine.Subject `json:"subject"`

	// Initialize applies ALWAYS initial values over existing answers, as
	// when the form is first opened.
	Initialize bool `json:"initialize"`
}

// Evaluate computes the derived state of a definition for the given
// answers, constants and subject.
// POST /v1/definitions/{id}/evaluate
func (h *DefinitionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	s, err := h.sessions.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	snap := s.Snapshot()
	st := h.engine.Evaluate(engine.Input{
		Definition: snap.Definition,
		Index:      snap.Index,
		Answers:    req.Answers,
		Constants:  req.Constants,
		Initialize: req.Initialize,
	}, req.Subject)
	writeJSON(w, http.StatusOK, st)
}

// DeleteCheck reports whether an item and its subtree may be deleted, and
// which rules block it. It changes nothing.
// GET /v1/definitions/{id}/items/{linkId}/delete-check
func (h *DefinitionHandler) DeleteCheck(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	snap := s.Snapshot()
	linkID := chi.URLParam(r, "linkId")
	item := snap.Index.Item(linkID)
	if item == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "item not found: "+linkID)
		return
	}
	decision := integrity.CanDeleteTree(item, snap.Index)
	writeJSON(w, http.StatusOK, integrity.NewReport(decision, snap.Index))
}

// DeleteItem deletes an item and its subtree unless a rule outside the
// subtree references it, in which case nothing changes and the blocker
// report is returned with 409.
// DELETE /v1/definitions/{id}/items/{linkId}
func (h *DefinitionHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	linkID := chi.URLParam(r, "linkId")
	report, err := s.RequestDelete(r.Context(), linkID)
	var violation *integrity.Violation
	if errors.As(err, &violation) && violation.LinkID == linkID {
		// HTTP callers have no dialog to dismiss; the report is the answer.
		if derr := s.Dismiss(); derr != nil {
			log.Printf("handler: dismiss delete of %s: %v", linkID, derr)
		}
	}
	if err != nil {
		h.writeEditError(w, err, report)
		return
	}
	snap := s.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"report":   report,
		"revision": snap.Revision,
	})
}

// renameRequest is the body of a rename call.
type renameRequest struct {
	LinkID string `json:"linkId"`
}

// RenameItem changes an item's linkId when no rule references it.
// PATCH /v1/definitions/{id}/items/{linkId}
func (h *DefinitionHandler) RenameItem(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if req.LinkID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_LINK_ID", "linkId is required")
		return
	}
	s, err := h.sessions.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	report, err := s.Rename(r.Context(), chi.URLParam(r, "linkId"), req.LinkID)
	if err != nil {
		h.writeEditError(w, err, report)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"linkId":   req.LinkID,
		"revision": s.Snapshot().Revision,
	})
}

// writeEditError adds the blocker report to integrity violations and to
// deletes refused because another delete is still blocked.
func (h *DefinitionHandler) writeEditError(w http.ResponseWriter, err error, report *integrity.Report) {
	if errors.Is(err, authoring.ErrBusy) {
		writeErrorDetails(w, http.StatusConflict, "DELETE_PENDING", err.Error(), report)
		return
	}
	if report != nil && !report.Decision.Allowed {
		writeErrorDetails(w, http.StatusConflict, "INTEGRITY_VIOLATION", err.Error(), report)
		return
	}
	domainErrorToHTTP(w, err)
}

// GetEvents returns the domain events recorded for a definition.
// GET /v1/definitions/{id}/events
func (h *DefinitionHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.Events(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	if events == nil {
		events = []event.DomainEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func summaryOf(def *form.Definition) store.Summary {
	n := 0
	def.Walk(func(*form.Item, []*form.Item) bool {
		n++
		return true
	})
	return store.Summary{ID: def.ID, Title: def.Title, Status: def.Status, Items: n}
}
