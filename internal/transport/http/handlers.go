// Package httptransport is the thin HTTP layer. It delegates to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"custodian/internal/access"
	"custodian/internal/audit"
	"custodian/internal/domain"
	domainerrors "custodian/pkg/domain-errors"
	pstrings "custodian/pkg/platform/strings"
	"custodian/pkg/requestcontext"
)

// Handler holds the services behind the HTTP surface.
type Handler struct {
	access *access.Service
	audits *audit.Service
	logger *slog.Logger
}

func NewHandler(accessSvc *access.Service, auditSvc *audit.Service, logger *slog.Logger) *Handler {
	return &Handler{access: accessSvc, audits: auditSvc, logger: logger}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorizeRequest is the wire form of one authorization check.
type authorizeRequest struct {
	Operation   string           `json:"operation"`
	EntityType  string           `json:"entity_type"`
	EntityID    string           `json:"entity_id"`
	OperationID string           `json:"operation_id,omitempty"`
	Proposed    *proposedPayload `json:"proposed,omitempty"`
}

type proposedPayload struct {
	OrgID       string   `json:"org_id"`
	CreatedBy   string   `json:"created_by"`
	AssignedTo  string   `json:"assigned_to,omitempty"`
	TeamMembers []string `json:"team_members,omitempty"`
	Status      string   `json:"status,omitempty"`
	TriggeredBy string   `json:"triggered_by,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	UserEmail   string   `json:"user_email,omitempty"`
	ExpiresAt   string   `json:"expires_at,omitempty"`
}

func (p *proposedPayload) toEntity() (*domain.Entity, error) {
	if p == nil {
		return nil, nil
	}
	e := &domain.Entity{
		OrgID:       p.OrgID,
		CreatedBy:   p.CreatedBy,
		AssignedTo:  p.AssignedTo,
		TeamMembers: pstrings.DedupeAndTrim(p.TeamMembers),
		Status:      p.Status,
		TriggeredBy: p.TriggeredBy,
		UserID:      p.UserID,
		UserEmail:   p.UserEmail,
	}
	if p.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, p.ExpiresAt)
		if err != nil {
			return nil, domainerrors.New(domainerrors.CodeBadRequest, "expires_at must be RFC3339")
		}
		e.ExpiresAt = t
	}
	return e, nil
}

type decisionResponse struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	entityType := domain.EntityType(req.EntityType)
	if !entityType.Valid() {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "unknown entity_type"))
		return
	}

	proposed, err := req.Proposed.toEntity()
	if err != nil {
		writeError(w, err)
		return
	}

	identity := requestcontext.Identity(r.Context())
	decision, err := h.access.Authorize(r.Context(), access.Request{
		Identity:    identity,
		Operation:   domain.Operation(req.Operation),
		Ref:         domain.EntityRef{Type: entityType, ID: req.EntityID},
		Proposed:    proposed,
		OperationID: req.OperationID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if decision.Allowed() {
		writeJSON(w, http.StatusOK, decisionResponse{
			Decision: string(decision.Effect),
			Reason:   decision.Reason,
		})
		return
	}

	if decision.Reason == domain.ReasonUnauthenticated {
		writeJSON(w, http.StatusUnauthorized, decisionResponse{
			Decision: string(decision.Effect),
			Reason:   decision.Reason,
		})
		return
	}

	h.logger.DebugContext(r.Context(), "authorization denied",
		"entity_type", req.EntityType,
		"entity_id", req.EntityID,
		"operation", req.Operation,
		"reason", decision.Reason,
		"request_id", requestcontext.RequestID(r.Context()),
	)
	writeJSON(w, http.StatusForbidden, decisionResponse{
		Decision: string(decision.Effect),
		Reason:   externalDenyReason,
	})
}

type auditRecordResponse struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
	ExpiresAt  string `json:"expires_at"`
}

func (h *Handler) handleAuditRecords(w http.ResponseWriter, r *http.Request) {
	identity := requestcontext.Identity(r.Context())
	q := r.URL.Query()

	var (
		records []audit.Record
		err     error
	)
	switch {
	case q.Get("actor_id") != "":
		records, err = h.audits.ListByActor(r.Context(), identity, q.Get("actor_id"))
	case q.Get("entity_type") != "" && q.Get("entity_id") != "":
		entityType := domain.EntityType(q.Get("entity_type"))
		if !entityType.Valid() {
			writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "unknown entity_type"))
			return
		}
		records, err = h.audits.ListByEntity(r.Context(), identity, entityType, q.Get("entity_id"))
	default:
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest,
			"actor_id or entity_type+entity_id query required"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]auditRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, auditRecordResponse{
			ID:         rec.ID.String(),
			EntityType: string(rec.EntityType),
			EntityID:   rec.EntityID,
			ActorID:    rec.ActorID,
			Action:     string(rec.Action),
			Decision:   string(rec.Decision),
			Reason:     rec.Reason,
			CreatedAt:  rec.CreatedAt.Format(time.RFC3339Nano),
			ExpiresAt:  rec.ExpiresAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

// externalDenyReason is the only deny reason ever written to a caller.
// Surfacing the unmet predicate list would let a caller distinguish a
// denied entity from an absent one, or infer entity attributes from which
// predicates failed. The detailed conjunction stays in logs and audit.
const externalDenyReason = "forbidden"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses.
func writeError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeInternal
	var de *domainerrors.Error
	if errors.As(err, &de) {
		code = de.Code
	}

	status := http.StatusInternalServerError
	switch code {
	case domainerrors.CodeBadRequest:
		status = http.StatusBadRequest
	case domainerrors.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case domainerrors.CodeForbidden, domainerrors.CodeNotFound,
		domainerrors.CodeImmutableViolation, domainerrors.CodeRetentionNotElapsed:
		// NotFound folds into Forbidden so callers cannot probe for
		// existence.
		status = http.StatusForbidden
	case domainerrors.CodeAuditWriteFailed:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, map[string]string{"error": string(code)})
}
