// Package retention holds the static per-entity-type retention policy and
// the temporal predicates derived from it. The table is consulted at audit
// record creation (to stamp expiresAt) and by the sweeper and evaluator
// (to gate deletion). Expiry is a hard temporal gate: no role or capability
// shortens it.
package retention

import (
	"time"

	"custodian/internal/domain"
)

const day = 24 * time.Hour

const (
	// EnrichmentLogDeleteAge is the minimum age before an admin may delete
	// an enrichment log by hand.
	EnrichmentLogDeleteAge = 365 * day

	// EnrichmentLogRetention is the age at which the sweeper reclaims
	// enrichment logs.
	EnrichmentLogRetention = 2 * 365 * day

	// LeadInactiveAfter is how long a lead may sit without activity before
	// the sweeper flags it inactive. Leads are never deleted.
	LeadInactiveAfter = 365 * day

	// RFPArchiveAfter is how long after completion the sweeper archives an
	// RFP. RFPs are never deleted.
	RFPArchiveAfter = 3 * 365 * day
)

// auditRetention maps the subject entity type of an audit record to how
// long the record is kept. Compliance subjects keep their trail for seven
// years to satisfy regulatory lookback.
var auditRetention = map[domain.EntityType]time.Duration{
	domain.EntityLead:            365 * day,
	domain.EntityRFP:             3 * 365 * day,
	domain.EntityEnrichmentLog:   2 * 365 * day,
	domain.EntityComplianceEvent: 7 * 365 * day,
}

// AuditExpiresAt computes the expiry timestamp stamped onto an audit
// record at creation time. Unknown types fall back to the compliance
// retention so a classification gap never shortens a trail.
func AuditExpiresAt(t domain.EntityType, createdAt time.Time) time.Time {
	ttl, ok := auditRetention[t]
	if !ok {
		ttl = auditRetention[domain.EntityComplianceEvent]
	}
	return createdAt.Add(ttl)
}

// IsExpired reports whether the entity itself has passed its retention
// window and is eligible for reclamation. Exposed for storage-layer TTL
// jobs. Leads and RFPs never hard-expire; they are flagged or archived
// instead.
func IsExpired(t domain.EntityType, e domain.Entity, now time.Time) bool {
	switch t {
	case domain.EntityEnrichmentLog:
		return !e.CreatedAt.IsZero() && now.Sub(e.CreatedAt) >= EnrichmentLogRetention
	case domain.EntityComplianceEvent:
		return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
	default:
		return false
	}
}

// LeadDormant reports whether a lead has had no activity for the inactive
// window. Falls back to the update timestamp when no activity was recorded.
func LeadDormant(e domain.Entity, now time.Time) bool {
	last := e.LastActivityAt
	if last.IsZero() {
		last = e.UpdatedAt
	}
	if last.IsZero() {
		last = e.CreatedAt
	}
	return !last.IsZero() && now.Sub(last) >= LeadInactiveAfter
}

// RFPArchivable reports whether a completed RFP has aged past the archive
// window. RFPs without a completion timestamp are never archived.
func RFPArchivable(e domain.Entity, now time.Time) bool {
	return !e.CompletedAt.IsZero() && now.Sub(e.CompletedAt) >= RFPArchiveAfter
}
