package domain

import (
	"slices"
	"time"
)

// EntityType enumerates the logical collections guarded by the engine.
type EntityType string

const (
	EntityLead            EntityType = "lead"
	EntityRFP             EntityType = "rfp"
	EntityEnrichmentLog   EntityType = "enrichment_log"
	EntityComplianceEvent EntityType = "compliance_event"
)

// Valid reports whether t names a known collection.
func (t EntityType) Valid() bool {
	switch t {
	case EntityLead, EntityRFP, EntityEnrichmentLog, EntityComplianceEvent:
		return true
	}
	return false
}

// EntityRef identifies one stored entity.
type EntityRef struct {
	Type EntityType
	ID   string
}

// Entity carries the stored attributes consulted during rule evaluation.
// A single struct covers all variants; fields that do not apply to a
// variant stay zero. The org id is fixed at creation and never reassigned.
type Entity struct {
	ID        string
	OrgID     string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Status    string

	// Lead
	AssignedTo     string
	LastActivityAt time.Time
	Inactive       bool

	// Lead and RFP
	TeamMembers []string

	// RFP
	CompletedAt time.Time
	Archived    bool

	// EnrichmentLog
	TriggeredBy string

	// ComplianceEvent. Immutable after creation; ExpiresAt gates deletion.
	UserID    string
	UserEmail string
	ExpiresAt time.Time
}

// HasTeamMember reports whether principalID appears in the entity's team list.
func (e Entity) HasTeamMember(principalID string) bool {
	return slices.Contains(e.TeamMembers, principalID)
}
