// Package policy implements the rule engine. Evaluate is a pure function:
// it consults only its input, so concurrent evaluation needs no
// synchronization and every decision is reproducible in tests.
//
// Each operation is an ordered set of independent OR-combined predicates.
// The first satisfied predicate grants the operation and its reason code is
// reported; when all fail, the Deny reason is the conjunction of every
// unmet predicate category. Temporal delete gates are conjunctions layered
// on top: both the capability predicate and the retention gate must hold.
package policy

import (
	"time"

	"custodian/internal/domain"
	"custodian/internal/retention"
)

// Input groups everything one evaluation may consult. Current is nil for
// Create; Proposed is nil except for Create and Update.
type Input struct {
	Identity   domain.Identity
	Operation  domain.Operation
	EntityType domain.EntityType
	Current    *domain.Entity
	Proposed   *domain.Entity
	Now        time.Time
}

// predicate is one independently sufficient grant clause. grant is the
// reason reported when it holds; deny is the category reported when it
// does not.
type predicate struct {
	grant string
	deny  string
	holds func(in Input) bool
}

// anyOf evaluates predicates short-circuit OR.
func anyOf(in Input, preds ...predicate) domain.Decision {
	unmet := make([]string, 0, len(preds))
	for _, p := range preds {
		if p.holds(in) {
			return domain.Allow(p.grant)
		}
		unmet = append(unmet, p.deny)
	}
	return domain.Deny(unmet...)
}

func isAdmin(in Input) bool    { return in.Identity.Roles.Has(domain.RoleAdmin) }
func orgMatches(in Input) bool { return in.Identity.OrgID == in.Current.OrgID }
func onTeam(in Input) bool     { return in.Current.HasTeamMember(in.Identity.PrincipalID) }
func isCreator(in Input) bool  { return in.Identity.PrincipalID == in.Current.CreatedBy }

// isOwner covers creator and assignee.
func isOwner(in Input) bool {
	return isCreator(in) ||
		(in.Current.AssignedTo != "" && in.Identity.PrincipalID == in.Current.AssignedTo)
}

var (
	adminPred = predicate{domain.ReasonAdminRole, domain.ReasonMissingAdminRole, isAdmin}
	orgPred   = predicate{domain.ReasonOrgMatch, domain.ReasonOrgMismatch, orgMatches}
	teamPred  = predicate{domain.ReasonTeamMember, domain.ReasonNotTeamMember, onTeam}
)

// Evaluate decides one operation. It never returns an error: malformed
// input maps to Deny so evaluation stays total.
func Evaluate(in Input) domain.Decision {
	if !in.Identity.Authenticated() {
		return domain.Deny(domain.ReasonUnauthenticated)
	}
	if !in.EntityType.Valid() {
		return domain.Deny(domain.ReasonUnsupportedOp)
	}

	if in.Operation == domain.OpCreate {
		return evaluateCreate(in)
	}

	// Every other operation targets an existing entity. A missing entity
	// is a plain Deny; the transport layer folds it into Forbidden so
	// callers cannot probe for existence.
	if in.Current == nil {
		return domain.Deny(domain.ReasonNotFound)
	}

	switch in.Operation {
	case domain.OpRead:
		return evaluateRead(in)
	case domain.OpUpdate:
		return evaluateUpdate(in)
	case domain.OpDelete:
		return evaluateDelete(in)
	case domain.OpSubmit:
		return evaluateSubmit(in)
	}
	return domain.Deny(domain.ReasonUnsupportedOp)
}

func evaluateRead(in Input) domain.Decision {
	// Compliance data is stricter than other entities: organization match
	// alone is not sufficient.
	if in.EntityType == domain.EntityComplianceEvent {
		return anyOf(in,
			predicate{domain.ReasonComplianceRole, domain.ReasonMissingCompliance, func(in Input) bool {
				return in.Identity.Roles.HasAny(domain.RoleAdmin, domain.RoleComplianceOfficer)
			}},
			predicate{domain.ReasonSelf, domain.ReasonNotSubject, func(in Input) bool {
				return in.Identity.PrincipalID == in.Current.UserID
			}},
		)
	}
	return anyOf(in, orgPred, teamPred, adminPred)
}

func evaluateCreate(in Input) domain.Decision {
	if in.Proposed == nil {
		return domain.Deny(domain.ReasonMissingProposal)
	}

	switch in.EntityType {
	case domain.EntityEnrichmentLog:
		// System-triggered enrichment: analysts and admins may record logs
		// without the creator binding.
		if in.Identity.Roles.HasAny(domain.RoleAdmin, domain.RoleDataAnalyst) {
			return domain.Allow(domain.ReasonAnalystRole)
		}
		if unmet := createBindingUnmet(in); len(unmet) > 0 {
			return domain.Deny(append([]string{domain.ReasonMissingAnalyst}, unmet...)...)
		}
		return domain.Allow(domain.ReasonCreator)

	case domain.EntityComplianceEvent:
		// Third-party-triggered compliance events come in through the
		// reserved system principal.
		if in.Identity.IsSystem() {
			return domain.Allow(domain.ReasonSystemPrincipal)
		}
		// Authorship is bound to verified claims so audit entries cannot
		// be spoofed on another user's behalf.
		var unmet []string
		if in.Proposed.UserID != in.Identity.PrincipalID || in.Proposed.UserEmail != in.Identity.Email {
			unmet = append(unmet, domain.ReasonIdentityMismatch)
		}
		unmet = append(unmet, createBindingUnmet(in)...)
		if len(unmet) > 0 {
			return domain.Deny(unmet...)
		}
		return domain.Allow(domain.ReasonSelf)
	}

	if unmet := createBindingUnmet(in); len(unmet) > 0 {
		return domain.Deny(unmet...)
	}
	return domain.Allow(domain.ReasonCreator)
}

// createBindingUnmet checks the conjunction every Create must satisfy: the
// proposed entity belongs to the caller's org and names the caller as
// creator.
func createBindingUnmet(in Input) []string {
	var unmet []string
	if in.Identity.OrgID != in.Proposed.OrgID {
		unmet = append(unmet, domain.ReasonOrgMismatch)
	}
	if in.Proposed.CreatedBy != in.Identity.PrincipalID {
		unmet = append(unmet, domain.ReasonCreatorMismatch)
	}
	return unmet
}

func evaluateUpdate(in Input) domain.Decision {
	// The org id is fixed at creation; no update may move an entity
	// between organizations.
	if in.Proposed != nil && in.Proposed.OrgID != "" && in.Proposed.OrgID != in.Current.OrgID {
		return domain.Deny(domain.ReasonOrgReassignment)
	}

	switch in.EntityType {
	case domain.EntityComplianceEvent:
		// Audit integrity is a hard invariant: no role, including admin,
		// may rewrite a compliance event.
		return domain.Deny(domain.ReasonImmutable)

	case domain.EntityEnrichmentLog:
		return anyOf(in,
			adminPred,
			predicate{domain.ReasonSystemPrincipal, domain.ReasonNotSystem, func(in Input) bool {
				return in.Identity.IsSystem()
			}},
		)
	}

	return anyOf(in,
		predicate{domain.ReasonOwner, domain.ReasonNotOwner, isOwner},
		teamPred,
		adminPred,
	)
}

func evaluateDelete(in Input) domain.Decision {
	switch in.EntityType {
	case domain.EntityEnrichmentLog:
		// Capability AND temporal gate; both must hold.
		var unmet []string
		if !isAdmin(in) {
			unmet = append(unmet, domain.ReasonMissingAdminRole)
		}
		if in.Now.Sub(in.Current.CreatedAt) < retention.EnrichmentLogDeleteAge {
			unmet = append(unmet, domain.ReasonRetentionInEffect)
		}
		if len(unmet) > 0 {
			return domain.Deny(unmet...)
		}
		return domain.Allow(domain.ReasonAdminRole)

	case domain.EntityComplianceEvent:
		// Never before expiry, regardless of role.
		var unmet []string
		if !isAdmin(in) {
			unmet = append(unmet, domain.ReasonMissingAdminRole)
		}
		if !in.Now.After(in.Current.ExpiresAt) {
			unmet = append(unmet, domain.ReasonRetentionInEffect)
		}
		if len(unmet) > 0 {
			return domain.Deny(unmet...)
		}
		return domain.Allow(domain.ReasonAdminRole)
	}

	return anyOf(in,
		predicate{domain.ReasonCreator, domain.ReasonNotCreator, isCreator},
		adminPred,
	)
}

func evaluateSubmit(in Input) domain.Decision {
	if in.EntityType != domain.EntityRFP {
		return domain.Deny(domain.ReasonUnsupportedOp)
	}
	return anyOf(in,
		predicate{domain.ReasonCreator, domain.ReasonNotCreator, isCreator},
		teamPred,
		adminPred,
	)
}
