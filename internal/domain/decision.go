package domain

import "strings"

// Operation enumerates the requests the engine authorizes.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	// OpSubmit applies to RFPs only.
	OpSubmit Operation = "submit"
)

// Effect is the outcome of one evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Reason codes reported by the evaluator. An Allow carries the code of the
// first satisfied predicate; a Deny carries every unmet predicate category
// joined by ";" so callers can see exactly which clauses failed without
// leaking unrelated entity data.
const (
	ReasonUnauthenticated    = "unauthenticated"
	ReasonNotFound           = "not-found"
	ReasonOrgMatch           = "org-match"
	ReasonOrgMismatch        = "org-mismatch"
	ReasonTeamMember         = "team-member"
	ReasonNotTeamMember      = "not-team-member"
	ReasonAdminRole          = "admin-role"
	ReasonMissingAdminRole   = "missing-admin-role"
	ReasonOwner              = "owner"
	ReasonNotOwner           = "not-owner"
	ReasonCreator            = "creator"
	ReasonNotCreator         = "not-creator"
	ReasonCreatorMismatch    = "creator-mismatch"
	ReasonSelf               = "self"
	ReasonNotSubject         = "not-subject"
	ReasonComplianceRole     = "compliance-role"
	ReasonMissingCompliance  = "missing-compliance-role"
	ReasonAnalystRole        = "analyst-role"
	ReasonMissingAnalyst     = "missing-analyst-role"
	ReasonSystemPrincipal    = "system-principal"
	ReasonNotSystem          = "not-system"
	ReasonIdentityMismatch   = "identity-mismatch"
	ReasonImmutable          = "immutable"
	ReasonOrgReassignment    = "org-reassignment"
	ReasonRetentionInEffect  = "retention-not-elapsed"
	ReasonMissingProposal    = "missing-proposed-state"
	ReasonUnsupportedOp      = "unsupported-operation"
	ReasonStoreUnavailable   = "store-unavailable"
	ReasonAuditWriteFailed   = "audit-write-failed"
)

// Decision is the result of evaluating one operation against one entity.
type Decision struct {
	Effect Effect
	Reason string
}

// Allowed reports whether the decision grants the operation.
func (d Decision) Allowed() bool { return d.Effect == EffectAllow }

// Allow builds an Allow decision carrying the granting predicate's reason.
func Allow(reason string) Decision {
	return Decision{Effect: EffectAllow, Reason: reason}
}

// Deny builds a Deny decision. Multiple reasons are the unmet predicate
// categories in evaluation order.
func Deny(reasons ...string) Decision {
	return Decision{Effect: EffectDeny, Reason: strings.Join(reasons, ";")}
}
