package domain

// Role names recognized by the rule engine. Roles arrive as verified token
// claims; the engine never grants or revokes them.
const (
	RoleAdmin             = "admin"
	RoleComplianceOfficer = "compliance_officer"
	RoleDataAnalyst       = "data_analyst"
)

// SystemPrincipal is the reserved principal id used by trusted internal
// jobs (enrichment pipeline, third-party compliance feeds). It bypasses
// the self-binding checks on EnrichmentLog updates and ComplianceEvent
// creation but is still subject to every temporal gate.
const SystemPrincipal = "system"

// RoleSet holds the role claims of one identity.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from role names.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports membership of a single role.
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// HasAny reports whether any of the given roles is present.
func (s RoleSet) HasAny(roles ...string) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Names returns the roles as a slice, for logging and audit snapshots.
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, r)
	}
	return names
}

// Identity is the resolved claim set for the acting principal, one per
// request. It is supplied by the authentication collaborator; the engine
// consumes it as already verified and performs no token checks itself.
type Identity struct {
	PrincipalID string
	OrgID       string
	Email       string
	Roles       RoleSet
}

// Authenticated reports whether the identity carries the claims every
// evaluation requires. A missing principal or org id means the request
// never passed authentication and all operations evaluate to Deny.
func (i Identity) Authenticated() bool {
	return i.PrincipalID != "" && i.OrgID != ""
}

// IsSystem reports whether this is the reserved system principal.
func (i Identity) IsSystem() bool {
	return i.PrincipalID == SystemPrincipal
}
