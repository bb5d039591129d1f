package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodian/internal/domain"
)

type EvaluatorSuite struct {
	suite.Suite
	now time.Time
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorSuite))
}

func (s *EvaluatorSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *EvaluatorSuite) member(orgID string, roles ...string) domain.Identity {
	return domain.Identity{
		PrincipalID: "u1",
		OrgID:       orgID,
		Email:       "u1@x.com",
		Roles:       domain.NewRoleSet(roles...),
	}
}

func (s *EvaluatorSuite) evaluate(identity domain.Identity, op domain.Operation, t domain.EntityType, current, proposed *domain.Entity) domain.Decision {
	return Evaluate(Input{
		Identity:   identity,
		Operation:  op,
		EntityType: t,
		Current:    current,
		Proposed:   proposed,
		Now:        s.now,
	})
}

// =============================================================================
// Authentication and entity presence
// =============================================================================

func (s *EvaluatorSuite) TestUnauthenticated() {
	lead := &domain.Entity{ID: "l1", OrgID: "org1"}

	s.Run("missing principal id denies everything", func() {
		identity := domain.Identity{OrgID: "org1"}
		dec := s.evaluate(identity, domain.OpRead, domain.EntityLead, lead, nil)
		s.Equal(domain.EffectDeny, dec.Effect)
		s.Equal(domain.ReasonUnauthenticated, dec.Reason)
	})

	s.Run("missing org id denies everything", func() {
		identity := domain.Identity{PrincipalID: "u1"}
		dec := s.evaluate(identity, domain.OpDelete, domain.EntityLead, lead, nil)
		s.Equal(domain.ReasonUnauthenticated, dec.Reason)
	})

	s.Run("unauthenticated wins over admin role claim", func() {
		identity := domain.Identity{Roles: domain.NewRoleSet(domain.RoleAdmin)}
		dec := s.evaluate(identity, domain.OpRead, domain.EntityLead, lead, nil)
		s.Equal(domain.ReasonUnauthenticated, dec.Reason)
	})
}

func (s *EvaluatorSuite) TestEntityNotFound() {
	identity := s.member("org1", domain.RoleAdmin)

	for _, op := range []domain.Operation{domain.OpRead, domain.OpUpdate, domain.OpDelete} {
		dec := s.evaluate(identity, op, domain.EntityLead, nil, nil)
		s.Equal(domain.EffectDeny, dec.Effect, "op %s", op)
		s.Equal(domain.ReasonNotFound, dec.Reason, "op %s", op)
	}
}

// =============================================================================
// Read
// =============================================================================

func (s *EvaluatorSuite) TestReadLead() {
	lead := &domain.Entity{ID: "l1", OrgID: "org1", TeamMembers: []string{"u7"}}

	s.Run("org match allows", func() {
		dec := s.evaluate(s.member("org1"), domain.OpRead, domain.EntityLead, lead, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonOrgMatch, dec.Reason)
	})

	s.Run("team membership allows across orgs", func() {
		identity := domain.Identity{PrincipalID: "u7", OrgID: "org2", Roles: domain.RoleSet{}}
		dec := s.evaluate(identity, domain.OpRead, domain.EntityLead, lead, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonTeamMember, dec.Reason)
	})

	s.Run("admin allows across orgs", func() {
		dec := s.evaluate(s.member("org2", domain.RoleAdmin), domain.OpRead, domain.EntityLead, lead, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonAdminRole, dec.Reason)
	})

	s.Run("stranger is denied with every unmet category", func() {
		dec := s.evaluate(s.member("org2"), domain.OpRead, domain.EntityLead, lead, nil)
		s.False(dec.Allowed())
		s.Equal("org-mismatch;not-team-member;missing-admin-role", dec.Reason)
	})
}

func (s *EvaluatorSuite) TestReadComplianceEvent() {
	event := &domain.Entity{ID: "c1", OrgID: "org1", UserID: "u9"}

	s.Run("org match alone is insufficient", func() {
		dec := s.evaluate(s.member("org1"), domain.OpRead, domain.EntityComplianceEvent, event, nil)
		s.False(dec.Allowed())
		s.Equal("missing-compliance-role;not-subject", dec.Reason)
	})

	s.Run("compliance officer allows", func() {
		dec := s.evaluate(s.member("org1", domain.RoleComplianceOfficer), domain.OpRead, domain.EntityComplianceEvent, event, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonComplianceRole, dec.Reason)
	})

	s.Run("admin allows", func() {
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpRead, domain.EntityComplianceEvent, event, nil)
		s.True(dec.Allowed())
	})

	s.Run("subject reads their own event", func() {
		identity := domain.Identity{PrincipalID: "u9", OrgID: "org1", Roles: domain.RoleSet{}}
		dec := s.evaluate(identity, domain.OpRead, domain.EntityComplianceEvent, event, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonSelf, dec.Reason)
	})
}

// =============================================================================
// Create
// =============================================================================

func (s *EvaluatorSuite) TestCreateLead() {
	s.Run("creator binding allows", func() {
		proposed := &domain.Entity{OrgID: "org1", CreatedBy: "u1"}
		dec := s.evaluate(s.member("org1"), domain.OpCreate, domain.EntityLead, nil, proposed)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonCreator, dec.Reason)
	})

	s.Run("foreign org denied", func() {
		proposed := &domain.Entity{OrgID: "org2", CreatedBy: "u1"}
		dec := s.evaluate(s.member("org1"), domain.OpCreate, domain.EntityLead, nil, proposed)
		s.Equal("org-mismatch", dec.Reason)
	})

	s.Run("creator spoof denied", func() {
		proposed := &domain.Entity{OrgID: "org1", CreatedBy: "u2"}
		dec := s.evaluate(s.member("org1"), domain.OpCreate, domain.EntityLead, nil, proposed)
		s.Equal("creator-mismatch", dec.Reason)
	})

	s.Run("missing proposed state denied", func() {
		dec := s.evaluate(s.member("org1"), domain.OpCreate, domain.EntityLead, nil, nil)
		s.Equal(domain.ReasonMissingProposal, dec.Reason)
	})
}

func (s *EvaluatorSuite) TestCreateEnrichmentLog() {
	s.Run("data analyst creates without creator binding", func() {
		proposed := &domain.Entity{OrgID: "org9", CreatedBy: "someone-else"}
		dec := s.evaluate(s.member("org1", domain.RoleDataAnalyst), domain.OpCreate, domain.EntityEnrichmentLog, nil, proposed)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonAnalystRole, dec.Reason)
	})

	s.Run("plain member still needs the common binding", func() {
		proposed := &domain.Entity{OrgID: "org1", CreatedBy: "u1"}
		dec := s.evaluate(s.member("org1"), domain.OpCreate, domain.EntityEnrichmentLog, nil, proposed)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonCreator, dec.Reason)
	})

	s.Run("plain member with broken binding sees all unmet categories", func() {
		proposed := &domain.Entity{OrgID: "org2", CreatedBy: "u1"}
		dec := s.evaluate(s.member("org1"), domain.OpCreate, domain.EntityEnrichmentLog, nil, proposed)
		s.Equal("missing-analyst-role;org-mismatch", dec.Reason)
	})
}

func (s *EvaluatorSuite) TestCreateComplianceEvent() {
	s.Run("self-asserted claims matching identity allow", func() {
		proposed := &domain.Entity{OrgID: "org1", CreatedBy: "u1", UserID: "u1", UserEmail: "u1@x.com"}
		dec := s.evaluate(s.member("org1"), domain.OpCreate, domain.EntityComplianceEvent, nil, proposed)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonSelf, dec.Reason)
	})

	s.Run("mismatched email denies", func() {
		proposed := &domain.Entity{OrgID: "org1", CreatedBy: "u1", UserID: "u1", UserEmail: "other@x.com"}
		dec := s.evaluate(s.member("org1"), domain.OpCreate, domain.EntityComplianceEvent, nil, proposed)
		s.False(dec.Allowed())
		s.Contains(dec.Reason, domain.ReasonIdentityMismatch)
	})

	s.Run("mismatched user id denies even for admin", func() {
		proposed := &domain.Entity{OrgID: "org1", CreatedBy: "u1", UserID: "u2", UserEmail: "u1@x.com"}
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpCreate, domain.EntityComplianceEvent, nil, proposed)
		s.False(dec.Allowed())
	})

	s.Run("system principal records events for other users", func() {
		identity := domain.Identity{PrincipalID: domain.SystemPrincipal, OrgID: "org1", Roles: domain.RoleSet{}}
		proposed := &domain.Entity{OrgID: "org1", CreatedBy: "system", UserID: "u2", UserEmail: "u2@x.com"}
		dec := s.evaluate(identity, domain.OpCreate, domain.EntityComplianceEvent, nil, proposed)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonSystemPrincipal, dec.Reason)
	})
}

// =============================================================================
// Update
// =============================================================================

func (s *EvaluatorSuite) TestUpdateLead() {
	lead := &domain.Entity{ID: "l1", OrgID: "org1", CreatedBy: "u1", AssignedTo: "u2", TeamMembers: []string{"u5"}}

	s.Run("creator allows", func() {
		dec := s.evaluate(s.member("org1"), domain.OpUpdate, domain.EntityLead, lead, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonOwner, dec.Reason)
	})

	s.Run("assignee allows", func() {
		identity := domain.Identity{PrincipalID: "u2", OrgID: "org1", Roles: domain.RoleSet{}}
		dec := s.evaluate(identity, domain.OpUpdate, domain.EntityLead, lead, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonOwner, dec.Reason)
	})

	s.Run("team member allows", func() {
		identity := domain.Identity{PrincipalID: "u5", OrgID: "org1", Roles: domain.RoleSet{}}
		dec := s.evaluate(identity, domain.OpUpdate, domain.EntityLead, lead, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonTeamMember, dec.Reason)
	})

	s.Run("unrelated actor in same org denied with conjunction", func() {
		identity := domain.Identity{PrincipalID: "u3", OrgID: "org1", Roles: domain.RoleSet{}}
		dec := s.evaluate(identity, domain.OpUpdate, domain.EntityLead, lead, nil)
		s.False(dec.Allowed())
		s.Equal("not-owner;not-team-member;missing-admin-role", dec.Reason)
	})

	s.Run("org reassignment denied even for admin", func() {
		proposed := &domain.Entity{OrgID: "org2"}
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpUpdate, domain.EntityLead, lead, proposed)
		s.False(dec.Allowed())
		s.Equal(domain.ReasonOrgReassignment, dec.Reason)
	})
}

func (s *EvaluatorSuite) TestUpdateEnrichmentLog() {
	logEntity := &domain.Entity{ID: "e1", OrgID: "org1", CreatedBy: "u1"}

	s.Run("creator is not enough", func() {
		dec := s.evaluate(s.member("org1"), domain.OpUpdate, domain.EntityEnrichmentLog, logEntity, nil)
		s.False(dec.Allowed())
		s.Equal("missing-admin-role;not-system", dec.Reason)
	})

	s.Run("admin allows", func() {
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpUpdate, domain.EntityEnrichmentLog, logEntity, nil)
		s.True(dec.Allowed())
	})

	s.Run("system principal allows", func() {
		identity := domain.Identity{PrincipalID: domain.SystemPrincipal, OrgID: "org1", Roles: domain.RoleSet{}}
		dec := s.evaluate(identity, domain.OpUpdate, domain.EntityEnrichmentLog, logEntity, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonSystemPrincipal, dec.Reason)
	})
}

func (s *EvaluatorSuite) TestUpdateComplianceEventAlwaysDenied() {
	event := &domain.Entity{ID: "c1", OrgID: "org1", UserID: "u1"}

	identities := map[string]domain.Identity{
		"admin":              s.member("org1", domain.RoleAdmin),
		"compliance officer": s.member("org1", domain.RoleComplianceOfficer),
		"subject":            {PrincipalID: "u1", OrgID: "org1", Roles: domain.RoleSet{}},
		"system":             {PrincipalID: domain.SystemPrincipal, OrgID: "org1", Roles: domain.RoleSet{}},
	}
	for name, identity := range identities {
		dec := s.evaluate(identity, domain.OpUpdate, domain.EntityComplianceEvent, event, nil)
		s.False(dec.Allowed(), "identity %s", name)
		s.Equal(domain.ReasonImmutable, dec.Reason, "identity %s", name)
	}
}

// =============================================================================
// Delete
// =============================================================================

func (s *EvaluatorSuite) TestDeleteLead() {
	lead := &domain.Entity{ID: "l1", OrgID: "org1", CreatedBy: "u1", AssignedTo: "u2"}

	s.Run("creator allows", func() {
		dec := s.evaluate(s.member("org1"), domain.OpDelete, domain.EntityLead, lead, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonCreator, dec.Reason)
	})

	s.Run("assignee is denied", func() {
		identity := domain.Identity{PrincipalID: "u2", OrgID: "org1", Roles: domain.RoleSet{}}
		dec := s.evaluate(identity, domain.OpDelete, domain.EntityLead, lead, nil)
		s.Equal("not-creator;missing-admin-role", dec.Reason)
	})

	s.Run("admin allows", func() {
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpDelete, domain.EntityLead, lead, nil)
		s.True(dec.Allowed())
	})
}

func (s *EvaluatorSuite) TestDeleteEnrichmentLog() {
	s.Run("old log deletable by admin", func() {
		logEntity := &domain.Entity{ID: "e1", OrgID: "org1", CreatedAt: s.now.Add(-400 * 24 * time.Hour)}
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpDelete, domain.EntityEnrichmentLog, logEntity, nil)
		s.True(dec.Allowed())
		s.Equal(domain.ReasonAdminRole, dec.Reason)
	})

	s.Run("recent log denied even for admin", func() {
		logEntity := &domain.Entity{ID: "e1", OrgID: "org1", CreatedAt: s.now.Add(-10 * 24 * time.Hour)}
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpDelete, domain.EntityEnrichmentLog, logEntity, nil)
		s.False(dec.Allowed())
		s.Equal(domain.ReasonRetentionInEffect, dec.Reason)
	})

	s.Run("old log denied for non-admin", func() {
		logEntity := &domain.Entity{ID: "e1", OrgID: "org1", CreatedAt: s.now.Add(-400 * 24 * time.Hour)}
		dec := s.evaluate(s.member("org1"), domain.OpDelete, domain.EntityEnrichmentLog, logEntity, nil)
		s.Equal(domain.ReasonMissingAdminRole, dec.Reason)
	})

	s.Run("recent log and missing role reports both", func() {
		logEntity := &domain.Entity{ID: "e1", OrgID: "org1", CreatedAt: s.now.Add(-10 * 24 * time.Hour)}
		dec := s.evaluate(s.member("org1"), domain.OpDelete, domain.EntityEnrichmentLog, logEntity, nil)
		s.Equal("missing-admin-role;retention-not-elapsed", dec.Reason)
	})

	s.Run("boundary: exactly 365 days is deletable", func() {
		logEntity := &domain.Entity{ID: "e1", OrgID: "org1", CreatedAt: s.now.Add(-365 * 24 * time.Hour)}
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpDelete, domain.EntityEnrichmentLog, logEntity, nil)
		s.True(dec.Allowed())
	})
}

func (s *EvaluatorSuite) TestDeleteComplianceEvent() {
	s.Run("expired event deletable by admin", func() {
		event := &domain.Entity{ID: "c1", OrgID: "org1", ExpiresAt: s.now.Add(-time.Hour)}
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpDelete, domain.EntityComplianceEvent, event, nil)
		s.True(dec.Allowed())
	})

	s.Run("unexpired event denied even for admin", func() {
		event := &domain.Entity{ID: "c1", OrgID: "org1", ExpiresAt: s.now.Add(time.Hour)}
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpDelete, domain.EntityComplianceEvent, event, nil)
		s.False(dec.Allowed())
		s.Equal(domain.ReasonRetentionInEffect, dec.Reason)
	})

	s.Run("boundary: now equal to expiry is still denied", func() {
		event := &domain.Entity{ID: "c1", OrgID: "org1", ExpiresAt: s.now}
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpDelete, domain.EntityComplianceEvent, event, nil)
		s.False(dec.Allowed())
	})
}

// =============================================================================
// Submit
// =============================================================================

func (s *EvaluatorSuite) TestSubmitRFP() {
	rfp := &domain.Entity{ID: "r1", OrgID: "org1", CreatedBy: "u1", TeamMembers: []string{"u5"}}

	s.Run("creator submits", func() {
		dec := s.evaluate(s.member("org1"), domain.OpSubmit, domain.EntityRFP, rfp, nil)
		s.True(dec.Allowed())
	})

	s.Run("team member submits", func() {
		identity := domain.Identity{PrincipalID: "u5", OrgID: "org1", Roles: domain.RoleSet{}}
		dec := s.evaluate(identity, domain.OpSubmit, domain.EntityRFP, rfp, nil)
		s.True(dec.Allowed())
	})

	s.Run("stranger denied", func() {
		identity := domain.Identity{PrincipalID: "u3", OrgID: "org1", Roles: domain.RoleSet{}}
		dec := s.evaluate(identity, domain.OpSubmit, domain.EntityRFP, rfp, nil)
		s.Equal("not-creator;not-team-member;missing-admin-role", dec.Reason)
	})

	s.Run("submit on non-RFP is unsupported", func() {
		lead := &domain.Entity{ID: "l1", OrgID: "org1"}
		dec := s.evaluate(s.member("org1", domain.RoleAdmin), domain.OpSubmit, domain.EntityLead, lead, nil)
		s.Equal(domain.ReasonUnsupportedOp, dec.Reason)
	})
}
