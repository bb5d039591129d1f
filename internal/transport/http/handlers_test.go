package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodian/internal/access"
	"custodian/internal/audit"
	"custodian/internal/audit/recorder"
	auditmemory "custodian/internal/audit/store/memory"
	"custodian/internal/domain"
	entitymemory "custodian/internal/entity/store/memory"
	jwttoken "custodian/internal/jwt_token"
)

type HandlersSuite struct {
	suite.Suite
	entities *entitymemory.InMemoryStore
	audits   *auditmemory.InMemoryStore
	jwt      *jwttoken.JWTService
	router   http.Handler
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.entities = entitymemory.NewInMemoryStore()
	s.audits = auditmemory.NewInMemoryStore()
	s.jwt = jwttoken.NewJWTService("test-signing-key", "custodian", "custodian-api")

	logger := slog.New(slog.DiscardHandler)
	rec, err := recorder.New(s.audits)
	s.Require().NoError(err)
	accessSvc, err := access.New(s.entities, rec, logger)
	s.Require().NoError(err)

	handler := NewHandler(accessSvc, audit.NewService(s.audits), logger)
	s.router = NewRouter(handler, s.jwt)
}

func (s *HandlersSuite) token(identity domain.Identity) string {
	token, err := s.jwt.GenerateToken(identity, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *HandlersSuite) authorize(identity domain.Identity, body map[string]any) *httptest.ResponseRecorder {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/v1/authorize", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+s.token(identity))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *HandlersSuite) member(roles ...string) domain.Identity {
	return domain.Identity{PrincipalID: "u1", OrgID: "org1", Email: "u1@x.com", Roles: domain.NewRoleSet(roles...)}
}

func (s *HandlersSuite) TestHealth() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)
}

func (s *HandlersSuite) TestMissingTokenRejected() {
	req := httptest.NewRequest(http.MethodPost, "/v1/authorize", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlersSuite) TestAuthorizeAllow() {
	s.entities.Put(domain.EntityLead, domain.Entity{ID: "l1", OrgID: "org1"})

	w := s.authorize(s.member(), map[string]any{
		"operation":   "read",
		"entity_type": "lead",
		"entity_id":   "l1",
	})
	s.Equal(http.StatusOK, w.Code)

	body := s.decode(w)
	s.Equal("allow", body["decision"])
	s.Equal("org-match", body["reason"])
}

func (s *HandlersSuite) TestAuthorizeDeny() {
	s.entities.Put(domain.EntityLead, domain.Entity{ID: "l1", OrgID: "org2"})

	w := s.authorize(s.member(), map[string]any{
		"operation":   "read",
		"entity_type": "lead",
		"entity_id":   "l1",
	})
	s.Equal(http.StatusForbidden, w.Code)

	body := s.decode(w)
	s.Equal("deny", body["decision"])
	s.Equal("forbidden", body["reason"], "predicate detail must not cross the boundary")
}

func (s *HandlersSuite) TestDenyBodiesIndistinguishable() {
	s.entities.Put(domain.EntityLead, domain.Entity{ID: "hidden", OrgID: "org1", CreatedBy: "u1"})

	stranger := domain.Identity{PrincipalID: "outsider", OrgID: "org2"}
	denied := s.authorize(stranger, map[string]any{
		"operation":   "update",
		"entity_type": "lead",
		"entity_id":   "hidden",
	})
	absent := s.authorize(stranger, map[string]any{
		"operation":   "update",
		"entity_type": "lead",
		"entity_id":   "ghost",
	})

	s.Equal(http.StatusForbidden, denied.Code)
	s.Equal(http.StatusForbidden, absent.Code)
	s.Equal(denied.Body.String(), absent.Body.String(),
		"a denied entity must read exactly like an absent one")
}

func (s *HandlersSuite) TestMissingEntityFoldsIntoForbidden() {
	w := s.authorize(s.member(domain.RoleAdmin), map[string]any{
		"operation":   "read",
		"entity_type": "lead",
		"entity_id":   "ghost",
	})
	s.Equal(http.StatusForbidden, w.Code, "existence must not leak")

	body := s.decode(w)
	s.Equal("forbidden", body["reason"], "not-found is indistinguishable from forbidden")
}

func (s *HandlersSuite) TestAuthorizeCreateWithProposedState() {
	w := s.authorize(s.member(), map[string]any{
		"operation":   "create",
		"entity_type": "lead",
		"proposed":    map[string]any{"org_id": "org1", "created_by": "u1"},
	})
	s.Equal(http.StatusOK, w.Code)
	s.Equal(1, s.audits.Len(), "sensitive allow leaves a trail")
}

func (s *HandlersSuite) TestUnknownEntityTypeRejected() {
	w := s.authorize(s.member(), map[string]any{
		"operation":   "read",
		"entity_type": "invoice",
		"entity_id":   "i1",
	})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersSuite) TestMalformedExpiresAtRejected() {
	w := s.authorize(s.member(), map[string]any{
		"operation":   "create",
		"entity_type": "compliance_event",
		"proposed": map[string]any{
			"org_id": "org1", "created_by": "u1",
			"user_id": "u1", "user_email": "u1@x.com",
			"expires_at": "yesterday",
		},
	})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersSuite) TestAuditRecordsQuery() {
	// A sensitive allow seeds the trail.
	s.entities.Put(domain.EntityLead, domain.Entity{ID: "l1", OrgID: "org1", CreatedBy: "u1"})
	w := s.authorize(s.member(), map[string]any{
		"operation":   "delete",
		"entity_type": "lead",
		"entity_id":   "l1",
	})
	s.Require().Equal(http.StatusOK, w.Code)

	get := func(identity domain.Identity, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/audit/records?"+query, nil)
		req.Header.Set("Authorization", "Bearer "+s.token(identity))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	s.Run("compliance officer lists by entity", func() {
		officer := domain.Identity{PrincipalID: "u9", OrgID: "org1", Roles: domain.NewRoleSet(domain.RoleComplianceOfficer)}
		rec := get(officer, "entity_type=lead&entity_id=l1")
		s.Equal(http.StatusOK, rec.Code)

		var body struct {
			Records []map[string]any `json:"records"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Len(body.Records, 1)
	})

	s.Run("actor lists their own trail", func() {
		rec := get(s.member(), "actor_id=u1")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("plain member cannot read the entity trail", func() {
		rec := get(s.member(), fmt.Sprintf("entity_type=%s&entity_id=%s", "lead", "l1"))
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("missing query parameters rejected", func() {
		rec := get(s.member(), "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
