package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountrepo "github.com/smallbiznis/proppass/internal/account/repository"
	accountservice "github.com/smallbiznis/proppass/internal/account/service"
	"github.com/smallbiznis/proppass/internal/authorization"
	"github.com/smallbiznis/proppass/internal/clock"
	"github.com/smallbiznis/proppass/internal/config"
	invitationevent "github.com/smallbiznis/proppass/internal/invitation/event"
	invitationrepo "github.com/smallbiznis/proppass/internal/invitation/repository"
	invitationservice "github.com/smallbiznis/proppass/internal/invitation/service"
	membershiprepo "github.com/smallbiznis/proppass/internal/membership/repository"
	membershipservice "github.com/smallbiznis/proppass/internal/membership/service"
	"github.com/smallbiznis/proppass/internal/observability"
	propertyrepo "github.com/smallbiznis/proppass/internal/property/repository"
	propertyservice "github.com/smallbiznis/proppass/internal/property/service"
	"github.com/smallbiznis/proppass/internal/testutil"
	tierrepo "github.com/smallbiznis/proppass/internal/tier/repository"
	tierservice "github.com/smallbiznis/proppass/internal/tier/service"
	"github.com/smallbiznis/proppass/internal/usage/liveevents"
	usagerepo "github.com/smallbiznis/proppass/internal/usage/repository"
	usageservice "github.com/smallbiznis/proppass/internal/usage/service"
	"github.com/smallbiznis/proppass/internal/user/password"
	userrepo "github.com/smallbiznis/proppass/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type testEnv struct {
	engine *gin.Engine
	db     *gorm.DB
	node   *snowflake.Node
	live   *liveevents.Hub
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	log := zaptest.NewLogger(t)
	node := testutil.Node(t)
	fake := clock.NewFakeClock(time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{CapLockBackend: config.LockBackendAdvisory, InvitationTTLHours: 48}

	tierSvc := tierservice.New(tierservice.Params{DB: db, Log: log, Repo: tierrepo.Provide()})
	guard := tierservice.NewGuard(tierservice.GuardParams{DB: db, Log: log, Config: cfg})
	userRepo := userrepo.Provide()
	accountRepo := accountrepo.Provide()
	membershipRepo := membershiprepo.Provide()
	live := liveevents.NewHub()

	enforcer, err := authorization.NewEnforcer(db, cfg)
	require.NoError(t, err)

	s := NewServer(ServerParams{
		Engine:   NewEngine(observability.Config{}),
		Cfg:      cfg,
		DB:       db,
		AuthzSvc: authorization.NewService(authorization.Params{DB: db, Log: log, Enforcer: enforcer}),
		InvitationSvc: invitationservice.New(invitationservice.Params{
			DB:             db,
			Log:            log,
			GenID:          node,
			Clock:          fake,
			Config:         cfg,
			Repo:           invitationrepo.Provide(),
			Publisher:      invitationevent.NewOutboxPublisher(node, fake),
			UserRepo:       userRepo,
			Hasher:         password.NewBcrypt(4),
			AccountRepo:    accountRepo,
			MembershipRepo: membershipRepo,
			Tier:           tierSvc,
		}),
		PropertySvc: propertyservice.New(propertyservice.Params{
			DB:             db,
			Log:            log,
			GenID:          node,
			Clock:          fake,
			Repo:           propertyrepo.Provide(),
			MembershipRepo: membershipRepo,
			Tier:           tierSvc,
			Guard:          guard,
		}),
		MembershipSvc: membershipservice.New(membershipservice.Params{
			DB:    db,
			Log:   log,
			Clock: fake,
			Repo:  membershipRepo,
			Tier:  tierSvc,
			Guard: guard,
		}),
		AccountSvc: accountservice.New(accountservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
			Clock: fake,
			Repo:  accountRepo,
			Tier:  tierSvc,
			Guard: guard,
		}),
		TierSvc: tierSvc,
		UsageSvc: usageservice.New(usageservice.Params{
			DB:      db,
			Log:     log,
			GenID:   node,
			Clock:   fake,
			Pricing: config.NewStaticPricingHolder(config.DefaultPricingConfig()),
			Repo:    usagerepo.Provide(),
			Live:    live,
		}),
		UserRepo:  userRepo,
		LiveUsage: live,
	})

	return testEnv{engine: s.Engine(), db: db, node: node, live: live}
}

func (e testEnv) do(t *testing.T, method, path string, userID snowflake.ID, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set(HeaderUserID, userID.String())
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

// setupOwner creates an owner with an account and one property through the API.
func (e testEnv) setupOwner(t *testing.T) (ownerID snowflake.ID, accountID, propertyID string) {
	t.Helper()

	ownerID = testutil.SeedUser(t, e.db, e.node, "owner@example.com", "admin")

	rec, body := e.do(t, http.MethodPost, "/accounts", ownerID, gin.H{"name": "Acme Realty"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	accountID = body["account"].(map[string]any)["id"].(string)

	rec, body = e.do(t, http.MethodPost, "/properties", ownerID, gin.H{
		"account_id":    accountID,
		"address_line1": "1 Main St",
		"city":          "Austin",
		"state":         "tx",
		"zip":           "78701",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	propertyID = body["property"].(map[string]any)["id"].(string)
	return ownerID, accountID, propertyID
}

func errorOf(body map[string]any) map[string]any {
	e, _ := body["error"].(map[string]any)
	return e
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec, body := env.do(t, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestMissingUserHeaderIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/properties", 0, gin.H{"account_id": "1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorOf(body)["type"])

	req := httptest.NewRequest(http.MethodGet, "/invitations/sent", nil)
	req.Header.Set(HeaderUserID, "not-a-number")
	rr := httptest.NewRecorder()
	env.engine.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreatePropertyDeniedAtCap(t *testing.T) {
	env := newTestEnv(t)
	ownerID, accountID, _ := env.setupOwner(t)

	for i := 0; i < 2; i++ {
		rec, _ := env.do(t, http.MethodPost, "/properties", ownerID, gin.H{"account_id": accountID, "state": "TX"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec, body := env.do(t, http.MethodPost, "/properties", ownerID, gin.H{"account_id": accountID, "state": "TX"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "cap_exceeded", errorOf(body)["type"])
	assert.Contains(t, errorOf(body)["message"], "3/3")

	rec, body = env.do(t, http.MethodGet, "/accounts/"+accountID+"/limits", ownerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	usage := body["usage"].(map[string]any)
	assert.Equal(t, float64(3), usage["properties"])
	assert.Equal(t, float64(3), body["limits"].(map[string]any)["max_properties"])
}

func TestInvitationAcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	ownerID, _, propertyID := env.setupOwner(t)

	rec, body := env.do(t, http.MethodPost, "/invitations", ownerID, gin.H{
		"email":       "x@y.com",
		"scope":       "property",
		"role":        "agent",
		"property_id": propertyID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token := body["token"].(string)
	invitation := body["invitation"].(map[string]any)
	invitationID := invitation["id"].(string)
	assert.Len(t, token, 64)
	assert.NotContains(t, invitation, "token_hash")

	accept := gin.H{"token": token, "password": "secret12"}
	rec, body = env.do(t, http.MethodPost, "/invitations/"+invitationID+"/accept", 0, accept)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["userId"])

	rec, body = env.do(t, http.MethodPost, "/invitations/"+invitationID+"/accept", 0, accept)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_invitation", errorOf(body)["type"])

	rec, body = env.do(t, http.MethodGet, "/properties/"+propertyID+"/users", ownerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["property_users"], 2)

	rec, body = env.do(t, http.MethodGet, "/invitations/property/"+propertyID+"?status=accepted", ownerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["invitations"], 1)
}

func TestAcceptRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/invitations/123/accept", 0, gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorOf(body)["type"])
}

func TestRevokeAndDeclineInvitation(t *testing.T) {
	env := newTestEnv(t)
	ownerID, accountID, _ := env.setupOwner(t)

	rec, body := env.do(t, http.MethodPost, "/invitations", ownerID, gin.H{
		"email":      "invitee@example.com",
		"scope":      "account",
		"role":       "agent",
		"account_id": accountID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	invitationID := body["invitation"].(map[string]any)["id"].(string)
	token := body["token"].(string)

	rec, _ = env.do(t, http.MethodPost, "/invitations/"+invitationID+"/decline", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/invitations/"+invitationID+"/revoke", ownerID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "revoked", body["state"])

	rec, body = env.do(t, http.MethodPost, "/invitations/"+invitationID+"/decline", 0, gin.H{"token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "revoked", body["state"])
}

func TestSyncTeamEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ownerID, _, propertyID := env.setupOwner(t)

	a := testutil.SeedUser(t, env.db, env.node, "a@example.com", "agent")
	b := testutil.SeedUser(t, env.db, env.node, "b@example.com", "agent")

	rec, body := env.do(t, http.MethodPatch, "/properties/"+propertyID+"/team", ownerID, gin.H{
		"team": []gin.H{
			{"user_id": ownerID.String(), "role": "owner"},
			{"user_id": a.String(), "role": "super_admin"},
			{"user_id": b.String(), "role": "viewer"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	roles := map[string]string{}
	for _, raw := range body["property_users"].([]any) {
		row := raw.(map[string]any)
		roles[row["user_id"].(string)] = row["role"].(string)
	}
	assert.Equal(t, "admin", roles[a.String()])
	assert.Equal(t, "agent", roles[b.String()])
	assert.Len(t, roles, 3)
}

func TestAddPropertyUsersRejectsNonArray(t *testing.T) {
	env := newTestEnv(t)
	ownerID, _, propertyID := env.setupOwner(t)

	rec, body := env.do(t, http.MethodPost, "/properties/"+propertyID+"/users", ownerID, `{"users": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorOf(body)["type"])
}

func TestSyncTeamRejectsNullList(t *testing.T) {
	env := newTestEnv(t)
	ownerID, _, propertyID := env.setupOwner(t)

	for _, payload := range []string{`{"team": null}`, `{"users": null}`, `null`} {
		rec, body := env.do(t, http.MethodPatch, "/properties/"+propertyID+"/team", ownerID, payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
		assert.Equal(t, "validation_error", errorOf(body)["type"], payload)
	}

	rec, body := env.do(t, http.MethodPost, "/properties/"+propertyID+"/users", ownerID, `{"users": null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorOf(body)["type"])

	pid, err := snowflake.ParseString(propertyID)
	require.NoError(t, err)
	var remaining int64
	require.NoError(t, env.db.Raw(`SELECT COUNT(*) FROM property_users WHERE property_id = ?`, int64(pid)).Scan(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestStrangerIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	_, _, propertyID := env.setupOwner(t)
	stranger := testutil.SeedUser(t, env.db, env.node, "stranger@example.com", "agent")

	rec, body := env.do(t, http.MethodGet, "/properties/"+propertyID, stranger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorOf(body)["type"])
}

func TestPatchPropertyClearsNullFields(t *testing.T) {
	env := newTestEnv(t)
	ownerID, _, propertyID := env.setupOwner(t)

	rec, body := env.do(t, http.MethodPatch, "/properties/"+propertyID, ownerID, `{"city": null, "name": "Main House"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	property := body["property"].(map[string]any)
	assert.Nil(t, property["city"])
	assert.Equal(t, "Main House", property["name"])
	assert.Equal(t, "1 Main St", property["address_line1"])
}

func TestUsageEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ownerID, accountID, _ := env.setupOwner(t)

	rec, _ := env.do(t, http.MethodPost, "/accounts/"+accountID+"/usage", ownerID, gin.H{
		"category":  "storage",
		"quantity":  2,
		"unit":      "mb",
		"unit_cost": 0.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, body := env.do(t, http.MethodGet, "/accounts/"+accountID+"/usage/monthly", ownerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1.0, body["spend"], 1e-9)

	rec, body = env.do(t, http.MethodGet, "/accounts/"+accountID+"/usage/budget?category=storage&cap=1", ownerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["budget"].(map[string]any)["within_budget"])

	rec, _ = env.do(t, http.MethodGet, "/accounts/"+accountID+"/usage/budget", ownerID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/accounts/"+accountID+"/usage/history?limit=10", ownerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["events"], 1)
}

func TestStreamUsageReplaysBacklog(t *testing.T) {
	env := newTestEnv(t)
	ownerID, accountID, _ := env.setupOwner(t)

	id, err := snowflake.ParseString(accountID)
	require.NoError(t, err)
	holder, _, err := env.live.Subscribe(id)
	require.NoError(t, err)
	defer holder.Close()

	rec, _ := env.do(t, http.MethodPost, "/accounts/"+accountID+"/usage", ownerID, gin.H{"category": "email"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/accounts/"+accountID+"/usage/live", nil).WithContext(ctx)
	req.Header.Set(HeaderUserID, ownerID.String())
	stream := httptest.NewRecorder()
	env.engine.ServeHTTP(stream, req)

	assert.Equal(t, http.StatusOK, stream.Code)
	assert.Equal(t, "text/event-stream", stream.Header().Get("Content-Type"))
	assert.Contains(t, stream.Body.String(), "event: usage")
	assert.Contains(t, stream.Body.String(), `"category":"email"`)
}
