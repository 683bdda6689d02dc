package rbac_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huiui/hello-antd-role/internal/platform/httpx"
	"github.com/huiui/hello-antd-role/internal/rbac"
	"github.com/huiui/hello-antd-role/internal/shared"
	"github.com/huiui/hello-antd-role/internal/testing/memstore"
	"github.com/huiui/hello-antd-role/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type decisionLog map[string]int

func (d decisionLog) ObserveDecision(outcome string) { d[outcome]++ }

type guarded struct {
	store   *memstore.Store
	svc     *rbac.Service
	tokens  *token.Service
	metrics decisionLog
	handler http.Handler
	called  bool
}

func newGuarded(t *testing.T, permission string) *guarded {
	t.Helper()
	tokens, err := token.NewService(testSecret, time.Hour, "test")
	require.NoError(t, err)
	g := &guarded{store: memstore.New(), tokens: tokens, metrics: decisionLog{}}
	g.svc = rbac.NewService(g.store, nil, nil, nil)
	mw := rbac.Middleware{Tokens: tokens, Permissions: g.svc, Metrics: g.metrics}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.called = true
		id, ok := shared.IdentityFromContext(r.Context())
		require.True(t, ok)
		httpx.OK(w, map[string]int64{"user": id.UserID})
	})
	g.handler = mw.Authenticate(mw.Require(permission)(final))
	return g
}

func (g *guarded) tokenFor(t *testing.T, userID int64) string {
	t.Helper()
	raw, err := g.tokens.Issue(g.tokens.NewIdentity(userID))
	require.NoError(t, err)
	return raw
}

func (g *guarded) do(header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/admin/roles/123", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	g.handler.ServeHTTP(rr, req)
	return rr
}

func envelope(t *testing.T, rr *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestRequireAdminWithNoRolesPasses(t *testing.T) {
	g := newGuarded(t, shared.PermRoleUpdate)
	admin := g.store.AddUser("root", "", true)

	rr := g.do("Bearer " + g.tokenFor(t, admin))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, g.called)
	assert.Equal(t, 1, g.metrics[rbac.OutcomeAllowed])
}

func TestRequireGrantedThroughRole(t *testing.T) {
	g := newGuarded(t, shared.PermRoleUpdate)
	user := g.store.AddUser("alice", "", false)
	role := g.store.AddRole("editor")
	perm := g.store.AddPermission(shared.PermRoleUpdate)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	require.NoError(t, g.svc.AssignPermissions(ctx, role, []int64{perm}))
	require.NoError(t, g.svc.AssignRoles(ctx, user, []int64{role}))

	rr := g.do("Bearer " + g.tokenFor(t, user))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, g.called)
}

func TestRequireMissingPermissionIsForbidden(t *testing.T) {
	g := newGuarded(t, shared.PermRoleUpdate)
	user := g.store.AddUser("viewer", "", false)
	role := g.store.AddRole("viewer")
	perm := g.store.AddPermission(shared.PermRoleRead)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	require.NoError(t, g.svc.AssignPermissions(ctx, role, []int64{perm}))
	require.NoError(t, g.svc.AssignRoles(ctx, user, []int64{role}))

	rr := g.do("Bearer " + g.tokenFor(t, user))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, g.called)
	env := envelope(t, rr)
	assert.False(t, env.Success)
	assert.Equal(t, httpx.MsgForbidden, env.Errors["general"])
	assert.Equal(t, 1, g.metrics[rbac.OutcomeForbidden])
}

func TestAuthenticateRejectsMissingAndBadTokens(t *testing.T) {
	g := newGuarded(t, shared.PermRoleRead)
	user := g.store.AddUser("alice", "", true)
	valid := g.tokenFor(t, user)

	other, err := token.NewService("ffffffffffffffffffffffffffffffff", time.Hour, "test")
	require.NoError(t, err)
	forged, err := other.Issue(other.NewIdentity(user))
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":      "",
		"wrong scheme": "Basic " + valid,
		"empty bearer": "Bearer ",
		"garbage":      "Bearer not-a-token",
		"forged":       "Bearer " + forged,
	} {
		t.Run(name, func(t *testing.T) {
			g.called = false
			rr := g.do(header)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.False(t, g.called)
			assert.Equal(t, httpx.MsgUnauthorized, envelope(t, rr).Errors["general"])
		})
	}
}

func TestRequireDeletedUserIsUnauthorized(t *testing.T) {
	g := newGuarded(t, shared.PermRoleRead)
	raw := g.tokenFor(t, 999)

	rr := g.do("Bearer " + raw)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, g.called)
}

func TestRequireStoreFailureIsOpaque(t *testing.T) {
	g := newGuarded(t, shared.PermRoleRead)
	user := g.store.AddUser("alice", "", true)
	g.store.GrantsErr = errors.New("connection reset by peer")

	rr := g.do("Bearer " + g.tokenFor(t, user))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.False(t, g.called)
	assert.NotContains(t, rr.Body.String(), "connection reset")
}

func TestRequireWithoutAuthenticateIsUnauthorized(t *testing.T) {
	mw := rbac.Middleware{Permissions: rbac.NewService(memstore.New(), nil, nil, nil)}
	h := mw.Require(shared.PermRoleRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireUnknownPermissionPanics(t *testing.T) {
	mw := rbac.Middleware{}
	assert.Panics(t, func() { mw.Require("launch rockets") })
	assert.NotPanics(t, func() { mw.Require(shared.PermMenuRead) })
}

func TestRequireAnyAcceptsEitherPermission(t *testing.T) {
	store := memstore.New()
	svc := rbac.NewService(store, nil, nil, nil)
	user := store.AddUser("editor", "", false)
	role := store.AddRole("editor")
	perm := store.AddPermission(shared.PermRoleUpdate)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	require.NoError(t, svc.AssignPermissions(ctx, role, []int64{perm}))
	require.NoError(t, svc.AssignRoles(ctx, user, []int64{role}))

	mw := rbac.Middleware{Permissions: svc}
	h := mw.RequireAny(shared.PermPermissionRead, shared.PermRoleUpdate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/admin/permissions", nil)
	req = req.WithContext(shared.ContextWithIdentity(req.Context(), token.Identity{UserID: user}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
