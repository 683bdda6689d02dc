package roles_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huiui/hello-antd-role/internal/platform/httpx"
	"github.com/huiui/hello-antd-role/internal/rbac"
	"github.com/huiui/hello-antd-role/internal/roles"
	"github.com/huiui/hello-antd-role/internal/shared"
	"github.com/huiui/hello-antd-role/internal/testing/memstore"
	"github.com/huiui/hello-antd-role/internal/token"
)

type fixture struct {
	router http.Handler
	store  *memstore.Store
	tokens *token.Service
	admin  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memstore.New()
	tokens, err := token.NewService("roles-secret-0123456789abcdef0123456789", time.Hour, "test")
	require.NoError(t, err)
	graph := rbac.NewService(store, nil, nil, nil)
	mw := rbac.Middleware{Tokens: tokens, Permissions: graph, Registry: graph.Registry()}

	r := chi.NewRouter()
	r.With(mw.Authenticate).Route("/admin/roles", roles.NewHandler(nil, graph, mw).MountRoutes)

	f := fixture{router: r, store: store, tokens: tokens}
	f.admin = f.bearer(t, store.AddUser("root", "", true))
	return f
}

func (f fixture) bearer(t *testing.T, userID int64) string {
	t.Helper()
	raw, err := f.tokens.Issue(f.tokens.NewIdentity(userID))
	require.NoError(t, err)
	return raw
}

func (f fixture) call(t *testing.T, method, path, body, bearer string) (*httptest.ResponseRecorder, httpx.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr, env
}

func TestCreateListDeleteRole(t *testing.T) {
	f := newFixture(t)

	rr, env := f.call(t, http.MethodPost, "/admin/roles", `{"name":" editor ","title":"Editor"}`, f.admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	created := env.Data.(map[string]any)
	assert.Equal(t, "editor", created["name"])
	assert.Equal(t, []any{}, created["permissions"])
	id := int64(created["id"].(float64))

	rr, env = f.call(t, http.MethodPost, "/admin/roles", `{"name":"editor"}`, f.admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, env.Errors, "name")

	rr, env = f.call(t, http.MethodGet, "/admin/roles", "", f.admin)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, env.Data, 1)

	rr, env = f.call(t, http.MethodDelete, fmt.Sprintf("/admin/roles/%d", id), "", f.admin)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(id), env.Data.(map[string]any)["id"])

	rr, env = f.call(t, http.MethodDelete, fmt.Sprintf("/admin/roles/%d", id), "", f.admin)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, fmt.Sprintf("role %d not found", id), env.Errors["general"])

	rr, _ = f.call(t, http.MethodGet, fmt.Sprintf("/admin/roles/%d", id), "", f.admin)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateRoleRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		body  string
		code  int
		field string
	}{
		{name: "truncated json", body: `{"name":`, code: http.StatusBadRequest, field: "general"},
		{name: "unknown field", body: `{"name":"x","color":"red"}`, code: http.StatusBadRequest, field: "general"},
		{name: "blank name", body: `{"name":"   "}`, code: http.StatusUnprocessableEntity, field: "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, env := f.call(t, http.MethodPost, "/admin/roles", tc.body, f.admin)
			assert.Equal(t, tc.code, rr.Code)
			assert.Contains(t, env.Errors, tc.field)
			assert.False(t, env.Success)
		})
	}
}

func TestSetPermissions(t *testing.T) {
	f := newFixture(t)
	role := f.store.AddRole("editor")
	read := f.store.AddPermission(shared.PermRoleRead)
	update := f.store.AddPermission(shared.PermRoleUpdate)
	path := fmt.Sprintf("/admin/roles/%d/permissions", role)

	rr, env := f.call(t, http.MethodPost, path, fmt.Sprintf(`{"ids":[%d,%d,%d]}`, update, read, update), f.admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	perms := env.Data.(map[string]any)["permissions"].([]any)
	require.Len(t, perms, 2)
	assert.Equal(t, shared.PermRoleUpdate, perms[0].(map[string]any)["name"])
	assert.Equal(t, shared.PermRoleRead, perms[1].(map[string]any)["name"])

	rr, env = f.call(t, http.MethodPost, path, fmt.Sprintf(`{"ids":[%d,9999]}`, read), f.admin)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "permission 9999 not found", env.Errors["general"])
	assert.Equal(t, []int64{update, read}, f.store.PermissionIDsOf(role))

	rr, _ = f.call(t, http.MethodPost, path, `{"ids":"all"}`, f.admin)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.call(t, http.MethodPost, "/admin/roles/abc/permissions", `{"ids":[]}`, f.admin)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRoleRoutesNeedPermission(t *testing.T) {
	f := newFixture(t)
	role := f.store.AddRole("viewer")
	wildcard := f.store.AddPermission(shared.Wildcard)
	update := f.store.AddPermission(shared.PermRoleUpdate)

	plain := f.bearer(t, f.store.AddUser("bob", "", false))
	rr, env := f.call(t, http.MethodPost, "/admin/roles", `{"name":"sneaky"}`, plain)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, httpx.MsgForbidden, env.Errors["general"])

	// An update-role holder may edit grants but not hand out the wildcard.
	editorID := f.store.AddUser("trent", "", false)
	editorRole := f.store.AddRole("editor")
	rr, _ = f.call(t, http.MethodPost, fmt.Sprintf("/admin/roles/%d/permissions", editorRole), fmt.Sprintf(`{"ids":[%d]}`, update), f.admin)
	require.Equal(t, http.StatusOK, rr.Code)
	graph := rbac.NewService(f.store, nil, nil, nil)
	require.NoError(t, graph.AssignRoles(context.Background(), editorID, []int64{editorRole}))
	editor := f.bearer(t, editorID)

	rr, _ = f.call(t, http.MethodPost, fmt.Sprintf("/admin/roles/%d/permissions", role), fmt.Sprintf(`{"ids":[%d]}`, update), editor)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr, _ = f.call(t, http.MethodPost, fmt.Sprintf("/admin/roles/%d/permissions", role), fmt.Sprintf(`{"ids":[%d]}`, wildcard), editor)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, []int64{update}, f.store.PermissionIDsOf(role))
}
