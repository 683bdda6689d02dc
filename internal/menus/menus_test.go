package menus_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/huiui/hello-antd-role/internal/menus"
	"github.com/huiui/hello-antd-role/internal/platform/httpx"
	"github.com/huiui/hello-antd-role/internal/rbac"
	"github.com/huiui/hello-antd-role/internal/shared"
	"github.com/huiui/hello-antd-role/internal/token"
)

type fakeRepo struct {
	mu     sync.Mutex
	nextID int64
	menus  map[int64]menus.Menu
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{menus: map[int64]menus.Menu{}}
}

func (f *fakeRepo) List(context.Context) ([]menus.Menu, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]menus.Menu, 0, len(f.menus))
	for id := int64(1); id <= f.nextID; id++ {
		if m, ok := f.menus[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) write(id int64, in menus.Input) (menus.Menu, error) {
	for _, m := range f.menus {
		if m.Name == in.Name && m.ID != id {
			return menus.Menu{}, &shared.ConflictError{Field: "name", Message: "The menu name is taken"}
		}
	}
	if in.ParentID != nil {
		if _, ok := f.menus[*in.ParentID]; !ok {
			return menus.Menu{}, &shared.NotFoundError{Entity: "menu", ID: *in.ParentID}
		}
	}
	m := menus.Menu{ID: id, Name: in.Name, Path: in.Path, Title: in.Title, ParentID: in.ParentID, UpdatedAt: time.Now()}
	f.menus[id] = m
	return m, nil
}

func (f *fakeRepo) Create(_ context.Context, in menus.Input) (menus.Menu, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.write(f.nextID, in)
}

func (f *fakeRepo) Update(_ context.Context, id int64, in menus.Input) (menus.Menu, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.menus[id]; !ok {
		return menus.Menu{}, &shared.NotFoundError{Entity: "menu", ID: id}
	}
	return f.write(id, in)
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.menus[id]; !ok {
		return &shared.NotFoundError{Entity: "menu", ID: id}
	}
	delete(f.menus, id)
	return nil
}

func ptr(v int64) *int64 { return &v }

func TestCreateValidatesAndTrims(t *testing.T) {
	svc := menus.NewService(newFakeRepo())
	ctx := context.Background()

	m, err := svc.Create(ctx, menus.Input{Name: "  roles ", Path: "/admin/roles", Title: "Roles"})
	require.NoError(t, err)
	require.Equal(t, "roles", m.Name)

	_, err = svc.Create(ctx, menus.Input{Name: "", Path: "admin"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "name")
	require.Contains(t, verr.Fields, "path")
}

func TestUpdateRejectsSelfParent(t *testing.T) {
	svc := menus.NewService(newFakeRepo())
	ctx := context.Background()
	m, err := svc.Create(ctx, menus.Input{Name: "users", Path: "/admin/users"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, m.ID, menus.Input{Name: "users", Path: "/admin/users", ParentID: ptr(m.ID)})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "A menu cannot be its own parent", verr.Fields["parentId"])
}

func TestUnknownParentIsNotFound(t *testing.T) {
	svc := menus.NewService(newFakeRepo())
	_, err := svc.Create(context.Background(), menus.Input{Name: "child", Path: "/c", ParentID: ptr(42)})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

type grantsOf map[int64][]string

func (g grantsOf) EffectivePermissions(_ context.Context, userID int64) (rbac.PermissionSet, error) {
	names, ok := g[userID]
	if !ok {
		return rbac.PermissionSet{}, shared.ErrNotFound
	}
	return rbac.NewPermissionSet(rbac.Grants{Names: names}), nil
}

func serve(t *testing.T, grants grantsOf) (http.Handler, func(userID int64) string) {
	t.Helper()
	tokens, err := token.NewService(strings.Repeat("m", token.MinSecretLength), time.Hour, "test")
	require.NoError(t, err)
	mw := rbac.Middleware{Tokens: tokens, Permissions: grants}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Route("/menus", menus.NewHandler(nil, menus.NewService(newFakeRepo()), mw).MountRoutes)
	issue := func(userID int64) string {
		raw, err := tokens.Issue(tokens.NewIdentity(userID))
		require.NoError(t, err)
		return raw
	}
	return r, issue
}

func send(h http.Handler, method, path, body, bearer string) (*httptest.ResponseRecorder, httpx.Envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+bearer)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var env httpx.Envelope
	_ = json.Unmarshal(rr.Body.Bytes(), &env)
	return rr, env
}

func TestMenuRoutesEnforcePermissions(t *testing.T) {
	h, issue := serve(t, grantsOf{
		1: {shared.PermMenuRead, shared.PermMenuCreate, shared.PermMenuUpdate, shared.PermMenuDelete},
		2: {shared.PermMenuRead},
	})
	editor, reader := issue(1), issue(2)

	rr, env := send(h, http.MethodPost, "/menus", `{"name":"roles","path":"/admin/roles"}`, editor)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, env.Success)

	rr, _ = send(h, http.MethodPost, "/menus", `{"name":"users","path":"/admin/users"}`, reader)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr, env = send(h, http.MethodGet, "/menus", "", reader)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, env.Data, 1)

	rr, _ = send(h, http.MethodPost, "/menus", `{"name":"roles","path":"/dup"}`, editor)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr, _ = send(h, http.MethodPut, "/menus/9", `{"name":"x","path":"/x"}`, editor)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = send(h, http.MethodDelete, "/menus/1", "", editor)
	require.Equal(t, http.StatusOK, rr.Code)
	rr, _ = send(h, http.MethodDelete, "/menus/1", "", editor)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
