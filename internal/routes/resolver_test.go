package routes_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/KakaCheng2010/go-admin/internal/menu"
	"github.com/KakaCheng2010/go-admin/internal/platform/httpx"
	"github.com/KakaCheng2010/go-admin/internal/routes"
)

type stubCreds struct{ token string }

func (s *stubCreds) Token() string         { return s.token }
func (s *stubCreds) SetToken(token string) { s.token = token }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textPage(body string) routes.PageFunc {
	return func() (http.Handler, error) {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		}), nil
	}
}

func testRegistry() *routes.Registry {
	reg := routes.NewRegistry()
	reg.Register("user/UserManagement", textPage("users page"))
	reg.Register("role/RoleManagement", textPage("roles page"))
	reg.Register("broken/Page", func() (http.Handler, error) {
		return nil, fmt.Errorf("constructor exploded")
	})
	return reg
}

func testMenus() []menu.Record {
	return []menu.Record{
		{ID: "1", Name: "Users", Type: menu.TypePage, Route: "/users", Component: "user/UserManagement"},
		{ID: "2", Name: "Roles", Type: menu.TypePage, Route: "/roles", Component: "role/RoleManagement"},
		{ID: "3", ParentID: "1", Name: "Delete", Type: menu.TypeAction, Permission: "user:delete"},
	}
}

func newTestResolver(t *testing.T, fetch routes.FetchFunc) (*routes.Resolver, *menu.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := menu.NewCache(client, 5*time.Minute, discardLogger())
	return routes.NewResolver(testRegistry(), cache, fetch, discardLogger(), nil), cache
}

func serve(t *testing.T, h http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	return res.Body.String()
}

func TestRoutesFetchOncePerSession(t *testing.T) {
	var fetches atomic.Int32
	fetch := func(ctx context.Context, creds routes.Credentials) ([]menu.Record, error) {
		fetches.Add(1)
		return testMenus(), nil
	}
	resolver, _ := newTestResolver(t, fetch)
	creds := &stubCreds{token: "tok"}
	ctx := context.Background()

	rs, err := resolver.Routes(ctx, "sess-1", "42", creds)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	require.Equal(t, routes.PhaseReady, resolver.PhaseOf("sess-1"))

	h, ok := rs.Handler("/users")
	require.True(t, ok)
	require.Equal(t, "users page", serve(t, h))

	again, err := resolver.Routes(ctx, "sess-1", "42", creds)
	require.NoError(t, err)
	require.Same(t, rs, again, "ready route set must be stable")
	require.Equal(t, int32(1), fetches.Load())
}

func TestRoutesServedFromCacheAcrossSessions(t *testing.T) {
	var fetches atomic.Int32
	fetch := func(ctx context.Context, creds routes.Credentials) ([]menu.Record, error) {
		fetches.Add(1)
		return testMenus(), nil
	}
	resolver, cache := newTestResolver(t, fetch)
	creds := &stubCreds{token: "tok"}
	ctx := context.Background()

	_, err := resolver.Routes(ctx, "sess-1", "42", creds)
	require.NoError(t, err)
	require.Equal(t, int32(1), fetches.Load())

	// A second session for the same account bootstraps from the cache.
	records, ok := cache.Read(ctx, "42")
	require.True(t, ok)
	require.Len(t, records, 3)

	rs, err := resolver.Routes(ctx, "sess-2", "42", creds)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	require.Equal(t, int32(1), fetches.Load(), "cache hit must not refetch")
}

func TestMenuFetchFailureResolvesEmpty(t *testing.T) {
	var fetches atomic.Int32
	fetch := func(ctx context.Context, creds routes.Credentials) ([]menu.Record, error) {
		fetches.Add(1)
		return nil, errors.New("backend down")
	}
	resolver, _ := newTestResolver(t, fetch)
	ctx := context.Background()

	rs, err := resolver.Routes(ctx, "sess-1", "42", &stubCreds{token: "tok"})
	require.NoError(t, err, "menu fetch failure is non-fatal")
	require.Equal(t, 0, rs.Len())
	require.Equal(t, routes.PhaseReady, resolver.PhaseOf("sess-1"))
	require.False(t, rs.Permissions().Has("user:delete"), "default deny with no menus")
}

func TestUnauthorizedPropagates(t *testing.T) {
	fetch := func(ctx context.Context, creds routes.Credentials) ([]menu.Record, error) {
		return nil, httpx.ErrUnauthorized
	}
	resolver, _ := newTestResolver(t, fetch)

	_, err := resolver.Routes(context.Background(), "sess-1", "42", &stubCreds{token: "tok"})
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestBrokenComponentFallbackIsIsolated(t *testing.T) {
	menus := append(testMenus(), menu.Record{
		ID: "9", Name: "Ghost", Type: menu.TypePage, Route: "/ghost", Component: "no/SuchPage",
	}, menu.Record{
		ID: "10", Name: "Broken", Type: menu.TypePage, Route: "/broken", Component: "broken/Page",
	})
	fetch := func(ctx context.Context, creds routes.Credentials) ([]menu.Record, error) {
		return menus, nil
	}
	resolver, _ := newTestResolver(t, fetch)

	rs, err := resolver.Routes(context.Background(), "sess-1", "42", &stubCreds{token: "tok"})
	require.NoError(t, err)
	require.Equal(t, 4, rs.Len())

	ghost, ok := rs.Handler("/ghost")
	require.True(t, ok)
	body := serve(t, ghost)
	require.Contains(t, body, "no/SuchPage", "fallback must report the unresolved reference")

	broken, ok := rs.Handler("/broken")
	require.True(t, ok)
	require.Contains(t, serve(t, broken), "broken/Page")

	users, ok := rs.Handler("/users")
	require.True(t, ok)
	require.Equal(t, "users page", serve(t, users), "healthy routes must be unaffected")
}

func TestSeedBypassesFetch(t *testing.T) {
	var fetches atomic.Int32
	fetch := func(ctx context.Context, creds routes.Credentials) ([]menu.Record, error) {
		fetches.Add(1)
		return nil, errors.New("must not be called")
	}
	resolver, cache := newTestResolver(t, fetch)
	ctx := context.Background()

	resolver.Seed(ctx, "sess-1", "42", testMenus())
	require.Equal(t, routes.PhaseReady, resolver.PhaseOf("sess-1"))

	rs, err := resolver.Routes(ctx, "sess-1", "42", &stubCreds{token: "tok"})
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	require.Equal(t, int32(0), fetches.Load())

	_, ok := cache.Read(ctx, "42")
	require.True(t, ok, "seeding must supersede the cache entry")
}

func TestLogoutClearsRoutesAndCache(t *testing.T) {
	fetch := func(ctx context.Context, creds routes.Credentials) ([]menu.Record, error) {
		return testMenus(), nil
	}
	resolver, cache := newTestResolver(t, fetch)
	ctx := context.Background()

	rs, err := resolver.Routes(ctx, "sess-1", "42", &stubCreds{token: "tok"})
	require.NoError(t, err)
	require.True(t, rs.Permissions().Has("user:delete"))

	resolver.Logout(ctx, "sess-1", "42")
	require.Equal(t, routes.PhaseUnbootstrapped, resolver.PhaseOf("sess-1"))
	_, ok := cache.Read(ctx, "42")
	require.False(t, ok, "logout must evict the menu cache")
}

func TestStaleFetchAfterLogoutIsInert(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context, creds routes.Credentials) ([]menu.Record, error) {
		close(started)
		<-release
		return testMenus(), nil
	}
	resolver, cache := newTestResolver(t, fetch)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := resolver.Routes(ctx, "sess-1", "42", &stubCreds{token: "tok"})
		errCh <- err
	}()

	<-started
	resolver.Logout(ctx, "sess-1", "42")
	close(release)

	require.ErrorIs(t, <-errCh, routes.ErrSessionEnded)
	require.Equal(t, routes.PhaseUnbootstrapped, resolver.PhaseOf("sess-1"))
	_, ok := cache.Read(ctx, "42")
	require.False(t, ok, "a fetch resolving after logout must not repopulate the cache")
}

func TestCyclicPayloadDegradesToEmpty(t *testing.T) {
	fetch := func(ctx context.Context, creds routes.Credentials) ([]menu.Record, error) {
		return []menu.Record{
			{ID: "a", ParentID: "b", Name: "A", Type: menu.TypePage, Route: "/a", Component: "user/UserManagement"},
			{ID: "b", ParentID: "a", Name: "B", Type: menu.TypePage, Route: "/b", Component: "role/RoleManagement"},
		}, nil
	}
	resolver, _ := newTestResolver(t, fetch)

	rs, err := resolver.Routes(context.Background(), "sess-1", "42", &stubCreds{token: "tok"})
	require.NoError(t, err)
	require.Equal(t, 0, rs.Len(), "a cyclic payload must not produce routes")
}

func TestGenerateKeysRoutesByMenuID(t *testing.T) {
	rs := routes.Generate(testRegistry(), testMenus())
	require.Equal(t, 2, rs.Len())
	nav := rs.Nav()
	require.Len(t, nav, 2)
	require.Equal(t, "/users", nav[0].Key)
	require.True(t, strings.HasPrefix(nav[0].Label, "Users"))
}
