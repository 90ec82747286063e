package routes

import "context"

type routeSetKey struct{}

// ContextWithRouteSet stores the session's generated route set in context so
// page handlers can reach the navigation items and permission index without
// re-resolving.
func ContextWithRouteSet(ctx context.Context, rs *RouteSet) context.Context {
	return context.WithValue(ctx, routeSetKey{}, rs)
}

// RouteSetFromContext extracts the route set from context; nil when absent.
func RouteSetFromContext(ctx context.Context) *RouteSet {
	rs, _ := ctx.Value(routeSetKey{}).(*RouteSet)
	return rs
}
