package session

import "strings"

// LoginPath is where unauthenticated navigation is redirected.
const LoginPath = "/"

// Route is one entry of the console route table.
type Route struct {
	Path         string
	Name         string
	RequiresAuth bool
	PageTitle    string
	Breadcrumbs  []string
	Children     []Route
}

// Routes is the console route table.
var Routes = []Route{
	{Path: "/", Name: "login"},
	{
		Path:         "/dashboard",
		Name:         "Dashboard",
		RequiresAuth: true,
		Children: []Route{
			{Path: "/dashboard", Name: "dashboard", PageTitle: "Dashboard", Breadcrumbs: []string{"Dashboards"}},
			{Path: "/add-smartphone", Name: "add-smartphone", PageTitle: "Add Smartphone", Breadcrumbs: []string{"Apps", "Add Smartphone"}},
			{Path: "/cpu-manage", Name: "cpu-manage", PageTitle: "CPU Manage", Breadcrumbs: []string{"Apps", "Cpu Manage"}},
			{Path: "/rate-manage", Name: "rate-manage", PageTitle: "Rate Manage", Breadcrumbs: []string{"Apps", "Rate Manage"}},
		},
	},
}

// Guard decides where a navigation ends up.
type Guard struct {
	routes   []Route
	provider Provider
}

// NewGuard returns a Guard over routes. A nil routes slice uses Routes.
func NewGuard(provider Provider, routes []Route) *Guard {
	if routes == nil {
		routes = Routes
	}
	return &Guard{routes: routes, provider: provider}
}

// Match returns the chain of routes matching path, outermost first.
// Children are tried before their parent so nested pages win over layouts.
func (g *Guard) Match(path string) []Route {
	path = normalize(path)
	for _, route := range g.routes {
		if chain := match(route, path); chain != nil {
			return chain
		}
	}
	return nil
}

// Resolve returns the path navigation to target should land on: target itself,
// or LoginPath when any matched route requires authentication and the provider
// reports none.
func (g *Guard) Resolve(target string) string {
	for _, route := range g.Match(target) {
		if route.RequiresAuth && (g.provider == nil || !g.provider.IsAuthenticated()) {
			return LoginPath
		}
	}
	return normalize(target)
}

// Allowed reports whether target can be visited without a redirect.
func (g *Guard) Allowed(target string) bool {
	return g.Resolve(target) == normalize(target)
}

func match(route Route, path string) []Route {
	for _, child := range route.Children {
		if chain := match(child, path); chain != nil {
			return append([]Route{route}, chain...)
		}
	}
	if normalize(route.Path) == path {
		return []Route{route}
	}
	return nil
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
