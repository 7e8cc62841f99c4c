package types

import "sort"

// RouteInfo describes a link shown on the index page.
type RouteInfo struct {
	URL         string `yaml:"url" json:"url"`
	Description string `yaml:"description" json:"description"`
}

// NamedRoute pairs a route name with its info.
type NamedRoute struct {
	Name string
	RouteInfo
}

// Routes maps route names to their info. Routes are configured at runtime.
type Routes map[string]RouteInfo

// Sorted returns the routes ordered by name.
func (r Routes) Sorted() []NamedRoute {
	out := make([]NamedRoute, 0, len(r))
	for name, info := range r {
		out = append(out, NamedRoute{Name: name, RouteInfo: info})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
