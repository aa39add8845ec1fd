// Package routemgr holds each registered service's verb-scoped path bundle
// and the versioned, durable route table built from them.
package routemgr

import "sort"

// PathBundle is one service's nine verb-scoped path sets (§3).
type PathBundle struct {
	WS      []string `json:"ws"`
	Get     []string `json:"get"`
	Post    []string `json:"post"`
	Put     []string `json:"put"`
	Patch   []string `json:"patch"`
	Delete  []string `json:"delete"`
	Head    []string `json:"head"`
	Options []string `json:"options"`
	Trace   []string `json:"trace"`
}

// Equal compares two bundles per verb class independent of element order;
// duplicate paths count, so a list with a repeated path differs from the
// same paths without the repeat. This is what "bundle unchanged" means for the
// set_reverse_route_group compare-and-swap (§4.5, §9 open question).
func (b PathBundle) Equal(other PathBundle) bool {
	return equalSet(b.WS, other.WS) &&
		equalSet(b.Get, other.Get) &&
		equalSet(b.Post, other.Post) &&
		equalSet(b.Put, other.Put) &&
		equalSet(b.Patch, other.Patch) &&
		equalSet(b.Delete, other.Delete) &&
		equalSet(b.Head, other.Head) &&
		equalSet(b.Options, other.Options) &&
		equalSet(b.Trace, other.Trace)
}

func equalSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// ForEachVerb calls f once per verb class with that class's path set, used
// by the route join (§4.5 step 3) to fold every verb class the same way.
func (b PathBundle) ForEachVerb(f func(verb string, paths []string)) {
	f("ws", b.WS)
	f("get", b.Get)
	f("post", b.Post)
	f("put", b.Put)
	f("patch", b.Patch)
	f("delete", b.Delete)
	f("head", b.Head)
	f("options", b.Options)
	f("trace", b.Trace)
}

// RouteGroup is the response-only, per-path health-split endpoint list
// returned to a route consumer (§3).
type RouteGroup struct {
	Path               string   `json:"path"`
	HealthyEndpoints   []string `json:"healthy_endpoints"`
	UnhealthyEndpoints []string `json:"unhealthy_endpoints"`
}
