// Package registry holds the three node registries — frontends, backends,
// and services — that track what is live, where it lives, and whether it is
// healthy. Frontends and backends are frozen, configuration-sourced sets;
// services are dynamically registered and durably persisted.
package registry

import "fmt"

// NodeType identifies the class of node a connection has registered as.
type NodeType int

const (
	NodeTypeUnknown NodeType = iota
	NodeTypeFrontend
	NodeTypeBackend
	NodeTypeService
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeFrontend:
		return "frontend"
	case NodeTypeBackend:
		return "backend"
	case NodeTypeService:
		return "service"
	default:
		return "unknown"
	}
}

// BuildNodeID forms the canonical "<ip>:<port>" identifier shared by all
// three node classes.
func BuildNodeID(ip string, port int) string {
	return fmt.Sprintf("%s:%d", ip, port)
}
