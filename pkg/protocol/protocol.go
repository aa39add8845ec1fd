// Package protocol defines the request/response message kinds exchanged
// over the duplex connection (§6). The original wire format is a
// length-delimited binary stream of tagged bincode variants; here each
// message is a JSON object carrying a "kind" discriminator and a numeric
// "ref" correlation tag, which is the idiomatic Go rendering of the same
// tagged-enum contract over a text-capable transport (gorilla/websocket).
package protocol

import "encoding/json"

// Kind names every request/response message (§6).
type Kind string

const (
	KindPing                  Kind = "ping"
	KindPong                  Kind = "pong"
	KindRegisterFrontend      Kind = "register_frontend"
	KindRegisterFrontendRep   Kind = "register_frontend_rep"
	KindRegisterBackend       Kind = "register_backend"
	KindRegisterBackendRep    Kind = "register_backend_rep"
	KindRegisterService       Kind = "register_service"
	KindRegisterServiceRep    Kind = "register_service_rep"
	KindSetRoutes             Kind = "set_routes"
	KindSetRoutesRep          Kind = "set_routes_rep"
	KindGetRoutes             Kind = "get_routes"
	KindGetRoutesRep          Kind = "get_routes_rep"
	KindGetTopicDistChecksum  Kind = "get_topic_dist_checksum"
	KindGetTopicDistChecksumR Kind = "get_topic_dist_checksum_rep"
	KindGetRouteDistChecksum  Kind = "get_route_dist_checksum"
	KindGetRouteDistChecksumR Kind = "get_route_dist_checksum_rep"
	KindPickFrontend          Kind = "pick_frontend"
	KindPickFrontendRep       Kind = "pick_frontend_rep"
	KindLocateTopic           Kind = "locate_topic"
	KindLocateTopicRep        Kind = "locate_topic_rep"
	KindResolveIP             Kind = "resolve_ip"
	KindResolveIPRep          Kind = "resolve_ip_rep"
	KindError                 Kind = "error"
)

// ErrorCode enumerates the typed error kinds of §7.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrNotAllowedToRegisterFrontend
	ErrNotAllowedToRegisterBackend
	ErrMasterError
	ErrFailedToPickFrontend
	ErrFailedToLocateTopic
	ErrUnknownMsg
)

// Envelope is the outer frame every message travels in: a kind
// discriminator, a correlation tag echoed verbatim in the response, and a
// kind-specific body.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Ref  uint32          `json:"ref"`
	Body json.RawMessage `json:"body,omitempty"`
}

func NewEnvelope(kind Kind, ref uint32, body any) (Envelope, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: kind, Ref: ref, Body: data}, nil
}

// ErrorRep is the generic error response (§6, §7).
type ErrorRep struct {
	Code ErrorCode `json:"code"`
	Desc string    `json:"desc"`
	Ref  uint32    `json:"ref"`
}

func NewErrorEnvelope(ref uint32, code ErrorCode, desc string) Envelope {
	env, _ := NewEnvelope(KindError, ref, ErrorRep{Code: code, Desc: desc, Ref: ref})
	return env
}

// --- Ping/Pong ---

type PingReq struct{}
type PongRep struct{}

// --- Registration ---

type RegisterFrontendReq struct {
	HTTPPort int `json:"http_port"`
}
type RegisterFrontendRep struct{}

type RegisterBackendReq struct {
	HTTPPort int `json:"http_port"`
}
type RegisterBackendRep struct{}

type RegisterServiceReq struct {
	HTTPPort int `json:"http_port"`
}
type RegisterServiceRep struct{}

// --- Routes ---

type SetRoutesReq struct {
	WSPaths      []string `json:"ws_paths"`
	GetPaths     []string `json:"get_paths"`
	PostPaths    []string `json:"post_paths"`
	PutPaths     []string `json:"put_paths"`
	PatchPaths   []string `json:"patch_paths"`
	DeletePaths  []string `json:"delete_paths"`
	HeadPaths    []string `json:"head_paths"`
	OptionsPaths []string `json:"options_paths"`
	TracePaths   []string `json:"trace_paths"`
}
type SetRoutesRep struct{}

type GetRoutesReq struct{}

// RouteGroupDTO mirrors routemgr.RouteGroup for the wire (kept separate so
// the protocol package has no dependency on routemgr).
type RouteGroupDTO struct {
	Path               string   `json:"path"`
	HealthyEndpoints   []string `json:"healthy_endpoints"`
	UnhealthyEndpoints []string `json:"unhealthy_endpoints"`
}

type GetRoutesRep struct {
	WSRouteGroups      []RouteGroupDTO `json:"ws_route_groups"`
	GetRouteGroups     []RouteGroupDTO `json:"get_route_groups"`
	PostRouteGroups    []RouteGroupDTO `json:"post_route_groups"`
	PutRouteGroups     []RouteGroupDTO `json:"put_route_groups"`
	PatchRouteGroups   []RouteGroupDTO `json:"patch_route_groups"`
	DeleteRouteGroups  []RouteGroupDTO `json:"delete_route_groups"`
	HeadRouteGroups    []RouteGroupDTO `json:"head_route_groups"`
	OptionsRouteGroups []RouteGroupDTO `json:"options_route_groups"`
	TraceRouteGroups   []RouteGroupDTO `json:"trace_route_groups"`
}

// --- Checksums ---

type GetTopicDistChecksumReq struct{}
type GetTopicDistChecksumRep struct {
	Checksum uint32 `json:"checksum"`
}

type GetRouteDistChecksumReq struct{}
type GetRouteDistChecksumRep struct {
	Checksum uint32 `json:"checksum"`
}

// --- Selection ---

type PickFrontendReq struct{}
type PickFrontendRep struct {
	Endpoint string `json:"endpoint"`
}

type LocateTopicReq struct {
	Topic string `json:"topic"`
}
type LocateTopicRep struct {
	Endpoint string `json:"endpoint"`
}

type ResolveIPReq struct{}
type ResolveIPRep struct {
	IP string `json:"ip"`
}
