package dispatcher

import (
	"fmt"
	"hash/crc32"
	"time"

	"github.com/OneOfOne/xxhash"

	"github.com/maxwell-dev/maxwell-master/pkg/protocol"
	"github.com/maxwell-dev/maxwell-master/pkg/registry"
	"github.com/maxwell-dev/maxwell-master/pkg/routemgr"
)

const topicHashSeed uint64 = 0

func (d *Dispatcher) handlePing(conn *Connection, env protocol.Envelope, now time.Time) protocol.Envelope {
	d.ActivateConn(conn, now)
	return mustEnvelope(protocol.KindPong, env.Ref, protocol.PongRep{})
}

// ActivateConn refreshes conn's registry heartbeat, if it has registered as
// a node. Shared by the Ping message handler and the transport layer's raw
// WebSocket ping frame handling, which activates the connection the same
// way a PingReq does without itself generating a PingRep.
func (d *Dispatcher) ActivateConn(conn *Connection, now time.Time) {
	if conn.NodeID == "" {
		return
	}
	switch conn.NodeType {
	case registry.NodeTypeFrontend:
		d.Frontends.Activate(conn.NodeID, now)
	case registry.NodeTypeBackend:
		d.Backends.Activate(conn.NodeID, now)
	case registry.NodeTypeService:
		d.Services.Activate(conn.NodeID, now)
	}
}

func (d *Dispatcher) handleRegisterFrontend(conn *Connection, env protocol.Envelope, now time.Time) protocol.Envelope {
	req, err := decodeBody[protocol.RegisterFrontendReq](env)
	if err != nil {
		return errEnvelope(env.Ref, protocol.ErrMasterError, "malformed register_frontend request")
	}

	candidateID := registry.BuildNodeID(conn.PeerIP.String(), req.HTTPPort)
	if _, ok := d.Frontends.Get(candidateID); !ok {
		return errEnvelope(env.Ref, protocol.ErrNotAllowedToRegisterFrontend, "peer is not a configured frontend")
	}

	conn.NodeType = registry.NodeTypeFrontend
	conn.NodeID = candidateID
	d.Frontends.Activate(candidateID, now)
	return mustEnvelope(protocol.KindRegisterFrontendRep, env.Ref, protocol.RegisterFrontendRep{})
}

func (d *Dispatcher) handleRegisterBackend(conn *Connection, env protocol.Envelope, now time.Time) protocol.Envelope {
	req, err := decodeBody[protocol.RegisterBackendReq](env)
	if err != nil {
		return errEnvelope(env.Ref, protocol.ErrMasterError, "malformed register_backend request")
	}

	candidateID := registry.BuildNodeID(conn.PeerIP.String(), req.HTTPPort)
	if _, ok := d.Backends.Get(candidateID); !ok {
		return errEnvelope(env.Ref, protocol.ErrNotAllowedToRegisterBackend, "peer is not a configured backend")
	}

	conn.NodeType = registry.NodeTypeBackend
	conn.NodeID = candidateID
	d.Backends.Activate(candidateID, now)
	return mustEnvelope(protocol.KindRegisterBackendRep, env.Ref, protocol.RegisterBackendRep{})
}

func (d *Dispatcher) handleRegisterService(conn *Connection, env protocol.Envelope, now time.Time) protocol.Envelope {
	req, err := decodeBody[protocol.RegisterServiceReq](env)
	if err != nil {
		return errEnvelope(env.Ref, protocol.ErrMasterError, "malformed register_service request")
	}

	id := registry.BuildNodeID(conn.PeerIP.String(), req.HTTPPort)
	d.Services.Add(id, conn.PeerIP.String(), req.HTTPPort, now)

	conn.NodeType = registry.NodeTypeService
	conn.NodeID = id
	return mustEnvelope(protocol.KindRegisterServiceRep, env.Ref, protocol.RegisterServiceRep{})
}

func (d *Dispatcher) handleSetRoutes(conn *Connection, env protocol.Envelope) protocol.Envelope {
	if conn.NodeType != registry.NodeTypeService || conn.NodeID == "" {
		return errEnvelope(env.Ref, protocol.ErrMasterError, "set_routes requires a registered service")
	}

	req, err := decodeBody[protocol.SetRoutesReq](env)
	if err != nil {
		return errEnvelope(env.Ref, protocol.ErrMasterError, "malformed set_routes request")
	}

	bundle := routemgr.PathBundle{
		WS:      req.WSPaths,
		Get:     req.GetPaths,
		Post:    req.PostPaths,
		Put:     req.PutPaths,
		Patch:   req.PatchPaths,
		Delete:  req.DeletePaths,
		Head:    req.HeadPaths,
		Options: req.OptionsPaths,
		Trace:   req.TracePaths,
	}
	d.Routes.SetReverseRouteGroup(conn.NodeID, bundle)
	return mustEnvelope(protocol.KindSetRoutesRep, env.Ref, protocol.SetRoutesRep{})
}

// routeAccumulator folds one verb class's paths into path -> RouteGroup.
type routeAccumulator map[string]*routemgr.RouteGroup

func (a routeAccumulator) add(path, endpoint string, healthy bool) {
	g, ok := a[path]
	if !ok {
		g = &routemgr.RouteGroup{Path: path}
		a[path] = g
	}
	if healthy {
		g.HealthyEndpoints = append(g.HealthyEndpoints, endpoint)
	} else {
		g.UnhealthyEndpoints = append(g.UnhealthyEndpoints, endpoint)
	}
}

func (a routeAccumulator) dtoList() []protocol.RouteGroupDTO {
	out := make([]protocol.RouteGroupDTO, 0, len(a))
	for _, g := range a {
		out = append(out, protocol.RouteGroupDTO{
			Path:               g.Path,
			HealthyEndpoints:   g.HealthyEndpoints,
			UnhealthyEndpoints: g.UnhealthyEndpoints,
		})
	}
	return out
}

// joinRoutes performs the route readout join of §4.5: fold every verb
// class's paths from every (service, bundle) pair into per-verb accumulator
// maps, garbage-collecting stale services from both registries as it goes.
func (d *Dispatcher) joinRoutes(now time.Time) map[string]routeAccumulator {
	accs := map[string]routeAccumulator{
		"ws": {}, "get": {}, "post": {}, "put": {}, "patch": {},
		"delete": {}, "head": {}, "options": {}, "trace": {},
	}

	var stale []string
	d.Routes.ReverseRouteGroupIter(func(serviceID string, bundle routemgr.PathBundle) bool {
		svc, ok := d.Services.Get(serviceID, now)
		if !ok {
			stale = append(stale, serviceID)
			return true
		}
		healthy := d.Services.IsHealthy(svc, now)
		endpoint := registry.BuildNodeID(svc.PrivateIP, svc.HTTPPort)
		bundle.ForEachVerb(func(verb string, paths []string) {
			for _, p := range paths {
				accs[verb].add(p, endpoint, healthy)
			}
		})
		return true
	})

	for _, id := range stale {
		d.Services.Remove(id)
		d.Routes.RemoveReverseRouteGroup(id)
	}
	return accs
}

func (d *Dispatcher) handleGetRoutes(conn *Connection, env protocol.Envelope, now time.Time) protocol.Envelope {
	accs := d.joinRoutes(now)
	rep := protocol.GetRoutesRep{
		WSRouteGroups:      accs["ws"].dtoList(),
		GetRouteGroups:     accs["get"].dtoList(),
		PostRouteGroups:    accs["post"].dtoList(),
		PutRouteGroups:     accs["put"].dtoList(),
		PatchRouteGroups:   accs["patch"].dtoList(),
		DeleteRouteGroups:  accs["delete"].dtoList(),
		HeadRouteGroups:    accs["head"].dtoList(),
		OptionsRouteGroups: accs["options"].dtoList(),
		TraceRouteGroups:   accs["trace"].dtoList(),
	}
	return mustEnvelope(protocol.KindGetRoutesRep, env.Ref, rep)
}

func (d *Dispatcher) handleGetTopicDistChecksum(conn *Connection, env protocol.Envelope) protocol.Envelope {
	rep := protocol.GetTopicDistChecksumRep{Checksum: d.Backends.Checksum()}
	return mustEnvelope(protocol.KindGetTopicDistChecksumR, env.Ref, rep)
}

// handleGetRouteDistChecksum computes the composite freshness fingerprint of
// §4.7: a checksum that stays stable while every referenced service is
// healthy, and changes on every call otherwise, so downstream caches keep
// refreshing until the fleet converges.
func (d *Dispatcher) handleGetRouteDistChecksum(conn *Connection, env protocol.Envelope, now time.Time) protocol.Envelope {
	allHealthy := true
	var stale []string

	d.Routes.ReverseRouteGroupIter(func(serviceID string, _ routemgr.PathBundle) bool {
		svc, ok := d.Services.Get(serviceID, now)
		if !ok {
			stale = append(stale, serviceID)
			allHealthy = false
			return true
		}
		if !d.Services.IsHealthy(svc, now) {
			allHealthy = false
		}
		return true
	})

	for _, id := range stale {
		d.Services.Remove(id)
		d.Routes.RemoveReverseRouteGroup(id)
	}

	var s int64 = 1
	if !allHealthy {
		s = now.UnixMilli()
	}
	seed := fmt.Sprintf("%d,%d", d.Routes.Version(), s)
	rep := protocol.GetRouteDistChecksumRep{Checksum: crc32.ChecksumIEEE([]byte(seed))}
	return mustEnvelope(protocol.KindGetRouteDistChecksumR, env.Ref, rep)
}

func (d *Dispatcher) handlePickFrontend(conn *Connection, env protocol.Envelope) protocol.Envelope {
	f, ok := d.Frontends.Pick()
	if !ok {
		return errEnvelope(env.Ref, protocol.ErrFailedToPickFrontend, "no frontends registered")
	}

	ip := f.PublicIP
	if IsPrivateIPv4(conn.PeerIP) {
		ip = f.PrivateIP
	}
	rep := protocol.PickFrontendRep{Endpoint: fmt.Sprintf("%s:%d", ip, f.HTTPPort)}
	return mustEnvelope(protocol.KindPickFrontendRep, env.Ref, rep)
}

func (d *Dispatcher) handleLocateTopic(conn *Connection, env protocol.Envelope) protocol.Envelope {
	req, err := decodeBody[protocol.LocateTopicReq](env)
	if err != nil {
		return errEnvelope(env.Ref, protocol.ErrFailedToLocateTopic, "malformed locate_topic request")
	}

	backendID, found, err := d.Topics.Locate(req.Topic)
	if err != nil {
		return errEnvelope(env.Ref, protocol.ErrFailedToLocateTopic, "failed to read topic assignment")
	}

	if found {
		b, ok := d.Backends.Get(backendID)
		if !ok {
			return errEnvelope(env.Ref, protocol.ErrFailedToLocateTopic, "assigned backend no longer exists")
		}
		rep := protocol.LocateTopicRep{Endpoint: fmt.Sprintf("%s:%d", b.PrivateIP, b.HTTPPort)}
		return mustEnvelope(protocol.KindLocateTopicRep, env.Ref, rep)
	}

	hash := xxhash.ChecksumString64S(req.Topic, topicHashSeed)
	b, ok := d.Backends.PickWith(func(ids []string) int {
		return int(hash % uint64(len(ids)))
	})
	if !ok {
		return errEnvelope(env.Ref, protocol.ErrFailedToLocateTopic, "no backends configured")
	}
	if err := d.Topics.Assign(req.Topic, b.ID); err != nil {
		return errEnvelope(env.Ref, protocol.ErrFailedToLocateTopic, "failed to persist topic assignment")
	}
	rep := protocol.LocateTopicRep{Endpoint: fmt.Sprintf("%s:%d", b.PrivateIP, b.HTTPPort)}
	return mustEnvelope(protocol.KindLocateTopicRep, env.Ref, rep)
}

func (d *Dispatcher) handleResolveIP(conn *Connection, env protocol.Envelope) protocol.Envelope {
	rep := protocol.ResolveIPRep{IP: conn.PeerIP.String()}
	return mustEnvelope(protocol.KindResolveIPRep, env.Ref, rep)
}
