package dispatcher

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxwell-dev/maxwell-master/pkg/log"
	"github.com/maxwell-dev/maxwell-master/pkg/metrics"
	"github.com/maxwell-dev/maxwell-master/pkg/protocol"
	"github.com/maxwell-dev/maxwell-master/pkg/registry"
	"github.com/maxwell-dev/maxwell-master/pkg/routemgr"
	"github.com/maxwell-dev/maxwell-master/pkg/topicmgr"
)

// Dispatcher translates inbound protocol envelopes into registry operations
// (§4.7). It is stateless across connections; per-connection state lives on
// the Connection value passed to Handle.
type Dispatcher struct {
	Frontends *registry.FrontendManager
	Backends  *registry.BackendManager
	Services  *registry.ServiceManager
	Routes    *routemgr.RouteManager
	Topics    *topicmgr.TopicManager

	log zerolog.Logger
}

// New builds a Dispatcher over the given registries.
func New(
	frontends *registry.FrontendManager,
	backends *registry.BackendManager,
	services *registry.ServiceManager,
	routes *routemgr.RouteManager,
	topics *topicmgr.TopicManager,
) *Dispatcher {
	return &Dispatcher{
		Frontends: frontends,
		Backends:  backends,
		Services:  services,
		Routes:    routes,
		Topics:    topics,
		log:       log.WithComponent("dispatcher"),
	}
}

// Handle routes one inbound envelope to its handler and returns the response
// to send back. Every envelope gets a response, including an unknown kind or
// a malformed body (a typed error response), so the boolean is always true.
// Frames that do not decode as an envelope never reach Handle: the transport
// logs them and sends nothing.
func (d *Dispatcher) Handle(conn *Connection, env protocol.Envelope) (protocol.Envelope, bool) {
	timer := metrics.NewTimer()
	resp, ok := d.dispatch(conn, env)
	status := "ok"
	if env.Kind == protocol.KindError {
		status = "decode_error"
	} else if resp.Kind == protocol.KindError {
		status = "error"
	}
	metrics.DispatchRequestsTotal.WithLabelValues(string(env.Kind), status).Inc()
	timer.ObserveDurationVec(metrics.DispatchRequestDuration, string(env.Kind))
	return resp, ok
}

func (d *Dispatcher) dispatch(conn *Connection, env protocol.Envelope) (protocol.Envelope, bool) {
	now := time.Now()
	switch env.Kind {
	case protocol.KindPing:
		return d.handlePing(conn, env, now), true
	case protocol.KindRegisterFrontend:
		return d.handleRegisterFrontend(conn, env, now), true
	case protocol.KindRegisterBackend:
		return d.handleRegisterBackend(conn, env, now), true
	case protocol.KindRegisterService:
		return d.handleRegisterService(conn, env, now), true
	case protocol.KindSetRoutes:
		return d.handleSetRoutes(conn, env), true
	case protocol.KindGetRoutes:
		return d.handleGetRoutes(conn, env, now), true
	case protocol.KindGetTopicDistChecksum:
		return d.handleGetTopicDistChecksum(conn, env), true
	case protocol.KindGetRouteDistChecksum:
		return d.handleGetRouteDistChecksum(conn, env, now), true
	case protocol.KindPickFrontend:
		return d.handlePickFrontend(conn, env), true
	case protocol.KindLocateTopic:
		return d.handleLocateTopic(conn, env), true
	case protocol.KindResolveIP:
		return d.handleResolveIP(conn, env), true
	default:
		return protocol.NewErrorEnvelope(env.Ref, protocol.ErrUnknownMsg, "unknown message kind: "+string(env.Kind)), true
	}
}

func decodeBody[T any](env protocol.Envelope) (T, error) {
	var body T
	err := json.Unmarshal(env.Body, &body)
	return body, err
}

func errEnvelope(ref uint32, code protocol.ErrorCode, desc string) protocol.Envelope {
	return protocol.NewErrorEnvelope(ref, code, desc)
}

func mustEnvelope(kind protocol.Kind, ref uint32, body any) protocol.Envelope {
	env, err := protocol.NewEnvelope(kind, ref, body)
	if err != nil {
		return errEnvelope(ref, protocol.ErrMasterError, "failed to encode response")
	}
	return env
}
