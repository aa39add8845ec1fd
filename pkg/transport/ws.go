package transport

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maxwell-dev/maxwell-master/pkg/dispatcher"
	"github.com/maxwell-dev/maxwell-master/pkg/log"
	"github.com/maxwell-dev/maxwell-master/pkg/metrics"
	"github.com/maxwell-dev/maxwell-master/pkg/protocol"
	"github.com/maxwell-dev/maxwell-master/pkg/registry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades the request and runs the single-threaded per-connection
// read/dispatch/write loop of §4.7/§5. One goroutine per connection; no
// registry state is ever held across a suspension point.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.cfg.MaxFrameSize > 0 {
		conn.SetReadLimit(int64(s.cfg.MaxFrameSize))
	}

	state := dispatcher.NewConnection(hostIP(r.RemoteAddr), hostPort(r.RemoteAddr))
	clog := log.WithConnID(state.ID)
	clog.Info().Str("peer", r.RemoteAddr).Msg("connection opened")

	conn.SetPingHandler(func(appData string) error {
		s.disp.ActivateConn(state, time.Now())
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})
	nodeLabel := registry.NodeTypeUnknown.String()
	metrics.ConnectionsActive.WithLabelValues(nodeLabel).Inc()
	defer func() { metrics.ConnectionsActive.WithLabelValues(nodeLabel).Dec() }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			clog.Info().Err(err).Msg("connection closed")
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			clog.Warn().Err(err).Msg("failed to decode frame")
			continue
		}

		resp, ok := s.disp.Handle(state, env)
		if t := state.NodeType.String(); t != nodeLabel {
			metrics.ConnectionsActive.WithLabelValues(nodeLabel).Dec()
			metrics.ConnectionsActive.WithLabelValues(t).Inc()
			nodeLabel = t
		}
		if !ok {
			continue
		}

		out, err := json.Marshal(resp)
		if err != nil {
			clog.Error().Err(err).Msg("failed to encode response")
			continue
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
			clog.Warn().Err(err).Msg("failed to write response")
			return
		}
	}
}

func hostIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}

func hostPort(remoteAddr string) int {
	_, portStr, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(portStr)
	return port
}
