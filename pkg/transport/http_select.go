package transport

import (
	"encoding/json"
	"net/http"

	"github.com/maxwell-dev/maxwell-master/pkg/protocol"
)

type pickFrontendResp struct {
	Code     protocol.ErrorCode `json:"code"`
	Desc     string             `json:"desc,omitempty"`
	Endpoint string             `json:"endpoint,omitempty"`
}

type pickFrontendsResp struct {
	Code      protocol.ErrorCode `json:"code"`
	Desc      string             `json:"desc,omitempty"`
	Endpoints []string           `json:"endpoints"`
}

func (s *Server) handlePickFrontend(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := s.disp.PickFrontendHTTP(peerIP(r), schemeOf(r))
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		writeJSON(w, pickFrontendResp{Code: protocol.ErrFailedToPickFrontend, Desc: "no frontends registered"})
		return
	}
	writeJSON(w, pickFrontendResp{Code: protocol.ErrNone, Endpoint: endpoint})
}

func (s *Server) handlePickFrontends(w http.ResponseWriter, r *http.Request) {
	endpoints := s.disp.PickFrontendsHTTP(peerIP(r), schemeOf(r))
	w.Header().Set("Content-Type", "application/json")
	if len(endpoints) == 0 {
		writeJSON(w, pickFrontendsResp{Code: protocol.ErrFailedToPickFrontend, Desc: "no frontends registered", Endpoints: []string{}})
		return
	}
	writeJSON(w, pickFrontendsResp{Code: protocol.ErrNone, Endpoints: endpoints})
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}
