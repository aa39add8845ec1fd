package transport

import (
	"net"
	"net/http"

	"github.com/maxwell-dev/maxwell-master/pkg/dispatcher"
)

// peerIP extracts the observed remote address from an HTTP request,
// ignoring the port (§4.7 peer_addr is ip+port, but locality classification
// only ever looks at the ip).
func peerIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

func schemeOf(r *http.Request) dispatcher.Scheme {
	if r.TLS != nil {
		return dispatcher.SchemeHTTPS
	}
	return dispatcher.SchemeHTTP
}
