package dispatcher

import (
	"fmt"
	"net"

	"github.com/maxwell-dev/maxwell-master/pkg/metrics"
	"github.com/maxwell-dev/maxwell-master/pkg/registry"
)

// Scheme is the connection scheme the HTTP selector was reached over.
type Scheme int

const (
	SchemeHTTP Scheme = iota
	SchemeHTTPS
)

func (s Scheme) String() string {
	if s == SchemeHTTPS {
		return "https"
	}
	return "http"
}

// endpointFor applies the three-way locality/scheme decision table of §4.7
// (HTTP selector) to one frontend.
func endpointFor(f *registry.Frontend, loc Locality, scheme Scheme) string {
	switch loc {
	case LocalityLoopback:
		if scheme == SchemeHTTPS {
			return fmt.Sprintf("%s:%d", f.Domain, f.HTTPSPort)
		}
		return fmt.Sprintf("%s:%d", f.PrivateIP, f.HTTPPort)
	case LocalityPrivate:
		return fmt.Sprintf("%s:%d", f.PrivateIP, f.HTTPPort)
	default: // LocalityPublic
		if scheme == SchemeHTTPS {
			return fmt.Sprintf("%s:%d", f.Domain, f.HTTPSPort)
		}
		return fmt.Sprintf("%s:%d", f.PublicIP, f.HTTPPort)
	}
}

// PickFrontendHTTP implements GET /$pick-frontend: a single frontend chosen
// per §4.3, rendered by peer locality and request scheme.
func (d *Dispatcher) PickFrontendHTTP(peerIP net.IP, scheme Scheme) (string, bool) {
	f, ok := d.Frontends.Pick()
	loc := ClassifyHTTPPeer(peerIP)
	status := "ok"
	if !ok {
		status = "error"
	}
	metrics.HTTPSelectRequestsTotal.WithLabelValues(localityLabel(loc), status).Inc()
	if !ok {
		return "", false
	}
	return endpointFor(f, loc, scheme), true
}

// PickFrontendsHTTP implements GET /$pick-frontends: the same per-frontend
// rendering, applied to the full frontend set.
func (d *Dispatcher) PickFrontendsHTTP(peerIP net.IP, scheme Scheme) []string {
	loc := ClassifyHTTPPeer(peerIP)
	var endpoints []string
	d.Frontends.Iter(func(f *registry.Frontend) bool {
		endpoints = append(endpoints, endpointFor(f, loc, scheme))
		return true
	})
	status := "ok"
	if len(endpoints) == 0 {
		status = "error"
	}
	metrics.HTTPSelectRequestsTotal.WithLabelValues(localityLabel(loc), status).Inc()
	return endpoints
}

func localityLabel(loc Locality) string {
	switch loc {
	case LocalityLoopback:
		return "loopback"
	case LocalityPrivate:
		return "private"
	default:
		return "public"
	}
}
