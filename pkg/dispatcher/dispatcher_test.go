package dispatcher_test

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxwell-dev/maxwell-master/pkg/config"
	"github.com/maxwell-dev/maxwell-master/pkg/dispatcher"
	"github.com/maxwell-dev/maxwell-master/pkg/protocol"
	"github.com/maxwell-dev/maxwell-master/pkg/registry"
	"github.com/maxwell-dev/maxwell-master/pkg/routemgr"
	"github.com/maxwell-dev/maxwell-master/pkg/store"
	"github.com/maxwell-dev/maxwell-master/pkg/topicmgr"
)

func newTestDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	s, err := store.OpenBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	servicesTable, err := s.Table("services")
	require.NoError(t, err)
	routesTable, err := s.Table("routes")
	require.NoError(t, err)
	topicsTable, err := s.Table("topics")
	require.NoError(t, err)
	infoTable, err := s.Table("info")
	require.NoError(t, err)

	frontends := registry.NewFrontendManager([]config.FrontendConfig{
		{Domain: "f1.example", PublicIP: "1.2.3.4", PrivateIP: "10.0.0.1", HTTPPort: 80, HTTPSPort: 443},
	})
	backends := registry.NewBackendManager([]config.BackendConfig{
		{PrivateIP: "10.0.1.1", HTTPPort: 8080},
		{PrivateIP: "10.0.1.2", HTTPPort: 8080},
	})
	services, err := registry.NewServiceManager(servicesTable, 10, 60)
	require.NoError(t, err)
	routes, err := routemgr.NewRouteManager(routesTable)
	require.NoError(t, err)
	topics, err := topicmgr.NewTopicManager(topicsTable, infoTable, backends)
	require.NoError(t, err)

	return dispatcher.New(frontends, backends, services, routes, topics)
}

func conn(ip string) *dispatcher.Connection {
	return dispatcher.NewConnection(net.ParseIP(ip), 55000)
}

func decodeRep[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Body, &v))
	return v
}

func TestRegisterServiceSetRoutesAndGetRoutes(t *testing.T) {
	d := newTestDispatcher(t)

	svcConn := conn("10.0.0.50")
	regEnv, err := protocol.NewEnvelope(protocol.KindRegisterService, 1, protocol.RegisterServiceReq{HTTPPort: 9000})
	require.NoError(t, err)
	resp, ok := d.Handle(svcConn, regEnv)
	require.True(t, ok)
	require.Equal(t, protocol.KindRegisterServiceRep, resp.Kind)
	require.Equal(t, registry.NodeTypeService, svcConn.NodeType)
	require.Equal(t, "10.0.0.50:9000", svcConn.NodeID)

	setEnv, err := protocol.NewEnvelope(protocol.KindSetRoutes, 2, protocol.SetRoutesReq{
		GetPaths: []string{"/a"},
		WSPaths:  []string{"/w"},
	})
	require.NoError(t, err)
	resp, ok = d.Handle(svcConn, setEnv)
	require.True(t, ok)
	require.Equal(t, protocol.KindSetRoutesRep, resp.Kind)

	getEnv, _ := protocol.NewEnvelope(protocol.KindGetRoutes, 3, protocol.GetRoutesReq{})
	resp, ok = d.Handle(conn("10.0.0.99"), getEnv)
	require.True(t, ok)
	rep := decodeRep[protocol.GetRoutesRep](t, resp)
	require.Len(t, rep.GetRouteGroups, 1)
	require.Equal(t, "/a", rep.GetRouteGroups[0].Path)
	require.Equal(t, []string{"10.0.0.50:9000"}, rep.GetRouteGroups[0].HealthyEndpoints)
	require.Empty(t, rep.GetRouteGroups[0].UnhealthyEndpoints)
	require.Len(t, rep.WSRouteGroups, 1)
	require.Equal(t, "/w", rep.WSRouteGroups[0].Path)
}

func TestSetRoutesWithoutRegisteredServiceErrors(t *testing.T) {
	d := newTestDispatcher(t)
	setEnv, _ := protocol.NewEnvelope(protocol.KindSetRoutes, 1, protocol.SetRoutesReq{GetPaths: []string{"/a"}})
	resp, ok := d.Handle(conn("10.0.0.50"), setEnv)
	require.True(t, ok)
	require.Equal(t, protocol.KindError, resp.Kind)
	errRep := decodeRep[protocol.ErrorRep](t, resp)
	require.Equal(t, protocol.ErrMasterError, errRep.Code)
}

func TestGetRoutesOmitsUnregisteredServiceRoutes(t *testing.T) {
	d := newTestDispatcher(t)

	// set_routes on a connection that never registered a service: rejected,
	// so the route table stays empty and the join returns no groups.
	setEnv, _ := protocol.NewEnvelope(protocol.KindSetRoutes, 1, protocol.SetRoutesReq{GetPaths: []string{"/a"}})
	d.Handle(conn("10.0.0.50"), setEnv)

	getEnv, _ := protocol.NewEnvelope(protocol.KindGetRoutes, 2, protocol.GetRoutesReq{})
	resp, ok := d.Handle(conn("10.0.0.99"), getEnv)
	require.True(t, ok)
	rep := decodeRep[protocol.GetRoutesRep](t, resp)
	require.Empty(t, rep.GetRouteGroups)
}

func TestGetRouteDistChecksumStableWhileHealthy(t *testing.T) {
	d := newTestDispatcher(t)

	svcConn := conn("10.0.0.50")
	regEnv, _ := protocol.NewEnvelope(protocol.KindRegisterService, 1, protocol.RegisterServiceReq{HTTPPort: 9000})
	d.Handle(svcConn, regEnv)
	setEnv, _ := protocol.NewEnvelope(protocol.KindSetRoutes, 2, protocol.SetRoutesReq{GetPaths: []string{"/a"}})
	d.Handle(svcConn, setEnv)

	env1, _ := protocol.NewEnvelope(protocol.KindGetRouteDistChecksum, 3, protocol.GetRouteDistChecksumReq{})
	resp1, _ := d.Handle(conn("10.0.0.99"), env1)
	rep1 := decodeRep[protocol.GetRouteDistChecksumRep](t, resp1)

	env2, _ := protocol.NewEnvelope(protocol.KindGetRouteDistChecksum, 4, protocol.GetRouteDistChecksumReq{})
	resp2, _ := d.Handle(conn("10.0.0.99"), env2)
	rep2 := decodeRep[protocol.GetRouteDistChecksumRep](t, resp2)

	require.Equal(t, rep1.Checksum, rep2.Checksum)
}

func TestPickFrontendUsesPrivateIPForPrivatePeer(t *testing.T) {
	d := newTestDispatcher(t)
	env, _ := protocol.NewEnvelope(protocol.KindPickFrontend, 1, protocol.PickFrontendReq{})
	resp, ok := d.Handle(conn("10.0.0.99"), env)
	require.True(t, ok)
	rep := decodeRep[protocol.PickFrontendRep](t, resp)
	require.Equal(t, "10.0.0.1:80", rep.Endpoint)
}

func TestPickFrontendUsesPublicIPForPublicPeer(t *testing.T) {
	d := newTestDispatcher(t)
	env, _ := protocol.NewEnvelope(protocol.KindPickFrontend, 1, protocol.PickFrontendReq{})
	resp, ok := d.Handle(conn("8.8.8.8"), env)
	require.True(t, ok)
	rep := decodeRep[protocol.PickFrontendRep](t, resp)
	require.Equal(t, "1.2.3.4:80", rep.Endpoint)
}

func TestLocateTopicAssignsThenStaysStable(t *testing.T) {
	d := newTestDispatcher(t)
	c := conn("10.0.0.50")

	env1, _ := protocol.NewEnvelope(protocol.KindLocateTopic, 1, protocol.LocateTopicReq{Topic: "t1"})
	resp1, ok := d.Handle(c, env1)
	require.True(t, ok)
	rep1 := decodeRep[protocol.LocateTopicRep](t, resp1)
	require.Contains(t, []string{"10.0.1.1:8080", "10.0.1.2:8080"}, rep1.Endpoint)

	env2, _ := protocol.NewEnvelope(protocol.KindLocateTopic, 2, protocol.LocateTopicReq{Topic: "t1"})
	resp2, _ := d.Handle(c, env2)
	rep2 := decodeRep[protocol.LocateTopicRep](t, resp2)
	require.Equal(t, rep1.Endpoint, rep2.Endpoint)
}

func TestResolveIPReturnsPeerAddress(t *testing.T) {
	d := newTestDispatcher(t)
	env, _ := protocol.NewEnvelope(protocol.KindResolveIP, 1, protocol.ResolveIPReq{})
	resp, ok := d.Handle(conn("203.0.113.5"), env)
	require.True(t, ok)
	rep := decodeRep[protocol.ResolveIPRep](t, resp)
	require.Equal(t, "203.0.113.5", rep.IP)
}

func TestUnknownKindRepliesUnknownMsgError(t *testing.T) {
	d := newTestDispatcher(t)
	env := protocol.Envelope{Kind: "bogus", Ref: 1}
	resp, ok := d.Handle(conn("10.0.0.1"), env)
	require.True(t, ok)
	require.Equal(t, protocol.KindError, resp.Kind)
	errRep := decodeRep[protocol.ErrorRep](t, resp)
	require.Equal(t, protocol.ErrUnknownMsg, errRep.Code)
}
