package routemgr

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/maxwell-dev/maxwell-master/pkg/log"
	"github.com/maxwell-dev/maxwell-master/pkg/shardmap"
	"github.com/maxwell-dev/maxwell-master/pkg/store"
)

// RouteManager holds the durable, versioned mapping from service id to its
// path bundle (§4.5).
type RouteManager struct {
	table   store.Table
	cache   *shardmap.Map[PathBundle]
	version atomic.Uint32

	log zerolog.Logger
}

// NewRouteManager opens table, recovers the cache from a full scan, and
// starts the version counter at zero (§4.5 recovery).
func NewRouteManager(table store.Table) (*RouteManager, error) {
	m := &RouteManager{
		table: table,
		cache: shardmap.New[PathBundle](),
		log:   log.WithComponent("route_mgr"),
	}

	cur, err := table.Cursor()
	if err != nil {
		return nil, fmt.Errorf("scan routes table: %w", err)
	}
	for cur.Next() {
		var bundle PathBundle
		if err := json.Unmarshal(cur.Value(), &bundle); err != nil {
			return nil, fmt.Errorf("decode route bundle %q: %w", cur.Key(), err)
		}
		m.cache.Store(string(cur.Key()), bundle)
	}
	return m, nil
}

func (m *RouteManager) persist(serviceID string, bundle PathBundle) {
	data, err := json.Marshal(bundle)
	if err != nil {
		m.log.Error().Err(err).Str("service_id", serviceID).Msg("failed to encode route bundle")
		return
	}
	if err := m.table.Put([]byte(serviceID), data); err != nil {
		m.log.Error().Err(err).Str("service_id", serviceID).Msg("failed to persist route bundle")
	}
}

// SetReverseRouteGroup is a compare-and-swap upsert (§4.5, §9): a vacant
// slot or a changed bundle persists and bumps the version; an occupied
// slot with an unchanged bundle is a pure no-op, on purpose — this exact
// asymmetry is what keeps GetRouteDistChecksum stable while nothing has
// really changed (§8 scenario 6).
func (m *RouteManager) SetReverseRouteGroup(serviceID string, bundle PathBundle) {
	existing, ok := m.cache.Load(serviceID)
	if ok && existing.Equal(bundle) {
		return
	}
	m.cache.Store(serviceID, bundle)
	m.persist(serviceID, bundle)
	m.version.Add(1)
}

// RemoveReverseRouteGroup deletes serviceID's bundle, if present.
func (m *RouteManager) RemoveReverseRouteGroup(serviceID string) {
	if _, ok := m.cache.Load(serviceID); !ok {
		return
	}
	m.cache.Delete(serviceID)
	if err := m.table.Delete([]byte(serviceID)); err != nil {
		m.log.Error().Err(err).Str("service_id", serviceID).Msg("failed to delete route bundle")
	}
	m.version.Add(1)
}

// ReverseRouteGroupIter calls f for every (service id, bundle) pair until f
// returns false.
func (m *RouteManager) ReverseRouteGroupIter(f func(serviceID string, bundle PathBundle) bool) {
	m.cache.Range(f)
}

// Version returns the current monotonic version counter.
func (m *RouteManager) Version() uint32 {
	return m.version.Load()
}
