package registry

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxwell-dev/maxwell-master/pkg/log"
	"github.com/maxwell-dev/maxwell-master/pkg/shardmap"
	"github.com/maxwell-dev/maxwell-master/pkg/store"
)

// Service is a dynamically registered HTTP/WS producer. Unlike Frontend and
// Backend it is durably persisted and recovered at start-up.
type Service struct {
	ID        string
	PrivateIP string
	HTTPPort  int

	activeAt atomic.Int64 // unix seconds
}

func newService(id, privateIP string, httpPort int, activeAt int64) *Service {
	s := &Service{ID: id, PrivateIP: privateIP, HTTPPort: httpPort}
	s.activeAt.Store(activeAt)
	return s
}

func (s *Service) ActiveAt() int64     { return s.activeAt.Load() }
func (s *Service) SetActiveAt(t int64) { s.activeAt.Store(t) }

// IsHealthy reports whether the service has been seen recently enough.
// The boundary is inclusive: a delta exactly equal to the threshold is
// still healthy (§8, boundary behaviours).
func (s *Service) IsHealthy(now time.Time, unhealthyThreshold int64) bool {
	delta := now.Unix() - s.ActiveAt()
	return delta <= unhealthyThreshold
}

// IsStale reports whether the service is old enough to be garbage
// collected. The boundary is exclusive: a delta exactly equal to the
// threshold is not yet stale.
func (s *Service) IsStale(now time.Time, staleThreshold int64) bool {
	delta := now.Unix() - s.ActiveAt()
	return delta > staleThreshold
}

type serviceDTO struct {
	ID        string `json:"id"`
	PrivateIP string `json:"private_ip"`
	HTTPPort  int    `json:"http_port"`
	ActiveAt  int64  `json:"active_at"`
}

func (s *Service) marshal() ([]byte, error) {
	return json.Marshal(serviceDTO{ID: s.ID, PrivateIP: s.PrivateIP, HTTPPort: s.HTTPPort, ActiveAt: s.ActiveAt()})
}

func unmarshalService(data []byte) (*Service, error) {
	var dto serviceDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	return newService(dto.ID, dto.PrivateIP, dto.HTTPPort, dto.ActiveAt), nil
}

// ServiceManager is the durable registry of dynamically registered
// services, backed by a single KV table.
type ServiceManager struct {
	table store.Table
	cache *shardmap.Map[*Service]

	version atomic.Uint32

	unhealthyThreshold int64
	staleThreshold     int64

	log zerolog.Logger
}

// NewServiceManager opens table, warms the in-memory cache from it, and
// returns the manager. The scan is a start-up operation, not a runtime
// registry mutation, so a failure here is propagated rather than dropped.
func NewServiceManager(table store.Table, unhealthyThreshold, staleThreshold int64) (*ServiceManager, error) {
	m := &ServiceManager{
		table:              table,
		cache:              shardmap.New[*Service](),
		unhealthyThreshold: unhealthyThreshold,
		staleThreshold:     staleThreshold,
		log:                log.WithComponent("service_mgr"),
	}

	cur, err := table.Cursor()
	if err != nil {
		return nil, fmt.Errorf("scan services table: %w", err)
	}
	for cur.Next() {
		svc, err := unmarshalService(cur.Value())
		if err != nil {
			return nil, fmt.Errorf("decode service %q: %w", cur.Key(), err)
		}
		m.cache.Store(svc.ID, svc)
	}
	return m, nil
}

func (m *ServiceManager) persist(s *Service) {
	data, err := s.marshal()
	if err != nil {
		m.log.Error().Err(err).Str("service_id", s.ID).Msg("failed to encode service")
		return
	}
	if err := m.table.Put([]byte(s.ID), data); err != nil {
		m.log.Error().Err(err).Str("service_id", s.ID).Msg("failed to persist service")
	}
}

// Add is an idempotent upsert by id (§4.2). Persistence failures are logged
// and dropped; the in-memory cache remains authoritative until restart.
func (m *ServiceManager) Add(id, privateIP string, httpPort int, now time.Time) {
	existing, ok := m.cache.Load(id)
	if !ok {
		svc := newService(id, privateIP, httpPort, now.Unix())
		m.cache.Store(id, svc)
		m.persist(svc)
		m.version.Add(1)
		return
	}

	if existing.PrivateIP == privateIP && existing.HTTPPort == httpPort {
		existing.SetActiveAt(now.Unix())
		m.persist(existing)
		return
	}

	m.log.Info().
		Str("service_id", id).
		Str("old_endpoint", fmt.Sprintf("%s:%d", existing.PrivateIP, existing.HTTPPort)).
		Str("new_endpoint", fmt.Sprintf("%s:%d", privateIP, httpPort)).
		Msg("service endpoint changed")

	updated := newService(id, privateIP, httpPort, now.Unix())
	m.cache.Store(id, updated)
	m.persist(updated)
	m.version.Add(1)
}

// Remove deletes id from the cache and the backing table, if present.
func (m *ServiceManager) Remove(id string) {
	if _, ok := m.cache.Load(id); !ok {
		return
	}
	m.cache.Delete(id)
	if err := m.table.Delete([]byte(id)); err != nil {
		m.log.Error().Err(err).Str("service_id", id).Msg("failed to delete service")
	}
	m.version.Add(1)
}

// Activate refreshes the heartbeat for id, if present, and re-persists it.
// Unlike Add, this never bumps the version: a heartbeat is not an
// observable state change.
func (m *ServiceManager) Activate(id string, now time.Time) bool {
	svc, ok := m.cache.Load(id)
	if !ok {
		return false
	}
	svc.SetActiveAt(now.Unix())
	m.persist(svc)
	return true
}

// Get returns the service registered under id. A stale service is evicted
// (counting as a Remove) and reported absent.
func (m *ServiceManager) Get(id string, now time.Time) (*Service, bool) {
	svc, ok := m.cache.Load(id)
	if !ok {
		return nil, false
	}
	if svc.IsStale(now, m.staleThreshold) {
		m.Remove(id)
		return nil, false
	}
	return svc, true
}

// Iter calls f for every service in the cache, in unspecified order, until
// f returns false.
func (m *ServiceManager) Iter(f func(*Service) bool) {
	m.cache.Range(func(_ string, v *Service) bool {
		return f(v)
	})
}

// Version returns the current monotonic version counter.
func (m *ServiceManager) Version() uint32 {
	return m.version.Load()
}

// IsHealthy reports whether svc has been seen recently enough, using this
// manager's configured unhealthy threshold.
func (m *ServiceManager) IsHealthy(svc *Service, now time.Time) bool {
	return svc.IsHealthy(now, m.unhealthyThreshold)
}
