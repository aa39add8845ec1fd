package registry

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/maxwell-dev/maxwell-master/pkg/config"
	"github.com/maxwell-dev/maxwell-master/pkg/shardmap"
)

// Backend is a pre-declared topic-sharded backend instance. Like Frontend,
// it is never persisted; membership is frozen at start-up.
type Backend struct {
	ID        string
	PrivateIP string
	HTTPPort  int
	Checksum  uint32

	activeAt atomic.Int64 // unix seconds
}

func (b *Backend) ActiveAt() int64     { return b.activeAt.Load() }
func (b *Backend) setActiveAt(t int64) { b.activeAt.Store(t) }

// BackendManager is the frozen, configuration-sourced registry of backends.
type BackendManager struct {
	backends      *shardmap.Map[*Backend]
	ids           []string // sorted ascending, frozen
	backendSetSHA uint32
}

// NewBackendManager builds the registry from static configuration and
// computes the immutable backend-set checksum required by §3/§8.3.
func NewBackendManager(cfgs []config.BackendConfig) *BackendManager {
	m := &BackendManager{backends: shardmap.New[*Backend]()}
	now := time.Now().Unix()

	perBackendChecksums := make([]string, 0, len(cfgs))
	for _, c := range cfgs {
		id := c.ID()
		checksum := backendChecksum(id, c.PrivateIP, c.HTTPPort)
		b := &Backend{
			ID:        id,
			PrivateIP: c.PrivateIP,
			HTTPPort:  c.HTTPPort,
			Checksum:  checksum,
		}
		b.setActiveAt(now)
		m.backends.Store(id, b)
		m.ids = append(m.ids, id)
		perBackendChecksums = append(perBackendChecksums, fmt.Sprintf("%d", checksum))
	}
	sort.Strings(m.ids)
	sort.Strings(perBackendChecksums)

	m.backendSetSHA = crc32.ChecksumIEEE([]byte(strings.Join(perBackendChecksums, ",")))
	return m
}

func backendChecksum(id, privateIP string, httpPort int) uint32 {
	s := fmt.Sprintf("%s|%s|%d", id, privateIP, httpPort)
	return crc32.ChecksumIEEE([]byte(s))
}

// Checksum returns the precomputed, immutable backend-set checksum.
func (m *BackendManager) Checksum() uint32 {
	return m.backendSetSHA
}

// Activate refreshes the heartbeat for id. It reports whether id is known.
func (m *BackendManager) Activate(id string, now time.Time) bool {
	b, ok := m.backends.Load(id)
	if !ok {
		return false
	}
	b.setActiveAt(now.Unix())
	return true
}

// Get returns the backend registered under id, if any.
func (m *BackendManager) Get(id string) (*Backend, bool) {
	return m.backends.Load(id)
}

// Iter calls f for every backend in id order until f returns false.
func (m *BackendManager) Iter(f func(*Backend) bool) {
	for _, id := range m.ids {
		b, ok := m.backends.Load(id)
		if !ok {
			continue
		}
		if !f(b) {
			return
		}
	}
}

// PickWith applies f to the sorted, frozen id list and returns the backend
// at the index f chooses. f is expected to be deterministic (e.g. a stable
// hash of a topic string, mod len(ids)) so that the same input always picks
// the same backend across restarts, as required by §8.6.
func (m *BackendManager) PickWith(f func(ids []string) int) (*Backend, bool) {
	if len(m.ids) == 0 {
		return nil, false
	}
	idx := f(m.ids)
	if idx < 0 || idx >= len(m.ids) {
		return nil, false
	}
	return m.backends.Load(m.ids[idx])
}
