package registry

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/maxwell-dev/maxwell-master/pkg/config"
	"github.com/maxwell-dev/maxwell-master/pkg/shardmap"
)

// Frontend is a pre-declared edge gateway instance. It is never persisted;
// it is rebuilt from configuration at start-up and its only mutable field is
// the heartbeat timestamp.
type Frontend struct {
	ID        string
	Domain    string
	PublicIP  string
	PrivateIP string
	HTTPPort  int
	HTTPSPort int

	activeAt atomic.Int64 // unix seconds
}

func (f *Frontend) ActiveAt() int64     { return f.activeAt.Load() }
func (f *Frontend) SetActiveAt(t int64) { f.activeAt.Store(t) }

// FrontendManager is the frozen, configuration-sourced registry of
// frontends. Frontends are never removed at runtime.
type FrontendManager struct {
	frontends *shardmap.Map[*Frontend]
	ids       []string
}

// NewFrontendManager builds the registry from static configuration.
func NewFrontendManager(cfgs []config.FrontendConfig) *FrontendManager {
	m := &FrontendManager{frontends: shardmap.New[*Frontend]()}
	now := time.Now().Unix()
	for _, c := range cfgs {
		f := &Frontend{
			ID:        c.ID(),
			Domain:    c.Domain,
			PublicIP:  c.PublicIP,
			PrivateIP: c.PrivateIP,
			HTTPPort:  c.HTTPPort,
			HTTPSPort: c.HTTPSPort,
		}
		f.SetActiveAt(now)
		m.frontends.Store(f.ID, f)
		m.ids = append(m.ids, f.ID)
	}
	return m
}

// Activate refreshes the heartbeat for id. It reports whether id is known.
func (m *FrontendManager) Activate(id string, now time.Time) bool {
	f, ok := m.frontends.Load(id)
	if !ok {
		return false
	}
	f.SetActiveAt(now.Unix())
	return true
}

// Get returns the frontend registered under id, if any.
func (m *FrontendManager) Get(id string) (*Frontend, bool) {
	return m.frontends.Load(id)
}

// Pick selects one frontend uniformly at random from the full set. It
// returns false only if the set is empty.
func (m *FrontendManager) Pick() (*Frontend, bool) {
	if len(m.ids) == 0 {
		return nil, false
	}
	id := m.ids[rand.Intn(len(m.ids))]
	return m.frontends.Load(id)
}

// Iter calls f for every frontend until f returns false.
func (m *FrontendManager) Iter(f func(*Frontend) bool) {
	for _, id := range m.ids {
		fe, ok := m.frontends.Load(id)
		if !ok {
			continue
		}
		if !f(fe) {
			return
		}
	}
}
