// Package topicmgr assigns each topic to exactly one backend and keeps that
// assignment durable until the configured backend set changes.
package topicmgr

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog"

	"github.com/maxwell-dev/maxwell-master/pkg/log"
	"github.com/maxwell-dev/maxwell-master/pkg/metrics"
	"github.com/maxwell-dev/maxwell-master/pkg/registry"
	"github.com/maxwell-dev/maxwell-master/pkg/store"
)

const (
	// Cache capacity: ristretto bounds the cache by total cost only. Each
	// entry is set with cost weight(key, val), its key+value byte length,
	// against a budget of cacheMaxCostByte (640,000); the number of entries
	// has no separate cap. cacheMaxItems sizes the admission counters and the
	// cost budget.
	cacheMaxItems    = 10000
	cacheMaxCostByte = cacheMaxItems * 64

	infoChecksumKey = "backend_checksum"
)

// TopicManager maps topics to backend ids, backed by a bounded in-memory
// cache (ristretto, cost-weighted) and a durable table, with invalidation
// keyed off the backend-set checksum (§4.6).
type TopicManager struct {
	cache      *ristretto.Cache
	topics     store.Table
	info       store.Table
	backendMgr *registry.BackendManager

	log zerolog.Logger
}

// NewTopicManager opens the manager and runs check() once against the
// current backend-set checksum, exactly as at construction time in the
// original (the cache is necessarily empty at this point).
func NewTopicManager(topics, info store.Table, backendMgr *registry.BackendManager) (*TopicManager, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheMaxItems * 10,
		MaxCost:     cacheMaxCostByte,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create topic cache: %w", err)
	}

	m := &TopicManager{
		cache:      cache,
		topics:     topics,
		info:       info,
		backendMgr: backendMgr,
		log:        log.WithComponent("topic_mgr"),
	}

	if err := m.check(); err != nil {
		return nil, err
	}
	return m, nil
}

// check compares the on-disk backend-set checksum against the current one
// computed from configuration. Absent: write it. Different: log, overwrite,
// and truncate the topic table, since every existing assignment may now be
// stale. Same: no-op.
func (m *TopicManager) check() error {
	current := m.backendMgr.Checksum()

	stored, err := m.info.Get([]byte(infoChecksumKey))
	if err != nil {
		return fmt.Errorf("read backend checksum: %w", err)
	}

	if stored == nil {
		return m.writeChecksum(current)
	}

	if binary.BigEndian.Uint32(stored) == current {
		return nil
	}

	m.log.Info().
		Uint32("old_checksum", binary.BigEndian.Uint32(stored)).
		Uint32("new_checksum", current).
		Msg("backend set changed, invalidating topic assignments")

	if err := m.topics.Truncate(); err != nil {
		return fmt.Errorf("truncate topics table: %w", err)
	}
	metrics.TopicCacheInvalidationsTotal.Inc()
	return m.writeChecksum(current)
}

func (m *TopicManager) writeChecksum(checksum uint32) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, checksum)
	if err := m.info.Put([]byte(infoChecksumKey), buf); err != nil {
		return fmt.Errorf("write backend checksum: %w", err)
	}
	return nil
}

func weight(key, val string) int64 {
	return int64(len(key) + len(val))
}

// Assign writes through: the cache is updated and the assignment is
// persisted immediately.
func (m *TopicManager) Assign(topic, backendID string) error {
	if err := m.topics.Put([]byte(topic), []byte(backendID)); err != nil {
		return fmt.Errorf("persist topic assignment: %w", err)
	}
	m.cache.Set(topic, backendID, weight(topic, backendID))
	m.cache.Wait()
	return nil
}

// Locate returns the backend id assigned to topic. A cache hit returns
// immediately; a miss reads the durable table and populates the cache on
// hit. The boolean return distinguishes "not assigned" from an error.
func (m *TopicManager) Locate(topic string) (string, bool, error) {
	if v, ok := m.cache.Get(topic); ok {
		return v.(string), true, nil
	}

	val, err := m.topics.Get([]byte(topic))
	if err != nil {
		return "", false, fmt.Errorf("read topic assignment: %w", err)
	}
	if val == nil {
		return "", false, nil
	}

	backendID := string(val)
	m.cache.Set(topic, backendID, weight(topic, backendID))
	return backendID, true, nil
}
