package topicmgr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxwell-dev/maxwell-master/pkg/config"
	"github.com/maxwell-dev/maxwell-master/pkg/registry"
	"github.com/maxwell-dev/maxwell-master/pkg/store"
	"github.com/maxwell-dev/maxwell-master/pkg/topicmgr"
)

func openTables(t *testing.T) (store.Table, store.Table, func() *store.BoltStore) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.OpenBoltStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	topics, err := s.Table("topics")
	require.NoError(t, err)
	info, err := s.Table("info")
	require.NoError(t, err)
	return topics, info, func() *store.BoltStore { return s }
}

func twoBackendCfgs() []config.BackendConfig {
	return []config.BackendConfig{
		{PrivateIP: "10.0.1.1", HTTPPort: 8080},
		{PrivateIP: "10.0.1.2", HTTPPort: 8080},
	}
}

func TestAssignThenLocateReturnsSameBackend(t *testing.T) {
	topics, info, _ := openTables(t)
	bm := registry.NewBackendManager(twoBackendCfgs())

	tm, err := topicmgr.NewTopicManager(topics, info, bm)
	require.NoError(t, err)

	require.NoError(t, tm.Assign("t1", "10.0.1.1:8080"))

	id, found, err := tm.Locate("t1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "10.0.1.1:8080", id)
}

func TestLocateMissReturnsNotFound(t *testing.T) {
	topics, info, _ := openTables(t)
	bm := registry.NewBackendManager(twoBackendCfgs())

	tm, err := topicmgr.NewTopicManager(topics, info, bm)
	require.NoError(t, err)

	_, found, err := tm.Locate("nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestCheckWritesChecksumWhenAbsent(t *testing.T) {
	topics, info, _ := openTables(t)
	bm := registry.NewBackendManager(twoBackendCfgs())

	_, err := topicmgr.NewTopicManager(topics, info, bm)
	require.NoError(t, err)

	v, err := info.Get([]byte("backend_checksum"))
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestBackendSetChangeTruncatesTopics(t *testing.T) {
	dir := t.TempDir()
	s, err := store.OpenBoltStore(dir)
	require.NoError(t, err)
	defer s.Close()

	topics, err := s.Table("topics")
	require.NoError(t, err)
	info, err := s.Table("info")
	require.NoError(t, err)

	bm2 := registry.NewBackendManager(twoBackendCfgs())
	tm1, err := topicmgr.NewTopicManager(topics, info, bm2)
	require.NoError(t, err)
	require.NoError(t, tm1.Assign("t1", "10.0.1.1:8080"))

	bm3 := registry.NewBackendManager([]config.BackendConfig{
		{PrivateIP: "10.0.1.1", HTTPPort: 8080},
		{PrivateIP: "10.0.1.2", HTTPPort: 8080},
		{PrivateIP: "10.0.1.3", HTTPPort: 8080},
	})
	tm2, err := topicmgr.NewTopicManager(topics, info, bm3)
	require.NoError(t, err)

	_, found, err := tm2.Locate("t1")
	require.NoError(t, err)
	require.False(t, found, "topic table must be truncated after a backend-set change")
}

func TestCheckIsIdempotentAfterInvalidation(t *testing.T) {
	dir := t.TempDir()
	s, err := store.OpenBoltStore(dir)
	require.NoError(t, err)
	defer s.Close()

	topics, err := s.Table("topics")
	require.NoError(t, err)
	info, err := s.Table("info")
	require.NoError(t, err)

	bm2 := registry.NewBackendManager(twoBackendCfgs())
	_, err = topicmgr.NewTopicManager(topics, info, bm2)
	require.NoError(t, err)

	bm3 := registry.NewBackendManager([]config.BackendConfig{
		{PrivateIP: "10.0.1.1", HTTPPort: 8080},
		{PrivateIP: "10.0.1.2", HTTPPort: 8080},
		{PrivateIP: "10.0.1.3", HTTPPort: 8080},
	})
	_, err = topicmgr.NewTopicManager(topics, info, bm3)
	require.NoError(t, err)
	tm3, err := topicmgr.NewTopicManager(topics, info, bm3)
	require.NoError(t, err)

	v, err := info.Get([]byte("backend_checksum"))
	require.NoError(t, err)
	require.Equal(t, bm3.Checksum(), be32(v))
	_ = tm3
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
