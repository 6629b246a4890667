package matchmaking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	redis_models "github.com/pedrocchii/birdersplace/models/redis"
	"github.com/pedrocchii/birdersplace/services/match"
	"github.com/pedrocchii/birdersplace/services/redis"
	redis_utils "github.com/pedrocchii/birdersplace/services/redis/utils"
	"github.com/pedrocchii/birdersplace/services/sourcing"
)

// The queue tests run against a real Redis on localhost:6379 (test DB 1)
// and are skipped when none is reachable.

func setupQueueTest(t *testing.T) (*Service, *redis.RedisClient, func()) {
	t.Helper()
	rc, err := redis.InitRedis("localhost:6379", 1)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	// unreachable sourcing endpoint so background round sourcing never
	// hits the live API from tests
	matches := match.NewService(rc, sourcing.NewClient("http://127.0.0.1:1"))
	svc := NewService(rc, matches)

	clearKeys := func() {
		keys := []string{redis_utils.FormatQueueIndexKey()}
		for i := 0; i < 10; i++ {
			keys = append(keys, redis_utils.FormatQueueEntryKey(fmt.Sprintf("queue-test-%02d", i)))
		}
		_ = rc.CleanupKeys(keys)
	}
	clearKeys() // start from a clean slate in case a previous run died

	cleanup := func() {
		clearKeys()
		_ = redis.CloseRedis(rc)
	}
	return svc, rc, cleanup
}

type recordingNotifier struct {
	found     map[string]string // uid -> match id
	positions map[string]int    // uid -> last broadcast position
}

func (n *recordingNotifier) MatchFound(uid string, m *redis_models.DuelMatch) {
	if n.found == nil {
		n.found = map[string]string{}
	}
	n.found[uid] = m.ID
}

func (n *recordingNotifier) QueueUpdate(uid string, position, size int) {
	if n.positions == nil {
		n.positions = map[string]int{}
	}
	n.positions[uid] = position
}

func TestEnqueueAndCancel(t *testing.T) {
	svc, rc, cleanup := setupQueueTest(t)
	defer cleanup()

	entry, err := svc.Enqueue("queue-test-00", "Alice")
	assert.NoError(t, err)
	assert.Equal(t, redis_models.QueueStatusWaiting, entry.Status)

	// duplicate enqueue is rejected
	_, err = svc.Enqueue("queue-test-00", "Alice")
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	err = svc.Cancel("queue-test-00")
	assert.NoError(t, err)

	_, err = rc.GetQueueEntry("queue-test-00")
	assert.ErrorIs(t, err, redis.ErrNotFound)
}

func TestEnqueuePairsOldestFirst(t *testing.T) {
	svc, rc, cleanup := setupQueueTest(t)
	defer cleanup()

	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)

	_, err := svc.Enqueue("queue-test-01", "Alice")
	assert.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // distinct enqueue timestamps
	_, err = svc.Enqueue("queue-test-02", "Bob")
	assert.NoError(t, err)

	first, err := rc.GetQueueEntry("queue-test-01")
	assert.NoError(t, err)
	second, err := rc.GetQueueEntry("queue-test-02")
	assert.NoError(t, err)

	assert.Equal(t, redis_models.QueueStatusMatched, first.Status)
	assert.Equal(t, redis_models.QueueStatusMatched, second.Status)
	assert.Equal(t, first.MatchID, second.MatchID)
	assert.Equal(t, "queue-test-01", second.OpponentUID)
	assert.Equal(t, "Alice", second.OpponentNickname)

	m, err := rc.GetDuelMatch(first.MatchID)
	assert.NoError(t, err)
	assert.True(t, m.Matchmaking)
	assert.Len(t, m.Players, 2)

	assert.Equal(t, m.ID, notifier.found["queue-test-01"])
	assert.Equal(t, m.ID, notifier.found["queue-test-02"])

	_ = rc.DeleteDuelMatch(m.ID)
}

func TestHeartbeatKeepsEntryFresh(t *testing.T) {
	svc, rc, cleanup := setupQueueTest(t)
	defer cleanup()

	_, err := svc.Enqueue("queue-test-03", "Carol")
	assert.NoError(t, err)

	before, err := rc.GetQueueEntry("queue-test-03")
	assert.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	err = svc.Heartbeat("queue-test-03")
	assert.NoError(t, err)

	after, err := rc.GetQueueEntry("queue-test-03")
	assert.NoError(t, err)
	assert.True(t, after.LastSeen.After(before.LastSeen))
}

func TestSweepEvictsStaleEntries(t *testing.T) {
	svc, rc, cleanup := setupQueueTest(t)
	defer cleanup()

	// an entry whose heartbeat is far in the past
	stale := &redis_models.QueueEntry{
		UID:       "queue-test-04",
		Nickname:  "Ghost",
		Status:    redis_models.QueueStatusWaiting,
		CreatedAt: time.Now().Add(-2 * time.Minute),
		LastSeen:  time.Now().Add(-2 * time.Minute),
	}
	assert.NoError(t, rc.SaveQueueEntry(stale))

	svc.Sweep()

	_, err := rc.GetQueueEntry("queue-test-04")
	assert.ErrorIs(t, err, redis.ErrNotFound)
}

func TestSweepPairsWaitingPool(t *testing.T) {
	svc, rc, cleanup := setupQueueTest(t)
	defer cleanup()

	// two fresh entries written directly, as if both pairing attempts
	// had raced and lost
	now := time.Now()
	for i, uid := range []string{"queue-test-05", "queue-test-06"} {
		entry := &redis_models.QueueEntry{
			UID:       uid,
			Nickname:  fmt.Sprintf("Player %d", i),
			Status:    redis_models.QueueStatusWaiting,
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
			LastSeen:  now,
		}
		assert.NoError(t, rc.SaveQueueEntry(entry))
	}

	svc.Sweep()

	first, err := rc.GetQueueEntry("queue-test-05")
	assert.NoError(t, err)
	second, err := rc.GetQueueEntry("queue-test-06")
	assert.NoError(t, err)
	assert.Equal(t, redis_models.QueueStatusMatched, first.Status)
	assert.Equal(t, redis_models.QueueStatusMatched, second.Status)
	assert.Equal(t, first.MatchID, second.MatchID)

	_ = rc.DeleteDuelMatch(first.MatchID)
}

func TestAcknowledgeClearsMatchedEntry(t *testing.T) {
	svc, rc, cleanup := setupQueueTest(t)
	defer cleanup()

	entry := &redis_models.QueueEntry{
		UID:       "queue-test-07",
		Status:    redis_models.QueueStatusMatched,
		MatchID:   "some-match",
		CreatedAt: time.Now(),
		LastSeen:  time.Now(),
	}
	assert.NoError(t, rc.SaveQueueEntry(entry))

	assert.NoError(t, svc.Acknowledge("queue-test-07"))

	_, err := rc.GetQueueEntry("queue-test-07")
	assert.ErrorIs(t, err, redis.ErrNotFound)
}
