package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetOrCreate(t *testing.T) {
	store := NewStore()

	sess, created := store.GetOrCreate("CA123", "+15551234567")
	require.True(t, created)
	require.NotNil(t, sess)
	assert.Equal(t, StatusActive, sess.Status())
	assert.Equal(t, "+15551234567", sess.CallerPhone)

	// Second lookup for the same SID is a no-op returning the same session.
	again, created := store.GetOrCreate("CA123", "+15551234567")
	assert.False(t, created)
	assert.Same(t, sess, again)
	assert.Equal(t, 1, store.ActiveCount())
}

func TestStoreGetOrCreateConcurrent(t *testing.T) {
	store := NewStore()

	const goroutines = 50
	sessions := make([]*Session, goroutines)
	createdCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sess, created := store.GetOrCreate("CA-race", "+15550000000")
			mu.Lock()
			sessions[idx] = sess
			if created {
				createdCount++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	// Exactly one creation, everyone sees the same session.
	assert.Equal(t, 1, createdCount)
	for i := 1; i < goroutines; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.Equal(t, 1, store.ActiveCount())
}

func TestStoreEnd(t *testing.T) {
	store := NewStore()
	sess, _ := store.GetOrCreate("CA456", "")
	require.NoError(t, sess.Append(Turn{Role: RoleCaller, Content: "hello"}))

	ended, err := store.End("CA456")
	require.NoError(t, err)
	assert.Same(t, sess, ended)
	assert.Equal(t, StatusEnded, ended.Status())
	assert.Equal(t, 0, store.ActiveCount())

	// Ending twice fails.
	_, err = store.End("CA456")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Mutations after ENDED fail, they do not silently succeed.
	err = ended.Append(Turn{Role: RoleCaller, Content: "late"})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, 1, ended.TranscriptLen())

	// The same SID starts a fresh session afterwards.
	fresh, created := store.GetOrCreate("CA456", "")
	assert.True(t, created)
	assert.NotSame(t, ended, fresh)
	assert.Equal(t, 0, fresh.TranscriptLen())
}

func TestStoreAppendTurn(t *testing.T) {
	store := NewStore()

	err := store.AppendTurn("unknown", Turn{Role: RoleCaller, Content: "hi"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	store.GetOrCreate("CA789", "")
	require.NoError(t, store.AppendTurn("CA789", Turn{Role: RoleCaller, Content: "hi"}))

	_, err = store.End("CA789")
	require.NoError(t, err)
	err = store.AppendTurn("CA789", Turn{Role: RoleCaller, Content: "hi again"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTranscriptOrderPreserved(t *testing.T) {
	sess := New("CA-order", "")

	for i := 0; i < 20; i++ {
		role := RoleCaller
		if i%2 == 1 {
			role = RoleAgent
		}
		require.NoError(t, sess.Append(Turn{Role: role, Content: fmt.Sprintf("turn-%d", i)}))
	}

	transcript := sess.Transcript()
	require.Len(t, transcript, 20)
	for i, turn := range transcript {
		assert.Equal(t, fmt.Sprintf("turn-%d", i), turn.Content)
		assert.False(t, turn.Timestamp.IsZero())
	}

	// Transcript returns a copy; mutating it does not affect the session.
	transcript[0].Content = "mutated"
	assert.Equal(t, "turn-0", sess.Transcript()[0].Content)
}

func TestPendingTools(t *testing.T) {
	sess := New("CA-pending", "")

	calls := []ToolCall{
		{ID: "call_1", Name: "check_availability", Arguments: []byte(`{"date":"2026-09-01"}`)},
		{ID: "call_2", Name: "search_knowledge_base", Arguments: []byte(`{"query":"hours"}`)},
	}
	require.NoError(t, sess.SetPendingTools(calls))
	assert.Len(t, sess.PendingTools(), 2)

	sess.ClearPendingTools()
	assert.Empty(t, sess.PendingTools())

	require.NoError(t, sess.End())
	assert.ErrorIs(t, sess.SetPendingTools(calls), ErrSessionClosed)
}

func TestSessionTurnLockSerializes(t *testing.T) {
	sess := New("CA-serial", "")

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	sess.BeginTurn()
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.BeginTurn()
		defer sess.EndTurn()
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	sess.EndTurn()
	wg.Wait()

	assert.Equal(t, []int{1, 2}, order)
}

func TestReaperEndsIdleSessions(t *testing.T) {
	store := NewStore()
	store.GetOrCreate("CA-idle", "")

	var reaped []string
	var mu sync.Mutex
	reaper := NewReaper(store, ReaperConfig{IdleTimeout: time.Nanosecond, SweepInterval: time.Hour},
		func(_ context.Context, sess *Session) {
			mu.Lock()
			reaped = append(reaped, sess.ID)
			mu.Unlock()
		})

	time.Sleep(time.Millisecond)
	reaper.sweep(context.Background())

	assert.Equal(t, 0, store.ActiveCount())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"CA-idle"}, reaped)
}
