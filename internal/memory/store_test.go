package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homestock/internal/intent"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestRememberAndRecall(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Remember(ctx, "111", "chan-1", []intent.Fact{
		{Category: intent.CategoryProblem, Text: "the dishwasher is broken"},
		{Category: intent.CategoryTodo, Text: "remember to buy bulbs"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Remember(ctx, "111", "chan-2", []intent.Fact{
		{Category: intent.CategoryDecision, Text: "we decided to keep the tent"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := s.Recall(ctx, "111", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "we decided to keep the tent", records[0].Text)
	assert.Equal(t, "chan-2", records[0].ChannelID)
	assert.Equal(t, "remember to buy bulbs", records[1].Text)
	assert.Equal(t, intent.CategoryProblem, records[2].Category)

	limited, err := s.Recall(ctx, "111", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, records[0], limited[0])
}

func TestRememberSkipsDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Remember(ctx, "111", "", []intent.Fact{
		{Category: intent.CategoryTodo, Text: "Call the  plumber"},
		{Category: intent.CategoryTodo, Text: "call the plumber"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Remember(ctx, "111", "", []intent.Fact{{Category: intent.CategoryTodo, Text: "CALL THE PLUMBER"}})
	require.NoError(t, err)
	assert.Zero(t, n)

	// Other users keep their own copy
	n, err = s.Remember(ctx, "222", "", []intent.Fact{{Category: intent.CategoryTodo, Text: "call the plumber"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecallIsPerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Remember(ctx, "1", "", []intent.Fact{{Category: intent.CategoryTodo, Text: "fact for user one"}})
	require.NoError(t, err)
	_, err = s.Remember(ctx, "11", "", []intent.Fact{{Category: intent.CategoryTodo, Text: "fact for user eleven"}})
	require.NoError(t, err)

	records, err := s.Recall(ctx, "1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fact for user one", records[0].Text)

	none, err := s.Recall(ctx, "999", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestForget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var facts []intent.Fact
	for i := 0; i < 4; i++ {
		facts = append(facts, intent.Fact{Category: intent.CategoryTodo, Text: fmt.Sprintf("todo number %d", i)})
	}
	_, err := s.Remember(ctx, "111", "", facts)
	require.NoError(t, err)
	_, err = s.Remember(ctx, "222", "", facts[:1])
	require.NoError(t, err)

	removed, err := s.Forget(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	records, err := s.Recall(ctx, "111", 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Forgotten text can be learned again
	n, err := s.Remember(ctx, "111", "", facts[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	other, err := s.Recall(ctx, "222", 10)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestRememberRequiresUser(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Remember(context.Background(), "", "", []intent.Fact{{Text: "anything at all"}})
	assert.Error(t, err)
}

func TestRunGCInMemory(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.RunGC())
}

func TestOnDiskStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Options{Path: dir, TTL: time.Hour})
	require.NoError(t, err)
	_, err = s.Remember(ctx, "111", "", []intent.Fact{{Category: intent.CategoryTodo, Text: "persisted fact here"}})
	require.NoError(t, err)
	require.NoError(t, s.RunGC())
	require.NoError(t, s.Close())

	reopened, err := Open(Options{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Recall(ctx, "111", 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "persisted fact here", records[0].Text)
}
