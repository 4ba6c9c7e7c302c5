package oplog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(i int) domain.LogEntry {
	return domain.LogEntry{
		Timestamp: time.Unix(int64(i), 0),
		Operation: domain.OpQuery,
		Success:   true,
		Message:   fmt.Sprintf("entry %d", i),
	}
}

func TestStore_DefaultCapacity(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, domain.MaxLogs, s.Cap())
}

func TestStore_NewestFirst(t *testing.T) {
	s := NewStore(10)
	for i := 1; i <= 3; i++ {
		s.Append(entry(i))
	}

	got := s.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, "entry 3", got[0].Message)
	assert.Equal(t, "entry 2", got[1].Message)
	assert.Equal(t, "entry 1", got[2].Message)
}

func TestStore_EvictsOldest(t *testing.T) {
	s := NewStore(domain.MaxLogs)
	total := domain.MaxLogs + 37
	for i := 1; i <= total; i++ {
		s.Append(entry(i))
	}

	got := s.Entries()
	require.Len(t, got, domain.MaxLogs)
	assert.Equal(t, domain.MaxLogs, s.Len())

	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("entry %d", total-i), e.Message)
	}
	for i := 1; i < total-domain.MaxLogs+1; i++ {
		for _, e := range got {
			assert.NotEqual(t, fmt.Sprintf("entry %d", i), e.Message)
		}
	}
}

func TestStore_EntriesIsSnapshot(t *testing.T) {
	s := NewStore(5)
	s.Append(entry(1))

	snap := s.Entries()
	snap[0].Message = "tampered"

	assert.Equal(t, "entry 1", s.Entries()[0].Message)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(5)
	for i := 1; i <= 7; i++ {
		s.Append(entry(i))
	}
	s.Clear()

	assert.Empty(t, s.Entries())
	assert.Equal(t, 0, s.Len())

	s.Append(entry(8))
	got := s.Entries()
	require.Len(t, got, 1)
	assert.Equal(t, "entry 8", got[0].Message)
}

func TestStore_ConcurrentAppend(t *testing.T) {
	s := NewStore(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Append(entry(i))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, s.Entries(), 50)
}

type captureSink struct {
	mu      sync.Mutex
	entries []domain.LogEntry
}

func (c *captureSink) Write(_ context.Context, e domain.LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func (c *captureSink) Close() error { return nil }

func TestRecorder_FansOut(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := &captureSink{}
	store := NewStore(10)
	rec := NewRecorder(store, logger, sink)

	rec.Record(context.Background(), domain.LogEntry{
		Operation: domain.OpTransaction,
		Success:   false,
		Message:   "duplicate key",
	})

	require.Len(t, store.Entries(), 1)
	assert.Equal(t, domain.OpTransaction, store.Entries()[0].Operation)
	require.Len(t, sink.entries, 1)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "TRANSACTION")
}

func TestRecorder_SuccessAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	rec := NewRecorder(NewStore(10), logger, nil)

	rec.Record(context.Background(), domain.LogEntry{
		Operation: domain.OpCache,
		Success:   true,
		Message:   "query cache cleared",
	})

	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "query cache cleared")
}

func TestRecorder_NilSink(t *testing.T) {
	rec := NewRecorder(NewStore(1), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	rec.Record(context.Background(), entry(1))
	assert.Equal(t, 1, rec.Store().Len())
}
