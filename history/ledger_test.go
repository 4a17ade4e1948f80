package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zylisp/calc/logger"
	"github.com/zylisp/calc/storage"
)

var fixedTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

// failingStore fails every operation and counts calls.
type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingStore) Get(string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "", false, errors.New("disk unavailable")
}

func (f *failingStore) Set(string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("disk unavailable")
}

func (f *failingStore) Remove(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("disk unavailable")
}

func TestAppendRoundTrip(t *testing.T) {
	store := storage.NewMemory()
	l := New(store, WithClock(fixedClock))

	appended := l.Append("2+2", "4")
	require.NoError(t, l.Close())

	got, ok := l.At(0)
	require.True(t, ok)
	assert.Equal(t, appended, got)
	assert.Equal(t, Entry{Expression: "2+2", Result: "4", At: fixedTime}, got)

	reloaded := New(store)
	defer reloaded.Close()
	require.Equal(t, 1, reloaded.Len())
	back, _ := reloaded.At(0)
	assert.Equal(t, "2+2", back.Expression)
	assert.Equal(t, "4", back.Result)
	assert.True(t, back.At.Equal(fixedTime))
}

func TestAllIsOrderedAndRestartable(t *testing.T) {
	l := New(nil)
	l.Append("1+1", "2")
	l.AppendFailure("1/0", "Error")
	l.Append("3*3", "9")

	first := slices.Collect(l.All())
	second := slices.Collect(l.All())

	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"1+1", "1/0", "3*3"}, []string{first[0].Expression, first[1].Expression, first[2].Expression})
	assert.True(t, first[1].Error)
	assert.Equal(t, "Error", first[1].Result)

	var n int
	for range l.All() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestClearIsIdempotent(t *testing.T) {
	store := storage.NewMemory()
	l := New(store)
	l.Append("1+1", "2")
	require.NoError(t, l.Sync())

	_, ok, _ := store.Get(DefaultKey)
	require.True(t, ok)

	l.Clear()
	require.NoError(t, l.Sync())
	assert.Equal(t, 0, l.Len())
	_, ok, _ = store.Get(DefaultKey)
	assert.False(t, ok)

	l.Clear()
	require.NoError(t, l.Sync())
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Entries())
	require.NoError(t, l.Close())
	assert.NoError(t, l.Err())
}

func TestMaxEntries(t *testing.T) {
	l := New(nil, WithMaxEntries(2))
	l.Append("1", "1")
	l.Append("2", "2")
	l.Append("3", "3")

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[0].Expression)
	assert.Equal(t, "3", entries[1].Expression)
}

func TestLoadTrimsToMaxEntries(t *testing.T) {
	store := storage.NewMemory()
	raw, _ := json.Marshal([]Entry{{Expression: "a"}, {Expression: "b"}, {Expression: "c"}})
	require.NoError(t, store.Set("custom", string(raw)))

	l := New(store, WithKey("custom"), WithMaxEntries(2))
	defer l.Close()
	require.Equal(t, 2, l.Len())
	e, _ := l.At(0)
	assert.Equal(t, "b", e.Expression)
}

func TestStorageFailureIsReportedOnce(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWriter(logger.LevelWarn, &buf, "history")
	store := &failingStore{}

	l := New(store, WithLogger(log))
	l.Append("1+1", "2")
	l.Append("2+2", "4")
	l.Clear()
	l.Append("3+3", "6")
	require.Error(t, l.Sync())
	assert.ErrorIs(t, l.Close(), ErrStorage)

	assert.Equal(t, 1, l.Len(), "ledger keeps working in memory")
	assert.ErrorIs(t, l.Err(), ErrStorage)
	assert.Equal(t, 1, strings.Count(buf.String(), "continuing in memory"))
}

func TestCorruptStoredHistory(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.Set(DefaultKey, "{broken"))

	var buf bytes.Buffer
	l := New(store, WithLogger(logger.NewWriter(logger.LevelWarn, &buf, "")))
	defer l.Close()

	assert.Equal(t, 0, l.Len())
	assert.ErrorIs(t, l.Err(), ErrStorage)

	l.Append("1+2", "3")
	require.NoError(t, l.Sync())
	raw, ok, _ := store.Get(DefaultKey)
	require.True(t, ok)
	assert.Contains(t, raw, `"expression":"1+2"`)

	kept, ok, _ := store.Get(DefaultKey + UnreadableSuffix)
	require.True(t, ok, "unreadable value is kept before it is replaced")
	assert.Equal(t, "{broken", kept)
}

func TestReadOnlyUseLeavesStoreUntouched(t *testing.T) {
	const bad = `[{"expression":"1+1","result":"2","at":"not-a-time"}]`
	good, _ := json.Marshal([]Entry{{Expression: "2*3", Result: "6", At: fixedTime}})

	tests := []struct {
		name  string
		value string
	}{
		{"undecodable", bad},
		{"readable", string(good)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemory()
			require.NoError(t, store.Set(DefaultKey, tt.value))

			l := New(store)
			_ = l.Entries()
			require.NoError(t, l.Sync())
			require.NoError(t, l.Close())

			raw, ok, err := store.Get(DefaultKey)
			require.NoError(t, err)
			require.True(t, ok, "stored history must survive a session that changed nothing")
			assert.Equal(t, tt.value, raw)
			_, ok, _ = store.Get(DefaultKey + UnreadableSuffix)
			assert.False(t, ok)
		})
	}
}

// flakyStore fails reads until healed.
type flakyStore struct {
	*storage.Memory
	mu     sync.Mutex
	broken bool
}

func (f *flakyStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	broken := f.broken
	f.mu.Unlock()
	if broken {
		return "", false, errors.New("temporarily unavailable")
	}
	return f.Memory.Get(key)
}

func TestFailedReadIsKeptBeforeOverwrite(t *testing.T) {
	store := &flakyStore{Memory: storage.NewMemory(), broken: true}
	require.NoError(t, store.Memory.Set(DefaultKey, `[{"expression":"9-1","result":"8"}]`))

	l := New(store)
	assert.Equal(t, 0, l.Len())
	assert.ErrorIs(t, l.Err(), ErrStorage)

	// still unreadable: the append must not replace what is stored
	l.Append("1+1", "2")
	assert.ErrorIs(t, l.Sync(), ErrStorage)
	raw, _, _ := store.Memory.Get(DefaultKey)
	assert.Contains(t, raw, "9-1")

	store.mu.Lock()
	store.broken = false
	store.mu.Unlock()
	require.NoError(t, l.Close())

	raw, _, _ = store.Memory.Get(DefaultKey)
	assert.Contains(t, raw, "1+1")
	kept, ok, _ := store.Memory.Get(DefaultKey + UnreadableSuffix)
	require.True(t, ok)
	assert.Contains(t, kept, "9-1")
}

func TestConcurrentAppendsPersistLatestState(t *testing.T) {
	store := storage.NewMemory()
	l := New(store)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append("1+1", "2")
		}()
	}
	wg.Wait()
	require.NoError(t, l.Close())

	raw, ok, err := store.Get(DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	var saved []Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &saved))
	assert.Len(t, saved, 50)
}

func TestAppendAfterClose(t *testing.T) {
	store := storage.NewMemory()
	l := New(store)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	l.Append("4/2", "2")
	raw, ok, _ := store.Get(DefaultKey)
	require.True(t, ok)
	assert.Contains(t, raw, "4/2")
}
