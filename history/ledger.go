// Package history keeps the append-only log of committed evaluations and
// persists it through a key-value store.
//
// Persistence is fire-and-forget: mutations return immediately and a
// single background writer saves the latest committed state. Only Append
// and Clear cause a save; a ledger that was only read never writes. Storage
// failures never stop the ledger; it keeps working in memory and the
// first failure is logged once and kept for Err.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/zylisp/calc/logger"
)

// DefaultKey is the storage key the ledger is saved under.
const DefaultKey = "calc-history"

// UnreadableSuffix is appended to the key to keep a stored value the
// ledger could not load. The copy is made before the first save replaces
// the original.
const UnreadableSuffix = ".unreadable"

// ErrStorage wraps every persistence failure reported by the ledger.
var ErrStorage = errors.New("history storage failure")

// Entry is one committed evaluation. Entries are never modified after
// they are appended.
type Entry struct {
	Expression string    `json:"expression"`
	Result     string    `json:"result"`
	Error      bool      `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Storage is the key-value contract used for persistence.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMaxEntries caps the ledger length; the oldest entries are dropped
// first. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxEntries = n
		}
	}
}

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(l *Ledger) {
		l.key = key
	}
}

// WithLogger sets the logger used to report storage failures.
func WithLogger(log *logger.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger is the ordered history of evaluations. It is safe for concurrent
// use.
type Ledger struct {
	mu         sync.RWMutex
	entries    []Entry
	closed     bool
	dirty      bool
	key        string
	maxEntries int
	now        func() time.Time

	store   Storage
	log     *logger.Logger
	writeMu sync.Mutex
	pending chan struct{}
	wg      sync.WaitGroup
	// unreadable is set when load failed; the stored value is copied
	// aside before it is first overwritten. Guarded by writeMu.
	unreadable bool

	errOnce sync.Once
	errMu   sync.Mutex
	err     error
}

// New creates a ledger backed by store and loads any saved entries. A nil
// store keeps the ledger in memory only. Load failures are reported like
// any other storage failure and leave the ledger empty.
func New(store Storage, opts ...Option) *Ledger {
	l := &Ledger{
		key:     DefaultKey,
		now:     time.Now,
		store:   store,
		pending: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logger.Global().WithPrefix("history")
	}

	if store != nil {
		l.load()
		l.wg.Add(1)
		go l.writer()
	}
	return l
}

func (l *Ledger) load() {
	raw, ok, err := l.store.Get(l.key)
	if err != nil {
		l.unreadable = true
		l.reportFailure(fmt.Errorf("%w: load: %v", ErrStorage, err))
		return
	}
	if !ok || raw == "" {
		return
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.unreadable = true
		l.reportFailure(fmt.Errorf("%w: decode: %v", ErrStorage, err))
		return
	}
	l.entries = l.trim(entries)
	l.log.Debug("loaded %d entries", len(l.entries))
}

// Append adds a successful evaluation at the tail and schedules a save.
func (l *Ledger) Append(expression, result string) Entry {
	return l.add(Entry{Expression: expression, Result: result})
}

// AppendFailure records an evaluation that failed; marker is what the
// user was shown in place of a result.
func (l *Ledger) AppendFailure(expression, marker string) Entry {
	return l.add(Entry{Expression: expression, Result: marker, Error: true})
}

func (l *Ledger) add(e Entry) Entry {
	e.At = l.now()
	l.mu.Lock()
	l.entries = l.trim(append(l.entries, e))
	l.dirty = true
	l.mu.Unlock()
	l.schedule()
	return e
}

// trim drops the oldest entries beyond maxEntries.
func (l *Ledger) trim(entries []Entry) []Entry {
	if l.maxEntries > 0 && len(entries) > l.maxEntries {
		kept := make([]Entry, l.maxEntries)
		copy(kept, entries[len(entries)-l.maxEntries:])
		return kept
	}
	return entries
}

// Clear empties the ledger and removes it from storage. Clearing an empty
// ledger is a no-op apart from the storage removal.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.dirty = true
	l.mu.Unlock()
	l.schedule()
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// At returns the entry at index i, oldest first.
func (l *Ledger) At(i int) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[i], true
}

// All returns the entries in insertion order. The sequence reads the
// ledger lazily and can be ranged over any number of times.
func (l *Ledger) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := 0; ; i++ {
			e, ok := l.At(i)
			if !ok || !yield(e) {
				return
			}
		}
	}
}

// Entries returns a copy of all entries.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Err returns the first storage failure, if any.
func (l *Ledger) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

// Sync saves any unsaved change synchronously.
func (l *Ledger) Sync() error {
	if l.store == nil {
		return nil
	}
	return l.save()
}

// Close stops the background writer, then saves any change it had not
// written yet.
func (l *Ledger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	close(l.pending)
	l.wg.Wait()
	return l.save()
}

func (l *Ledger) schedule() {
	if l.store == nil {
		return
	}
	l.mu.RLock()
	closed := l.closed
	if !closed {
		select {
		case l.pending <- struct{}{}:
		default:
			// a save is already queued and will pick up this change
		}
	}
	l.mu.RUnlock()

	if closed {
		l.save()
	}
}

func (l *Ledger) writer() {
	defer l.wg.Done()
	for range l.pending {
		l.save()
	}
}

// save writes the latest snapshot if anything changed since the last
// successful save. Snapshots are taken under writeMu so stores only ever
// see states in commit order.
func (l *Ledger) save() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.Lock()
	if !l.dirty {
		l.mu.Unlock()
		return nil
	}
	l.dirty = false
	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	l.mu.Unlock()

	err := l.keepUnreadable()
	if err == nil {
		if len(entries) == 0 {
			err = l.store.Remove(l.key)
		} else {
			var raw []byte
			raw, err = json.Marshal(entries)
			if err == nil {
				err = l.store.Set(l.key, string(raw))
			}
		}
	}
	if err != nil {
		l.mu.Lock()
		l.dirty = true
		l.mu.Unlock()
		err = fmt.Errorf("%w: save: %v", ErrStorage, err)
		l.reportFailure(err)
		return err
	}
	return nil
}

// keepUnreadable copies a value that failed to load to key+UnreadableSuffix.
// Until that copy succeeds the original is never overwritten.
func (l *Ledger) keepUnreadable() error {
	if !l.unreadable {
		return nil
	}
	raw, ok, err := l.store.Get(l.key)
	if err != nil {
		return fmt.Errorf("read before overwrite: %w", err)
	}
	if ok && raw != "" {
		backup := l.key + UnreadableSuffix
		if err := l.store.Set(backup, raw); err != nil {
			return fmt.Errorf("keep unreadable history: %w", err)
		}
		l.log.Warn("unreadable history kept under %q", backup)
	}
	l.unreadable = false
	return nil
}

func (l *Ledger) reportFailure(err error) {
	l.errOnce.Do(func() {
		l.errMu.Lock()
		l.err = err
		l.errMu.Unlock()
		l.log.Warn("continuing in memory: %v", err)
	})
}
