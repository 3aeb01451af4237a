// Package dedup decides whether a notification duplicates one shown recently.
//
// A notice's identity is a 64-bit xxhash over its canonicalized content and
// explicit fields, excluding volatile fields such as timestamps. Two distinct
// notices colliding on 64 bits is an accepted limitation: at dashboard volumes
// (thousands of notices per session) the probability is about n²/2⁶⁵.
package dedup

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultTTL is how long a notice identity suppresses repeats.
const DefaultTTL = 10 * time.Second

// DefaultMaxRecords bounds the remembered identities, matching the notice
// panel's default window.
const DefaultMaxRecords = 50

// DefaultVolatileFields are excluded from identity.
var DefaultVolatileFields = []string{"timestamp", "time", "ts", "seq"}

// Notice is the content the filter hashes. It mirrors the fields of a system
// notice without depending on the widget package.
type Notice struct {
	ID     string // explicit identity, if the producer has one
	Level  string
	Source string
	Text   string
	Fields map[string]string // extra fields; volatile keys are ignored
}

// Record is one remembered identity.
type Record struct {
	IdentityKey uint64
	FirstSeenAt time.Time
	TTL         time.Duration

	order uint64
}

func (r Record) expired(now time.Time) bool {
	return r.TTL > 0 && now.Sub(r.FirstSeenAt) >= r.TTL
}

// Filter remembers recently shown identities. It is safe for concurrent use.
type Filter struct {
	mu       sync.Mutex
	ttl      time.Duration
	volatile map[string]struct{}
	records  map[uint64]Record
	max      int
	nowFn    func() time.Time

	inserted   uint64
	suppressed int
}

// Option configures a Filter.
type Option func(*Filter)

// WithTTL sets how long identities are remembered. A TTL of 0 remembers them
// until they are pushed out by the record bound.
func WithTTL(ttl time.Duration) Option {
	return func(f *Filter) {
		if ttl >= 0 {
			f.ttl = ttl
		}
	}
}

// WithMaxRecords bounds how many identities are remembered. When full, the
// oldest identity is forgotten. Non-positive values are ignored.
func WithMaxRecords(n int) Option {
	return func(f *Filter) {
		if n > 0 {
			f.max = n
		}
	}
}

// WithVolatileFields replaces the set of field names excluded from identity.
func WithVolatileFields(names ...string) Option {
	return func(f *Filter) {
		f.volatile = make(map[string]struct{}, len(names))
		for _, n := range names {
			f.volatile[strings.ToLower(n)] = struct{}{}
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) {
		if now != nil {
			f.nowFn = now
		}
	}
}

// New creates a Filter.
func New(opts ...Option) *Filter {
	f := &Filter{
		ttl:     DefaultTTL,
		records: make(map[uint64]Record),
		max:     DefaultMaxRecords,
		nowFn:   time.Now,
	}
	WithVolatileFields(DefaultVolatileFields...)(f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Identity returns the identity key of n under this filter's volatile set.
func (f *Filter) Identity(n Notice) uint64 {
	var b strings.Builder
	write := func(k, v string) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte(0x1f)
	}

	if n.ID != "" {
		write("id", n.ID)
	} else {
		write("level", strings.ToLower(n.Level))
		write("source", n.Source)
		write("text", strings.TrimSpace(n.Text))
	}

	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		if _, skip := f.volatile[strings.ToLower(k)]; skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write("f."+k, n.Fields[k])
	}

	return xxhash.Sum64String(b.String())
}

// ShouldShow reports whether n should be displayed. It returns false if an
// equal identity was first seen less than TTL ago; otherwise it records n and
// returns true. Expired records are purged on every call.
func (f *Filter) ShouldShow(n Notice) bool {
	show, _ := f.Check(n)
	return show
}

// Check is ShouldShow that also returns the identity key.
func (f *Filter) Check(n Notice) (bool, uint64) {
	key := f.Identity(n)

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.nowFn()
	f.purge(now)

	if _, seen := f.records[key]; seen {
		f.suppressed++
		return false, key
	}
	if len(f.records) >= f.max {
		f.evictOldest()
	}
	f.inserted++
	f.records[key] = Record{IdentityKey: key, FirstSeenAt: now, TTL: f.ttl, order: f.inserted}
	return true, key
}

// SetMaxRecords changes the record bound, forgetting the oldest identities if
// the filter holds more. Non-positive values are ignored.
func (f *Filter) SetMaxRecords(n int) {
	if n <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.max = n
	for len(f.records) > f.max {
		f.evictOldest()
	}
}

// evictOldest drops the earliest recorded identity. Must be called with mu held.
func (f *Filter) evictOldest() {
	var (
		oldest uint64
		first  = true
		order  uint64
	)
	for k, r := range f.records {
		if first || r.order < order {
			oldest, order, first = k, r.order, false
		}
	}
	if !first {
		delete(f.records, oldest)
	}
}

func (f *Filter) purge(now time.Time) {
	for k, r := range f.records {
		if r.expired(now) {
			delete(f.records, k)
		}
	}
}

// Len returns the number of remembered identities, including expired ones not
// yet purged.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// Suppressed returns how many notices were filtered out.
func (f *Filter) Suppressed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suppressed
}

// Reset forgets every identity.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.records)
}
