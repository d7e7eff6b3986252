package sparsearray

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/fulldump/bigdata/utils"
)

var (
	ErrBadWindowSize = errors.New("window size must be positive")
	ErrRangeMismatch = errors.New("range length does not match provided objects")
	ErrStale         = errors.New("request belongs to a previous generation")
)

// Status describes the outcome of reading an index
type Status int

const (
	Loaded Status = iota
	Pending
	OutOfBounds
)

func (s Status) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Pending:
		return "pending"
	case OutOfBounds:
		return "out-of-bounds"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Request is what the array hands to its delegate when a window has to be
// fetched. Generation identifies the array state the request was issued for.
type Request struct {
	Range
	Generation uint64
}

// Delegate resolves windows on behalf of a SparseArray. It is called without
// any array lock held, so it can call back into the array.
type Delegate interface {
	SparseArrayDidRequestRange(sa *SparseArray, req Request)
	SparseArrayDidReset(sa *SparseArray)
}

type Options struct {
	WindowSize int
	Query      any
	Delegate   Delegate
}

type slot struct {
	I   int
	Key string
}

// SparseArray is a logically unbounded sequence of store keys that is only
// materialized where windows have been fetched.
type SparseArray struct {
	mutex      *sync.RWMutex
	windowSize int
	query      any
	delegate   Delegate

	length      int
	lengthKnown bool
	slots       *btree.BTreeG[slot]
	pending     map[int]struct{}
	generation  uint64
}

func New(options Options) (*SparseArray, error) {

	if options.WindowSize <= 0 {
		return nil, ErrBadWindowSize
	}

	return &SparseArray{
		mutex:      &sync.RWMutex{},
		windowSize: options.WindowSize,
		query:      options.Query,
		delegate:   options.Delegate,
		slots:      newSlots(),
		pending:    map[int]struct{}{},
	}, nil
}

func newSlots() *btree.BTreeG[slot] {
	return btree.NewG(32, func(a, b slot) bool {
		return a.I < b.I
	})
}

func (sa *SparseArray) WindowSize() int {
	return sa.windowSize
}

func (sa *SparseArray) Query() any {
	return sa.query
}

// Length returns the total length and whether it is known yet.
func (sa *SparseArray) Length() (int, bool) {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()
	return sa.length, sa.lengthKnown
}

func (sa *SparseArray) Generation() uint64 {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()
	return sa.generation
}

func (sa *SparseArray) outOfBounds(i int) bool {
	return i < 0 || (sa.lengthKnown && i >= sa.length)
}

// RequestIndex makes sure the window holding i is loaded or being loaded.
// At most one fetch per window is in flight at any time.
func (sa *SparseArray) RequestIndex(i int) {

	sa.mutex.Lock()
	if sa.delegate == nil || sa.outOfBounds(i) {
		sa.mutex.Unlock()
		return
	}
	if sa.slots.Has(slot{I: i}) {
		sa.mutex.Unlock()
		return
	}
	w := WindowStart(i, sa.windowSize)
	if _, inFlight := sa.pending[w]; inFlight {
		sa.mutex.Unlock()
		return
	}
	sa.pending[w] = struct{}{}
	req := Request{
		Range:      Range{Start: w, Length: sa.windowSize},
		Generation: sa.generation,
	}
	delegate := sa.delegate
	sa.mutex.Unlock()

	delegate.SparseArrayDidRequestRange(sa, req)
}

// ReadIndex returns the store key at i. Reading an index that is in bounds
// but not loaded yet has a side effect: it calls RequestIndex(i), which is
// how iterating the array drives paging.
func (sa *SparseArray) ReadIndex(i int) (string, Status) {

	sa.mutex.RLock()
	if sa.outOfBounds(i) {
		sa.mutex.RUnlock()
		return "", OutOfBounds
	}
	s, found := sa.slots.Get(slot{I: i})
	sa.mutex.RUnlock()

	if found {
		return s.Key, Loaded
	}

	sa.RequestIndex(i)

	return "", Pending
}

// ProvideObjectsInRange fills r with keys, in order.
func (sa *SparseArray) ProvideObjectsInRange(r Range, keys []string) error {

	if !r.Valid() || len(keys) != r.Length {
		return fmt.Errorf("%w: range %s, %d objects", ErrRangeMismatch, r, len(keys))
	}

	sa.mutex.Lock()
	defer sa.mutex.Unlock()

	sa.provide(r.Start, keys)

	return nil
}

func (sa *SparseArray) provide(start int, keys []string) {
	for j, key := range keys {
		sa.slots.ReplaceOrInsert(slot{I: start + j, Key: key})
	}
}

// ProvideLength sets the total length. Last write wins.
func (sa *SparseArray) ProvideLength(n int) {
	if n < 0 {
		return
	}

	sa.mutex.Lock()
	sa.length = n
	sa.lengthKnown = true
	sa.mutex.Unlock()
}

// RangeRequestCompleted clears the window holding start from the pending set,
// no matter if the fetch succeeded or not.
func (sa *SparseArray) RangeRequestCompleted(start int) {
	sa.mutex.Lock()
	delete(sa.pending, WindowStart(start, sa.windowSize))
	sa.mutex.Unlock()
}

// Deliver applies a successful fetch atomically: objects, total length and
// completion. Results for a request issued before the last Reset are dropped
// with ErrStale. More keys than the request length is ErrRangeMismatch: the
// window is released and nothing is stored.
func (sa *SparseArray) Deliver(req Request, keys []string, total int) error {

	sa.mutex.Lock()
	defer sa.mutex.Unlock()

	if req.Generation != sa.generation {
		return ErrStale
	}

	if len(keys) > req.Length {
		delete(sa.pending, WindowStart(req.Start, sa.windowSize))
		return fmt.Errorf("%w: range %s, %d objects", ErrRangeMismatch, req.Range, len(keys))
	}

	sa.provide(req.Start, keys)
	if total >= 0 {
		sa.length = total
		sa.lengthKnown = true
	}
	delete(sa.pending, WindowStart(req.Start, sa.windowSize))

	return nil
}

// Fail releases the window of a failed request so it can be requested again.
func (sa *SparseArray) Fail(req Request) error {

	sa.mutex.Lock()
	defer sa.mutex.Unlock()

	if req.Generation != sa.generation {
		return ErrStale
	}

	delete(sa.pending, WindowStart(req.Start, sa.windowSize))

	return nil
}

// Reset forgets everything: objects, pending windows and length. In-flight
// requests become stale.
func (sa *SparseArray) Reset() {

	sa.mutex.Lock()
	sa.slots.Clear(false)
	sa.pending = map[int]struct{}{}
	sa.length = 0
	sa.lengthKnown = false
	sa.generation++
	delegate := sa.delegate
	sa.mutex.Unlock()

	if delegate != nil {
		delegate.SparseArrayDidReset(sa)
	}
}

// Detach drops the delegate. Loaded objects stay readable but nothing is
// requested anymore, and requests in flight become stale.
func (sa *SparseArray) Detach() {
	sa.mutex.Lock()
	sa.delegate = nil
	sa.pending = map[int]struct{}{}
	sa.generation++
	sa.mutex.Unlock()
}

func (sa *SparseArray) IsPending(i int) bool {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()
	_, ok := sa.pending[WindowStart(i, sa.windowSize)]
	return ok
}

func (sa *SparseArray) PendingWindows() []int {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()

	return utils.GetKeys(sa.pending)
}

// PopulatedRanges returns the loaded indexes coalesced into ascending ranges.
func (sa *SparseArray) PopulatedRanges() []Range {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()

	result := []Range{}
	sa.slots.Ascend(func(s slot) bool {
		last := len(result) - 1
		if last >= 0 && result[last].End() == s.I {
			result[last].Length++
			return true
		}
		result = append(result, Range{Start: s.I, Length: 1})
		return true
	})

	return result
}

// Traverse visits loaded indexes in [from, to) in ascending order. It never
// triggers fetches. f is called without the lock held.
func (sa *SparseArray) Traverse(from, to int, f func(i int, key string) bool) {

	sa.mutex.RLock()
	loaded := []slot{}
	sa.slots.AscendRange(slot{I: from}, slot{I: to}, func(s slot) bool {
		loaded = append(loaded, s)
		return true
	})
	sa.mutex.RUnlock()

	for _, s := range loaded {
		if !f(s.I, s.Key) {
			return
		}
	}
}
