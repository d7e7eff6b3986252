package sparsearray

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/fulldump/biff"
)

type recorder struct {
	mutex    sync.Mutex
	requests []Request
	resets   int
}

func (r *recorder) SparseArrayDidRequestRange(sa *SparseArray, req Request) {
	r.mutex.Lock()
	r.requests = append(r.requests, req)
	r.mutex.Unlock()
}

func (r *recorder) SparseArrayDidReset(sa *SparseArray) {
	r.mutex.Lock()
	r.resets++
	r.mutex.Unlock()
}

func (r *recorder) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.requests)
}

func (r *recorder) last() Request {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.requests[len(r.requests)-1]
}

func keys(start, n int) []string {
	result := make([]string, n)
	for i := range result {
		result[i] = "key-" + strconv.Itoa(start+i)
	}
	return result
}

func newArray(t *testing.T, windowSize int) (*SparseArray, *recorder) {
	t.Helper()

	d := &recorder{}
	sa, err := New(Options{
		WindowSize: windowSize,
		Query:      "people",
		Delegate:   d,
	})
	if err != nil {
		t.Fatalf("new sparse array: %v", err)
	}

	return sa, d
}

func TestNew_BadWindowSize(t *testing.T) {
	_, err := New(Options{WindowSize: 0})
	biff.AssertEqual(err, ErrBadWindowSize)
}

func TestWindowStart(t *testing.T) {
	for _, size := range []int{1, 7, 100} {
		for i := 0; i < 1000; i++ {
			w := WindowStart(i, size)
			if w%size != 0 || w > i || i-w >= size {
				t.Fatalf("WindowStart(%d, %d) = %d", i, size, w)
			}
		}
	}
	biff.AssertEqual(WindowStart(-1, 100), -100)
}

func TestSparseArray(t *testing.T) {

	biff.Alternative("Setup", func(a *biff.A) {

		sa, d := newArray(t, 100)

		biff.AssertEqual(sa.WindowSize(), 100)
		biff.AssertEqual(sa.Query(), "people")
		_, known := sa.Length()
		biff.AssertFalse(known)

		a.Alternative("Request index 0", func(a *biff.A) {

			sa.RequestIndex(0)

			biff.AssertEqual(d.count(), 1)
			biff.AssertEqual(d.last().Range, Range{Start: 0, Length: 100})
			biff.AssertTrue(sa.IsPending(0))
			biff.AssertTrue(sa.IsPending(99))
			biff.AssertFalse(sa.IsPending(100))

			a.Alternative("Request again before completion", func(a *biff.A) {
				sa.RequestIndex(0)
				sa.RequestIndex(42)
				biff.AssertEqual(d.count(), 1)
			})

			a.Alternative("Deliver", func(a *biff.A) {

				err := sa.Deliver(d.last(), keys(0, 100), 3500)
				biff.AssertNil(err)

				length, known := sa.Length()
				biff.AssertTrue(known)
				biff.AssertEqual(length, 3500)
				biff.AssertFalse(sa.IsPending(0))
				biff.AssertEqual(sa.PendingWindows(), []int{})

				for i := 0; i < 100; i++ {
					key, status := sa.ReadIndex(i)
					if status != Loaded || key != "key-"+strconv.Itoa(i) {
						t.Fatalf("ReadIndex(%d) = %q, %s", i, key, status)
					}
				}
				biff.AssertEqual(d.count(), 1)

				a.Alternative("Read past the end", func(a *biff.A) {
					_, status := sa.ReadIndex(3500)
					biff.AssertEqual(status, OutOfBounds)
					biff.AssertEqual(d.count(), 1)
				})

				a.Alternative("Read next window", func(a *biff.A) {
					_, status := sa.ReadIndex(150)
					biff.AssertEqual(status, Pending)
					biff.AssertEqual(d.count(), 2)
					biff.AssertEqual(d.last().Range, Range{Start: 100, Length: 100})
				})

				a.Alternative("Populated ranges", func(a *biff.A) {
					biff.AssertEqual(sa.PopulatedRanges(), []Range{{Start: 0, Length: 100}})
				})
			})

			a.Alternative("Fail", func(a *biff.A) {

				err := sa.Fail(d.last())
				biff.AssertNil(err)
				biff.AssertFalse(sa.IsPending(0))

				_, status := sa.ReadIndex(0)
				biff.AssertEqual(status, Pending)
				biff.AssertEqual(d.count(), 2)
				biff.AssertEqual(d.last().Range, Range{Start: 0, Length: 100})
			})

			a.Alternative("Reset drops in-flight results", func(a *biff.A) {

				req := d.last()
				sa.Reset()

				biff.AssertEqual(d.resets, 1)
				biff.AssertFalse(sa.IsPending(0))

				err := sa.Deliver(req, keys(0, 100), 3500)
				biff.AssertTrue(errors.Is(err, ErrStale))
				biff.AssertEqual(sa.PopulatedRanges(), []Range{})
				_, known := sa.Length()
				biff.AssertFalse(known)

				biff.AssertTrue(errors.Is(sa.Fail(req), ErrStale))
			})
		})

		a.Alternative("Request index 250 and 260", func(a *biff.A) {
			sa.RequestIndex(250)
			sa.RequestIndex(260)

			biff.AssertEqual(d.count(), 1)
			biff.AssertEqual(d.last().Range, Range{Start: 200, Length: 100})
			biff.AssertEqual(sa.PendingWindows(), []int{200})
		})

		a.Alternative("Negative index", func(a *biff.A) {
			_, status := sa.ReadIndex(-1)
			biff.AssertEqual(status, OutOfBounds)
			biff.AssertEqual(d.count(), 0)
		})
	})
}

func TestSparseArray_ProvideObjectsInRange(t *testing.T) {

	sa, d := newArray(t, 10)

	err := sa.ProvideObjectsInRange(Range{Start: 10, Length: 3}, keys(10, 2))
	biff.AssertTrue(errors.Is(err, ErrRangeMismatch))

	err = sa.ProvideObjectsInRange(Range{Start: 10, Length: 0}, nil)
	biff.AssertTrue(errors.Is(err, ErrRangeMismatch))

	biff.AssertNil(sa.ProvideObjectsInRange(Range{Start: 10, Length: 3}, keys(10, 3)))
	biff.AssertNil(sa.ProvideObjectsInRange(Range{Start: 13, Length: 2}, keys(13, 2)))
	biff.AssertNil(sa.ProvideObjectsInRange(Range{Start: 30, Length: 1}, keys(30, 1)))

	biff.AssertEqual(sa.PopulatedRanges(), []Range{
		{Start: 10, Length: 5},
		{Start: 30, Length: 1},
	})

	key, status := sa.ReadIndex(12)
	biff.AssertEqual(status, Loaded)
	biff.AssertEqual(key, "key-12")
	biff.AssertEqual(d.count(), 0)

	visited := []int{}
	sa.Traverse(11, 31, func(i int, key string) bool {
		visited = append(visited, i)
		return true
	})
	biff.AssertEqual(visited, []int{11, 12, 13, 14, 30})
}

func TestSparseArray_ProvideLength(t *testing.T) {

	sa, d := newArray(t, 10)

	sa.ProvideLength(25)
	sa.ProvideLength(20)
	sa.ProvideLength(-3)

	length, known := sa.Length()
	biff.AssertTrue(known)
	biff.AssertEqual(length, 20)

	_, status := sa.ReadIndex(20)
	biff.AssertEqual(status, OutOfBounds)

	sa.RequestIndex(20)
	biff.AssertEqual(d.count(), 0)

	_, status = sa.ReadIndex(19)
	biff.AssertEqual(status, Pending)
	biff.AssertEqual(d.last().Range, Range{Start: 10, Length: 10})
}

func TestSparseArray_RangeRequestCompleted(t *testing.T) {

	sa, d := newArray(t, 10)

	sa.RequestIndex(35)
	biff.AssertTrue(sa.IsPending(30))

	// any index inside the window releases it
	sa.RangeRequestCompleted(37)
	biff.AssertFalse(sa.IsPending(30))

	sa.RequestIndex(35)
	biff.AssertEqual(d.count(), 2)
}

func TestSparseArray_NoDelegate(t *testing.T) {

	sa, err := New(Options{WindowSize: 10})
	biff.AssertNil(err)

	_, status := sa.ReadIndex(0)
	biff.AssertEqual(status, Pending)
	biff.AssertFalse(sa.IsPending(0))
}

func TestSparseArray_ConcurrentRequests(t *testing.T) {

	sa, d := newArray(t, 100)

	wg := &sync.WaitGroup{}
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				sa.ReadIndex(i)
			}
		}()
	}
	wg.Wait()

	// one request per window, no matter how many readers
	biff.AssertEqual(d.count(), 10)
}

func TestSparseArray_DeliverOversized(t *testing.T) {

	sa, d := newArray(t, 100)

	sa.RequestIndex(0)
	biff.AssertEqual(d.count(), 1)

	err := sa.Deliver(d.last(), keys(0, 150), 3500)
	biff.AssertTrue(errors.Is(err, ErrRangeMismatch))

	// nothing leaks into the next window
	biff.AssertEqual(sa.PopulatedRanges(), []Range{})
	biff.AssertFalse(sa.IsPending(0))
	_, known := sa.Length()
	biff.AssertFalse(known)

	_, status := sa.ReadIndex(120)
	biff.AssertEqual(status, Pending)
	biff.AssertEqual(d.count(), 2)
	biff.AssertEqual(d.last().Start, 100)

	// a short page is fine
	biff.AssertNil(sa.Deliver(d.last(), keys(100, 40), 140))
	biff.AssertEqual(sa.PopulatedRanges(), []Range{{Start: 100, Length: 40}})
}

func TestSparseArray_Detach(t *testing.T) {

	sa, d := newArray(t, 100)

	sa.RequestIndex(0)
	biff.AssertNil(sa.Deliver(d.last(), keys(0, 100), 3500))

	sa.RequestIndex(100)
	inFlight := d.last()

	sa.Detach()

	// in flight results are dropped
	biff.AssertEqual(sa.Deliver(inFlight, keys(100, 100), 3500), ErrStale)
	biff.AssertFalse(sa.IsPending(100))

	// loaded objects stay, nothing new is requested
	key, status := sa.ReadIndex(5)
	biff.AssertEqual(status, Loaded)
	biff.AssertEqual(key, "key-5")
	_, status = sa.ReadIndex(150)
	biff.AssertEqual(status, Pending)
	biff.AssertEqual(d.count(), 2)
	biff.AssertEqual(d.resets, 0)
}
