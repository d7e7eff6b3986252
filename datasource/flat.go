package datasource

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/fulldump/bigdata/pagefetcher"
	"github.com/fulldump/bigdata/query"
	"github.com/fulldump/bigdata/sparsearray"
	"github.com/fulldump/bigdata/store"
)

const (
	DefaultWindowSize = 100
	DefaultRecordType = "Person"
	DefaultTarget     = "flatDataSource"
)

type FlatConfig struct {
	Resolver   pagefetcher.Resolver
	Client     *http.Client
	Limiter    *rate.Limiter
	Logger     *log.Logger
	WindowSize int    // defaults to DefaultWindowSize, the size of every page served
	RecordType string // defaults to DefaultRecordType
	Target     string // defaults to DefaultTarget
}

// Flat pages records in from the server as needed, without grouping them or
// unloading them.
type Flat struct {
	config FlatConfig

	mutex    *sync.Mutex
	fetchers map[*store.Store]*pagefetcher.Fetcher
	arrays   map[string]*sparsearray.SparseArray // by query ID
}

func NewFlat(config FlatConfig) (*Flat, error) {

	if config.Resolver == nil {
		return nil, fmt.Errorf("resolver is mandatory")
	}
	if config.WindowSize == 0 {
		config.WindowSize = DefaultWindowSize
	}
	if config.WindowSize < 0 {
		return nil, sparsearray.ErrBadWindowSize
	}
	if config.RecordType == "" {
		config.RecordType = DefaultRecordType
	}
	if config.Target == "" {
		config.Target = DefaultTarget
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}

	return &Flat{
		config:   config,
		mutex:    &sync.Mutex{},
		fetchers: map[*store.Store]*pagefetcher.Fetcher{},
		arrays:   map[string]*sparsearray.SparseArray{},
	}, nil
}

// Fetch is called when someone runs a query on the store. Queries for other
// record types or other data sources are declined right away.
func (f *Flat) Fetch(st *store.Store, q *query.Query) bool {

	if q == nil || q.Local {
		return false
	}
	if q.RecordType != f.config.RecordType || q.TargetDataSource != f.config.Target {
		return false
	}

	sa, err := sparsearray.New(sparsearray.Options{
		WindowSize: f.config.WindowSize,
		Query:      q,
		Delegate:   f.fetcherFor(st),
	})
	if err != nil {
		f.config.Logger.Printf("ERROR: %s: %s", q, err.Error())
		return false
	}

	f.mutex.Lock()
	previous := f.arrays[q.ID]
	f.arrays[q.ID] = sa
	f.mutex.Unlock()

	if previous != nil {
		previous.Detach()
	}

	st.AttachQueryKeys(q, sa)

	// start loading the first window right away
	sa.RequestIndex(0)

	return true
}

func (f *Flat) fetcherFor(st *store.Store) *pagefetcher.Fetcher {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	fetcher, exists := f.fetchers[st]
	if !exists {
		fetcher = pagefetcher.New(pagefetcher.Config{
			Resolver: f.config.Resolver,
			Client:   f.config.Client,
			Store:    st,
			Limiter:  f.config.Limiter,
			Logger:   f.config.Logger,
		})
		f.fetchers[st] = fetcher
	}

	return fetcher
}

// Discard forgets the sparse array of q. It is detached, so fetches in flight
// for it are dropped and it is never reset again.
func (f *Flat) Discard(st *store.Store, q *query.Query) {
	f.mutex.Lock()
	sa, exists := f.arrays[q.ID]
	delete(f.arrays, q.ID)
	f.mutex.Unlock()

	if exists {
		sa.Detach()
	}
}

// Array returns the sparse array serving q, if any
func (f *Flat) Array(q *query.Query) (*sparsearray.SparseArray, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	sa, exists := f.arrays[q.ID]
	return sa, exists
}

// Reset clears every sparse array created by this data source. Fetches in
// flight are dropped when they complete.
func (f *Flat) Reset() {
	f.mutex.Lock()
	arrays := make([]*sparsearray.SparseArray, 0, len(f.arrays))
	for _, sa := range f.arrays {
		arrays = append(arrays, sa)
	}
	f.mutex.Unlock()

	for _, sa := range arrays {
		sa.Reset()
	}
}

// Wait blocks until all fetches in flight have completed
func (f *Flat) Wait() {
	f.mutex.Lock()
	fetchers := make([]*pagefetcher.Fetcher, 0, len(f.fetchers))
	for _, fetcher := range f.fetchers {
		fetchers = append(fetchers, fetcher)
	}
	f.mutex.Unlock()

	for _, fetcher := range fetchers {
		fetcher.Wait()
	}
}
