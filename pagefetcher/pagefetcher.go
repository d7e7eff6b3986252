package pagefetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"golang.org/x/time/rate"

	"github.com/fulldump/bigdata/query"
	"github.com/fulldump/bigdata/sparsearray"
	"github.com/fulldump/bigdata/store"
)

var (
	ErrStatus        = errors.New("unexpected response status")
	ErrMalformedBody = errors.New("malformed response body")
	ErrQueryType     = errors.New("sparse array query is not a *query.Query")
)

// Store is the record store collaborator: it owns store keys and the state
// of query results.
type Store interface {
	LoadRecords(recordType string, payloads []jsontext.Value) ([]string, error)
	StoreWillFetchQuery(q *query.Query)
	LoadQueryResults(q *query.Query, keys store.KeySource)
	DataSourceDidErrorQuery(q *query.Query, err error)
	DataSourceDidResetQuery(q *query.Query)
}

// FetchError is returned for any failed page fetch. StatusCode and Body are
// only filled when the server answered.
type FetchError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch '%s': %s: %s", e.URL, e.Status, e.Err.Error())
	}
	return fmt.Sprintf("fetch '%s': %s", e.URL, e.Err.Error())
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Body is the shape of a page resource
type Body struct {
	People     *[]jsontext.Value `json:"people"`
	TotalCount *int              `json:"totalCount"`
}

type Page struct {
	Number     int
	Start      int
	StoreKeys  []string
	TotalCount int
}

type Config struct {
	Resolver Resolver
	Client   *http.Client // defaults to http.DefaultClient
	Store    Store
	Limiter  *rate.Limiter // optional
	Logger   *log.Logger
}

// Fetcher resolves sparse array windows into pages. It keeps no state about
// arrays or windows, so one Fetcher can serve any number of arrays.
type Fetcher struct {
	resolver Resolver
	client   *http.Client
	store    Store
	limiter  *rate.Limiter
	logger   *log.Logger
	inFlight *sync.WaitGroup
}

func New(config Config) *Fetcher {

	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}

	return &Fetcher{
		resolver: config.Resolver,
		client:   config.Client,
		store:    config.Store,
		limiter:  config.Limiter,
		logger:   config.Logger,
		inFlight: &sync.WaitGroup{},
	}
}

// Fetch issues exactly one request for the page holding windowStart and loads
// its records into the store. There is no retry.
func (f *Fetcher) Fetch(ctx context.Context, windowStart, windowSize int, q *query.Query) (*Page, error) {

	page := PageID(windowStart, windowSize)

	u, err := f.resolver.Resolve(page, windowStart, windowSize)
	if err != nil {
		return nil, &FetchError{URL: fmt.Sprintf("page %d", page), Err: err}
	}

	if f.limiter != nil {
		err := f.limiter.Wait(ctx)
		if err != nil {
			return nil, &FetchError{URL: u, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(excerpt),
			Err:        ErrStatus,
		}
	}

	body := &Body{}
	err = json.UnmarshalRead(resp.Body, body)
	if err != nil {
		return nil, &FetchError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Err:        fmt.Errorf("%w: %w", ErrMalformedBody, err),
		}
	}
	if body.People == nil || body.TotalCount == nil {
		return nil, &FetchError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Err:        fmt.Errorf("%w: 'people' and 'totalCount' are mandatory", ErrMalformedBody),
		}
	}
	if *body.TotalCount < 0 {
		return nil, &FetchError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Err:        fmt.Errorf("%w: negative 'totalCount' %d", ErrMalformedBody, *body.TotalCount),
		}
	}
	if len(*body.People) > windowSize {
		return nil, &FetchError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Err:        fmt.Errorf("%w: %d people for a window of %d", sparsearray.ErrRangeMismatch, len(*body.People), windowSize),
		}
	}

	keys, err := f.store.LoadRecords(q.RecordType, *body.People)
	if err != nil {
		return nil, &FetchError{URL: u, Err: fmt.Errorf("load records: %w", err)}
	}

	return &Page{
		Number:     page,
		Start:      windowStart,
		StoreKeys:  keys,
		TotalCount: *body.TotalCount,
	}, nil
}

// SparseArrayDidRequestRange fetches the requested window in the background
// and applies the outcome to sa and to the store.
func (f *Fetcher) SparseArrayDidRequestRange(sa *sparsearray.SparseArray, req sparsearray.Request) {

	q, ok := sa.Query().(*query.Query)
	if !ok {
		f.logger.Printf("ERROR: range %s: %s", req.Range, ErrQueryType)
		sa.Fail(req)
		return
	}

	// the record array goes busy while we page in data behind its back
	f.store.StoreWillFetchQuery(q)

	f.logger.Printf("sparseArrayDidRequestRange: %s (page %d)", req.Range, PageID(req.Start, req.Length))

	f.inFlight.Add(1)
	gaugePageRequestsInFlight.Inc()
	go func() {
		defer f.inFlight.Done()
		defer gaugePageRequestsInFlight.Dec()
		f.requestCompleted(sa, req, q)
	}()
}

func (f *Fetcher) requestCompleted(sa *sparsearray.SparseArray, req sparsearray.Request, q *query.Query) {

	t0 := time.Now()
	page, err := f.Fetch(context.Background(), req.Start, req.Length, q)
	if err != nil {
		if errors.Is(sa.Fail(req), sparsearray.ErrStale) {
			recordPageRequest(resultStale, t0)
			f.logger.Printf("dropping stale failure for range %s", req.Range)
			return
		}
		recordPageRequest(resultError, t0)
		f.logger.Printf("ERROR: Unable to retrieve range %s of %s: %s", req.Range, q, err.Error())
		f.store.DataSourceDidErrorQuery(q, err)
		return
	}

	err = sa.Deliver(req, page.StoreKeys, page.TotalCount)
	if errors.Is(err, sparsearray.ErrStale) {
		recordPageRequest(resultStale, t0)
		f.logger.Printf("dropping range %s: %s", req.Range, err.Error())
		return
	}
	if err != nil {
		recordPageRequest(resultError, t0)
		f.logger.Printf("ERROR: Unable to apply range %s of %s: %s", req.Range, q, err.Error())
		f.store.DataSourceDidErrorQuery(q, err)
		return
	}
	recordPageRequest(resultOK, t0)

	f.store.LoadQueryResults(q, sa)

	if len(page.StoreKeys) > 0 {
		f.logger.Printf("   requestCompleted: %d - %d", req.Start, req.Start+len(page.StoreKeys)-1)
	} else {
		f.logger.Printf("   requestCompleted: %d (empty)", req.Start)
	}
}

// SparseArrayDidReset settles the record array: fetches in flight for the
// previous state are dropped as stale and will not do it.
func (f *Fetcher) SparseArrayDidReset(sa *sparsearray.SparseArray) {
	f.logger.Printf("sparseArrayDidReset: window size %d", sa.WindowSize())

	q, ok := sa.Query().(*query.Query)
	if !ok {
		return
	}
	f.store.DataSourceDidResetQuery(q)
}

// Wait blocks until every fetch started by this Fetcher has completed
func (f *Fetcher) Wait() {
	f.inFlight.Wait()
}
