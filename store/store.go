package store

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"

	"github.com/fulldump/bigdata/query"
	"github.com/fulldump/bigdata/utils"
)

var ErrNotHandled = errors.New("no data source handled the query")

// Record is a loaded record. Key is assigned by the store and never changes
// for the same primary key.
type Record struct {
	Key     string         `json:"key"`
	Type    string         `json:"type"`
	ID      string         `json:"id,omitempty"`
	Payload jsontext.Value `json:"payload"`
}

// DataSource is asked to resolve remote queries. It must return false, and do
// nothing, for queries it does not own.
type DataSource interface {
	Fetch(st *Store, q *query.Query) bool
}

// Discarder is implemented by data sources that keep state per query
type Discarder interface {
	Discard(st *Store, q *query.Query)
}

type Config struct {
	PrimaryKey string // defaults to "guid"
	DataSource DataSource
	Logger     *log.Logger
}

type Store struct {
	primaryKey string
	dataSource DataSource
	logger     *log.Logger

	mutex   *sync.RWMutex
	records map[string]*Record
	indexes map[string]*Index

	arraysMutex *sync.Mutex
	arrays      map[string]*RecordArray

	errorHooks []func(q *query.Query, err error)
}

func New(config Config) *Store {

	if config.PrimaryKey == "" {
		config.PrimaryKey = "guid"
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}

	return &Store{
		primaryKey:  config.PrimaryKey,
		dataSource:  config.DataSource,
		logger:      config.Logger,
		mutex:       &sync.RWMutex{},
		records:     map[string]*Record{},
		indexes:     map[string]*Index{},
		arraysMutex: &sync.Mutex{},
		arrays:      map[string]*RecordArray{},
	}
}

// SetDataSource replaces the data source used by Find for remote queries
func (st *Store) SetDataSource(ds DataSource) {
	st.arraysMutex.Lock()
	st.dataSource = ds
	st.arraysMutex.Unlock()
}

// OnError registers f to be called every time a data source reports a failed
// query.
func (st *Store) OnError(f func(q *query.Query, err error)) {
	st.arraysMutex.Lock()
	st.errorHooks = append(st.errorHooks, f)
	st.arraysMutex.Unlock()
}

// LoadRecords pushes raw payloads into the store and returns their store
// keys, in the same order. Payloads sharing a primary key share a store key.
func (st *Store) LoadRecords(recordType string, payloads []jsontext.Value) ([]string, error) {

	items := make([]map[string]any, len(payloads))
	for i, payload := range payloads {
		item := map[string]any{}
		err := json.Unmarshal(payload, &item)
		if err != nil {
			return nil, fmt.Errorf("unmarshal record %d: %w", i, err)
		}
		items[i] = item
	}

	st.mutex.Lock()
	defer st.mutex.Unlock()

	index, exists := st.indexes[recordType]
	if !exists {
		index = NewIndex(st.primaryKey)
		st.indexes[recordType] = index
	}

	keys := make([]string, len(payloads))
	for i, payload := range payloads {
		candidate := &Record{
			Key:     uuid.New().String(),
			Type:    recordType,
			Payload: append(jsontext.Value(nil), payload...),
		}
		record, err := index.Upsert(items[i], candidate)
		if err != nil {
			return nil, fmt.Errorf("index record %d: %w", i, err)
		}
		st.records[record.Key] = record
		keys[i] = record.Key
	}

	return keys, nil
}

// Materialize returns a copy of the record stored under key
func (st *Store) Materialize(key string) (*Record, bool) {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	record, ok := st.records[key]
	if !ok {
		return nil, false
	}

	copied := *record
	return &copied, true
}

// Len is the number of records loaded
func (st *Store) Len() int {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return len(st.records)
}

type TypeStats struct {
	RecordType string `json:"recordType"`
	Records    int    `json:"records"`
	Identified int    `json:"identified"`
}

func (st *Store) Stats() []TypeStats {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	result := []TypeStats{}
	for _, recordType := range utils.GetKeys(st.indexes) {
		index := st.indexes[recordType]
		index.RWmutex.RLock()
		result = append(result, TypeStats{
			RecordType: recordType,
			Records:    len(index.Rows),
			Identified: len(index.Entries),
		})
		index.RWmutex.RUnlock()
	}

	return result
}

// Find returns the record array for q, creating it on first use. Remote
// queries are handed to the data source, local ones are evaluated against
// the records already loaded.
func (st *Store) Find(q *query.Query) *RecordArray {

	ra, created := st.recordArray(q)
	if !created {
		return ra
	}

	if q.Local {
		st.refreshLocal(ra)
		return ra
	}

	st.arraysMutex.Lock()
	ds := st.dataSource
	st.arraysMutex.Unlock()

	if ds == nil || !ds.Fetch(st, q) {
		st.logger.Printf("ERROR: %s: %s", q, ErrNotHandled)
		ra.fail(ErrNotHandled)
	}

	return ra
}

// Refresh evaluates again a local query
func (st *Store) Refresh(ra *RecordArray) {
	if ra.query.Local {
		st.refreshLocal(ra)
	}
}

// Discard forgets the record array of q. The data source drops whatever it
// keeps for q. A later Find with the same query starts from scratch.
func (st *Store) Discard(q *query.Query) {

	st.arraysMutex.Lock()
	_, exists := st.arrays[q.ID]
	delete(st.arrays, q.ID)
	ds := st.dataSource
	st.arraysMutex.Unlock()

	if !exists {
		return
	}

	if discarder, ok := ds.(Discarder); ok {
		discarder.Discard(st, q)
	}
}

func (st *Store) lookup(q *query.Query) (*RecordArray, bool) {
	st.arraysMutex.Lock()
	defer st.arraysMutex.Unlock()
	ra, exists := st.arrays[q.ID]
	return ra, exists
}

func (st *Store) recordArray(q *query.Query) (*RecordArray, bool) {
	st.arraysMutex.Lock()
	defer st.arraysMutex.Unlock()

	ra, exists := st.arrays[q.ID]
	if exists {
		return ra, false
	}

	ra = newRecordArray(st, q)
	st.arrays[q.ID] = ra

	return ra, true
}

// StoreWillFetchQuery flags the record array of q as busy
func (st *Store) StoreWillFetchQuery(q *query.Query) {
	ra, _ := st.recordArray(q)
	ra.willFetch()
}

// AttachQueryKeys binds keys to the record array of q without changing its
// status, so consumers can read, and page in, before the first fetch ends.
func (st *Store) AttachQueryKeys(q *query.Query, keys KeySource) {
	ra, _ := st.recordArray(q)
	ra.attach(keys)
}

// LoadQueryResults binds keys to the record array of q and marks it ready
func (st *Store) LoadQueryResults(q *query.Query, keys KeySource) {
	ra, _ := st.recordArray(q)
	ra.load(keys)
}

// DataSourceDidResetQuery puts the record array of q back to empty: whatever
// was loaded is gone and the next fetch is a first load again.
func (st *Store) DataSourceDidResetQuery(q *query.Query) {
	ra, exists := st.lookup(q)
	if !exists {
		return
	}
	ra.reset()
}

// DataSourceDidErrorQuery moves the record array of q to the error state and
// notifies error hooks.
func (st *Store) DataSourceDidErrorQuery(q *query.Query, err error) {
	ra, _ := st.recordArray(q)
	ra.fail(err)

	st.arraysMutex.Lock()
	hooks := append([]func(*query.Query, error){}, st.errorHooks...)
	st.arraysMutex.Unlock()

	for _, hook := range hooks {
		hook(q, err)
	}
}
