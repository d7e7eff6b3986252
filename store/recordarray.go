package store

import (
	"fmt"
	"sync"

	"github.com/SierraSoftworks/connor"
	"github.com/go-json-experiment/json"

	"github.com/fulldump/bigdata/query"
	"github.com/fulldump/bigdata/sparsearray"
)

const (
	StatusEmpty       = "empty"
	StatusBusyLoading = "busy_loading"
	StatusBusyRefresh = "busy_refresh"
	StatusReady       = "ready"
	StatusError       = "error"
)

// KeySource is an ordered, possibly sparse, sequence of store keys.
// *sparsearray.SparseArray is one.
type KeySource interface {
	Length() (int, bool)
	ReadIndex(i int) (string, sparsearray.Status)
}

// RecordArray is the result of a query
type RecordArray struct {
	store *Store
	query *query.Query

	mutex  *sync.RWMutex
	status string
	err    error
	keys   KeySource
	loaded bool
}

func newRecordArray(st *Store, q *query.Query) *RecordArray {
	return &RecordArray{
		store:  st,
		query:  q,
		mutex:  &sync.RWMutex{},
		status: StatusEmpty,
	}
}

func (ra *RecordArray) Query() *query.Query {
	return ra.query
}

func (ra *RecordArray) Status() string {
	ra.mutex.RLock()
	defer ra.mutex.RUnlock()
	return ra.status
}

// Err is the last error reported for the query, if any
func (ra *RecordArray) Err() error {
	ra.mutex.RLock()
	defer ra.mutex.RUnlock()
	return ra.err
}

func (ra *RecordArray) Keys() KeySource {
	ra.mutex.RLock()
	defer ra.mutex.RUnlock()
	return ra.keys
}

func (ra *RecordArray) Length() (int, bool) {
	keys := ra.Keys()
	if keys == nil {
		return 0, false
	}
	return keys.Length()
}

// ObjectAt returns the record at i. Reading an index that is not loaded yet
// asks the underlying key source to page it in.
func (ra *RecordArray) ObjectAt(i int) (*Record, sparsearray.Status) {

	keys := ra.Keys()
	if keys == nil {
		return nil, sparsearray.Pending
	}

	key, status := keys.ReadIndex(i)
	if status != sparsearray.Loaded {
		return nil, status
	}

	record, ok := ra.store.Materialize(key)
	if !ok {
		return nil, sparsearray.Pending
	}

	return record, sparsearray.Loaded
}

func (ra *RecordArray) willFetch() {
	ra.mutex.Lock()
	if !ra.loaded {
		ra.status = StatusBusyLoading
	} else {
		ra.status = StatusBusyRefresh
	}
	ra.mutex.Unlock()
}

func (ra *RecordArray) load(keys KeySource) {
	ra.mutex.Lock()
	ra.keys = keys
	ra.status = StatusReady
	ra.err = nil
	ra.loaded = true
	ra.mutex.Unlock()
}

func (ra *RecordArray) attach(keys KeySource) {
	ra.mutex.Lock()
	ra.keys = keys
	ra.mutex.Unlock()
}

// reset goes back to the initial state, keeping the key source
func (ra *RecordArray) reset() {
	ra.mutex.Lock()
	ra.status = StatusEmpty
	ra.err = nil
	ra.loaded = false
	ra.mutex.Unlock()
}

func (ra *RecordArray) fail(err error) {
	ra.mutex.Lock()
	ra.status = StatusError
	ra.err = err
	ra.mutex.Unlock()
}

// Keys is a dense KeySource
type Keys []string

func (k Keys) Length() (int, bool) {
	return len(k), true
}

func (k Keys) ReadIndex(i int) (string, sparsearray.Status) {
	if i < 0 || i >= len(k) {
		return "", sparsearray.OutOfBounds
	}
	return k[i], sparsearray.Loaded
}

func (st *Store) refreshLocal(ra *RecordArray) {

	q := ra.query
	hasFilter := len(q.Conditions) > 0

	st.mutex.RLock()
	index, exists := st.indexes[q.RecordType]
	st.mutex.RUnlock()

	keys := Keys{}
	if !exists {
		ra.load(keys)
		return
	}

	var matchErr error
	index.Traverse(func(r *Record) bool {
		if hasFilter {
			st.mutex.RLock()
			payload := r.Payload
			st.mutex.RUnlock()

			data := map[string]any{}
			err := json.Unmarshal(payload, &data)
			if err != nil {
				matchErr = fmt.Errorf("unmarshal %s: %w", r.Key, err)
				return false
			}
			match, err := connor.Match(q.Conditions, data)
			if err != nil {
				matchErr = fmt.Errorf("match: %w", err)
				return false
			}
			if !match {
				return true
			}
		}
		keys = append(keys, r.Key)
		return true
	})

	if matchErr != nil {
		ra.fail(matchErr)
		return
	}

	ra.load(keys)
}
