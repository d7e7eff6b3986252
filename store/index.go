package store

import (
	"fmt"
	"strconv"
	"sync"
)

// Index keeps the records of one record type, in load order, plus a map from
// primary key value to record.
type Index struct {
	Entries map[string]*Record
	Rows    []*Record
	RWmutex *sync.RWMutex
	Field   string
}

func NewIndex(field string) *Index {
	return &Index{
		Entries: map[string]*Record{},
		Rows:    []*Record{},
		RWmutex: &sync.RWMutex{},
		Field:   field,
	}
}

// Upsert returns the record already registered under the primary key found in
// item, or registers record.
func (i *Index) Upsert(item map[string]any, record *Record) (*Record, error) {

	id, hasID, err := primaryKey(item, i.Field)
	if err != nil {
		return nil, err
	}

	i.RWmutex.Lock()
	defer i.RWmutex.Unlock()

	if hasID {
		if existing, exists := i.Entries[id]; exists {
			existing.Payload = record.Payload
			return existing, nil
		}
		record.ID = id
		i.Entries[id] = record
	}

	i.Rows = append(i.Rows, record)

	return record, nil
}

func (i *Index) Get(id string) (*Record, bool) {
	i.RWmutex.RLock()
	defer i.RWmutex.RUnlock()
	r, ok := i.Entries[id]
	return r, ok
}

func (i *Index) Len() int {
	i.RWmutex.RLock()
	defer i.RWmutex.RUnlock()
	return len(i.Rows)
}

// Traverse visits records in load order until f returns false
func (i *Index) Traverse(f func(r *Record) bool) {
	i.RWmutex.RLock()
	rows := i.Rows
	i.RWmutex.RUnlock()

	for _, r := range rows {
		if !f(r) {
			return
		}
	}
}

func primaryKey(item map[string]any, field string) (string, bool, error) {

	if field == "" {
		return "", false, nil
	}

	itemValue, itemExists := item[field]
	if !itemExists || itemValue == nil {
		return "", false, nil
	}

	switch value := itemValue.(type) {
	case string:
		return value, value != "", nil
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true, nil
	default:
		return "", false, fmt.Errorf("primary key `%s` type %T not supported", field, itemValue)
	}
}
