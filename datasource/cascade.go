package datasource

import (
	"github.com/fulldump/bigdata/query"
	"github.com/fulldump/bigdata/store"
)

// Cascade asks each data source in turn, the first one that takes the query
// wins.
type Cascade []store.DataSource

func (c Cascade) Fetch(st *store.Store, q *query.Query) bool {
	for _, ds := range c {
		if ds.Fetch(st, q) {
			return true
		}
	}
	return false
}

// Discard is forwarded to every data source keeping state per query
func (c Cascade) Discard(st *store.Store, q *query.Query) {
	for _, ds := range c {
		if discarder, ok := ds.(store.Discarder); ok {
			discarder.Discard(st, q)
		}
	}
}
