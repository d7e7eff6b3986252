package query

import (
	"fmt"

	"github.com/google/uuid"
)

// Query is an opaque description of what a consumer wants. It travels
// unchanged through the paging pipeline.
type Query struct {
	ID               string         `json:"id"`
	RecordType       string         `json:"recordType"`
	TargetDataSource string         `json:"targetDataSource,omitempty"`
	Conditions       map[string]any `json:"conditions,omitempty"` // connor syntax, eg: {"age": {"$gt": 30}}
	Local            bool           `json:"local,omitempty"`
}

type Option func(q *Query)

func New(recordType string, options ...Option) *Query {
	q := &Query{
		ID:         uuid.New().String(),
		RecordType: recordType,
	}
	for _, option := range options {
		option(q)
	}
	return q
}

func WithTarget(dataSource string) Option {
	return func(q *Query) {
		q.TargetDataSource = dataSource
	}
}

func WithConditions(conditions map[string]any) Option {
	return func(q *Query) {
		q.Conditions = conditions
	}
}

// Local queries are answered from records already loaded in the store
func Local() Option {
	return func(q *Query) {
		q.Local = true
	}
}

func (q *Query) String() string {
	if q == nil {
		return "<nil query>"
	}
	if q.Local {
		return fmt.Sprintf("local query %s of %s %v", q.ID, q.RecordType, q.Conditions)
	}
	return fmt.Sprintf("remote query %s of %s (%s)", q.ID, q.RecordType, q.TargetDataSource)
}
