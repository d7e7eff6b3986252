package datasource

import (
	"errors"
	"testing"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"

	"github.com/fulldump/bigdata/api"
	"github.com/fulldump/bigdata/fixtures"
	"github.com/fulldump/bigdata/pagefetcher"
	"github.com/fulldump/bigdata/query"
	"github.com/fulldump/bigdata/sparsearray"
	"github.com/fulldump/bigdata/store"
)

type declineAll struct {
	asked int
}

func (d *declineAll) Fetch(st *store.Store, q *query.Query) bool {
	d.asked++
	return false
}

func newFixtureServer(t *testing.T, total int) *apitest.Apitest {
	t.Helper()

	g, err := fixtures.NewGenerator(total, 100, 1)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	b := api.Build(g, "", "test")
	b.WithInterceptors(api.PrettyErrorInterceptor)

	a := apitest.NewWithHandler(b)
	t.Cleanup(a.Destroy)

	return a
}

func TestNewFlat(t *testing.T) {

	_, err := NewFlat(FlatConfig{})
	biff.AssertNotNil(err)

	_, err = NewFlat(FlatConfig{
		Resolver:   pagefetcher.TemplateResolver{Base: "http://localhost/people_1.json"},
		WindowSize: -1,
	})
	biff.AssertEqual(err, sparsearray.ErrBadWindowSize)
}

func TestFlat(t *testing.T) {

	biff.Alternative("Setup", func(a *biff.A) {

		server := newFixtureServer(t, 3500)

		flat, err := NewFlat(FlatConfig{
			Resolver: pagefetcher.TemplateResolver{Base: server.Base + "/static/people_1.json"},
		})
		biff.AssertNil(err)

		st := store.New(store.Config{DataSource: flat})

		a.Alternative("Declines other record types", func(a *biff.A) {
			biff.AssertFalse(flat.Fetch(st, query.New("Company", query.WithTarget(DefaultTarget))))
			biff.AssertEqual(st.Len(), 0)
		})

		a.Alternative("Declines other data sources", func(a *biff.A) {
			ra := st.Find(query.New(DefaultRecordType, query.WithTarget("groupedDataSource")))
			flat.Wait()
			biff.AssertEqual(ra.Status(), store.StatusError)
			biff.AssertEqual(st.Len(), 0)
		})

		a.Alternative("Declines local queries", func(a *biff.A) {
			biff.AssertFalse(flat.Fetch(st, query.New(DefaultRecordType, query.Local())))
		})

		a.Alternative("Pages people in", func(a *biff.A) {

			q := query.New(DefaultRecordType, query.WithTarget(DefaultTarget))
			ra := st.Find(q)
			flat.Wait()

			biff.AssertEqual(ra.Status(), store.StatusReady)
			length, known := ra.Length()
			biff.AssertTrue(known)
			biff.AssertEqual(length, 3500)
			biff.AssertEqual(st.Len(), 100)

			record, status := ra.ObjectAt(0)
			biff.AssertEqual(status, sparsearray.Loaded)
			biff.AssertEqual(record.Type, DefaultRecordType)

			_, status = ra.ObjectAt(3499)
			biff.AssertEqual(status, sparsearray.Pending)
			flat.Wait()

			_, status = ra.ObjectAt(3499)
			biff.AssertEqual(status, sparsearray.Loaded)
			biff.AssertEqual(st.Len(), 200)

			_, status = ra.ObjectAt(3500)
			biff.AssertEqual(status, sparsearray.OutOfBounds)

			a.Alternative("Reset settles every record array", func(a *biff.A) {
				other := st.Find(query.New(DefaultRecordType, query.WithTarget(DefaultTarget)))
				flat.Reset()
				flat.Wait()

				biff.AssertEqual(other.Status(), store.StatusEmpty)
				_, known := other.Length()
				biff.AssertFalse(known)
			})

			a.Alternative("Discard", func(a *biff.A) {
				sa, exists := flat.Array(q)
				biff.AssertTrue(exists)

				st.Discard(q)

				_, exists = flat.Array(q)
				biff.AssertFalse(exists)

				// a discarded array is left alone by Reset
				flat.Reset()
				_, known := sa.Length()
				biff.AssertTrue(known)
				biff.AssertEqual(sa.PopulatedRanges(), []sparsearray.Range{{Start: 0, Length: 100}, {Start: 3400, Length: 100}})

				// and it never pages in again
				_, status := sa.ReadIndex(200)
				biff.AssertEqual(status, sparsearray.Pending)
				flat.Wait()
				biff.AssertEqual(st.Len(), 200)

				// same query, new record array
				again := st.Find(q)
				biff.AssertTrue(again != ra)
				flat.Wait()
				biff.AssertEqual(again.Status(), store.StatusReady)
				fresh, exists := flat.Array(q)
				biff.AssertTrue(exists)
				biff.AssertTrue(fresh != sa)
			})

			a.Alternative("Reset", func(a *biff.A) {
				flat.Reset()

				_, known := ra.Length()
				biff.AssertFalse(known)
				biff.AssertEqual(ra.Status(), store.StatusEmpty)

				// reading again pages the first window in again
				_, status := ra.ObjectAt(0)
				biff.AssertEqual(status, sparsearray.Pending)
				flat.Wait()
				_, status = ra.ObjectAt(0)
				biff.AssertEqual(status, sparsearray.Loaded)
				biff.AssertEqual(ra.Status(), store.StatusReady)

				// records keep their store keys
				biff.AssertEqual(st.Len(), 200)
			})
		})
	})
}

func TestFlat_Failure(t *testing.T) {

	server := newFixtureServer(t, 3500)

	// nobody_<n>.json is not served
	flat, err := NewFlat(FlatConfig{
		Resolver: pagefetcher.TemplateResolver{Base: server.Base + "/static/nobody_1.json"},
	})
	biff.AssertNil(err)

	reported := 0
	st := store.New(store.Config{DataSource: flat})
	st.OnError(func(q *query.Query, err error) {
		reported++
	})

	ra := st.Find(query.New(DefaultRecordType, query.WithTarget(DefaultTarget)))
	flat.Wait()

	biff.AssertEqual(ra.Status(), store.StatusError)
	biff.AssertTrue(errors.Is(ra.Err(), pagefetcher.ErrStatus))
	biff.AssertEqual(reported, 1)

	// the window stays retriable
	_, status := ra.ObjectAt(0)
	biff.AssertEqual(status, sparsearray.Pending)
	flat.Wait()
	biff.AssertEqual(reported, 2)
	biff.AssertEqual(ra.Status(), store.StatusError)
}

func TestFlat_Empty(t *testing.T) {

	server := newFixtureServer(t, 0)

	flat, err := NewFlat(FlatConfig{
		Resolver: pagefetcher.TemplateResolver{Base: server.Base + "/static/people_1.json"},
	})
	biff.AssertNil(err)

	st := store.New(store.Config{DataSource: flat})

	ra := st.Find(query.New(DefaultRecordType, query.WithTarget(DefaultTarget)))
	flat.Wait()

	biff.AssertNil(ra.Err())
	biff.AssertEqual(ra.Status(), store.StatusReady)
	length, known := ra.Length()
	biff.AssertTrue(known)
	biff.AssertEqual(length, 0)

	_, status := ra.ObjectAt(0)
	biff.AssertEqual(status, sparsearray.OutOfBounds)
	biff.AssertEqual(st.Len(), 0)
}

func TestCascade(t *testing.T) {

	server := newFixtureServer(t, 150)

	flat, err := NewFlat(FlatConfig{
		Resolver: pagefetcher.TemplateResolver{Base: server.Base + "/static/people_1.json"},
	})
	biff.AssertNil(err)

	first := &declineAll{}
	st := store.New(store.Config{
		DataSource: Cascade{first, flat},
	})

	ra := st.Find(query.New(DefaultRecordType, query.WithTarget(DefaultTarget)))
	flat.Wait()

	biff.AssertEqual(first.asked, 1)
	biff.AssertEqual(ra.Status(), store.StatusReady)
	length, _ := ra.Length()
	biff.AssertEqual(length, 150)

	ra = st.Find(query.New("Company"))
	biff.AssertEqual(first.asked, 2)
	biff.AssertEqual(ra.Status(), store.StatusError)
}
