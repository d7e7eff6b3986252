package main

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fulldump/bigdata/bootstrap"
	"github.com/fulldump/bigdata/configuration"
	"github.com/fulldump/bigdata/datasource"
	"github.com/fulldump/bigdata/fixtures"
	"github.com/fulldump/bigdata/pagefetcher"
	"github.com/fulldump/bigdata/query"
	"github.com/fulldump/bigdata/store"
)

func Parallel(workers int, f func()) {
	wg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}
	wg.Wait()
}

func TempDir() (string, func()) {
	dir, err := os.MkdirTemp("", "bigdata_bench_*")
	if err != nil {
		panic("Could not create temp directory: " + err.Error())
	}

	cleanup := func() {
		os.RemoveAll(dir)
	}

	return dir, cleanup
}

func CreateServer(c *Config, statics string) (start, stop func()) {

	conf := configuration.Default()
	conf.Total = c.Total
	conf.PageSize = c.WindowSize
	conf.Statics = statics
	conf.ShowBanner = false
	c.Base = "http://" + conf.HttpAddr + "/static/" + fixtures.FileName(1)

	return bootstrap.Bootstrap(conf)
}

// Browse prepares a store paging people in from c.Base
func Browse(c Config) (*datasource.Flat, *store.Store, *store.RecordArray) {

	transport := &http.Transport{
		MaxConnsPerHost:     1024,
		MaxIdleConns:        1024,
		MaxIdleConnsPerHost: 1024,
	}

	flat, err := datasource.NewFlat(datasource.FlatConfig{
		Resolver: pagefetcher.TemplateResolver{Base: c.Base},
		Client: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		WindowSize: c.WindowSize,
	})
	if err != nil {
		fmt.Println("ERROR: new flat:", err.Error())
		os.Exit(2)
	}

	st := store.New(store.Config{DataSource: flat})
	st.OnError(func(q *query.Query, err error) {
		fmt.Println("ERROR: fetch:", err.Error())
		os.Exit(3)
	})

	ra := st.Find(query.New(datasource.DefaultRecordType, query.WithTarget(datasource.DefaultTarget)))

	return flat, st, ra
}
