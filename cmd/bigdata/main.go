package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/fulldump/goconfig"
	jsonv2 "github.com/go-json-experiment/json"
	"golang.org/x/time/rate"

	"github.com/fulldump/bigdata/bootstrap"
	"github.com/fulldump/bigdata/configuration"
	"github.com/fulldump/bigdata/datasource"
	"github.com/fulldump/bigdata/fixtures"
	"github.com/fulldump/bigdata/pagefetcher"
	"github.com/fulldump/bigdata/query"
	"github.com/fulldump/bigdata/sparsearray"
	"github.com/fulldump/bigdata/store"
)

var banner = `
 ____  _       ____        _
| __ )(_) __ _|  _ \  __ _| |_ __ _
|  _ \| |/ _' | | | |/ _' | __/ _' |
| |_) | | (_| | |_| | (_| | || (_| |
|____/|_|\__, |____/ \__,_|\__\__,_|
         |___/     version ` + bootstrap.VERSION + `
`

func main() {

	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", bootstrap.VERSION)
		return
	}

	if c.ShowBanner {
		fmt.Println(banner)
	}

	if c.ShowConfig {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "    ")
		e.Encode(c)
	}

	switch c.Mode {
	case "serve":
		start, _ := bootstrap.Bootstrap(c)
		start()
	case "browse":
		err := browse(c)
		if err != nil {
			log.Println("ERROR:", err.Error())
			os.Exit(1)
		}
	case "dump":
		g, err := fixtures.NewGenerator(c.Total, c.PageSize, c.Seed)
		if err != nil {
			log.Println("ERROR:", err.Error())
			os.Exit(1)
		}
		err = g.Dump(c.Dir)
		if err != nil {
			log.Println("ERROR:", err.Error())
			os.Exit(1)
		}
		log.Printf("%d pages written to %s", g.Pages(), c.Dir)
	default:
		log.Printf("ERROR: unknown mode '%s'", c.Mode)
		os.Exit(1)
	}
}

// browse reads people from c.From to c.To, paging them in from c.Base
func browse(c *configuration.Configuration) error {

	config := datasource.FlatConfig{
		Resolver:   pagefetcher.TemplateResolver{Base: c.Base},
		Client:     &http.Client{Timeout: c.Timeout},
		WindowSize: c.WindowSize,
	}
	if c.RequestsPerSecond > 0 {
		config.Limiter = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
	}
	if c.Verbose {
		config.Logger = log.New(os.Stderr, "FETCH: ", log.Lshortfile)
	}

	flat, err := datasource.NewFlat(config)
	if err != nil {
		return fmt.Errorf("new flat data source: %w", err)
	}

	st := store.New(store.Config{
		DataSource: flat,
		Logger:     config.Logger,
	})
	st.OnError(func(q *query.Query, err error) {
		fmt.Printf("WARNING: %s: %s\n", q, err.Error())
	})

	ra := st.Find(query.New(datasource.DefaultRecordType, query.WithTarget(datasource.DefaultTarget)))

	for i := c.From; i < c.To; i++ {

		record, status := ra.ObjectAt(i)
		if status == sparsearray.Pending {
			flat.Wait()
			if ra.Status() == store.StatusError {
				return fmt.Errorf("index %d: %w", i, ra.Err())
			}
			record, status = ra.ObjectAt(i)
		}
		if status == sparsearray.OutOfBounds {
			break
		}
		if status != sparsearray.Loaded {
			return fmt.Errorf("index %d: %s", i, status)
		}

		person := fixtures.Person{}
		err := jsonv2.Unmarshal(record.Payload, &person)
		if err != nil {
			return fmt.Errorf("decode %s: %w", record.Key, err)
		}
		fmt.Printf("%6d  %-36s  %s %s <%s>\n", i, person.Guid, person.FirstName, person.LastName, person.Email)
	}

	length, known := ra.Length()
	if known {
		fmt.Printf("%d people available, %d loaded\n", length, st.Len())
	}

	return nil
}
