package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fulldump/bigdata/fixtures"
)

// TestStatics dumps the fixtures to disk and scans them served as plain
// static files.
func TestStatics(c Config) {

	if c.Base != "" {
		fmt.Println("STATICS needs a local server, ignoring base", c.Base)
		c.Base = ""
	}

	dir, cleanup := TempDir()
	cleanups = append(cleanups, cleanup)

	g, err := fixtures.NewGenerator(c.Total, c.WindowSize, 1)
	if err != nil {
		fmt.Println("ERROR: new generator:", err.Error())
		os.Exit(4)
	}

	t0 := time.Now()
	err = g.Dump(dir)
	if err != nil {
		fmt.Println("ERROR: dump:", err.Error())
		os.Exit(5)
	}
	fmt.Println("dumped:", g.Pages(), "pages in", time.Since(t0))

	start, stop := CreateServer(&c, dir)
	defer stop()
	go start()

	// served by the statics handler instead of the generator
	c.Base = strings.Replace(c.Base, "/static/", "/", 1)

	TestScan(c)
}
