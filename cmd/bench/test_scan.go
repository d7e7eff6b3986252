package main

import (
	"fmt"
	"time"

	"github.com/fulldump/bigdata/sparsearray"
)

// TestScan reads every person in order, one window at a time
func TestScan(c Config) {

	if c.Base == "" {
		start, stop := CreateServer(&c, "")
		defer stop()
		go start()
	}

	flat, st, ra := Browse(c)

	t0 := time.Now()
	read := 0
	for i := 0; ; i++ {
		_, status := ra.ObjectAt(i)
		if status == sparsearray.Pending {
			flat.Wait()
			_, status = ra.ObjectAt(i)
		}
		if status != sparsearray.Loaded {
			break
		}
		read++
	}

	took := time.Since(t0)
	fmt.Println("read:", read)
	fmt.Println("loaded:", st.Len())
	fmt.Println("took:", took)
	fmt.Printf("Throughput: %.2f rows/sec\n", float64(read)/took.Seconds())
}
