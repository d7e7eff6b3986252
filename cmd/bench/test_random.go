package main

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/fulldump/bigdata/sparsearray"
	"github.com/fulldump/bigdata/store"
)

// TestRandom reads random people from many workers at once. Workers reading
// the same window share a single page request.
func TestRandom(c Config) {

	if c.Base == "" {
		start, stop := CreateServer(&c, "")
		defer stop()
		go start()
	}

	flat, st, ra := Browse(c)

	// wait for the first window to know the length
	flat.Wait()
	total, known := ra.Length()
	if !known || total == 0 {
		fmt.Println("ERROR: empty data set, status:", ra.Status())
		return
	}

	items := c.N

	go func() {
		for {
			fmt.Println("items:", atomic.LoadInt64(&items), "loaded:", st.Len())
			time.Sleep(1 * time.Second)
		}
	}()

	t0 := time.Now()
	Parallel(c.Workers, func() {
		for {
			n := atomic.AddInt64(&items, -1)
			if n < 0 {
				break
			}
			i := rand.IntN(total)
			for {
				_, status := ra.ObjectAt(i)
				if status != sparsearray.Pending {
					break
				}
				if ra.Status() == store.StatusError {
					fmt.Println("ERROR:", ra.Err())
					return
				}
				time.Sleep(time.Millisecond)
			}
		}
	})

	took := time.Since(t0)
	fmt.Println("read:", c.N)
	fmt.Println("loaded:", st.Len())
	fmt.Println("took:", took)
	fmt.Printf("Throughput: %.2f rows/sec\n", float64(c.N)/took.Seconds())
}
