package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/fulldump/goconfig"
)

type Config struct {
	Test       string `usage:"name of the test: ALL | SCAN | RANDOM | STATICS"`
	Base       string `usage:"URL of the first page, empty to start a local server"`
	N          int64  `usage:"number of reads for RANDOM"`
	Workers    int    `usage:"number of workers"`
	Total      int    `usage:"number of people served by the local server"`
	WindowSize int    `usage:"sparse array window size"`
}

var cleanups []func()

func main() {

	defer func() {
		fmt.Println("Cleaning up...")
		for _, cleanup := range cleanups {
			cleanup()
		}
	}()

	c := Config{
		Test:       "scan",
		Base:       "",
		N:          100_000,
		Workers:    16,
		Total:      100_000,
		WindowSize: 100,
	}
	goconfig.Read(&c)

	switch strings.ToUpper(c.Test) {
	case "ALL":
		TestScan(c)
		TestRandom(c)
		TestStatics(c)
	case "SCAN":
		TestScan(c)
	case "RANDOM":
		TestRandom(c)
	case "STATICS":
		TestStatics(c)
	default:
		log.Fatalf("Unknown test %s", c.Test)
	}

}
