package configuration

import "time"

type Configuration struct {
	Mode              string        `usage:"what to run: serve | browse | dump"`
	HttpAddr          string        `usage:"HTTP address to serve fixtures"`
	Statics           string        `usage:"statics directory, eg: the output of dump"`
	EnableCompression bool          `usage:"gzip page responses"`
	Total             int           `usage:"number of people in the fixtures"`
	PageSize          int           `usage:"people per fixture page"`
	Seed              uint64        `usage:"fixtures random seed"`
	Dir               string        `usage:"dump directory"`
	Base              string        `usage:"URL of the first page, other pages are derived from it"`
	WindowSize        int           `usage:"sparse array window size"`
	From              int           `usage:"first index to browse"`
	To                int           `usage:"browse until this index (excluded)"`
	RequestsPerSecond float64       `usage:"max page requests per second, 0 means unlimited"`
	Timeout           time.Duration `usage:"http client timeout, 0 means none"`
	Verbose           bool          `usage:"log paging activity"`
	Version           bool          `usage:"show version and exit"`
	ShowBanner        bool          `usage:"show big banner"`
	ShowConfig        bool          `usage:"print config"`
}

func Default() *Configuration {
	return &Configuration{
		Mode:       "serve",
		HttpAddr:   "127.0.0.1:8080",
		Total:      3500,
		PageSize:   100,
		Seed:       1,
		Dir:        "fixtures",
		Base:       "http://127.0.0.1:8080/static/people_1.json",
		WindowSize: 100,
		From:       0,
		To:         250,
		ShowBanner: true,
	}
}
