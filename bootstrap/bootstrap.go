package bootstrap

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulldump/box"

	"github.com/fulldump/bigdata/api"
	"github.com/fulldump/bigdata/configuration"
	"github.com/fulldump/bigdata/fixtures"
)

var VERSION = "dev"

// Bootstrap prepares the fixture server. start blocks until stop is called
// or a termination signal is received.
func Bootstrap(c *configuration.Configuration) (start, stop func()) {

	g, err := fixtures.NewGenerator(c.Total, c.PageSize, c.Seed)
	if err != nil {
		log.Println("ERROR:", err.Error())
		os.Exit(-1)
	}

	b := api.Build(g, c.Statics, VERSION)
	if c.EnableCompression {
		b.WithInterceptors(api.Compression)
	}
	b.WithInterceptors(
		api.AccessLog(log.New(os.Stdout, "ACCESS: ", log.Lshortfile)),
		api.RecoverFromPanic,
		api.PrettyErrorInterceptor,
	)

	s := &http.Server{
		Addr:    c.HttpAddr,
		Handler: box.Box2Http(b),
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		log.Println("ERROR:", err.Error())
		os.Exit(-1)
	}
	log.Println("listening on", c.HttpAddr)
	log.Printf("serving %d people in %d pages, first page http://%s/static/%s", g.Total, g.Pages(), ln.Addr(), fixtures.FileName(1))

	stop = func() {
		s.Shutdown(context.Background())
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for {
			sig := <-signalChan
			fmt.Println("Signal received", sig.String())
			stop()
		}
	}()

	start = func() {
		err := s.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			fmt.Println(err.Error())
		}
	}

	return
}
