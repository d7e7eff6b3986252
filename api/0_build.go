package api

import (
	"context"
	"net/http"

	"github.com/fulldump/box"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fulldump/bigdata/fixtures"
	"github.com/fulldump/bigdata/statics"
)

// Build mounts the fixture server: generated pages under /static and,
// optionally, a directory with pre-built files (see fixtures.Dump) under /.
func Build(g *fixtures.Generator, staticsDir, version string) *box.B {

	b := box.NewBox()

	b.Resource("/static/{file}").
		WithInterceptors(
			injectGenerator(g),
			box.SetResponseHeader("Content-Type", "application/json"),
		).
		WithActions(
			box.Get(getPage),
		)

	b.Resource("/v1/info").
		WithInterceptors(
			injectGenerator(g),
		).
		WithActions(
			box.Get(func(ctx context.Context) *InfoResponse {
				g := GetGenerator(ctx)
				return &InfoResponse{
					Version:    version,
					TotalCount: g.Total,
					PageSize:   g.PageSize,
					Pages:      g.Pages(),
					FirstPage:  "/static/" + fixtures.FileName(1),
				}
			}),
		)

	b.Resource("/metrics").
		WithActions(
			box.Get(http.HandlerFunc(promhttp.Handler().ServeHTTP)).WithName("metrics"),
		)

	// Mount statics
	b.Resource("/*").
		WithActions(
			box.Get(statics.ServeStatics(staticsDir)).WithName("serveStatics"),
		)

	return b
}

type InfoResponse struct {
	Version    string `json:"version"`
	TotalCount int    `json:"totalCount"`
	PageSize   int    `json:"pageSize"`
	Pages      int    `json:"pages"`
	FirstPage  string `json:"firstPage"`
}

const ContextGeneratorKey = "3c5e1f2a-8d6b-11ef-a1c3-0b7e5d4f9a21"

func injectGenerator(g *fixtures.Generator) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(context.WithValue(ctx, ContextGeneratorKey, g))
		}
	}
}

func GetGenerator(ctx context.Context) *fixtures.Generator {
	return ctx.Value(ContextGeneratorKey).(*fixtures.Generator)
}
