package api

import (
	"context"
	"fmt"

	"github.com/fulldump/box"

	"github.com/fulldump/bigdata/fixtures"
)

// getPage serves people_<n>.json. The start and length query parameters
// sent by clients are accepted and ignored: pages are fixed.
func getPage(ctx context.Context) (*fixtures.Body, error) {

	file := box.GetUrlParameter(ctx, "file")
	n, ok := fixtures.ParseFileName(file)
	if !ok {
		counterPagesServed.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: '%s'", fixtures.ErrPageNotFound, file)
	}

	body, err := GetGenerator(ctx).Page(n)
	if err != nil {
		counterPagesServed.WithLabelValues("not_found").Inc()
		return nil, err
	}

	counterPagesServed.WithLabelValues("ok").Inc()
	return body, nil
}
