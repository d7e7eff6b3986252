package pagefetcher

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PageID is the 1-based page holding windowStart
func PageID(windowStart, windowSize int) int {
	return windowStart/windowSize + 1
}

// Resolver turns a page into a fetchable URL
type Resolver interface {
	Resolve(page, start, length int) (string, error)
}

type ResolverFunc func(page, start, length int) (string, error)

func (f ResolverFunc) Resolve(page, start, length int) (string, error) {
	return f(page, start, length)
}

// TemplateResolver derives the URL of any page from the URL of page 1, eg:
//
//	http://localhost:8080/static/people_1.json
//
// becomes, for page 3:
//
//	http://localhost:8080/static/people_3.json?start=200&length=100
type TemplateResolver struct {
	Base   string
	Marker string // defaults to "_1"
}

func (r TemplateResolver) Resolve(page, start, length int) (string, error) {

	u, err := url.Parse(r.Base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	marker := r.Marker
	if marker == "" {
		marker = "_1"
	}

	i := strings.LastIndex(u.Path, marker)
	if i < 0 {
		return "", fmt.Errorf("base url '%s' has no '%s' marker", r.Base, marker)
	}
	u.Path = u.Path[:i] + "_" + strconv.Itoa(page) + u.Path[i+len(marker):]

	params := fmt.Sprintf("start=%d&length=%d", start, length)
	if u.RawQuery != "" {
		params = u.RawQuery + "&" + params
	}
	u.RawQuery = params

	return u.String(), nil
}
