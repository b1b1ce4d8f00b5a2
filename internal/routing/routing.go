// Package routing matches inbound requests to backend routes by the first
// segment of their original path.
package routing

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/tjfontaine/edge-gateway/internal/chain"
)

// Route forwards requests whose first path segment equals Prefix to Target.
type Route struct {
	ID     string
	Prefix string
	Target *url.URL
}

// NotFoundError is returned when no route matches a request.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no route for path %q", e.Path)
}

// Table is a set of routes keyed by prefix. It is safe for concurrent use and
// can be replaced wholesale with Update.
type Table struct {
	routes atomic.Pointer[map[string]*Route]
}

// NewTable builds a table from routes.
func NewTable(routes []Route) *Table {
	t := &Table{}
	t.Update(routes)
	return t
}

// Update replaces the table contents. Later routes with a duplicate prefix
// replace earlier ones.
func (t *Table) Update(routes []Route) {
	m := make(map[string]*Route, len(routes))
	for i := range routes {
		r := routes[i]
		m[strings.Trim(r.Prefix, "/")] = &r
	}
	t.routes.Store(&m)
}

// Match returns the route for the first segment of path.
func (t *Table) Match(path string) (*Route, bool) {
	m := t.routes.Load()
	if m == nil {
		return nil, false
	}
	r, ok := (*m)[firstSegment(path)]
	return r, ok
}

// Len returns the number of routes.
func (t *Table) Len() int {
	m := t.routes.Load()
	if m == nil {
		return 0
	}
	return len(*m)
}

func firstSegment(path string) string {
	for _, s := range strings.Split(path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// FromExchange returns the route stored on the exchange by the routing stage.
func FromExchange(ex *chain.Exchange) (*Route, bool) {
	r, ok := ex.Attribute(chain.AttrRoute).(*Route)
	return r, ok
}

// Stage resolves the route before any stage rewrites the path.
type Stage struct {
	table *Table
}

var _ chain.Stage = (*Stage)(nil)

// NewStage returns a routing stage backed by table.
func NewStage(table *Table) *Stage {
	return &Stage{table: table}
}

func (s *Stage) Name() string { return "routing" }

func (s *Stage) Order() int { return -100 }

func (s *Stage) Filter(ex *chain.Exchange, next chain.Next) error {
	path := ex.Request.URL.EscapedPath()
	if urls := ex.OriginalURLs(); len(urls) > 0 {
		path = urls[0].EscapedPath()
	}

	route, ok := s.table.Match(path)
	if !ok {
		return &NotFoundError{Path: path}
	}
	return next(ex.WithAttribute(chain.AttrRoute, route))
}
