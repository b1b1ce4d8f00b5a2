package chain

import (
	"net/http"
	"net/url"
)

// AttributeKey identifies an exchange attribute.
type AttributeKey string

const (
	// AttrOriginalURLs holds every URL the request was addressed to before a
	// stage rewrote it, oldest first ([]*url.URL).
	AttrOriginalURLs AttributeKey = "gateway.original_urls"
	// AttrRequestURL holds the URL the dispatcher should forward to (*url.URL).
	// Only path and query are used; scheme and host come from the route.
	AttrRequestURL AttributeKey = "gateway.request_url"
	// AttrRoute holds the route matched for the request.
	AttrRoute AttributeKey = "gateway.route"
)

// Exchange is a request/response pair travelling through the chain.
type Exchange struct {
	Request  *http.Request
	Response *ResponseWriter

	attrs map[AttributeKey]any
}

// NewExchange wraps an inbound request and its response writer.
func NewExchange(w http.ResponseWriter, r *http.Request) *Exchange {
	rw, ok := w.(*ResponseWriter)
	if !ok {
		rw = NewResponseWriter(w)
	}
	return &Exchange{
		Request:  r,
		Response: rw,
	}
}

// Attribute returns the value stored under key, or nil.
func (e *Exchange) Attribute(key AttributeKey) any {
	return e.attrs[key]
}

// WithAttribute returns a copy of the exchange with key set to value.
func (e *Exchange) WithAttribute(key AttributeKey, value any) *Exchange {
	attrs := make(map[AttributeKey]any, len(e.attrs)+1)
	for k, v := range e.attrs {
		attrs[k] = v
	}
	attrs[key] = value

	out := *e
	out.attrs = attrs
	return &out
}

// WithRequest returns a copy of the exchange carrying r.
func (e *Exchange) WithRequest(r *http.Request) *Exchange {
	out := *e
	out.Request = r
	return &out
}

// WithOriginalURL returns a copy of the exchange with u appended to the
// original URL list. The existing list is not modified.
func (e *Exchange) WithOriginalURL(u *url.URL) *Exchange {
	prev := e.OriginalURLs()
	urls := make([]*url.URL, 0, len(prev)+1)
	urls = append(urls, prev...)
	urls = append(urls, u)
	return e.WithAttribute(AttrOriginalURLs, urls)
}

// OriginalURLs returns the pre-rewrite URLs recorded so far.
func (e *Exchange) OriginalURLs() []*url.URL {
	urls, _ := e.attrs[AttrOriginalURLs].([]*url.URL)
	return urls
}

// RequestURL returns the dispatch URL, falling back to the request's own URL
// when no stage has set one.
func (e *Exchange) RequestURL() *url.URL {
	if u, ok := e.attrs[AttrRequestURL].(*url.URL); ok && u != nil {
		return u
	}
	return e.Request.URL
}
