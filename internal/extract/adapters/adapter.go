package adapters

import (
	"errors"

	"github.com/ppiankov/citecheck/internal/model"
	"golang.org/x/net/html"
)

// ErrNoSources means a marker could not be traced to any cited source
var ErrNoSources = errors.New("no cited source found for marker")

// Adapter resolves citation markers to the sources they cite
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle reports whether the adapter understands pages at pageURL
	CanHandle(pageURL string, contentType string) bool

	// ResolveSources returns the sources cited by a marker element
	ResolveSources(doc *html.Node, marker *html.Node, pageURL string) ([]model.Evidence, error)
}

// Registry picks the adapter for an article
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry returns a registry holding the site adapters, with the
// generic adapter as fallback
func NewRegistry() *Registry {
	return &Registry{
		adapters: []Adapter{NewWikipediaAdapter()},
		generic:  NewGenericAdapter(),
	}
}

// Register adds an adapter ahead of the generic fallback
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter returns the first registered adapter accepting the page,
// or the generic adapter
func (r *Registry) FindAdapter(pageURL string, contentType string) Adapter {
	for _, a := range r.adapters {
		if a.CanHandle(pageURL, contentType) {
			return a
		}
	}
	return r.generic
}
