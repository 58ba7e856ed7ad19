package apireq

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Result is the outcome of a successful call: *Entity, *Collection,
// *Paginator or *Raw.
type Result interface {
	json.Marshaler
}

// Raw holds a decoded payload that was not shaped into entities.
type Raw struct {
	Value any
}

// MarshalJSON implements json.Marshaler.
func (r *Raw) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.Value)
	if err != nil {
		return nil, fmt.Errorf("encoding raw payload: %w", err)
	}

	return data, nil
}

// Object returns the payload as an ordered object when it is one.
func (r *Raw) Object() (*Object, bool) {
	obj, ok := r.Value.(*Object)

	return obj, ok
}

// Collection is an ordered list of entities plus the response headers.
type Collection struct {
	items   []*Entity
	headers map[string]string
}

// NewCollection creates a collection of items.
func NewCollection(items []*Entity) *Collection {
	if items == nil {
		items = []*Entity{}
	}

	return &Collection{items: items, headers: map[string]string{}}
}

// Items returns a copy of the entities.
func (c *Collection) Items() []*Entity {
	out := make([]*Entity, len(c.items))
	copy(out, c.items)

	return out
}

// Len returns the number of entities.
func (c *Collection) Len() int {
	return len(c.items)
}

// IsEmpty reports whether the collection has no entities.
func (c *Collection) IsEmpty() bool {
	return len(c.items) == 0
}

// At returns the entity at index i, or nil when out of range.
func (c *Collection) At(i int) *Entity {
	if i < 0 || i >= len(c.items) {
		return nil
	}

	return c.items[i]
}

// First returns the first entity, or nil.
func (c *Collection) First() *Entity {
	return c.At(0)
}

// Pluck returns the value of key for every entity, nil where absent.
func (c *Collection) Pluck(key string) []any {
	out := make([]any, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item.Value(key))
	}

	return out
}

// Headers returns a copy of the response headers.
func (c *Collection) Headers() map[string]string {
	out := make(map[string]string, len(c.headers))
	for name, value := range c.headers {
		out[name] = value
	}

	return out
}

// Header returns a response header, matching the name case-insensitively.
func (c *Collection) Header(name string) string {
	if value, ok := c.headers[name]; ok {
		return value
	}

	if value, ok := c.headers[http.CanonicalHeaderKey(name)]; ok {
		return value
	}

	for key, value := range c.headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}

	return ""
}

// SetHeaders replaces the headers with the first value of each name.
func (c *Collection) SetHeaders(headers http.Header) {
	c.headers = FirstHeaderValues(headers)
}

// MarshalJSON writes the entities as a JSON array.
func (c *Collection) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(c.items)
	if err != nil {
		return nil, fmt.Errorf("encoding collection: %w", err)
	}

	return data, nil
}

// MarshalYAML writes the entities as a YAML sequence.
func (c *Collection) MarshalYAML() (interface{}, error) {
	return yamlNode(c.items)
}

// Paginator is a collection carrying length-aware pagination metadata.
type Paginator struct {
	Collection

	total       int
	perPage     int
	currentPage int
}

// NewPaginator creates a paginator over items.
func NewPaginator(items []*Entity, total, perPage, currentPage int) *Paginator {
	return &Paginator{
		Collection:  *NewCollection(items),
		total:       total,
		perPage:     perPage,
		currentPage: currentPage,
	}
}

// Total returns the total number of items across all pages.
func (p *Paginator) Total() int {
	return p.total
}

// PerPage returns the page size.
func (p *Paginator) PerPage() int {
	return p.perPage
}

// CurrentPage returns the current page number.
func (p *Paginator) CurrentPage() int {
	return p.currentPage
}

// LastPage returns the number of the last page, at least 1.
func (p *Paginator) LastPage() int {
	if p.perPage <= 0 || p.total <= 0 {
		return 1
	}

	return (p.total + p.perPage - 1) / p.perPage
}

// HasMorePages reports whether pages follow the current one.
func (p *Paginator) HasMorePages() bool {
	return p.currentPage < p.LastPage()
}

// OnFirstPage reports whether the current page is the first.
func (p *Paginator) OnFirstPage() bool {
	return p.currentPage <= 1
}

// From returns the 1-based index of the first item on the page, or 0.
func (p *Paginator) From() int {
	if p.IsEmpty() {
		return 0
	}

	return (p.currentPage-1)*p.perPage + 1
}

// To returns the 1-based index of the last item on the page, or 0.
func (p *Paginator) To() int {
	if p.IsEmpty() {
		return 0
	}

	return p.From() + p.Len() - 1
}

type paginationJSON struct {
	Total       int `json:"total"        yaml:"total"`
	PerPage     int `json:"per_page"     yaml:"per_page"`
	CurrentPage int `json:"current_page" yaml:"current_page"`
	LastPage    int `json:"last_page"    yaml:"last_page"`
}

type metaJSON struct {
	Pagination paginationJSON `json:"pagination" yaml:"pagination"`
}

type paginatorJSON struct {
	Data []*Entity `json:"data" yaml:"data"`
	Meta metaJSON  `json:"meta" yaml:"meta"`
}

func (p *Paginator) envelope() paginatorJSON {
	return paginatorJSON{
		Data: p.items,
		Meta: metaJSON{Pagination: paginationJSON{
			Total:       p.total,
			PerPage:     p.perPage,
			CurrentPage: p.currentPage,
			LastPage:    p.LastPage(),
		}},
	}
}

// MarshalJSON writes {"data": [...], "meta": {"pagination": {...}}}.
func (p *Paginator) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(p.envelope())
	if err != nil {
		return nil, fmt.Errorf("encoding paginator: %w", err)
	}

	return data, nil
}

// MarshalYAML writes the same structure as MarshalJSON.
func (p *Paginator) MarshalYAML() (interface{}, error) {
	return p.envelope(), nil
}

// FirstHeaderValues keeps the first value of every header name.
func FirstHeaderValues(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}

	return out
}
