package apireq

import (
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names understood by repository-style upstream services.
const (
	ParamPage         = "page"
	ParamLimit        = "limit"
	ParamOrderBy      = "orderBy"
	ParamSortedBy     = "sortedBy"
	ParamWith         = "with"
	ParamFilter       = "filter"
	ParamSearch       = "search"
	ParamSearchFields = "searchFields"
	ParamSearchJoin   = "searchJoin"
)

// Search operators used in searchFields.
const (
	SearchEqual = "="
	SearchLike  = "like"
)

// QueryParams builds list query strings.
type QueryParams struct {
	Page         int
	PerPage      int
	OrderBy      string
	SortedBy     string
	With         []string
	Filter       []string
	Search       map[string]string
	SearchFields map[string]string
	SearchJoin   string
	Extra        url.Values
}

// NewQueryParams creates empty query parameters.
func NewQueryParams() *QueryParams {
	return &QueryParams{
		Search:       make(map[string]string),
		SearchFields: make(map[string]string),
		Extra:        url.Values{},
	}
}

// WithPage sets the page number.
func (q *QueryParams) WithPage(page int) *QueryParams {
	q.Page = page

	return q
}

// WithPerPage sets the page size.
func (q *QueryParams) WithPerPage(perPage int) *QueryParams {
	q.PerPage = perPage

	return q
}

// WithOrder sets the ordering column and direction ("asc" or "desc").
func (q *QueryParams) WithOrder(column, direction string) *QueryParams {
	q.OrderBy = column
	q.SortedBy = direction

	return q
}

// WithRelations requests related resources to be embedded.
func (q *QueryParams) WithRelations(relations ...string) *QueryParams {
	q.With = append(q.With, relations...)

	return q
}

// WithFilter limits the returned columns.
func (q *QueryParams) WithFilter(columns ...string) *QueryParams {
	q.Filter = append(q.Filter, columns...)

	return q
}

// WithSearch adds a search term for field compared with operator.
func (q *QueryParams) WithSearch(field, value, operator string) *QueryParams {
	if q.Search == nil {
		q.Search = make(map[string]string)
	}

	if q.SearchFields == nil {
		q.SearchFields = make(map[string]string)
	}

	q.Search[field] = value
	q.SearchFields[field] = operator

	return q
}

// WithSearchJoin sets how search terms combine ("and" or "or").
func (q *QueryParams) WithSearchJoin(join string) *QueryParams {
	q.SearchJoin = join

	return q
}

// Set adds an arbitrary parameter.
func (q *QueryParams) Set(key, value string) *QueryParams {
	if q.Extra == nil {
		q.Extra = url.Values{}
	}

	q.Extra.Set(key, value)

	return q
}

// ToValues converts the parameters to url.Values. Zero fields are omitted.
func (q *QueryParams) ToValues() url.Values {
	values := url.Values{}

	for key, list := range q.Extra {
		values[key] = append([]string(nil), list...)
	}

	if q.Page > 0 {
		values.Set(ParamPage, strconv.Itoa(q.Page))
	}

	if q.PerPage > 0 {
		values.Set(ParamLimit, strconv.Itoa(q.PerPage))
	}

	if q.OrderBy != "" {
		values.Set(ParamOrderBy, q.OrderBy)
	}

	if q.SortedBy != "" {
		values.Set(ParamSortedBy, q.SortedBy)
	}

	if len(q.With) > 0 {
		values.Set(ParamWith, strings.Join(q.With, ";"))
	}

	if len(q.Filter) > 0 {
		values.Set(ParamFilter, strings.Join(q.Filter, ";"))
	}

	if len(q.Search) > 0 {
		search := make([]string, 0, len(q.Search))
		fields := make([]string, 0, len(q.SearchFields))

		for _, key := range sortedKeys(q.Search) {
			search = append(search, key+":"+q.Search[key])

			if operator := q.SearchFields[key]; operator != "" {
				fields = append(fields, key+":"+operator)
			}
		}

		values.Set(ParamSearch, strings.Join(search, ";"))

		if len(fields) > 0 {
			values.Set(ParamSearchFields, strings.Join(fields, ";"))
		}
	}

	if q.SearchJoin != "" {
		values.Set(ParamSearchJoin, q.SearchJoin)
	}

	return values
}

// AdvancedQuery folds the request parameters named in equal and like into
// the search and searchFields parameters of input.
//
// A parameter listed in both equal and like is treated as equal. Equal terms
// come first, then like terms, each in key order. Folded keys are removed
// from the returned values. input is not modified.
func AdvancedQuery(input, request url.Values, equal, like []string) url.Values {
	out := cloneValues(input)
	if out == nil {
		out = url.Values{}
	}

	equalSet := toSet(equal)
	likeSet := toSet(like)

	var equalKeys, likeKeys []string

	for _, key := range sortedKeys(map[string][]string(request)) {
		switch {
		case equalSet[key]:
			equalKeys = append(equalKeys, key)
		case likeSet[key]:
			likeKeys = append(likeKeys, key)
		}
	}

	search := make([]string, 0, len(equalKeys)+len(likeKeys))
	fields := make([]string, 0, len(equalKeys)+len(likeKeys))

	for _, key := range equalKeys {
		search = append(search, key+":"+request.Get(key))
		fields = append(fields, key+":"+SearchEqual)
		out.Del(key)
	}

	for _, key := range likeKeys {
		search = append(search, key+":"+request.Get(key))
		fields = append(fields, key+":"+SearchLike)
		out.Del(key)
	}

	if len(search) > 0 {
		out.Set(ParamSearch, strings.Join(search, ";"))
		out.Set(ParamSearchFields, strings.Join(fields, ";"))
	}

	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}

	return set
}
