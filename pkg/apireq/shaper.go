package apireq

import (
	"fmt"
	"net/http"

	"github.com/fivetwenty-io/apirequests/internal/constants"
)

// Shape converts an unwrapped response payload into a Result.
//
// Without a schema the payload is returned as *Raw. Otherwise an object with a
// "meta" key becomes a *Paginator, an object whose only key is "data" becomes
// a *Collection, a top-level list becomes a *Collection and any other object
// becomes a single *Entity. Headers are attached to collections and
// paginators with the first value of every name.
func Shape(body any, headers http.Header, schema *Schema) (Result, error) {
	if schema == nil {
		return &Raw{Value: body}, nil
	}

	switch typed := body.(type) {
	case *Object:
		return shapeObject(typed, headers, schema)
	case []any:
		items, err := entities(typed, schema)
		if err != nil {
			return nil, err
		}

		collection := NewCollection(items)
		collection.SetHeaders(headers)

		return collection, nil
	default:
		return nil, fmt.Errorf("%w: cannot build %s from %T", ErrMalformedPayload, schema.Name, body)
	}
}

func shapeObject(obj *Object, headers http.Header, schema *Schema) (Result, error) {
	if meta, ok := obj.Get(constants.MetaKey); ok {
		items, err := dataList(obj, schema)
		if err != nil {
			return nil, err
		}

		total, perPage, currentPage, err := pagination(meta)
		if err != nil {
			return nil, err
		}

		paginator := NewPaginator(items, total, perPage, currentPage)
		paginator.SetHeaders(headers)

		return paginator, nil
	}

	if _, ok := obj.Get(constants.DataKey); ok && obj.Len() == 1 {
		items, err := dataList(obj, schema)
		if err != nil {
			return nil, err
		}

		collection := NewCollection(items)
		collection.SetHeaders(headers)

		return collection, nil
	}

	return NewEntity(schema, obj), nil
}

func dataList(obj *Object, schema *Schema) ([]*Entity, error) {
	data, _ := obj.Get(constants.DataKey)

	switch typed := data.(type) {
	case nil:
		return []*Entity{}, nil
	case []any:
		return entities(typed, schema)
	default:
		return nil, fmt.Errorf("%w: %q must be a list, got %T", ErrMalformedPayload, constants.DataKey, data)
	}
}

func entities(list []any, schema *Schema) ([]*Entity, error) {
	items := make([]*Entity, 0, len(list))

	for i, item := range list {
		obj, ok := item.(*Object)
		if !ok {
			return nil, fmt.Errorf("%w: item %d must be an object, got %T", ErrMalformedPayload, i, item)
		}

		items = append(items, NewEntity(schema, obj))
	}

	return items, nil
}

// pagination reads meta.pagination. Missing counters default to zero and a
// missing current page defaults to 1.
func pagination(meta any) (int, int, int, error) {
	metaObj, ok := meta.(*Object)
	if !ok {
		if meta == nil {
			return 0, 0, 1, nil
		}

		return 0, 0, 0, fmt.Errorf("%w: %q must be an object, got %T", ErrMalformedPayload, constants.MetaKey, meta)
	}

	raw, _ := metaObj.Get(constants.PaginationKey)
	if raw == nil {
		return 0, 0, 1, nil
	}

	page, ok := raw.(*Object)
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: %q must be an object, got %T", ErrMalformedPayload, constants.PaginationKey, raw)
	}

	total, err := intField(page, constants.TotalKey, 0)
	if err != nil {
		return 0, 0, 0, err
	}

	perPage, err := intField(page, constants.PerPageKey, 0)
	if err != nil {
		return 0, 0, 0, err
	}

	currentPage, err := intField(page, constants.CurrentPageKey, 1)
	if err != nil {
		return 0, 0, 0, err
	}

	return total, perPage, currentPage, nil
}

func intField(obj *Object, key string, fallback int) (int, error) {
	value, ok := obj.Get(key)
	if !ok || value == nil {
		return fallback, nil
	}

	n, err := toInt64(value)
	if err != nil {
		return 0, fmt.Errorf("pagination %s: %w", key, err)
	}

	return int(n), nil
}
