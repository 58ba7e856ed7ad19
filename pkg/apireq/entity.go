package apireq

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Schema describes an entity type: a name plus the fields that hold related
// entities. Related fields are expanded into *Entity (objects) or []*Entity
// (lists of objects) when an entity is constructed.
type Schema struct {
	Name      string
	Relations map[string]*Schema
}

// NewSchema creates a schema without relations.
func NewSchema(name string) *Schema {
	return &Schema{Name: name}
}

// HasOne declares that field holds a single related entity.
func (s *Schema) HasOne(field string, related *Schema) *Schema {
	return s.relate(field, related)
}

// HasMany declares that field holds a list of related entities.
func (s *Schema) HasMany(field string, related *Schema) *Schema {
	return s.relate(field, related)
}

func (s *Schema) relate(field string, related *Schema) *Schema {
	if s.Relations == nil {
		s.Relations = make(map[string]*Schema)
	}

	s.Relations[field] = related

	return s
}

// Relation returns the schema declared for field.
func (s *Schema) Relation(field string) (*Schema, bool) {
	if s == nil || s.Relations == nil {
		return nil, false
	}

	related, ok := s.Relations[field]

	return related, ok && related != nil
}

// New builds an entity of this schema from decoded attributes.
func (s *Schema) New(attributes *Object) *Entity {
	return NewEntity(s, attributes)
}

// Entity is a decoded API record with ordered, dynamically named attributes.
type Entity struct {
	schema     *Schema
	attributes *Object
}

// NewEntity creates an entity and fills it with attributes, expanding related
// fields declared by schema.
func NewEntity(schema *Schema, attributes *Object) *Entity {
	entity := &Entity{
		schema:     schema,
		attributes: NewObject(),
	}

	if attributes != nil {
		entity.Fill(attributes)
	}

	return entity
}

// EntityFromJSON decodes a JSON object into an entity of schema.
func EntityFromJSON(data []byte, schema *Schema) (*Entity, error) {
	value, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}

	obj, ok := value.(*Object)
	if !ok {
		return nil, fmt.Errorf("%w: entity requires a JSON object, got %T", ErrMalformedPayload, value)
	}

	return NewEntity(schema, obj), nil
}

// Schema returns the entity's schema, which may be nil.
func (e *Entity) Schema() *Schema {
	return e.schema
}

// Fill sets every attribute of attributes in order.
func (e *Entity) Fill(attributes *Object) *Entity {
	for pair := attributes.Oldest(); pair != nil; pair = pair.Next() {
		e.attributes.Set(pair.Key, e.expand(pair.Key, pair.Value))
	}

	return e
}

func (e *Entity) expand(field string, value any) any {
	related, ok := e.schema.Relation(field)
	if !ok {
		return value
	}

	switch typed := value.(type) {
	case *Object:
		return NewEntity(related, typed)
	case []any:
		items := make([]*Entity, 0, len(typed))

		for _, item := range typed {
			obj, isObject := item.(*Object)
			if !isObject {
				return value
			}

			items = append(items, NewEntity(related, obj))
		}

		return items
	default:
		return value
	}
}

// Get returns the attribute value and whether the key is present.
func (e *Entity) Get(key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	return e.attributes.Get(key)
}

// Value returns the attribute value, or nil when the key is absent.
func (e *Entity) Value(key string) any {
	value, _ := e.Get(key)

	return value
}

// Has reports whether key is present, even with a null value.
func (e *Entity) Has(key string) bool {
	_, ok := e.Get(key)

	return ok
}

// IsSet reports whether key is present with a non-null value.
func (e *Entity) IsSet(key string) bool {
	value, ok := e.Get(key)

	return ok && value != nil
}

// Set sets a raw attribute value. Related fields are not expanded.
func (e *Entity) Set(key string, value any) *Entity {
	e.attributes.Set(key, value)

	return e
}

// Delete removes an attribute.
func (e *Entity) Delete(key string) {
	e.attributes.Delete(key)
}

// Keys returns the attribute names in order.
func (e *Entity) Keys() []string {
	keys := make([]string, 0, e.attributes.Len())
	for pair := e.attributes.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}

	return keys
}

// Len returns the number of attributes.
func (e *Entity) Len() int {
	return e.attributes.Len()
}

// Attributes returns a shallow copy of the attributes.
func (e *Entity) Attributes() *Object {
	out := NewObject()
	for pair := e.attributes.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}

	return out
}

// String returns a string attribute.
func (e *Entity) String(key string) (string, bool) {
	value, ok := e.Get(key)
	if !ok {
		return "", false
	}

	switch typed := value.(type) {
	case string:
		return typed, true
	case json.Number:
		return typed.String(), true
	default:
		return "", false
	}
}

// Int returns an integer attribute. Numeric strings are accepted.
func (e *Entity) Int(key string) (int64, bool) {
	value, ok := e.Get(key)
	if !ok {
		return 0, false
	}

	n, err := toInt64(value)
	if err != nil {
		return 0, false
	}

	return n, true
}

// Float returns a numeric attribute as float64.
func (e *Entity) Float(key string) (float64, bool) {
	value, ok := e.Get(key)
	if !ok {
		return 0, false
	}

	switch typed := value.(type) {
	case json.Number:
		f, err := typed.Float64()

		return f, err == nil
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		f, err := strconv.ParseFloat(typed, 64)

		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns a boolean attribute.
func (e *Entity) Bool(key string) (bool, bool) {
	value, ok := e.Get(key)
	if !ok {
		return false, false
	}

	b, isBool := value.(bool)

	return b, isBool
}

// Related returns a single related entity.
func (e *Entity) Related(key string) (*Entity, bool) {
	related, ok := e.Value(key).(*Entity)

	return related, ok
}

// RelatedMany returns a list of related entities.
func (e *Entity) RelatedMany(key string) ([]*Entity, bool) {
	related, ok := e.Value(key).([]*Entity)

	return related, ok
}

// ToMap converts the entity into plain maps and slices.
func (e *Entity) ToMap() map[string]any {
	out := make(map[string]any, e.attributes.Len())
	for pair := e.attributes.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = toPlain(pair.Value)
	}

	return out
}

// MarshalJSON writes the attributes as a JSON object in insertion order.
func (e *Entity) MarshalJSON() ([]byte, error) {
	data, err := e.attributes.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding entity: %w", err)
	}

	return data, nil
}

// UnmarshalJSON replaces the attributes with the decoded object, expanding
// relations of the current schema.
func (e *Entity) UnmarshalJSON(data []byte) error {
	value, err := DecodeJSON(data)
	if err != nil {
		return err
	}

	obj, ok := value.(*Object)
	if !ok {
		return fmt.Errorf("%w: entity requires a JSON object, got %T", ErrMalformedPayload, value)
	}

	e.attributes = NewObject()
	e.Fill(obj)

	return nil
}

// MarshalYAML writes the attributes as a YAML mapping in insertion order.
func (e *Entity) MarshalYAML() (interface{}, error) {
	return yamlNode(e.attributes)
}

func yamlNode(value any) (*yaml.Node, error) {
	switch typed := value.(type) {
	case *Object:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

		for pair := typed.Oldest(); pair != nil; pair = pair.Next() {
			child, err := yamlNode(pair.Value)
			if err != nil {
				return nil, err
			}

			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: pair.Key},
				child,
			)
		}

		return node, nil
	case *Entity:
		return yamlNode(typed.attributes)
	case []*Entity:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}

		for _, item := range typed {
			child, err := yamlNode(item.attributes)
			if err != nil {
				return nil, err
			}

			node.Content = append(node.Content, child)
		}

		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}

		for _, item := range typed {
			child, err := yamlNode(item)
			if err != nil {
				return nil, err
			}

			node.Content = append(node.Content, child)
		}

		return node, nil
	case json.Number:
		tag := "!!float"
		if _, err := typed.Int64(); err == nil {
			tag = "!!int"
		}

		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: typed.String()}, nil
	default:
		node := &yaml.Node{}

		err := node.Encode(typed)
		if err != nil {
			return nil, fmt.Errorf("encoding yaml value: %w", err)
		}

		return node, nil
	}
}

func toInt64(value any) (int64, error) {
	switch typed := value.(type) {
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n, nil
		}

		f, err := typed.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: parsing number %q: %w", ErrMalformedPayload, typed, err)
		}

		return wholeFloat(f)
	case float64:
		return wholeFloat(typed)
	case int:
		return int64(typed), nil
	case int64:
		return typed, nil
	case string:
		n, err := strconv.ParseInt(typed, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: parsing number %q: %w", ErrMalformedPayload, typed, err)
		}

		return n, nil
	default:
		return 0, fmt.Errorf("%w: expected a number, got %T", ErrMalformedPayload, value)
	}
}

func wholeFloat(f float64) (int64, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrMalformedPayload, f)
	}

	// 2^63 is exactly representable; MaxInt64 is not and rounds up to it
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v is out of range", ErrMalformedPayload, f)
	}

	return int64(f), nil
}
