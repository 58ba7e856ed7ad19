package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

func writeYAML(out io.Writer, value interface{}) error {
	encoder := yaml.NewEncoder(out)
	defer func() { _ = encoder.Close() }()

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

// renderResult prints a call result in the requested format.
func renderResult(out io.Writer, result apireq.Result, format string) error {
	switch format {
	case constants.FormatJSON:
		return writeJSON(out, result)
	case constants.FormatYAML:
		return writeYAML(out, yamlValue(result))
	default:
		return renderTable(out, result)
	}
}

// yamlValue returns a value whose YAML encoding keeps key order. Raw payloads
// are re-read as a YAML node from their JSON form.
func yamlValue(result apireq.Result) interface{} {
	raw, ok := result.(*apireq.Raw)
	if !ok {
		return result
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return raw.Value
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return raw.Value
	}

	return &node
}

func renderTable(out io.Writer, result apireq.Result) error {
	switch typed := result.(type) {
	case *apireq.Entity:
		return renderEntity(out, typed)
	case *apireq.Paginator:
		err := renderCollection(out, typed.Items())
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(out, "Page %d of %d (%d total)\n", typed.CurrentPage(), typed.LastPage(), typed.Total())

		return nil
	case *apireq.Collection:
		return renderCollection(out, typed.Items())
	case *apireq.Raw:
		if obj, ok := typed.Object(); ok {
			return renderEntity(out, apireq.NewEntity(nil, obj))
		}

		return writeJSON(out, typed)
	default:
		return writeJSON(out, result)
	}
}

func renderEntity(out io.Writer, entity *apireq.Entity) error {
	table := tablewriter.NewWriter(out)
	table.Header("Field", "Value")

	for _, key := range entity.Keys() {
		_ = table.Append(key, formatCell(entity.Value(key)))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func renderCollection(out io.Writer, items []*apireq.Entity) error {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(out, "No results")

		return nil
	}

	columns := collectionColumns(items)

	header := make([]any, len(columns))
	for i, column := range columns {
		header[i] = column
	}

	table := tablewriter.NewWriter(out)
	table.Header(header...)

	for _, item := range items {
		row := make([]any, len(columns))
		for i, column := range columns {
			row[i] = formatCell(item.Value(column))
		}

		_ = table.Append(row...)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// collectionColumns returns every attribute name in order of first appearance.
func collectionColumns(items []*apireq.Entity) []string {
	seen := map[string]bool{}
	columns := []string{}

	for _, item := range items {
		for _, key := range item.Keys() {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}

	return columns
}

func formatCell(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		return fmt.Sprintf("%t", typed)
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}

		return string(data)
	}
}
