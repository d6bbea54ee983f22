package output

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// Tabler is implemented by results that render as one or more tables.
type Tabler interface {
	Tables(wide bool) []*Table
}

// TableFormatter formats data as aligned text tables.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format formats data as tables.
// Supports Tabler, *Table, slices of structs and maps; anything else is
// written as JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	var tables []*Table
	switch d := data.(type) {
	case nil:
		return nil
	case Tabler:
		tables = d.Tables(f.Wide)
	case *Table:
		tables = []*Table{d}
	default:
		t, err := toTable(data, f.Wide)
		if err != nil {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		}
		tables = []*Table{t}
	}

	for i, t := range tables {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := t.RenderWithOptions(w, f.NoHeaders); err != nil {
			return err
		}
	}
	return nil
}

// NewTable converts a slice of structs or a map into a titled Table.
func NewTable(title string, data any, wide bool) (*Table, error) {
	t, err := toTable(data, wide)
	if err != nil {
		return nil, err
	}
	t.Title = title
	return t, nil
}

// toTable converts slices of structs and maps to a Table.
func toTable(data any, wide bool) (*Table, error) {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return sliceToTable(v, wide)
	case reflect.Map:
		return mapToTable(v), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", v.Kind())
	}
}

// sliceToTable renders one row per struct element. Fields tagged
// `table:"-"` are skipped and `table:"wide"` only appear in wide mode.
func sliceToTable(v reflect.Value, wide bool) (*Table, error) {
	elemType := v.Type().Elem()
	if elemType.Kind() == reflect.Ptr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("unsupported element type: %s", elemType.Kind())
	}

	t := &Table{}
	var fields []int
	for i := 0; i < elemType.NumField(); i++ {
		field := elemType.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("table")
		if tag == "-" || (tag == "wide" && !wide) {
			continue
		}
		t.Headers = append(t.Headers, strings.ToUpper(columnName(field)))
		fields = append(fields, i)
	}

	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		row := make([]string, 0, len(fields))
		for _, idx := range fields {
			row = append(row, FormatValue(elem.Field(idx).Interface()))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// mapToTable renders a key-value table sorted by key.
func mapToTable(v reflect.Value) *Table {
	t := &Table{Headers: []string{"KEY", "VALUE"}}
	iter := v.MapRange()
	for iter.Next() {
		t.AddRow(fmt.Sprint(iter.Key().Interface()), FormatValue(iter.Value().Interface()))
	}
	sort.Slice(t.Rows, func(i, j int) bool { return t.Rows[i][0] < t.Rows[j][0] })
	return t
}

// columnName prefers the json tag name over the Go field name.
func columnName(field reflect.StructField) string {
	if tag := field.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

// FormatValue renders a single cell. Empty values are shown as "-".
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "-"
	case string:
		if v == "" {
			return "-"
		}
		return v
	case time.Time:
		if v.IsZero() {
			return "-"
		}
		return v.UTC().Format(time.RFC3339)
	case time.Duration:
		return v.String()
	case []string:
		if len(v) == 0 {
			return "-"
		}
		return strings.Join(v, ",")
	case fmt.Stringer:
		return v.String()
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return "-"
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%g", rv.Float())
	default:
		return fmt.Sprint(value)
	}
}

// Table represents tabular data.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	if t.Title != "" {
		if _, err := fmt.Fprintf(w, "%s\n", strings.ToUpper(t.Title)); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
