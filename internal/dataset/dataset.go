package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind is the logical type of a column.
type Kind int

const (
	Numeric Kind = iota
	String
	Bool
	Datetime
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case String:
		return "string"
	case Bool:
		return "bool"
	case Datetime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Marker column names attached by the detectors.
const (
	DuplicateColumn = "duplicate"
	OutlierColumn   = "outlier"
)

// MarkerColumns lists the reserved marker columns in attach order.
var MarkerColumns = []string{DuplicateColumn, OutlierColumn}

// IsMarker reports whether name is a reserved marker column.
func IsMarker(name string) bool {
	for _, m := range MarkerColumns {
		if m == name {
			return true
		}
	}
	return false
}

// Value is a single cell. The zero Value is null.
type Value struct {
	Valid bool
	Num   float64
	Str   string
	B     bool
	T     time.Time
}

// Null returns a missing cell.
func Null() Value { return Value{} }

// NumberValue wraps f; NaN is treated as missing.
func NumberValue(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{Valid: true, Num: f}
}

// StringValue wraps s.
func StringValue(s string) Value { return Value{Valid: true, Str: s} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{Valid: true, B: b} }

// TimeValue wraps t.
func TimeValue(t time.Time) Value { return Value{Valid: true, T: t} }

// Format renders v as text for a column of kind k. Null renders empty.
func (v Value) Format(k Kind) string {
	if !v.Valid {
		return ""
	}
	switch k {
	case Numeric:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(v.B)
	case Datetime:
		if v.T.Hour() == 0 && v.T.Minute() == 0 && v.T.Second() == 0 && v.T.Nanosecond() == 0 {
			return v.T.Format("2006-01-02")
		}
		return v.T.Format(time.RFC3339)
	default:
		return v.Str
	}
}

// Column is a named, typed vector of cells.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// NullCount returns the number of missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if !v.Valid {
			n++
		}
	}
	return n
}

// Floats returns the present numeric values in row order.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if v.Valid {
			out = append(out, v.Num)
		}
	}
	return out
}

func (c *Column) clone() *Column {
	vals := make([]Value, len(c.Values))
	copy(vals, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, Values: vals}
}

// Dataset is an ordered set of equally long columns.
type Dataset struct {
	Columns []*Column
}

// New builds a dataset from columns and checks that lengths agree.
func New(cols ...*Column) (*Dataset, error) {
	ds := &Dataset{}
	for _, c := range cols {
		if len(ds.Columns) > 0 && len(c.Values) != ds.Len() {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Values), ds.Len())
		}
		if ds.Has(c.Name) {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		ds.Columns = append(ds.Columns, c)
	}
	return ds, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// Width returns the number of columns.
func (d *Dataset) Width() int {
	if d == nil {
		return 0
	}
	return len(d.Columns)
}

// Names returns column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of name or -1.
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the dataset has a column called name.
func (d *Dataset) Has(name string) bool { return d.Index(name) >= 0 }

// Column returns the named column or nil.
func (d *Dataset) Column(name string) *Column {
	if i := d.Index(name); i >= 0 {
		return d.Columns[i]
	}
	return nil
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{Columns: make([]*Column, len(d.Columns))}
	for i, c := range d.Columns {
		out.Columns[i] = c.clone()
	}
	return out
}

// Drop returns a copy without the named columns. Unknown names are ignored.
func (d *Dataset) Drop(names ...string) *Dataset {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Dataset{}
	for _, c := range d.Columns {
		if !skip[c.Name] {
			out.Columns = append(out.Columns, c.clone())
		}
	}
	return out
}

// Filter returns a copy holding only rows for which keep returns true.
func (d *Dataset) Filter(keep func(row int) bool) *Dataset {
	var rows []int
	for i := 0; i < d.Len(); i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return d.Take(rows)
}

// Take returns a copy holding the given rows in the given order.
func (d *Dataset) Take(rows []int) *Dataset {
	out := &Dataset{Columns: make([]*Column, len(d.Columns))}
	for i, c := range d.Columns {
		vals := make([]Value, len(rows))
		for j, r := range rows {
			vals[j] = c.Values[r]
		}
		out.Columns[i] = &Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	return out
}

// Row returns the formatted cells of row i.
func (d *Dataset) Row(i int) []string {
	out := make([]string, len(d.Columns))
	for j, c := range d.Columns {
		out[j] = c.Values[i].Format(c.Kind)
	}
	return out
}

// SetColumn replaces the column with the same name or appends it.
func (d *Dataset) SetColumn(col *Column) error {
	if len(d.Columns) > 0 && len(col.Values) != d.Len() {
		return fmt.Errorf("column %q has %d rows, expected %d", col.Name, len(col.Values), d.Len())
	}
	if i := d.Index(col.Name); i >= 0 {
		d.Columns[i] = col
		return nil
	}
	d.Columns = append(d.Columns, col)
	return nil
}

// RowKey renders row i as a canonical string over all columns except skip.
// Each cell is length-prefixed so no cell content can collide with a
// neighbour. Nulls compare equal to each other; datetimes keep nanoseconds.
func (d *Dataset) RowKey(i int, skip map[string]bool) string {
	var b strings.Builder
	for _, c := range d.Columns {
		if skip[c.Name] {
			continue
		}
		v := c.Values[i]
		if !v.Valid {
			b.WriteString("-;")
			continue
		}
		cell := v.Format(c.Kind)
		if c.Kind == Datetime {
			cell = v.T.Format(time.RFC3339Nano)
		}
		b.WriteString(strconv.Itoa(len(cell)))
		b.WriteByte(':')
		b.WriteString(cell)
	}
	return b.String()
}

// Flags returns the boolean marker column as a slice; nil when absent.
func (d *Dataset) Flags(name string) []bool {
	c := d.Column(name)
	if c == nil {
		return nil
	}
	out := make([]bool, len(c.Values))
	for i, v := range c.Values {
		out[i] = v.Valid && v.B
	}
	return out
}

// SortStable returns a copy sorted by the given columns, ascending, nulls last.
func (d *Dataset) SortStable(by ...string) *Dataset {
	idx := make([]int, d.Len())
	for i := range idx {
		idx[i] = i
	}
	var keys []*Column
	for _, name := range by {
		if c := d.Column(name); c != nil {
			keys = append(keys, c)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for _, c := range keys {
			if cmp := compare(c.Kind, c.Values[idx[a]], c.Values[idx[b]]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	return d.Take(idx)
}

func compare(k Kind, a, b Value) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return 1
	case !b.Valid:
		return -1
	}
	switch k {
	case Numeric:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	case Bool:
		switch {
		case a.B == b.B:
			return 0
		case !a.B:
			return -1
		}
		return 1
	case Datetime:
		return a.T.Compare(b.T)
	default:
		return strings.Compare(a.Str, b.Str)
	}
}
