package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	// Headers returns the column headers for the table.
	Headers() []string
	// Rows returns the data rows for the table.
	Rows() [][]string
}

// RightAligner is implemented by tables with numeric columns, such as sizes
// and byte counts, that read better right-aligned.
type RightAligner interface {
	RightAligned() []int
}

// PrintTable writes data as a borderless table with upper-cased headers.
func PrintTable(w io.Writer, data TableRenderer) error {
	headers := data.Headers()
	table := newTable(w, "")
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(true)

	if ra, ok := data.(RightAligner); ok {
		align := make([]int, len(headers))
		for i := range align {
			align[i] = tablewriter.ALIGN_LEFT
		}
		for _, col := range ra.RightAligned() {
			if col >= 0 && col < len(align) {
				align[col] = tablewriter.ALIGN_RIGHT
			}
		}
		table.SetColumnAlignment(align)
	}

	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

// SimpleTable prints "key: value" pairs, one per line.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	table := newTable(w, ":")
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
	return nil
}

func newTable(w io.Writer, columnSeparator string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(columnSeparator)
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// TableData is an ad-hoc TableRenderer.
type TableData struct {
	headers []string
	rows    [][]string
	right   []int
}

// NewTableData creates a new TableData with the given headers.
func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers}
}

// AddRow adds a row to the table.
func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

// AlignRight right-aligns the given zero-based columns.
func (t *TableData) AlignRight(cols ...int) *TableData {
	t.right = append(t.right, cols...)
	return t
}

// Headers implements TableRenderer.
func (t *TableData) Headers() []string {
	return t.headers
}

// Rows implements TableRenderer.
func (t *TableData) Rows() [][]string {
	return t.rows
}

// RightAligned implements RightAligner.
func (t *TableData) RightAligned() []int {
	return t.right
}
