package cli

import (
	"encoding/json"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

type printer struct {
	w    io.Writer
	json bool
}

// emit writes v as indented JSON, or as a table built by rows.
func (p printer) emit(v any, header table.Row, rows func(t table.Writer)) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	t.SetStyle(table.StyleLight)
	if header != nil {
		t.AppendHeader(header)
	}
	rows(t)
	t.Render()
	return nil
}
