package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/structs"

	"github.com/purvisolanki/userdir/client"
)

// row is a line of the users table; the field order is the column order
type row struct {
	ID    string `structs:"ID"`
	Name  string `structs:"NAME"`
	Email string `structs:"EMAIL"`
	Role  string `structs:"ROLE"`
}

func toRow(u client.UserRecord) row {
	return row{
		ID:    u.ID,
		Name:  u.FullName(),
		Email: u.Email,
		Role:  string(u.Role),
	}
}

func renderTable(w io.Writer, records []client.UserRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fields := structs.Fields(row{})
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Tag("structs")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range records {
		values := structs.Values(toRow(r))
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
