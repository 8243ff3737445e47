package client

import (
	"strings"
)

// DefaultRowsPerPage is the page size of a View without RowsPerPage
const DefaultRowsPerPage = 5

// View derives a filtered page of records from a cache snapshot
type View struct {
	// Search is matched case-insensitively against first name, last name
	// and email; empty matches everything
	Search string
	// Page is zero based
	Page        int
	RowsPerPage int
}

// Page is the result of applying a View
type Page struct {
	Records     []UserRecord
	Total       int
	Page        int
	Pages       int
	RowsPerPage int
}

func (v View) matches(r UserRecord, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.FirstName), needle) ||
		strings.Contains(strings.ToLower(r.LastName), needle) ||
		strings.Contains(strings.ToLower(r.Email), needle)
}

// Apply filters records and cuts out the selected page. The input is not
// modified; a page past the end is empty.
func (v View) Apply(records []UserRecord) Page {
	rows := v.RowsPerPage
	if rows <= 0 {
		rows = DefaultRowsPerPage
	}
	page := v.Page
	if page < 0 {
		page = 0
	}
	needle := strings.ToLower(strings.TrimSpace(v.Search))

	filtered := make([]UserRecord, 0, len(records))
	for _, r := range records {
		if v.matches(r, needle) {
			filtered = append(filtered, r)
		}
	}
	res := Page{
		Total:       len(filtered),
		Page:        page,
		Pages:       pageCount(len(filtered), rows),
		RowsPerPage: rows,
		Records:     []UserRecord{},
	}
	// compared before multiplying; page*rows overflows for huge pages
	if page >= res.Pages {
		return res
	}
	start := page * rows
	end := start + min(rows, len(filtered)-start)
	res.Records = filtered[start:end]
	return res
}

func pageCount(total, rows int) int {
	if total == 0 {
		return 0
	}
	return (total-1)/rows + 1
}
