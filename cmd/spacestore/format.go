package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/persistorai/spacestore/internal/models"
)

// tableView is the tabular rendering of a command result.
type tableView struct {
	headers []string
	rows    [][]string
}

func formatJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func formatTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			width := 0
			if i < len(widths) {
				width = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", width, cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, width := range widths {
		seps[i] = strings.Repeat("-", width)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

// output renders v in the format selected by --format. A nil table falls
// back to JSON.
func output(w io.Writer, v any, table *tableView, quiet string) error {
	switch flagFmt {
	case "quiet":
		fmt.Fprintln(w, quiet)
		return nil
	case "table":
		if table != nil {
			formatTable(w, table.headers, table.rows)
			return nil
		}
	}

	return formatJSON(w, v)
}

var recordHeaders = []string{"ID", "VERSION", "NEXT", "OP", "AUTHOR", "UPDATED"}

func recordRow(r *models.VersionRecord) []string {
	next := "head"
	if !r.IsHead() {
		next = strconv.FormatInt(r.NextVersion, 10)
	}

	return []string{
		r.ID,
		strconv.FormatInt(r.Version, 10),
		next,
		string(r.Operation),
		r.Author,
		millis(r.Namespace.UpdatedAt),
	}
}

// millis renders a namespace timestamp in RFC 3339.
func millis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
