package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/terrasite/siting/pkg/core"
)

// printResult writes a command result: strings as lines, layout listings
// as a table and everything else as indented JSON.
func printResult(w io.Writer, v any) error {
	switch v := v.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(w, v)
		return err
	case []core.LayoutSummary:
		return printSummaries(w, v)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func printSummaries(w io.Writer, list []core.LayoutSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POLYGON\tKIND\tMODE\tUNITS\tGCR\tROWS\tCREATED\tID")
	for _, s := range list {
		gcr := "-"
		if s.Kind == core.KindSolar {
			gcr = fmt.Sprintf("%.3f", s.GCR)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			s.PolygonID, s.Kind, s.Mode, s.Units, gcr, s.Classification,
			s.CreatedAt.UTC().Format(time.RFC3339), s.ID)
	}
	return tw.Flush()
}

// syncWriter serializes writes from the presenter and command output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
