package driver

import (
	"encoding/json"
	"fmt"
	"io"

	"shade/internal/observ"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Path    string               `json:"path,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// WriteTimings prints the phase timings of every compiled item, as an
// aligned table or as one JSON object per line.
func WriteTimings(w io.Writer, items []BatchItem, asJSON bool) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if item.Result == nil {
			continue
		}
		r := item.Result.Timings
		if asJSON {
			if err := enc.Encode(timingPayload{Kind: "program", Path: item.Name, TotalMS: r.TotalMS, Phases: r.Phases}); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n%s", item.Name, r.Summary()); err != nil {
			return err
		}
	}
	return nil
}
