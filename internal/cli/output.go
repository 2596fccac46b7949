// Package cli provides CLI output helpers for Shikiri.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/shikiri/internal/models"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// WriteSearchResult writes a search response to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResult(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeSearchResultText(w, response)
		return nil
	}
}

func writeSearchResultText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\n%s\n", response.Answer)
	if len(response.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, source := range response.Sources {
			fmt.Fprintf(w, "  - %s\n", source)
		}
	}
	fmt.Fprintf(w, "\n(%dms)\n", response.QueryTime)
}
