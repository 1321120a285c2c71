// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"strings"
)

var (
	summaryRule = strings.Repeat("=", 80)
	sourceRule  = strings.Repeat("-", 80)
)

// Format renders a response as the plain-text block shown to the model: the
// provider summary (if any), then one section per source with its URL,
// relevance score and content.
func Format(r Response) string {
	if len(r.Results) == 0 {
		return "No results found"
	}

	var b strings.Builder
	if strings.TrimSpace(r.Answer) != "" {
		b.WriteString("AI Summary:\n")
		b.WriteString(r.Answer)
		b.WriteString("\n\n")
		b.WriteString(summaryRule)
		b.WriteString("\n\n")
	}

	b.WriteString("Search Results:\n\n")
	for i, res := range r.Results {
		title := res.Title
		if title == "" {
			title = "No title"
		}
		fmt.Fprintf(&b, "--- SOURCE %d: %s ---\n", i+1, title)
		fmt.Fprintf(&b, "URL: %s\n", res.URL)
		if res.Score != nil {
			fmt.Fprintf(&b, "Relevance Score: %.2f\n", *res.Score)
		}
		b.WriteString("\nSUMMARY:\n")
		b.WriteString(res.Content)
		b.WriteString("\n\n")
		b.WriteString(sourceRule)
		b.WriteString("\n\n")
	}
	return b.String()
}
