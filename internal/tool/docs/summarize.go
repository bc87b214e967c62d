package docs

import (
	"fmt"
	"slices"
	"strings"

	"github.com/flemzord/quill/internal/tool"
)

const (
	searchPreviewCount = 3
	snippetLen         = 200
)

func summarizeSearch(r tool.Result) string {
	total := intField(r, "total_results")
	if total <= 0 {
		return "No documents found matching the query."
	}

	results, _ := r["results"].([]any)
	lines := []string{fmt.Sprintf("Found %d results:", total)}
	for _, item := range results[:min(len(results), searchPreviewCount)] {
		hit, _ := item.(map[string]any)
		source := stringField(hit, "document_name", "Unknown")
		page := "N/A"
		if v, ok := hit["page_number"]; ok && v != nil {
			page = fmt.Sprint(v)
		}
		lines = append(lines, fmt.Sprintf("- %s (p.%s): %s", source, page, snippet(stringField(hit, "content", ""))))
	}
	return strings.Join(lines, "\n")
}

func summarizeTimeline(r tool.Result) string {
	total := intField(r, "total_events")
	if total <= 0 {
		return "No timeline events found in the documents."
	}
	span, _ := r["date_range"].(map[string]any)
	return fmt.Sprintf("Timeline built with %d events (%s to %s). %s",
		total,
		stringField(span, "start", "Unknown"),
		stringField(span, "end", "Unknown"),
		stringField(r, "timeline_summary", "Timeline created successfully."),
	)
}

func summarizeEntities(r tool.Result) string {
	total := intField(r, "total_entities")
	if total <= 0 {
		return "No entities found in the documents."
	}

	byType, _ := r["entities_by_type"].(map[string]any)
	kinds := make([]string, 0, len(byType))
	for k := range byType {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	var parts []string
	for _, kind := range kinds {
		if list, ok := byType[kind].([]any); ok && len(list) > 0 {
			parts = append(parts, fmt.Sprintf("%d %ss", len(list), kind))
		}
	}
	summary := "entities"
	if len(parts) > 0 {
		summary = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("Extracted %d entities: %s.", total, summary)
}

func summarizeCrossReference(r tool.Result) string {
	refs, _ := r["cross_references"].([]any)
	return fmt.Sprintf("Analyzed %d documents, found %d cross-references. %s",
		intField(r, "documents_analyzed"),
		len(refs),
		stringField(r, "summary", "Cross-reference analysis completed."),
	)
}

func summarizeCitations(r tool.Result) string {
	return fmt.Sprintf("Generated %d citations in %s style.",
		intField(r, "total_citations"),
		stringField(r, "citation_style", "academic"),
	)
}

// intField reads a numeric field. Decoded JSON numbers arrive as float64.
func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func stringField(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return fallback
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}
