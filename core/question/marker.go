package question

import (
	"regexp"
	"strings"
)

// Markers are a best-effort durable index from a published assignment
// description back into the question store. Grammar: literal "{id:",
// whitespace, an opaque identifier token (no "}"), optional whitespace, "}".
// Descriptions are user-editable after publication, so the scanner is
// tolerant: it extracts every occurrence anywhere in the text and callers
// must fall back to a secondary lookup when nothing is found.
var markerRegex = regexp.MustCompile(`\{id:\s*([^}]+?)\s*\}`)

// Marker renders the embeddable marker for a question ID.
func Marker(id string) string {
	return "{id: " + id + "}"
}

// ScanMarkers extracts all question IDs embedded in text, in order of
// appearance. The surrounding text is arbitrary.
func ScanMarkers(text string) []string {
	var ids []string
	for _, m := range markerRegex.FindAllStringSubmatch(text, -1) {
		if id := strings.TrimSpace(m[1]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
