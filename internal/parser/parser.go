// Package parser extracts wiki-links from note text.
package parser

import (
	"regexp"
	"strings"
)

// wikilinkRe matches [[Label]] where Label contains no brackets. Nested or
// malformed tokens such as [[A][B]] therefore never match.
var wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// Segment is a run of note text, either plain or a wiki-link.
type Segment struct {
	Text string `json:"text"`
	Link bool   `json:"link"`
}

// ParseLinks returns the distinct trimmed labels of all [[...]] tokens in
// text, in first-seen order. Labels keep their original case.
func ParseLinks(text string) []string {
	out := []string{}
	if text == "" {
		return out
	}
	seen := make(map[string]struct{})
	for _, m := range wikilinkRe.FindAllStringSubmatch(text, -1) {
		label := strings.TrimSpace(m[1])
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// Segments splits text into plain and link runs. Link segments carry the
// trimmed label; plain segments carry the text verbatim.
func Segments(text string) []Segment {
	var out []Segment
	last := 0
	for _, loc := range wikilinkRe.FindAllStringSubmatchIndex(text, -1) {
		label := strings.TrimSpace(text[loc[2]:loc[3]])
		if label == "" {
			// Blank labels stay in the surrounding plain text.
			continue
		}
		start, end := loc[0], loc[1]
		if start > last {
			out = append(out, Segment{Text: text[last:start]})
		}
		out = append(out, Segment{Text: label, Link: true})
		last = end
	}
	if last < len(text) {
		out = append(out, Segment{Text: text[last:]})
	}
	return out
}

// NormalizeTitle is the comparison key for titles and labels.
func NormalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Contains reports whether labels holds title under NormalizeTitle. An empty
// title never matches.
func Contains(labels []string, title string) bool {
	key := NormalizeTitle(title)
	if key == "" {
		return false
	}
	for _, l := range labels {
		if NormalizeTitle(l) == key {
			return true
		}
	}
	return false
}
