// Package section splits draft content into ordered, addressable sections and
// reconstructs content from an inclusion set. Build is the single source of
// truth for what toggling a section produces.
package section

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/draftroom/draftroom/internal/model"
)

// Detection strategy names, recorded on the draft so re-detection can tell
// which heuristic produced the current sections.
const (
	StrategyHeadings   = "headings"
	StrategyParagraphs = "paragraphs"
	StrategyNone       = "none"
)

// maxLabelRunes bounds the length of a derived section label.
const maxLabelRunes = 60

var (
	headingLine   = regexp.MustCompile(`(?m)^#{1,6} .+$`)
	paragraphGap  = regexp.MustCompile(`\n{2,}`)
	blankOrSpaces = regexp.MustCompile(`^\s*$`)
)

// Detect partitions content into sections using the first applicable
// heuristic: markdown headings, then blank-line paragraphs. It returns the
// sections and the strategy name; content with no segmentable structure
// yields no sections and StrategyNone, which callers must treat as a no-op.
func Detect(content string) ([]model.Section, string) {
	if blankOrSpaces.MatchString(content) {
		return nil, StrategyNone
	}

	if parts := splitOnHeadings(content); len(parts) >= 2 {
		return buildSections(parts, true), StrategyHeadings
	}

	if parts := splitOnParagraphs(content); len(parts) >= 2 {
		return buildSections(parts, false), StrategyParagraphs
	}

	return nil, StrategyNone
}

// Build concatenates, in original order, every section whose id is not in
// excludedIDs. Sections are joined with a blank line, the same separator the
// paragraph detector splits on, so an empty exclusion set round-trips
// paragraph-detected content exactly. Under the headings strategy the
// original separator before each heading is not retained: rebuilding
// normalizes every inter-section gap to one blank line.
func Build(sections []model.Section, excludedIDs []string) string {
	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}

	var kept []string
	for _, sec := range sections {
		if !excluded[sec.ID] {
			kept = append(kept, sec.Content)
		}
	}
	return strings.Join(kept, "\n\n")
}

// splitOnHeadings cuts content before each markdown heading line. The text
// before the first heading, if any, becomes its own section.
func splitOnHeadings(content string) []string {
	locs := headingLine.FindAllStringIndex(content, -1)
	if len(locs) < 2 {
		return nil
	}

	var bounds []int
	if locs[0][0] > 0 {
		bounds = append(bounds, 0)
	}
	for _, loc := range locs {
		bounds = append(bounds, loc[0])
	}

	var parts []string
	for i, start := range bounds {
		end := len(content)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		part := strings.TrimRight(content[start:end], "\n")
		if !blankOrSpaces.MatchString(part) {
			parts = append(parts, part)
		}
	}
	return parts
}

// splitOnParagraphs cuts content on runs of blank lines.
func splitOnParagraphs(content string) []string {
	var parts []string
	for _, part := range paragraphGap.Split(content, -1) {
		if !blankOrSpaces.MatchString(part) {
			parts = append(parts, part)
		}
	}
	return parts
}

func buildSections(parts []string, headings bool) []model.Section {
	sections := make([]model.Section, 0, len(parts))
	for i, part := range parts {
		sections = append(sections, model.Section{
			ID:      sectionID(i, part),
			Label:   sectionLabel(part, headings),
			Content: part,
		})
	}
	return sections
}

// sectionID derives a stable id from the section's position and content, so
// detection over unchanged text always produces the same ids.
func sectionID(index int, content string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d:%s", index, content)))
	return hex.EncodeToString(sum[:])[:12]
}

// sectionLabel derives a short display label: the heading text when the part
// starts with one, otherwise the truncated first line.
func sectionLabel(content string, headings bool) string {
	line, _, _ := strings.Cut(content, "\n")
	if headings {
		line = strings.TrimLeft(line, "# ")
	}
	line = strings.TrimSpace(line)
	runes := []rune(line)
	if len(runes) > maxLabelRunes {
		line = string(runes[:maxLabelRunes]) + "…"
	}
	return line
}
