package alignment

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
)

// Alignment sheets carry four record kinds, each introduced by a titled block
// with a "Core Essence:" section and a narrative text section.
var alignmentKeywords = []string{"Synergy", "Harmony", "Resonance", "Polarity"}

// AlignmentRecord is one alignment entry parsed from a tabular sheet.
type AlignmentRecord struct {
	ID          string
	Type        string // synergies, harmonies, resonances, polarities
	Title       string
	FullTitle   string
	CoreEssence string
	Description string
	Realm       string
	Environment string
	Themes      []string
	Qualities   []string
}

// EmbeddingText assembles the text span embedded for retrieval.
func (r AlignmentRecord) EmbeddingText() string {
	segments := []string{r.Realm, r.Environment, r.Title, r.CoreEssence, r.Description}
	var kept []string
	for _, s := range segments {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n")
}

// ParseAlignmentSheet reads CSV rows and extracts alignment records. Cells
// containing a "Core Essence:" section alongside an alignment keyword are
// parsed as alignment blocks; the remaining cells of the row provide shared
// context (realm, pillar, environment, themes, qualities in column order).
func ParseAlignmentSheet(content []byte) []AlignmentRecord {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records []AlignmentRecord
	seen := map[string]int{}
	for {
		row, err := reader.Read()
		if err != nil {
			break
		}
		records = append(records, parseRow(row, seen)...)
	}
	return records
}

func parseRow(cells []string, seen map[string]int) []AlignmentRecord {
	var contextCells, blocks []string
	for _, cell := range cells {
		cell = cleanCell(cell)
		if cell == "" {
			continue
		}
		if strings.Contains(cell, "Core Essence:") && containsKeyword(cell) {
			blocks = append(blocks, cell)
		} else {
			contextCells = append(contextCells, cell)
		}
	}
	if len(blocks) == 0 {
		return nil
	}

	ctx := buildContext(contextCells)
	var records []AlignmentRecord
	for _, block := range blocks {
		if rec, ok := parseBlock(block, ctx); ok {
			rec.ID = uniqueID(rec.ID, seen)
			records = append(records, rec)
		}
	}
	return records
}

type rowContext struct {
	realm       string
	pillar      string
	environment string
	themes      []string
	qualities   []string
}

func buildContext(cells []string) rowContext {
	ctx := rowContext{}
	if len(cells) > 0 {
		ctx.realm = cells[0]
	}
	if len(cells) > 1 {
		ctx.pillar = cells[1]
	}
	if len(cells) > 2 {
		ctx.environment = cells[2]
	}
	if len(cells) > 3 {
		ctx.themes = splitList(cells[3])
	}
	if len(cells) > 4 {
		ctx.qualities = splitList(cells[4])
	}
	return ctx
}

func parseBlock(block string, ctx rowContext) (AlignmentRecord, bool) {
	lines := nonEmptyLines(block)
	if len(lines) == 0 {
		return AlignmentRecord{}, false
	}
	titleLine := lines[0]
	alignmentType := typeFromTitle(titleLine)
	if alignmentType == "" {
		return AlignmentRecord{}, false
	}
	title := displayTitle(titleLine)
	rec := AlignmentRecord{
		Type:        alignmentType,
		Title:       title,
		FullTitle:   titleLine,
		CoreEssence: extractSection(lines, "Core Essence:"),
		Description: extractSection(lines, narrativeLabel(alignmentType)),
		Realm:       ctx.realm,
		Environment: ctx.environment,
		Themes:      ctx.themes,
		Qualities:   ctx.qualities,
	}
	rec.ID = buildIdentifier(alignmentType, ctx, title)
	return rec, true
}

func containsKeyword(cell string) bool {
	for _, kw := range alignmentKeywords {
		if strings.Contains(cell, kw) {
			return true
		}
	}
	return false
}

func typeFromTitle(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "synergy"):
		return "synergies"
	case strings.Contains(lower, "harmony"):
		return "harmonies"
	case strings.Contains(lower, "resonance"):
		return "resonances"
	case strings.Contains(lower, "polarity"):
		return "polarities"
	}
	return ""
}

func displayTitle(titleLine string) string {
	for _, sep := range []string{"–", "-"} {
		if idx := strings.Index(titleLine, sep); idx >= 0 {
			return strings.TrimSpace(titleLine[idx+len(sep):])
		}
	}
	return strings.TrimSpace(titleLine)
}

var sectionLabels = []string{"Core Essence:", "Synergy Text:", "Harmony Text:", "Resonance Text:", "Polarity Text:"}

func extractSection(lines []string, label string) string {
	var collected []string
	capture := false
	for _, line := range lines[1:] {
		if strings.HasPrefix(line, label) {
			if _, after, ok := strings.Cut(line, ":"); ok {
				collected = append(collected, strings.TrimSpace(after))
			}
			capture = true
			continue
		}
		if capture && startsWithAnyLabel(line) {
			break
		}
		if capture {
			collected = append(collected, line)
		}
	}
	return strings.TrimSpace(strings.Join(collected, " "))
}

func startsWithAnyLabel(line string) bool {
	for _, label := range sectionLabels {
		if strings.HasPrefix(line, label) {
			return true
		}
	}
	return false
}

func narrativeLabel(alignmentType string) string {
	switch alignmentType {
	case "synergies":
		return "Synergy Text:"
	case "harmonies":
		return "Harmony Text:"
	case "resonances":
		return "Resonance Text:"
	}
	return "Polarity Text:"
}

// singularType maps a plural alignment type back to its keyword for slug ids.
func singularType(alignmentType string) string {
	switch alignmentType {
	case "synergies":
		return "synergy"
	case "harmonies":
		return "harmony"
	case "resonances":
		return "resonance"
	case "polarities":
		return "polarity"
	}
	return alignmentType
}

func buildIdentifier(alignmentType string, ctx rowContext, title string) string {
	parts := []string{singularType(alignmentType), ctx.realm, ctx.environment, title}
	var slugs []string
	for _, p := range parts {
		if s := slugify(p); s != "" {
			slugs = append(slugs, s)
		}
	}
	if len(slugs) == 0 {
		return slugify(title)
	}
	return strings.Join(slugs, "-")
}

func uniqueID(base string, seen map[string]int) string {
	if base == "" {
		base = "record"
	}
	seen[base]++
	if seen[base] == 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, seen[base])
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func slugify(text string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(text), "-"), "-")
}

func splitList(text string) []string {
	var out []string
	for _, part := range regexp.MustCompile(`[,;]`).Split(text, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cleanCell(value string) string {
	return strings.Trim(strings.TrimSpace(value), `"`)
}

func nonEmptyLines(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			out = append(out, l)
		}
	}
	return out
}
