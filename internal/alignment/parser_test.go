package alignment

import (
	"strings"
	"testing"
)

const sampleBlock = `Synergy – Morning Light
Core Essence: Bright renewal after rest.
Synergy Text: A gentle push toward the day's first intention.`

func sampleRow() string {
	return strings.Join([]string{
		`"Gardens"`,
		`"Growth"`,
		`"Meadow"`,
		`"renewal, patience"`,
		`"warm; steady"`,
		`"` + strings.ReplaceAll(sampleBlock, "\n", "\n") + `"`,
	}, ",")
}

func TestParseAlignmentSheet(t *testing.T) {
	records := ParseAlignmentSheet([]byte(sampleRow()))
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Type != "synergies" {
		t.Fatalf("unexpected type %q", r.Type)
	}
	if r.Title != "Morning Light" {
		t.Fatalf("unexpected title %q", r.Title)
	}
	if r.CoreEssence != "Bright renewal after rest." {
		t.Fatalf("unexpected core essence %q", r.CoreEssence)
	}
	if r.Description != "A gentle push toward the day's first intention." {
		t.Fatalf("unexpected description %q", r.Description)
	}
	if r.Realm != "Gardens" || r.Environment != "Meadow" {
		t.Fatalf("unexpected context %q/%q", r.Realm, r.Environment)
	}
	if len(r.Themes) != 2 || r.Themes[0] != "renewal" {
		t.Fatalf("unexpected themes %v", r.Themes)
	}
	if r.ID != "synergy-gardens-meadow-morning-light" {
		t.Fatalf("unexpected id %q", r.ID)
	}
}

func TestBuildIdentifierTypeSlugs(t *testing.T) {
	ctx := rowContext{realm: "Gardens", environment: "Meadow"}
	cases := []struct {
		alignmentType string
		want          string
	}{
		{"synergies", "synergy-gardens-meadow-morning-light"},
		{"harmonies", "harmony-gardens-meadow-morning-light"},
		{"resonances", "resonance-gardens-meadow-morning-light"},
		{"polarities", "polarity-gardens-meadow-morning-light"},
	}
	for _, tc := range cases {
		if got := buildIdentifier(tc.alignmentType, ctx, "Morning Light"); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.alignmentType, tc.want, got)
		}
	}
}

func TestParseAlignmentSheetDuplicateIDs(t *testing.T) {
	content := sampleRow() + "\n" + sampleRow()
	records := ParseAlignmentSheet([]byte(content))
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID == records[1].ID {
		t.Fatalf("duplicate base ids must be disambiguated: %q", records[0].ID)
	}
}

func TestParseAlignmentSheetIgnoresPlainRows(t *testing.T) {
	records := ParseAlignmentSheet([]byte(`"just","context","cells"`))
	if len(records) != 0 {
		t.Fatalf("rows without alignment blocks must be skipped, got %d", len(records))
	}
}

func TestEmbeddingTextSkipsEmptySegments(t *testing.T) {
	r := AlignmentRecord{Title: "Morning Light", CoreEssence: "Bright renewal."}
	text := r.EmbeddingText()
	if text != "Morning Light\nBright renewal." {
		t.Fatalf("unexpected embedding text %q", text)
	}
}
