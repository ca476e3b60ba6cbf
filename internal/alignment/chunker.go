package alignment

import (
	"strings"
)

// chunkTargetSize bounds the length of a chunk's text span. Paragraphs are
// packed greedily; an oversized paragraph is split on sentence boundaries.
const chunkTargetSize = 800

// ExtractChunks turns document bytes into embeddable text spans. CSV
// alignment sheets go through the tabular parser; everything else is treated
// as plain text and chunked by paragraph.
func ExtractChunks(filename string, content []byte) []string {
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		if records := ParseAlignmentSheet(content); len(records) > 0 {
			chunks := make([]string, 0, len(records))
			for _, r := range records {
				chunks = append(chunks, r.EmbeddingText())
			}
			return chunks
		}
	}
	return SplitText(string(content))
}

// SplitText chunks plain text by paragraph, packing consecutive paragraphs
// up to the target size.
func SplitText(text string) []string {
	paragraphs := splitParagraphs(text)
	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		if len(p) > chunkTargetSize {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, splitLong(p)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(p)+2 > chunkTargetSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitLong breaks an oversized paragraph on sentence boundaries.
func splitLong(paragraph string) []string {
	var chunks []string
	var current strings.Builder
	for _, sentence := range splitSentences(paragraph) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > chunkTargetSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				s := strings.TrimSpace(text[start : i+1])
				if s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
