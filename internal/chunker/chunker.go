// Package chunker groups consecutive verses of one chapter into retrieval
// chunks. Chunking is a pure function of the corpus and the chunk size, so
// re-running it on identical input yields byte-identical chunks.
package chunker

import (
	"fmt"
	"strings"

	"github.com/omartood/tafsiir-agent/internal/corpus"
)

// DefaultChunkSize is the default number of verses per chunk.
const DefaultChunkSize = 5

// verseSeparator joins the formatted verse blocks inside one chunk.
const verseSeparator = "\n\n---\n\n"

// Chunk is one retrievable unit: up to N consecutive verses of a single
// chapter concatenated into one text blob.
type Chunk struct {
	Title      string
	Text       string
	Labels     []string
	Chapter    int
	FirstVerse int
	LastVerse  int
}

// Split turns a corpus into chunks of at most size verses. Chunks never span
// chapter boundaries; the last chunk of a chapter may be shorter.
func Split(c corpus.Corpus, size int) []Chunk {
	if size < 1 {
		size = DefaultChunkSize
	}
	var chunks []Chunk
	for _, ch := range c.Chapters {
		for start := 0; start < len(ch.Verses); start += size {
			end := start + size
			if end > len(ch.Verses) {
				end = len(ch.Verses)
			}
			chunks = append(chunks, build(ch.Number, ch.Verses[start:end]))
		}
	}
	return chunks
}

func build(chapter int, verses []corpus.VerseRecord) Chunk {
	blocks := make([]string, len(verses))
	for i, v := range verses {
		blocks[i] = formatVerse(v)
	}
	first := verses[0].Verse
	last := verses[len(verses)-1].Verse
	return Chunk{
		Title:      fmt.Sprintf("Surah %d, Verses %d-%d (Somali)", chapter, first, last),
		Text:       strings.Join(blocks, verseSeparator),
		Labels:     []string{"tafsiir", "quran", fmt.Sprintf("surah-%d", chapter)},
		Chapter:    chapter,
		FirstVerse: first,
		LastVerse:  last,
	}
}

// formatVerse renders one verse block. Empty footnotes still produce the
// "Footnotes:" line so chunk text stays reproducible across re-ingestion.
func formatVerse(v corpus.VerseRecord) string {
	return fmt.Sprintf("[Surah %d:%d]\nArabic: %s\nSomali: %s\nFootnotes: %s",
		v.Chapter, v.Verse, v.ArabicText, v.Translation, v.Footnotes)
}
