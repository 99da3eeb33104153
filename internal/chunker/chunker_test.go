package chunker

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/omartood/tafsiir-agent/internal/corpus"
)

func makeChapter(number, verses int) corpus.ChapterVerses {
	ch := corpus.ChapterVerses{Number: number}
	for v := 1; v <= verses; v++ {
		ch.Verses = append(ch.Verses, corpus.VerseRecord{
			Chapter:     number,
			Verse:       v,
			ArabicText:  fmt.Sprintf("arabic %d:%d", number, v),
			Translation: fmt.Sprintf("somali %d:%d", number, v),
		})
	}
	return ch
}

func TestSplitTenVersesChunkFive(t *testing.T) {
	c := corpus.Corpus{Chapters: []corpus.ChapterVerses{makeChapter(2, 10)}}
	chunks := Split(c, 5)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Title != "Surah 2, Verses 1-5 (Somali)" {
		t.Fatalf("unexpected title: %q", chunks[0].Title)
	}
	if chunks[1].FirstVerse != 6 || chunks[1].LastVerse != 10 {
		t.Fatalf("unexpected second chunk range: %d-%d", chunks[1].FirstVerse, chunks[1].LastVerse)
	}
}

func TestSplitLastChunkShorter(t *testing.T) {
	c := corpus.Corpus{Chapters: []corpus.ChapterVerses{makeChapter(1, 7)}}
	chunks := Split(c, 5)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].FirstVerse != 6 || chunks[1].LastVerse != 7 {
		t.Fatalf("unexpected tail chunk range: %d-%d", chunks[1].FirstVerse, chunks[1].LastVerse)
	}
}

func TestSplitNeverSpansChapters(t *testing.T) {
	c := corpus.Corpus{Chapters: []corpus.ChapterVerses{makeChapter(1, 3), makeChapter(2, 3)}}
	chunks := Split(c, 5)
	if len(chunks) != 2 {
		t.Fatalf("expected chunking to reset at the chapter boundary, got %d chunks", len(chunks))
	}
	for _, ch := range chunks {
		if strings.Contains(ch.Text, "[Surah 1:") && strings.Contains(ch.Text, "[Surah 2:") {
			t.Fatalf("chunk spans chapters: %q", ch.Title)
		}
	}
}

func TestSplitVerseContiguity(t *testing.T) {
	c := corpus.Corpus{Chapters: []corpus.ChapterVerses{makeChapter(3, 23)}}
	for _, ch := range Split(c, 7) {
		if ch.LastVerse-ch.FirstVerse+1 > 7 {
			t.Fatalf("chunk %q holds more than 7 verses", ch.Title)
		}
		for v := ch.FirstVerse; v <= ch.LastVerse; v++ {
			marker := fmt.Sprintf("[Surah 3:%d]", v)
			if !strings.Contains(ch.Text, marker) {
				t.Fatalf("chunk %q missing contiguous verse marker %s", ch.Title, marker)
			}
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := corpus.Corpus{Chapters: []corpus.ChapterVerses{makeChapter(1, 7), makeChapter(2, 11)}}
	first := Split(c, 5)
	second := Split(c, 5)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two runs over identical input produced different chunks")
	}
}

func TestSplitEmptyFootnotesStillRendered(t *testing.T) {
	c := corpus.Corpus{Chapters: []corpus.ChapterVerses{makeChapter(1, 1)}}
	chunks := Split(c, 5)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "Footnotes: ") {
		t.Fatalf("empty footnotes must still appear in chunk text: %q", chunks[0].Text)
	}
}

func TestSplitLabels(t *testing.T) {
	c := corpus.Corpus{Chapters: []corpus.ChapterVerses{makeChapter(12, 2)}}
	chunks := Split(c, 5)
	want := []string{"tafsiir", "quran", "surah-12"}
	if !reflect.DeepEqual(chunks[0].Labels, want) {
		t.Fatalf("unexpected labels: %v", chunks[0].Labels)
	}
}
