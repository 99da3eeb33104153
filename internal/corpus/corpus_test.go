package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quran.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing corpus fixture: %v", err)
	}
	return path
}

func TestLoadParsesStringAndNumericFields(t *testing.T) {
	path := writeCorpus(t, `{
		"1": {"result": [
			{"id": "2", "sura": "1", "aya": "2", "arabic_text": "ayah two", "translation": "tarjumaad two", "footnotes": ""},
			{"id": 1, "sura": 1, "aya": 1, "arabic_text": "ayah one", "translation": "tarjumaad one"}
		]},
		"114": {"result": [
			{"id": "6231", "sura": "114", "aya": "1", "arabic_text": "a", "translation": "t", "footnotes": "f"}
		]}
	}`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(c.Chapters))
	}
	if c.Chapters[0].Number != 1 || c.Chapters[1].Number != 114 {
		t.Fatalf("chapters not in ascending order: %d, %d", c.Chapters[0].Number, c.Chapters[1].Number)
	}
	if c.VerseCount() != 3 {
		t.Fatalf("expected 3 verses, got %d", c.VerseCount())
	}

	verses := c.Chapters[0].Verses
	if verses[0].Verse != 1 || verses[1].Verse != 2 {
		t.Fatalf("verses not sorted within chapter: %d, %d", verses[0].Verse, verses[1].Verse)
	}
	if verses[0].Footnotes != "" {
		t.Fatalf("missing footnotes should parse as empty string, got %q", verses[0].Footnotes)
	}
	if verses[0].SourceID != 1 || verses[0].ArabicText != "ayah one" {
		t.Fatalf("unexpected verse record: %+v", verses[0])
	}
}

func TestLoadSkipsMalformedChapters(t *testing.T) {
	path := writeCorpus(t, `{
		"1": {"result": [{"id": 1, "sura": 1, "aya": 1, "arabic_text": "a", "translation": "t"}]},
		"2": {"result": "not an array"},
		"3": {},
		"999": {"result": [{"id": 9, "sura": 999, "aya": 1, "arabic_text": "x", "translation": "y"}]}
	}`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Chapters) != 1 || c.Chapters[0].Number != 1 {
		t.Fatalf("expected only chapter 1 to survive, got %+v", c.Chapters)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing corpus file")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeCorpus(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed corpus file")
	}
}

func TestLoadEmptyCorpus(t *testing.T) {
	path := writeCorpus(t, `{}`)
	_, err := Load(path)
	if !errors.Is(err, ErrNoVerses) {
		t.Fatalf("expected ErrNoVerses, got %v", err)
	}
}
