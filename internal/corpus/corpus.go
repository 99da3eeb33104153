// Package corpus loads the chapter-keyed Quran JSON corpus into VerseRecords.
//
// The file format is external and pre-existing: an object keyed by chapter
// number (as a string), each value holding a "result" array of verse objects.
// Numeric fields arrive as either JSON numbers or strings, and footnotes may
// be missing, so parsing is deliberately lenient about individual records
// while still failing hard on an unreadable file.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// ErrNoVerses indicates the corpus file parsed but contained no usable verses.
var ErrNoVerses = errors.New("corpus contains no verses")

// MaxChapter is the number of chapters in the Quran.
const MaxChapter = 114

// VerseRecord is one Quran verse. (Chapter, Verse) uniquely identifies it.
type VerseRecord struct {
	SourceID    int
	Chapter     int
	Verse       int
	ArabicText  string
	Translation string
	Footnotes   string
}

// ChapterVerses holds the verses of one chapter, sorted by verse number.
type ChapterVerses struct {
	Number int
	Verses []VerseRecord
}

// Corpus is the full verse corpus, chapters in ascending order.
type Corpus struct {
	Chapters []ChapterVerses
}

// VerseCount returns the total number of verses across all chapters.
func (c Corpus) VerseCount() int {
	n := 0
	for _, ch := range c.Chapters {
		n += len(ch.Verses)
	}
	return n
}

// flexInt unmarshals from a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("parsing %q as integer: %w", data, err)
	}
	*f = flexInt(n)
	return nil
}

type rawVerse struct {
	ID          flexInt `json:"id"`
	Sura        flexInt `json:"sura"`
	Aya         flexInt `json:"aya"`
	ArabicText  string  `json:"arabic_text"`
	Translation string  `json:"translation"`
	Footnotes   string  `json:"footnotes"`
}

type rawChapter struct {
	Result json.RawMessage `json:"result"`
}

// Load reads and parses a corpus file. Chapters with a non-array "result"
// and verses outside chapter range [1,114] are skipped; a file with no
// usable verses at all returns ErrNoVerses.
func Load(path string) (Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Corpus{}, fmt.Errorf("reading corpus file: %w", err)
	}

	var raw map[string]rawChapter
	if err := json.Unmarshal(data, &raw); err != nil {
		return Corpus{}, fmt.Errorf("parsing corpus file %s: %w", path, err)
	}

	byChapter := make(map[int][]VerseRecord)
	for _, ch := range raw {
		var verses []rawVerse
		if err := json.Unmarshal(ch.Result, &verses); err != nil {
			// tolerate non-array result values
			continue
		}
		for _, v := range verses {
			chapter, verse := int(v.Sura), int(v.Aya)
			if chapter < 1 || chapter > MaxChapter || verse < 1 {
				continue
			}
			byChapter[chapter] = append(byChapter[chapter], VerseRecord{
				SourceID:    int(v.ID),
				Chapter:     chapter,
				Verse:       verse,
				ArabicText:  v.ArabicText,
				Translation: v.Translation,
				Footnotes:   v.Footnotes,
			})
		}
	}

	if len(byChapter) == 0 {
		return Corpus{}, fmt.Errorf("%s: %w", path, ErrNoVerses)
	}

	numbers := make([]int, 0, len(byChapter))
	for n := range byChapter {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	c := Corpus{Chapters: make([]ChapterVerses, 0, len(numbers))}
	for _, n := range numbers {
		vs := byChapter[n]
		sort.Slice(vs, func(i, j int) bool { return vs[i].Verse < vs[j].Verse })
		c.Chapters = append(c.Chapters, ChapterVerses{Number: n, Verses: vs})
	}
	return c, nil
}
