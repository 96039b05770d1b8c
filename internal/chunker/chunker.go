package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// avgWordLen is the heuristic used to turn a character overlap into a word
	// count when seeding the next chunk with the tail of the previous one.
	avgWordLen = 5

	paragraphSep = "\n\n"
)

// Passage is one bounded slice of a document, the unit of retrieval.
// Length is the rune count of Text.
type Passage struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// Chunk splits text into ordered, overlapping passages. Paragraphs (blank-line
// separated) are appended greedily; a passage is flushed when adding the next
// paragraph would push it past chunkSize, and the next passage is seeded with
// the trailing overlap/5 words of the flushed one. A paragraph larger than
// chunkSize on its own is never split. Empty input yields an empty slice.
func Chunk(text string, chunkSize, overlap int) []Passage {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	if overlap < 0 {
		overlap = 0
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	carryWords := overlap / avgWordLen

	var passages []Passage
	var acc []string
	accLen := 0

	flush := func() string {
		joined := strings.Join(acc, paragraphSep)
		passages = append(passages, Passage{
			Index:  len(passages),
			Text:   joined,
			Length: utf8.RuneCountInString(joined),
		})
		return joined
	}

	for _, para := range paragraphs {
		paraLen := utf8.RuneCountInString(para)
		if len(acc) > 0 && accLen+len(paragraphSep)+paraLen > chunkSize {
			emitted := flush()
			acc = acc[:0]
			accLen = 0
			if carry := trailingWords(emitted, carryWords); carry != "" {
				acc = append(acc, carry)
				accLen = utf8.RuneCountInString(carry) + len(paragraphSep)
			}
			acc = append(acc, para)
			accLen += paraLen
			continue
		}
		if len(acc) > 0 {
			accLen += len(paragraphSep)
		}
		acc = append(acc, para)
		accLen += paraLen
	}
	if len(acc) > 0 {
		flush()
	}
	return passages
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	for _, p := range blankLine.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// trailingWords returns the last n whitespace-separated words of s.
func trailingWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
