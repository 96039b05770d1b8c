package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"docwell/internal/model"
)

// extractWindow bounds how much of the document head the pattern tables see.
const extractWindow = 2000

type fieldPattern struct {
	set func(*model.DocumentFields, string)
	re  *regexp.Regexp
}

// Field patterns run in source order; each takes the first capturing group of
// its first match. An unmatched field is simply absent.
var fieldPatterns = []fieldPattern{
	{
		set: func(f *model.DocumentFields, v string) { f.Patient = v },
		re:  regexp.MustCompile(`(?i)patient(?:\s*name)?\s*[:\-]\s*([A-Za-z][A-Za-z .'-]*[A-Za-z.])`),
	},
	{
		set: func(f *model.DocumentFields, v string) { f.Age = v },
		re:  regexp.MustCompile(`(?i)\bage\s*[:\-]\s*(\d{1,3})`),
	},
	{
		set: func(f *model.DocumentFields, v string) { f.Gender = v },
		re:  regexp.MustCompile(`(?i)\b(?:gender|sex)\s*[:\-]\s*(male|female|other|[mf])\b`),
	},
	{
		set: func(f *model.DocumentFields, v string) { f.ReportDate = v },
		re:  regexp.MustCompile(`(?i)\b(?:report\s+)?date\s*[:\-]\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	},
}

type kindPattern struct {
	kind string
	re   *regexp.Regexp
}

// Kind patterns also run in source order; the first match wins and later
// patterns never overwrite an already-set kind.
var kindPatterns = []kindPattern{
	{"blood_report", regexp.MustCompile(`(?i)\b(?:blood|lab(?:oratory)?)\s+(?:test|report|results?)|h(?:a)?emoglobin|\bcbc\b`)},
	{"prescription", regexp.MustCompile(`(?i)\bprescription\b|\brx\b|\bmedication\b|\bdosage\b`)},
	{"imaging", regexp.MustCompile(`(?i)\bx-?ray\b|\bradiolog|\bimaging\b|\bmri\b|\bct\s+scan\b|\bultrasound\b`)},
	{"medical_report", regexp.MustCompile(`(?i)\bdiagnosis\b|\bclinical\b|\bdischarge\s+summary\b|\bmedical\s+report\b`)},
}

// ExtractFields applies the fixed pattern tables to the head of the source
// text. It never fails; documents that match nothing get zero-value fields.
func ExtractFields(text string) model.DocumentFields {
	head := headWindow(text)

	var fields model.DocumentFields
	for _, p := range fieldPatterns {
		if m := p.re.FindStringSubmatch(head); m != nil {
			p.set(&fields, strings.TrimSpace(m[1]))
		}
	}
	for _, p := range kindPatterns {
		if fields.Kind != "" {
			break
		}
		if p.re.MatchString(head) {
			fields.Kind = p.kind
		}
	}
	return fields
}

// headWindow trims text to the extraction window without splitting a rune at
// the boundary.
func headWindow(text string) string {
	if len(text) <= extractWindow {
		return text
	}
	cut := extractWindow
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
