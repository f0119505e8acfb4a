// Package namefilter decides whether a spreadsheet cell holds a person's name.
// Registry sheets have no schema, so the filter is conservative: any failed
// check rejects the cell.
package namefilter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MinLength = 2
	MaxLength = 80

	tatweel = 'ـ'
)

// Structural labels found in registry headers and report footers.
var labels = []string{
	"الرقم العائلي",
	"الـرقـم",
	"الرقم",
	"الاسم",
	"اسم الاب",
	"اسم الأب",
	"ابن",
	"بن",
	"رقم الصفحة",
	"الفرع",
	"الملاحظات",
	"ملاحظات",
	"إحصائيات",
	"الإجمالي",
	"المجموع",
	"الكلي",
	"البيان",
	"الأصول",
	"الفروع",
	"العدد",
	"الجيل",
}

var denylist = func() map[string]struct{} {
	m := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		m[foldLabel(l)] = struct{}{}
	}
	return m
}()

// LooksLikeName reports whether raw is a plausible person name.
func LooksLikeName(raw string) bool {
	v := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(v)
	if n < MinLength || n > MaxLength {
		return false
	}
	if !hasRTLRun(v, 2) {
		return false
	}
	if IsLabel(v) {
		return false
	}

	digits := 0
	for _, r := range v {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	// digits must stay under 40% of the text
	return digits*10 < n*4
}

// IsLabel reports whether raw is one of the known header or summary labels.
func IsLabel(raw string) bool {
	_, ok := denylist[foldLabel(raw)]
	return ok
}

// Clean returns the form stored for a matched name: NFC, no tatweel, single spaces.
func Clean(raw string) string {
	v := norm.NFC.String(raw)
	v = strings.Map(func(r rune) rune {
		if r == tatweel {
			return -1
		}
		return r
	}, v)
	return strings.Join(strings.Fields(v), " ")
}

// foldLabel drops tatweel, spaces and the punctuation a header cell ends with
// ("الاسم:", "اسم الأب :").
func foldLabel(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if r == tatweel || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimFunc(s, isLabelPunct)
}

func isLabelPunct(r rune) bool {
	switch r {
	case ':', '.', ',', ';', '-', '،', '؛', '؟', '۔':
		return true
	}
	return false
}

func hasRTLRun(s string, min int) bool {
	run := 0
	for _, r := range s {
		// harakat and shadda sit on the letter before them
		if r == tatweel || unicode.Is(unicode.Mn, r) {
			continue
		}
		if isRTLLetter(r) {
			run++
			if run >= min {
				return true
			}
			continue
		}
		run = 0
	}
	return false
}

func isRTLLetter(r rune) bool {
	if !unicode.IsLetter(r) {
		return false
	}
	return unicode.Is(unicode.Arabic, r) || unicode.Is(unicode.Hebrew, r)
}
