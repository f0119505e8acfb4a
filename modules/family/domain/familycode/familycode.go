// Package familycode parses the positional family numbers ("1-2-3-0-0") that
// registry spreadsheets use to encode the tree.
package familycode

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const DefaultMinSegments = 2

var (
	ErrNotCode = errors.New("familycode: not a family code")
	ErrAllZero = errors.New("familycode: all segments are zero")
)

var pattern = regexp.MustCompile(`^\d+(-\d+)*$`)

// Code is a normalized family number. Trailing zero segments are dropped, so
// "1-2-0-0" and "1-2" are the same Code. The zero value is not a valid code.
type Code struct {
	segments []int
	key      string
}

type options struct {
	minSegments int
}

type Option func(*options)

// WithMinSegments sets how many dash-separated segments the raw text must
// carry. Values below 1 are treated as 1.
func WithMinSegments(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.minSegments = n
	}
}

// Normalize maps Arabic-Indic digits to ASCII, removes whitespace and checks
// the dash pattern.
func Normalize(raw string, opts ...Option) (Code, error) {
	o := options{minSegments: DefaultMinSegments}
	for _, opt := range opts {
		opt(&o)
	}

	v := fold(raw)
	if v == "" || !pattern.MatchString(v) {
		return Code{}, ErrNotCode
	}
	parts := strings.Split(v, "-")
	if len(parts) < o.minSegments {
		return Code{}, ErrNotCode
	}

	segs := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Code{}, ErrNotCode
		}
		segs[i] = n
	}
	return fromSegments(segs)
}

// MustParse is Normalize for literals in tests and fixtures.
func MustParse(raw string) Code {
	c, err := Normalize(raw, WithMinSegments(1))
	if err != nil {
		panic(err)
	}
	return c
}

func fromSegments(segs []int) (Code, error) {
	end := len(segs)
	for end > 0 && segs[end-1] == 0 {
		end--
	}
	if end == 0 {
		return Code{}, ErrAllZero
	}
	out := make([]int, end)
	copy(out, segs[:end])

	var b strings.Builder
	for i, s := range out {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strconv.Itoa(s))
	}
	return Code{segments: out, key: b.String()}, nil
}

func fold(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			continue
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parent zeroes the last non-zero segment. Codes with at most one non-zero
// segment are roots and report false.
func (c Code) Parent() (Code, bool) {
	if c.Depth() <= 1 {
		return Code{}, false
	}
	segs := make([]int, len(c.segments))
	copy(segs, c.segments)
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != 0 {
			segs[i] = 0
			break
		}
	}
	p, err := fromSegments(segs)
	if err != nil {
		return Code{}, false
	}
	return p, true
}

// Depth is the number of non-zero segments.
func (c Code) Depth() int {
	n := 0
	for _, s := range c.segments {
		if s != 0 {
			n++
		}
	}
	return n
}

func (c Code) Segments() []int {
	out := make([]int, len(c.segments))
	copy(out, c.segments)
	return out
}

func (c Code) IsZero() bool {
	return c.key == ""
}

func (c Code) Equal(other Code) bool {
	return c.key == other.key
}

func (c Code) String() string {
	return c.key
}
