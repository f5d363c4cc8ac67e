package synth

import (
	"sort"
	"strings"
)

type edit struct {
	start int
	end   int
	value string
}

// Sourcemap records splices over an input string.
//
// Insertions at the same position keep a stable order: InsertLeft places
// the new text before earlier insertions at that position, InsertRight
// after them.
type Sourcemap struct {
	input string
	edits []edit
}

// NewSourcemap returns an empty sourcemap over input.
func NewSourcemap(input string) *Sourcemap {
	return &Sourcemap{input: input}
}

// Input returns the original text.
func (s *Sourcemap) Input() string {
	return s.input
}

func (s *Sourcemap) bisectLeft(i int) int {
	return sort.Search(len(s.edits), func(k int) bool { return s.edits[k].start >= i })
}

func (s *Sourcemap) bisectRight(i int) int {
	return sort.Search(len(s.edits), func(k int) bool { return s.edits[k].start > i })
}

func (s *Sourcemap) insertAt(k int, e edit) {
	s.edits = append(s.edits, edit{})
	copy(s.edits[k+1:], s.edits[k:])
	s.edits[k] = e
}

// InsertLeft inserts value at index, before any earlier insertion there.
func (s *Sourcemap) InsertLeft(index int, value string) *Sourcemap {
	s.insertAt(s.bisectLeft(index), edit{start: index, end: index, value: value})
	return s
}

// InsertRight inserts value at index, after any earlier insertion there.
func (s *Sourcemap) InsertRight(index int, value string) *Sourcemap {
	s.insertAt(s.bisectRight(index), edit{start: index, end: index, value: value})
	return s
}

// Replace substitutes value for input[start:end].
func (s *Sourcemap) Replace(start, end int, value string) *Sourcemap {
	s.insertAt(s.bisectRight(start), edit{start: start, end: end, value: value})
	return s
}

// String applies all edits.
func (s *Sourcemap) String() string {
	var b strings.Builder
	pos := 0
	for _, e := range s.edits {
		if e.start > pos {
			b.WriteString(s.input[pos:e.start])
			pos = e.start
		}
		b.WriteString(e.value)
		if e.end > pos {
			pos = e.end
		}
	}
	b.WriteString(s.input[pos:])
	return b.String()
}

// Original maps a byte offset of the generated text back to the input.
// Offsets that fall inside inserted text map to the insertion point.
func (s *Sourcemap) Original(offset int) int {
	out, in := 0, 0
	for _, e := range s.edits {
		if e.start > in {
			seg := e.start - in
			if offset < out+seg {
				return in + (offset - out)
			}
			out += seg
			in = e.start
		}
		if offset < out+len(e.value) {
			return e.start
		}
		out += len(e.value)
		if e.end > in {
			in = e.end
		}
	}
	orig := in + (offset - out)
	if orig > len(s.input) {
		orig = len(s.input)
	}
	return orig
}
