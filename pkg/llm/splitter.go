package llm

import (
	"strings"
	"unicode"
)

// Splitter cuts streamed text into sentences.
//
// CJK terminators and ! ? end a sentence immediately. An ASCII period only
// ends one when followed by whitespace, so "3.5" stays intact.
type Splitter struct {
	emit func(string)
	buf  []rune
}

// NewSplitter returns a splitter calling emit once per sentence.
func NewSplitter(emit func(string)) *Splitter {
	return &Splitter{emit: emit}
}

func isHardStop(r rune) bool {
	switch r {
	case '。', '！', '？', '!', '?', '\n':
		return true
	}
	return false
}

// Write appends a delta and emits every completed sentence.
func (s *Splitter) Write(delta string) {
	s.buf = append(s.buf, []rune(delta)...)

	start := 0
	for i := 0; i < len(s.buf); i++ {
		r := s.buf[i]
		cut := -1
		switch {
		case isHardStop(r):
			cut = i + 1
		case r == '.':
			if i+1 < len(s.buf) && unicode.IsSpace(s.buf[i+1]) {
				cut = i + 1
			}
		}
		if cut > 0 {
			s.send(string(s.buf[start:cut]))
			start = cut
		}
	}
	s.buf = append(s.buf[:0], s.buf[start:]...)
}

// Flush emits whatever text remains.
func (s *Splitter) Flush() {
	if len(s.buf) > 0 {
		s.send(string(s.buf))
		s.buf = s.buf[:0]
	}
}

func (s *Splitter) send(text string) {
	text = strings.TrimSpace(text)
	if text == "" || s.emit == nil {
		return
	}
	s.emit(text)
}
