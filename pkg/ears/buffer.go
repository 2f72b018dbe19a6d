// Package ears delivers recognized speech to the event loop.
//
// A recognizer pushes final transcripts into a Buffer; the loop polls it
// without blocking.
package ears

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultBufferSize is the number of utterances held before the oldest is dropped.
const DefaultBufferSize = 32

// Utterance is one final transcript.
type Utterance struct {
	ID   uuid.UUID
	Text string
	At   time.Time
}

// NewUtterance stamps text with a fresh id and the current time.
func NewUtterance(text string) Utterance {
	return Utterance{ID: uuid.New(), Text: text, At: time.Now()}
}

// Source is read by the event loop once per tick.
type Source interface {
	// Next returns the oldest pending utterance without blocking.
	Next() (Utterance, bool)
	// Clear drops everything pending.
	Clear()
}

// Buffer is a bounded FIFO of utterances. When full, the oldest entry is
// dropped to make room.
type Buffer struct {
	mu      sync.Mutex
	ch      chan Utterance
	dropped int
}

// NewBuffer creates a buffer holding up to size utterances.
func NewBuffer(size int) *Buffer {
	if size < 1 {
		size = DefaultBufferSize
	}
	return &Buffer{ch: make(chan Utterance, size)}
}

// Push adds a transcript. Spaces are removed and empty text is ignored.
// It reports whether an utterance was queued.
func (b *Buffer) Push(text string) bool {
	text = Normalize(text)
	if text == "" {
		return false
	}
	b.PushUtterance(NewUtterance(text))
	return true
}

// PushUtterance adds u as is.
func (b *Buffer) PushUtterance(u Utterance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		select {
		case b.ch <- u:
			return
		default:
		}
		select {
		case <-b.ch:
			b.dropped++
		default:
		}
	}
}

// Next implements Source.
func (b *Buffer) Next() (Utterance, bool) {
	select {
	case u := <-b.ch:
		return u, true
	default:
		return Utterance{}, false
	}
}

// Clear implements Source.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		select {
		case <-b.ch:
		default:
			return
		}
	}
}

// Len returns the number of pending utterances.
func (b *Buffer) Len() int {
	return len(b.ch)
}

// Dropped returns how many utterances were discarded on overflow.
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Normalize strips all whitespace; recognizers insert spaces between CJK
// characters.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), "")
}

var _ Source = (*Buffer)(nil)
