package session

import "github.com/ashureev/chat-relay/internal/domain"

// history is a fixed-size ring of turns. When full, appending overwrites the
// oldest turn, so the most recent size turns are always retained.
// It is not safe for concurrent use; Store serializes access.
type history struct {
	buf  []domain.Turn
	size int
	head int // write position
	tail int // read position
	full bool
}

func newHistory(size int) *history {
	if size <= 0 {
		size = DefaultHistoryCap
	}
	return &history{
		buf:  make([]domain.Turn, size),
		size: size,
	}
}

func (h *history) push(t domain.Turn) {
	if h.full {
		// Overwrite: advance tail past the oldest turn.
		h.tail = (h.tail + 1) % h.size
	}
	h.buf[h.head] = t
	h.head = (h.head + 1) % h.size
	if h.head == h.tail {
		h.full = true
	}
}

func (h *history) len() int {
	switch {
	case h.full:
		return h.size
	case h.head >= h.tail:
		return h.head - h.tail
	default:
		return (h.size - h.tail) + h.head
	}
}

// last returns a copy of the most recent n turns, oldest first.
func (h *history) last(n int) []domain.Turn {
	total := h.len()
	if n <= 0 || total == 0 {
		return []domain.Turn{}
	}
	if n > total {
		n = total
	}
	out := make([]domain.Turn, n)
	start := (h.tail + total - n) % h.size
	for i := 0; i < n; i++ {
		out[i] = h.buf[(start+i)%h.size]
	}
	return out
}

func (h *history) all() []domain.Turn {
	return h.last(h.len())
}

func (h *history) reset() {
	clear(h.buf)
	h.head = 0
	h.tail = 0
	h.full = false
}
