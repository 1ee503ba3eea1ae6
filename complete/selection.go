package complete

import "sync"

// SelectionSlot holds at most one selection waiting to be surrounded.
// Hosts keep one slot per document and pass it to requests as a
// SelectionSource.
type SelectionSlot struct {
	mu          sync.Mutex
	text        string
	shouldClear bool
}

// Set replaces the pending selection.
func (s *SelectionSlot) Set(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.shouldClear = false
}

// Take returns the pending selection and empties the slot.
func (s *SelectionSlot) Take() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.text
	s.text = ""
	return text
}

// Restore puts text back if the slot is still empty.
func (s *SelectionSlot) Restore(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.text == "" {
		s.text = text
	}
}

// Pending reports the selection without taking it.
func (s *SelectionSlot) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// MarkCleared records that a surround has consumed the selection, so the
// host should drop the editor-side selection on its next update.
func (s *SelectionSlot) MarkCleared() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldClear = true
}

// ShouldClear reports and resets the flag set by MarkCleared.
func (s *SelectionSlot) ShouldClear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.shouldClear
	s.shouldClear = false
	return v
}
