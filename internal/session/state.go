package session

import "sync"

const (
	// HistoryLimit bounds the stored history to the last three exchanges.
	HistoryLimit = 6
	// PromptWindow is how many trailing turns are rendered into a prompt.
	PromptWindow = 3
)

// State holds the conversation history and the active system instructions.
// It is safe for concurrent reads; only the Manager mutates it.
type State struct {
	mu           sync.RWMutex
	instructions string
	history      []Turn
	limit        int
}

// NewState creates an empty state bounded to limit turns. A non-positive
// limit falls back to HistoryLimit.
func NewState(limit int) *State {
	if limit <= 0 {
		limit = HistoryLimit
	}
	return &State{
		history: make([]Turn, 0, limit+1),
		limit:   limit,
	}
}

func (s *State) Instructions() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instructions
}

func (s *State) SetInstructions(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructions = text
}

// History returns a copy of the stored turns, oldest first.
func (s *State) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Window returns a copy of the last n turns.
func (s *State) Window(n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Append adds turns and drops the oldest ones beyond the limit.
func (s *State) Append(turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, turns...)
	if over := len(s.history) - s.limit; over > 0 {
		kept := make([]Turn, s.limit, s.limit+1)
		copy(kept, s.history[over:])
		s.history = kept
	}
}

// Reset empties the history. Instructions are kept unless clearInstructions is set.
func (s *State) Reset(clearInstructions bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = make([]Turn, 0, s.limit+1)
	if clearInstructions {
		s.instructions = ""
	}
}
