package dialogue

import (
	"sync"
	"time"
)

// Default supervisor timing. RetryDelay runs from the moment a question is
// armed; GoodbyeDelay runs from the retry. DrainDelay leaves enough room for
// the farewell audio to finish playing before the stream is closed.
const (
	RetryDelay   = 25 * time.Second
	GoodbyeDelay = 25 * time.Second
	DrainDelay   = 8 * time.Second
)

const (
	retryPrefix = "Sorry, I didn't catch that. "
	goodbyeLine = "It sounds like now isn't a good time. Feel free to call back anytime. Goodbye!"
)

// Supervisor arms deferred actions around every question the agent asks:
// one re-prompt after RetryDelay of caller silence, then a goodbye after a
// further GoodbyeDelay, then call termination after DrainDelay. Both timers
// are canceled and replaced whenever a new question is armed, and canceled
// unconditionally the instant caller speech is recognized, so at most one
// pending-question pair is ever live.
type Supervisor struct {
	retryDelay   time.Duration
	goodbyeDelay time.Duration
	drainDelay   time.Duration

	speak func(text string)
	end   func()

	mu           sync.Mutex
	gen          uint64
	retryTimer   *time.Timer
	goodbyeTimer *time.Timer
	question     string
	retried      bool
}

// NewSupervisor builds a supervisor with the production delays. speak and end
// are the same operations the engine itself uses; the supervisor never
// mutates session state directly.
func NewSupervisor(speak func(string), end func()) *Supervisor {
	return &Supervisor{
		retryDelay:   RetryDelay,
		goodbyeDelay: GoodbyeDelay,
		drainDelay:   DrainDelay,
		speak:        speak,
		end:          end,
	}
}

// Arm replaces any pending question with this one. Existing timers are
// stopped before the new ones are created, so an earlier question's retry can
// never fire for a later question.
func (s *Supervisor) Arm(question string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.gen++
	gen := s.gen
	s.question = question
	s.retried = false
	s.retryTimer = time.AfterFunc(s.retryDelay, func() { s.onSilence(gen) })
}

// Disarm cancels both deferred actions. Called before any recognized
// utterance is processed.
func (s *Supervisor) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.gen++
	s.question = ""
	s.retried = false
}

// Pending reports whether a question is currently armed.
func (s *Supervisor) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.question != ""
}

func (s *Supervisor) cancelLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if s.goodbyeTimer != nil {
		s.goodbyeTimer.Stop()
		s.goodbyeTimer = nil
	}
}

// onSilence fires when the caller has said nothing for a full delay window.
// The generation token guards the narrow window where a timer goroutine has
// already started while Disarm ran; timers are otherwise stopped before reuse.
func (s *Supervisor) onSilence(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if !s.retried {
		// First timeout: restate the same question verbatim and give the
		// caller one more window.
		s.retried = true
		question := s.question
		s.goodbyeTimer = time.AfterFunc(s.goodbyeDelay, func() { s.onSilence(gen) })
		s.mu.Unlock()
		s.speak(retryPrefix + question)
		return
	}
	// Second timeout: say goodbye, let the audio drain, then hang up.
	s.cancelLocked()
	s.question = ""
	s.mu.Unlock()
	s.speak(goodbyeLine)
	time.AfterFunc(s.drainDelay, s.end)
}
