package dialogue

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/development-NHI/twillio-premium-bot-sub000/internal/nlu"
)

// Phase is the coarse booking lifecycle stage.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseBooking   Phase = "booking"
	PhaseConfirmed Phase = "confirmed"
)

// Slots is the booking form. A field, once set, is only overwritten by an
// explicitly newly-stated value, never cleared.
type Slots struct {
	Service string
	Date    string
	Time    string
	Name    string
	Phone   string
}

// Snapshot serializes the slot set for change detection between
// confirmations.
func (s Slots) Snapshot() string {
	return strings.Join([]string{s.Service, s.Date, s.Time, s.Name, s.Phone}, "|")
}

// nextMissing returns the first gap in priority order. When both date and
// time are absent they are asked for jointly.
func nextMissing(s Slots) string {
	switch {
	case s.Service == "":
		return "service"
	case s.Date == "" && s.Time == "":
		return "datetime"
	case s.Date == "":
		return "date"
	case s.Time == "":
		return "time"
	case s.Name == "":
		return "name"
	case s.Phone == "":
		return "phone"
	default:
		return "done"
	}
}

var slotQuestions = map[string]string{
	"service":  "What can I get you in for? We do haircuts, beard trims, or a combo of both.",
	"datetime": "What day and time work for you?",
	"date":     "What day works for you?",
	"time":     "What time works for you?",
	"name":     "Can I get your name for the booking?",
	"phone":    "And what's the best phone number to reach you?",
}

const (
	greetingQuestion = "Thanks for calling Fade District! How can I help you today?"
	openQuestion     = "Is there anything else I can help you with?"
	inviteQuestion   = "Would you like to book an appointment?"
	declineReprompt  = "No problem at all. Is there anything else I can help you with?"
	transferLine     = "Of course, one moment while I transfer you to someone at the shop."
)

// dedupWindow suppresses re-asks of the identical question triggered by
// redundant state re-evaluation.
const dedupWindow = 1200 * time.Millisecond

// Speaker queues one line of speech on the call. Implementations must be
// safe to call from timer goroutines.
type Speaker interface {
	Speak(text string)
}

// Classifier is the single-exchange intent/slot extractor plus the short
// smalltalk acknowledgment generator.
type Classifier interface {
	Classify(ctx context.Context, transcript string) (nlu.Result, error)
	Quip(ctx context.Context, transcript string) (string, error)
}

// Engine is the per-call slot-filling state machine. It owns the dialogue
// phase and the slot set, decides every spoken line, and arms the silence
// supervisor around every question. All entry points serialize on one mutex;
// supervisor callbacks reuse the same speak operation, so the whole call is
// a single cooperative flow.
type Engine struct {
	callID string
	caller string

	speaker  Speaker
	classify Classifier
	sup      *Supervisor
	notify   func(topic string)
	end      func()

	now func() time.Time

	mu             sync.Mutex
	phase          Phase
	slots          Slots
	lastConfirmed  string
	lastQuestion   string
	lastQuestionAt time.Time
}

// NewEngine wires a fresh engine for one call. caller is the originating
// number as supplied by the stream start event, possibly empty. notify and
// end may be nil.
func NewEngine(callID, caller string, speaker Speaker, classifier Classifier, sup *Supervisor, notify func(string), end func()) *Engine {
	if notify == nil {
		notify = func(string) {}
	}
	if end == nil {
		end = func() {}
	}
	return &Engine{
		callID:   callID,
		caller:   caller,
		speaker:  speaker,
		classify: classifier,
		sup:      sup,
		notify:   notify,
		end:      end,
		now:      time.Now,
		phase:    PhaseIdle,
	}
}

// Phase returns the current dialogue phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Slots returns a copy of the current slot set.
func (e *Engine) Slots() Slots {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots
}

// Greet speaks the opening question and arms the supervisor. Called once by
// the gateway when the media stream starts.
func (e *Engine) Greet() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ask(greetingQuestion)
}

// HandleTranscript processes one finalized utterance. The supervisor is
// disarmed before anything else so a stale retry can never race the answer.
// A failed classification degrades to an UNKNOWN result.
func (e *Engine) HandleTranscript(ctx context.Context, transcript string) {
	e.sup.Disarm()

	res, err := e.classify.Classify(ctx, transcript)
	if err != nil {
		log.Printf("[%s] classify failed: %v", e.callID, err)
		res = nlu.Result{Intent: nlu.IntentUnknown}
	}
	log.Printf("[%s] heard: %q intent=%s", e.callID, transcript, res.Intent)

	// "Use this number" means the caller's own originating number; the
	// extractor leaves phone blank for that phrasing by design.
	if res.Phone == "" && e.caller != "" && mentionsOwnNumber(transcript) {
		res.Phone = nlu.NormalizePhone(e.caller)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance(ctx, res, transcript)
}

// advance runs one turn of the state machine. Caller holds e.mu.
func (e *Engine) advance(ctx context.Context, res nlu.Result, transcript string) {
	changed := e.merge(res)

	booking := e.phase == PhaseBooking || res.Intent == nlu.IntentBook
	if booking && len(changed) > 0 {
		for _, field := range changed {
			e.speaker.Speak(e.ackFor(field))
		}
	}

	switch res.Intent {
	case nlu.IntentDeclineBook:
		e.phase = PhaseIdle
		e.ask(declineReprompt)

	case nlu.IntentFAQ:
		e.notify(res.FAQTopic)
		e.speaker.Speak(FAQAnswer(res.FAQTopic))
		switch e.phase {
		case PhaseBooking:
			e.askNext(ctx, "")
		case PhaseConfirmed:
			e.ask(openQuestion)
		default:
			e.ask(inviteQuestion)
		}

	case nlu.IntentTransfer:
		e.speaker.Speak(transferLine)
		e.end()

	case nlu.IntentBook:
		e.phase = PhaseBooking
		e.askNext(ctx, "")

	default: // SMALLTALK / UNKNOWN
		if e.phase == PhaseBooking {
			// Never let small talk drop the booking question: one short
			// acknowledgment, then the precise outstanding question.
			quip := ""
			if q, err := e.classify.Quip(ctx, transcript); err == nil {
				quip = q
			} else {
				log.Printf("[%s] quip failed: %v", e.callID, err)
			}
			e.askNext(ctx, quip)
			return
		}
		if q, err := e.classify.Quip(ctx, transcript); err == nil && q != "" {
			e.speaker.Speak(q)
		}
		e.ask("How can I help you today?")
	}
}

// merge folds newly stated values into the slot set and reports which fields
// changed, in priority order. A field changes only when the new normalized
// value differs from the current one.
func (e *Engine) merge(res nlu.Result) []string {
	var changed []string
	set := func(cur *string, val, name string) {
		if val != "" && val != *cur {
			*cur = val
			changed = append(changed, name)
		}
	}
	set(&e.slots.Service, res.Service, "service")
	set(&e.slots.Date, res.Date, "date")
	set(&e.slots.Time, res.Time, "time")
	set(&e.slots.Name, res.Name, "name")
	set(&e.slots.Phone, res.Phone, "phone")
	return changed
}

func (e *Engine) ackFor(field string) string {
	switch field {
	case "service":
		return "A " + e.slots.Service + ", got it."
	case "date":
		return "Okay, " + nlu.HumanDate(e.slots.Date) + "."
	case "time":
		return "Noted, " + e.slots.Time + "."
	case "name":
		return "Thanks, " + e.slots.Name + "."
	case "phone":
		return "Great, I've got the number ending in " + lastFour(e.slots.Phone) + "."
	}
	return ""
}

// askNext asks for the next missing slot, or confirms when the form is
// complete. prefix, when non-empty, is spoken first (smalltalk quips).
func (e *Engine) askNext(ctx context.Context, prefix string) {
	e.phase = PhaseBooking
	missing := nextMissing(e.slots)
	if prefix != "" {
		e.speaker.Speak(prefix)
	}
	if missing == "done" {
		e.confirm()
		return
	}
	e.ask(slotQuestions[missing])
}

// confirm speaks the confirmation line once per distinct slot snapshot and
// arms the closing question. Re-confirming an unchanged snapshot is a no-op.
func (e *Engine) confirm() {
	snap := e.slots.Snapshot()
	if snap == e.lastConfirmed {
		e.phase = PhaseConfirmed
		return
	}

	var b strings.Builder
	if e.lastConfirmed == "" {
		b.WriteString("Perfect, " + e.slots.Name + ", you're booked for a ")
	} else {
		b.WriteString("All updated, " + e.slots.Name + ": a ")
	}
	b.WriteString(e.slots.Service)
	b.WriteString(" on " + nlu.HumanDate(e.slots.Date))
	b.WriteString(" at " + e.slots.Time + ".")
	if e.slots.Phone != "" {
		b.WriteString(" We'll text the number ending in " + lastFour(e.slots.Phone) + " if anything changes.")
	}
	e.speaker.Speak(b.String())

	e.phase = PhaseConfirmed
	e.lastConfirmed = snap
	e.ask(openQuestion)
}

// ask speaks a question and arms the supervisor with its exact text.
// An identical question inside the dedup window is not re-spoken, but the
// supervisor is still re-armed so the caller always has a live timeout.
func (e *Engine) ask(question string) {
	now := e.now()
	if question == e.lastQuestion && now.Sub(e.lastQuestionAt) <= dedupWindow {
		e.sup.Arm(question)
		return
	}
	e.lastQuestion = question
	e.lastQuestionAt = now
	e.speaker.Speak(question)
	e.sup.Arm(question)
}

func mentionsOwnNumber(transcript string) bool {
	t := strings.ToLower(transcript)
	return strings.Contains(t, "this number") || strings.Contains(t, "my number")
}

func lastFour(phone string) string {
	if len(phone) < 4 {
		return phone
	}
	return phone[len(phone)-4:]
}
