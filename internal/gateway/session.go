package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/development-NHI/twillio-premium-bot-sub000/internal/asr"
	"github.com/development-NHI/twillio-premium-bot-sub000/internal/audio"
	"github.com/development-NHI/twillio-premium-bot-sub000/internal/config"
	"github.com/development-NHI/twillio-premium-bot-sub000/internal/dialogue"
	"github.com/development-NHI/twillio-premium-bot-sub000/internal/nlu"
	"github.com/development-NHI/twillio-premium-bot-sub000/internal/notify"
	"github.com/development-NHI/twillio-premium-bot-sub000/internal/tts"
)

// speakTimeout bounds one synthesis round trip so a stalled TTS backend
// cannot wedge a call.
const speakTimeout = 30 * time.Second

// Transcriber is the slice of the live recognizer a session drives.
type Transcriber interface {
	Connect() error
	Send(pcm []byte) error
	Close() error
}

// Handler upgrades Twilio media-stream websockets and runs one session per
// call. The same classifier and notifier are shared across calls; the
// recognizer is per-call.
type Handler struct {
	upgrader       websocket.Upgrader
	synth          tts.Synthesizer
	classifier     dialogue.Classifier
	notifier       *notify.Client
	newTranscriber func(onFinal func(string)) Transcriber
}

func NewHandler(cfg config.Config) *Handler {
	var synth tts.Synthesizer
	if cfg.TTSProvider == "deepgram" {
		synth = tts.NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramTTSModel)
	} else {
		synth = tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		synth:      synth,
		classifier: nlu.NewClassifier(cfg.CerebrasKey, cfg.CerebrasModelID),
		notifier:   notify.NewClient(cfg.FAQWebhookURL),
		newTranscriber: func(onFinal func(string)) Transcriber {
			return asr.NewLiveTranscriber(cfg.DeepgramKey, onFinal)
		},
	}
}

// HandleMedia is the websocket endpoint Twilio connects its media stream to.
// It blocks for the lifetime of the call.
func (h *Handler) HandleMedia(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	newSession(conn, h).run()
	return nil
}

// session is the duplex bridge for one call: inbound media frames are
// batched, expanded to linear PCM and fed to the recognizer; outbound speech
// is streamed from the synthesizer back over the same socket as base64
// media messages followed by a mark.
type session struct {
	conn    *websocket.Conn
	handler *Handler

	ctx    context.Context
	cancel context.CancelFunc

	// writeMu serializes websocket writes, speakMu serializes whole
	// utterances so supervisor lines cannot interleave with engine lines.
	writeMu sync.Mutex
	speakMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}

	// batchMu guards the batcher: the read loop pushes frames while a
	// supervisor-triggered teardown may flush from its timer goroutine.
	batchMu sync.Mutex

	mu        sync.Mutex
	streamSID string
	callSID   string
	trans     Transcriber
	batch     *audio.Batcher
	engine    *dialogue.Engine
	sup       *dialogue.Supervisor
}

func newSession(conn *websocket.Conn, h *Handler) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		conn:    conn,
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (s *session) run() {
	defer s.teardown()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("call %s: stream read: %v", s.callID(), err)
			}
			return
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Event {
		case "connected":
			// handshake ack, nothing to do until start
		case "start":
			if msg.Start != nil {
				s.handleStart(msg.Start)
			}
		case "media":
			if msg.Media != nil {
				s.handleMedia(msg.Media)
			}
		case "mark":
			// playback checkpoints echoed back by Twilio
		case "stop":
			log.Printf("call %s: stream stopped", s.callID())
			return
		default:
			// unknown event types are dropped without ending the call
		}
	}
}

func (s *session) handleStart(start *startPayload) {
	caller := start.CustomParameters["caller"]
	log.Printf("call %s: stream %s started, caller %q", start.CallSID, start.StreamSID, caller)

	trans := s.handler.newTranscriber(s.onFinal)
	if err := trans.Connect(); err != nil {
		// the call stays up so the greeting still plays, but nothing the
		// caller says will be heard
		log.Printf("call %s: recognizer connect failed: %v", start.CallSID, err)
		trans = nil
	}

	sup := dialogue.NewSupervisor(s.Speak, s.hangup)
	engine := dialogue.NewEngine(start.CallSID, caller, s, s.handler.classifier, sup,
		func(topic string) { s.handler.notifier.FAQLookup(start.CallSID, topic) },
		s.hangup)

	s.mu.Lock()
	s.streamSID = start.StreamSID
	s.callSID = start.CallSID
	s.trans = trans
	s.sup = sup
	s.engine = engine
	s.batch = audio.NewBatcher(s.feed)
	s.mu.Unlock()

	engine.Greet()
}

func (s *session) handleMedia(m *mediaPayload) {
	s.mu.Lock()
	batch := s.batch
	s.mu.Unlock()
	if batch == nil {
		// media before start, drop
		return
	}
	frame, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil || len(frame) == 0 {
		return
	}
	s.batchMu.Lock()
	batch.Push(frame)
	s.batchMu.Unlock()
}

// feed receives decoded PCM chunks from the batcher. Only the media read
// loop calls it.
func (s *session) feed(pcm []byte) {
	s.mu.Lock()
	trans := s.trans
	s.mu.Unlock()
	if trans == nil {
		return
	}
	_ = trans.Send(pcm)
}

// onFinal runs on the recognizer's read goroutine for each finalized
// utterance.
func (s *session) onFinal(transcript string) {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine == nil {
		return
	}
	log.Printf("call %s: heard %q", s.callID(), transcript)
	engine.HandleTranscript(s.ctx, transcript)
}

// Speak synthesizes text and streams it to the caller, then sends a mark so
// Twilio reports when playback finishes. Calls after teardown are no-ops.
func (s *session) Speak(text string) {
	select {
	case <-s.done:
		return
	default:
	}

	s.speakMu.Lock()
	defer s.speakMu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, speakTimeout)
	defer cancel()

	audioCh, errCh := s.handler.synth.Stream(ctx, text)
	for audioCh != nil || errCh != nil {
		select {
		case chunk, ok := <-audioCh:
			if !ok {
				audioCh = nil
				continue
			}
			s.sendMedia(chunk)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				log.Printf("call %s: synthesis: %v", s.callID(), err)
			}
		case <-s.done:
			return
		}
	}
	s.sendMark("eou")
}

func (s *session) sendMedia(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	msg := streamMessage{
		Event:     "media",
		StreamSID: s.streamID(),
		Media:     &mediaPayload{Payload: base64.StdEncoding.EncodeToString(chunk)},
	}
	s.writeJSON(msg)
}

func (s *session) sendMark(name string) {
	msg := streamMessage{
		Event:     "mark",
		StreamSID: s.streamID(),
		Mark:      &markPayload{Name: name},
	}
	s.writeJSON(msg)
}

func (s *session) writeJSON(v interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		log.Printf("call %s: stream write: %v", s.callID(), err)
	}
}

// hangup ends the call from our side: the supervisor's final timeout and the
// engine's transfer path both land here.
func (s *session) hangup() {
	log.Printf("call %s: hanging up", s.callID())
	s.teardown()
	_ = s.conn.Close()
}

// teardown releases the per-call resources exactly once. Safe to call from
// any goroutine.
func (s *session) teardown() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()

		s.mu.Lock()
		trans := s.trans
		sup := s.sup
		batch := s.batch
		s.mu.Unlock()

		if sup != nil {
			sup.Disarm()
		}
		if batch != nil {
			// trailing audio goes out while the recognizer is still up
			s.batchMu.Lock()
			batch.Flush()
			s.batchMu.Unlock()
		}

		s.mu.Lock()
		s.trans = nil
		s.mu.Unlock()
		if trans != nil {
			_ = trans.Close()
		}
	})
}

func (s *session) callID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callSID
}

func (s *session) streamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}
