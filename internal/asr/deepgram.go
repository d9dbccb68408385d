package asr

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// LiveTranscriber maintains one streaming connection to Deepgram per call.
// Audio is pushed as raw linear PCM chunks; only results marked both final
// and end-of-speech reach the caller's callback. Interim results exist solely
// so the server keeps endpointing; they are discarded here.
type LiveTranscriber struct {
	apiKey  string
	onFinal func(transcript string)

	conn      *websocket.Conn
	audioData chan []byte
	stopCh    chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	connected bool
}

// resultMessage is the subset of Deepgram's Results event we consume.
type resultMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	// SpeechFinal marks server-side endpointing: the speaker stopped.
	SpeechFinal bool `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type errorMessage struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

// NewLiveTranscriber creates a transcriber that invokes onFinal with each
// trimmed finalized utterance.
func NewLiveTranscriber(apiKey string, onFinal func(string)) *LiveTranscriber {
	return &LiveTranscriber{
		apiKey:    apiKey,
		onFinal:   onFinal,
		audioData: make(chan []byte, 1000),
		stopCh:    make(chan struct{}),
	}
}

// Connect establishes the streaming connection. The endpointing window is
// fixed at 250ms so short pauses end an utterance quickly without cutting
// the caller mid-sentence.
func (s *LiveTranscriber) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}
	if s.apiKey == "" {
		return fmt.Errorf("deepgram api key is empty")
	}

	params := url.Values{}
	params.Set("model", "nova-2")
	params.Set("encoding", "linear16")
	params.Set("sample_rate", "8000")
	params.Set("channels", "1")
	params.Set("interim_results", "true")
	params.Set("endpointing", "250")
	params.Set("smart_format", "true")

	wsURL := fmt.Sprintf("wss://api.deepgram.com/v1/listen?%s", params.Encode())
	headers := map[string][]string{
		"Authorization": {"Token " + s.apiKey},
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("deepgram connection failed with status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to connect to deepgram: %w", err)
	}

	s.conn = conn
	s.connected = true

	go s.handleMessages()
	go s.sendAudioData()

	log.Println("connected to deepgram streaming service")
	return nil
}

// Send queues a linear-audio chunk for the recognizer. Chunks are never
// reordered; a full buffer drops the packet rather than blocking the call.
func (s *LiveTranscriber) Send(pcm []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return fmt.Errorf("not connected to deepgram")
	}
	select {
	case s.audioData <- pcm:
		return nil
	default:
		log.Println("deepgram audio buffer full, dropping chunk")
		return nil
	}
}

// Close tears down the connection. Safe to call more than once; the
// transcriber is call-scoped and never reconnects.
func (s *LiveTranscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	log.Println("deepgram connection closed")
	return nil
}

func (s *LiveTranscriber) handleMessages() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic in deepgram reader: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
			default:
				log.Printf("deepgram read error: %v", err)
			}
			return
		}
		s.processMessage(message)
	}
}

// processMessage parses one server event and forwards finalized transcripts.
func (s *LiveTranscriber) processMessage(message []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		log.Printf("deepgram: unparseable message: %v", err)
		return
	}
	switch base.Type {
	case "Results":
		var msg resultMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("deepgram: bad Results message: %v", err)
			return
		}
		if !msg.IsFinal || !msg.SpeechFinal {
			return
		}
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		transcript := strings.TrimSpace(msg.Channel.Alternatives[0].Transcript)
		if transcript == "" {
			return
		}
		if s.onFinal != nil {
			s.onFinal(transcript)
		}
	case "Metadata", "UtteranceEnd", "SpeechStarted":
		// informational
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			log.Printf("deepgram error: %s %s", msg.Description, msg.Message)
		}
	default:
		log.Printf("deepgram: unknown message type %q", base.Type)
	}
}

func (s *LiveTranscriber) sendAudioData() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic in deepgram writer: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		case pcm := <-s.audioData:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				log.Printf("deepgram write error: %v", err)
				return
			}
		}
	}
}
