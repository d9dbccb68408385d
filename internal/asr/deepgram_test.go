package asr

import "testing"

func finalCollector() (*[]string, func(string)) {
	var finals []string
	return &finals, func(t string) { finals = append(finals, t) }
}

func TestProcessMessage_OnlyFinalAndSpeechFinal(t *testing.T) {
	finals, cb := finalCollector()
	s := NewLiveTranscriber("key", cb)

	// interim: ignored
	s.processMessage([]byte(`{"type":"Results","is_final":false,"speech_final":false,
		"channel":{"alternatives":[{"transcript":"hel"}]}}`))
	// final but not end of speech: ignored
	s.processMessage([]byte(`{"type":"Results","is_final":true,"speech_final":false,
		"channel":{"alternatives":[{"transcript":"hello there"}]}}`))
	// final + end of speech: delivered trimmed
	s.processMessage([]byte(`{"type":"Results","is_final":true,"speech_final":true,
		"channel":{"alternatives":[{"transcript":"  hello there  "}]}}`))

	if len(*finals) != 1 {
		t.Fatalf("expected exactly 1 final, got %d", len(*finals))
	}
	if (*finals)[0] != "hello there" {
		t.Fatalf("expected trimmed transcript, got %q", (*finals)[0])
	}
}

func TestProcessMessage_EmptyTranscriptDropped(t *testing.T) {
	finals, cb := finalCollector()
	s := NewLiveTranscriber("key", cb)
	s.processMessage([]byte(`{"type":"Results","is_final":true,"speech_final":true,
		"channel":{"alternatives":[{"transcript":"   "}]}}`))
	s.processMessage([]byte(`{"type":"Results","is_final":true,"speech_final":true,
		"channel":{"alternatives":[]}}`))
	if len(*finals) != 0 {
		t.Fatalf("expected no finals for empty transcripts, got %d", len(*finals))
	}
}

func TestProcessMessage_MalformedAndUnknownIgnored(t *testing.T) {
	finals, cb := finalCollector()
	s := NewLiveTranscriber("key", cb)
	s.processMessage([]byte(`not json`))
	s.processMessage([]byte(`{"type":"Metadata"}`))
	s.processMessage([]byte(`{"type":"Error","description":"boom"}`))
	if len(*finals) != 0 {
		t.Fatalf("expected no finals, got %d", len(*finals))
	}
}

func TestSend_RequiresConnection(t *testing.T) {
	s := NewLiveTranscriber("key", nil)
	if err := s.Send([]byte{0, 0}); err == nil {
		t.Fatalf("expected error when not connected")
	}
}

func TestConnect_EmptyKey(t *testing.T) {
	s := NewLiveTranscriber("", nil)
	if err := s.Connect(); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestClose_Idempotent(t *testing.T) {
	s := NewLiveTranscriber("key", nil)
	if err := s.Close(); err != nil {
		t.Fatalf("close on unconnected transcriber: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
