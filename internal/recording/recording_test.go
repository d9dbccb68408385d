package recording

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Upload(key, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

func statusContext(params map[string]string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/twilio/recording-status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("twilioParams", params)
	return c
}

func TestStart_RequestsDualChannelWithCallback(t *testing.T) {
	var gotCallSID string
	var gotParams *twilioApi.CreateCallRecordingParams

	s := New(Config{AccountSID: "AC1", AuthToken: "tok"}, newMemStorage())
	s.createRecording = func(callSID string, params *twilioApi.CreateCallRecordingParams) error {
		gotCallSID = callSID
		gotParams = params
		return nil
	}

	if err := s.Start("CA1", "https://example.com/twilio/recording-status"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if gotCallSID != "CA1" {
		t.Fatalf("callSID = %q", gotCallSID)
	}
	if got := *gotParams.RecordingStatusCallback; got != "https://example.com/twilio/recording-status" {
		t.Fatalf("callback = %q", got)
	}
	if got := *gotParams.RecordingChannels; got != "dual" {
		t.Fatalf("channels = %q", got)
	}
	if got := *gotParams.RecordingStatusCallbackEvent; len(got) != 1 || got[0] != "completed" {
		t.Fatalf("events = %v", got)
	}
}

func TestHandleStatus_CompletedDownloadsAndArchives(t *testing.T) {
	wav := []byte("RIFFfakewav")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".wav") {
			t.Errorf("download path = %q, want .wav suffix", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "tok" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}
		w.Write(wav)
	}))
	defer srv.Close()

	store := newMemStorage()
	s := New(Config{AccountSID: "AC1", AuthToken: "tok"}, store)

	c := statusContext(map[string]string{
		"RecordingStatus": "completed",
		"RecordingUrl":    srv.URL + "/2010-04-01/rec/RE1",
		"RecordingSid":    "RE1",
		"CallSid":         "CA1",
	})
	if err := s.HandleStatus(c); err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}

	key := "calls/CA1/RE1.wav"
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, ok := store.get(key); ok {
			if string(data) != string(wav) {
				t.Fatalf("stored %q, want %q", data, wav)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("recording %s never archived", key)
}

func TestHandleStatus_NonCompletedIgnored(t *testing.T) {
	store := newMemStorage()
	s := New(Config{AccountSID: "AC1", AuthToken: "tok"}, store)

	c := statusContext(map[string]string{
		"RecordingStatus": "in-progress",
		"RecordingUrl":    "https://example.com/RE1",
		"RecordingSid":    "RE1",
		"CallSid":         "CA1",
	})
	if err := s.HandleStatus(c); err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	n := len(store.objects)
	store.mu.Unlock()
	if n != 0 {
		t.Fatalf("%d objects stored for in-progress status", n)
	}
}

func TestHandleStatus_MissingParamsNoPanic(t *testing.T) {
	s := New(Config{}, nil)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/twilio/recording-status", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := s.HandleStatus(c); err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}
}
