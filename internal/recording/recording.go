package recording

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Storage is where finished recordings end up.
type Storage interface {
	Upload(key, contentType string, data []byte) error
}

type Config struct {
	AccountSID string
	AuthToken  string
}

// Service starts dual-channel call recordings over the Twilio REST API and
// archives the resulting WAV files when Twilio reports them complete.
type Service struct {
	config     Config
	storage    Storage
	httpClient *http.Client

	// createRecording is the REST call, replaceable in tests.
	createRecording func(callSID string, params *twilioApi.CreateCallRecordingParams) error
}

func New(config Config, storage Storage) *Service {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})

	return &Service{
		config:     config,
		storage:    storage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		createRecording: func(callSID string, params *twilioApi.CreateCallRecordingParams) error {
			_, err := client.Api.CreateCallRecording(callSID, params)
			return err
		},
	}
}

// Start asks Twilio to record the call, with status events posted back to
// callbackURL. Recording is best effort; the call proceeds either way.
func (s *Service) Start(callSID, callbackURL string) error {
	params := &twilioApi.CreateCallRecordingParams{}
	params.SetRecordingStatusCallback(callbackURL)
	params.SetRecordingStatusCallbackMethod("POST")
	params.SetRecordingStatusCallbackEvent([]string{"completed"})
	params.SetRecordingChannels("dual")

	if err := s.createRecording(callSID, params); err != nil {
		return fmt.Errorf("start recording for %s: %w", callSID, err)
	}
	return nil
}

// HandleStatus is the recording status callback. Expects the signature
// middleware to have stashed the form fields under "twilioParams".
func (s *Service) HandleStatus(c echo.Context) error {
	params, _ := c.Get("twilioParams").(map[string]string)

	status := params["RecordingStatus"]
	recordingURL := params["RecordingUrl"]
	recordingSID := params["RecordingSid"]
	callSID := params["CallSid"]

	log.Printf("call %s: recording %s status %s", callSID, recordingSID, status)

	if status == "completed" && recordingURL != "" && s.storage != nil {
		key := fmt.Sprintf("calls/%s/%s.wav", callSID, recordingSID)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.archive(ctx, recordingURL, key); err != nil {
				log.Printf("call %s: archive recording: %v", callSID, err)
				return
			}
			log.Printf("call %s: recording archived as %s", callSID, key)
		}()
	}

	return c.String(http.StatusOK, "OK")
}

func (s *Service) archive(ctx context.Context, recordingURL, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL+".wav", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download recording: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return s.storage.Upload(key, "audio/wav", data)
}
