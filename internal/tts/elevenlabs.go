package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ElevenLabsClient streams telephony audio from the ElevenLabs HTTP
// streaming endpoint, requesting ulaw_8000 so chunks can go straight onto
// the call without transcoding.
type ElevenLabsClient struct {
	APIKey  string
	VoiceID string

	// baseURL is overridable for tests.
	baseURL string
}

func NewElevenLabsClient(apiKey, voiceID string) *ElevenLabsClient {
	return &ElevenLabsClient{APIKey: apiKey, VoiceID: voiceID, baseURL: "https://api.elevenlabs.io"}
}

// Stream requests synthesis for text and forwards body chunks as they
// arrive. The channels are closed when the stream completes or fails.
func (e *ElevenLabsClient) Stream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	audioCh := make(chan []byte, 256)
	errCh := make(chan error, 1)
	go func() {
		defer close(audioCh)
		defer close(errCh)
		if e.APIKey == "" || e.VoiceID == "" {
			errCh <- fmt.Errorf("elevenlabs: api key or voice id missing")
			return
		}
		if text == "" {
			return
		}
		if err := e.httpStream(ctx, text, audioCh); err != nil {
			errCh <- err
		}
	}()
	return audioCh, errCh
}

func (e *ElevenLabsClient) httpStream(ctx context.Context, text string, audioCh chan<- []byte) error {
	u, err := url.Parse(e.baseURL + "/v1/text-to-speech/" + e.VoiceID + "/stream")
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("output_format", "ulaw_8000")
	q.Set("optimize_streaming_latency", "2")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": "eleven_flash_v2_5",
		"text":     text,
		"voice_settings": map[string]any{
			"stability":        0.4,
			"similarity_boost": 0.7,
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 0}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs stream error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("elevenlabs status=%d body=%s", resp.StatusCode, string(b))
	}

	chunk := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			out := make([]byte, n)
			copy(out, chunk[:n])
			select {
			case audioCh <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return fmt.Errorf("elevenlabs read error: %w", rerr)
		}
	}
}
