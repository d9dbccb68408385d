package notify

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Client posts fire-and-forget notifications to a downstream webhook when a
// caller asks an FAQ. Failures are logged and otherwise ignored; nothing in
// the call path ever waits on the webhook.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

func NewClient(url string) *Client {
	return &Client{URL: url, HTTPClient: &http.Client{Timeout: 5 * time.Second}}
}

type faqEvent struct {
	CallID  string `json:"call_id"`
	Topic   string `json:"topic"`
	AskedAt string `json:"asked_at"`
}

// FAQLookup reports one topic lookup. Safe to call with an unconfigured URL.
func (c *Client) FAQLookup(callID, topic string) {
	if c == nil || c.URL == "" {
		return
	}
	go func() {
		body, _ := json.Marshal(faqEvent{
			CallID:  callID,
			Topic:   topic,
			AskedAt: time.Now().UTC().Format(time.RFC3339),
		})
		resp, err := c.HTTPClient.Post(c.URL, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("faq webhook failed: %v", err)
			return
		}
		_ = resp.Body.Close()
	}()
}
