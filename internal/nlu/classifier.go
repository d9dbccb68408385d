package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Intent is the coarse classification of one caller utterance.
type Intent string

const (
	IntentFAQ         Intent = "FAQ"
	IntentBook        Intent = "BOOK"
	IntentDeclineBook Intent = "DECLINE_BOOK"
	IntentTransfer    Intent = "TRANSFER"
	IntentSmalltalk   Intent = "SMALLTALK"
	IntentUnknown     Intent = "UNKNOWN"
)

// ParseIntent maps classifier output onto the fixed intent set; anything
// unrecognized is UNKNOWN.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(s))) {
	case IntentFAQ:
		return IntentFAQ
	case IntentBook:
		return IntentBook
	case IntentDeclineBook:
		return IntentDeclineBook
	case IntentTransfer:
		return IntentTransfer
	case IntentSmalltalk:
		return IntentSmalltalk
	default:
		return IntentUnknown
	}
}

// Result carries the intent plus any newly stated booking fields for a single
// utterance. Fields are not cumulative; an empty field means the caller did
// not mention it this turn.
type Result struct {
	Intent   Intent
	FAQTopic string
	Service  string
	Date     string
	Time     string
	Name     string
	Phone    string
}

const systemPrompt = `You classify one utterance from a phone caller to a barbershop.
Reply with ONLY a JSON object, no prose, in this exact shape:
{"intent":"FAQ|BOOK|DECLINE_BOOK|TRANSFER|SMALLTALK|UNKNOWN","faq_topic":"hours|prices|services|location|","service":"","date":"","time":"","name":"","phone":""}
Fill slot fields only with values NEWLY stated in this utterance.
If the caller says to use "this number" or "my number", leave phone empty.`

const quipPrompt = `You are a friendly barbershop receptionist. Reply with one short natural acknowledgment of the caller's remark. At most 12 words. Never ask a question.`

// rawResult is the wire shape returned by the classification service.
type rawResult struct {
	Intent   string `json:"intent"`
	FAQTopic string `json:"faq_topic"`
	Service  string `json:"service"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classifier performs one request/response exchange per utterance against the
// Cerebras chat-completions API.
type Classifier struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
	endpoint   string
}

func NewClassifier(apiKey, model string) *Classifier {
	return &Classifier{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		APIKey:     apiKey,
		Model:      model,
		endpoint:   "https://api.cerebras.ai/v1/chat/completions",
	}
}

// Classify returns intent plus newly stated slot values for the transcript.
// Any failure, including a malformed response, degrades to an empty UNKNOWN
// result with a nil error; classification is never fatal to the call.
func (c *Classifier) Classify(ctx context.Context, transcript string) (Result, error) {
	body, err := c.chat(ctx, systemPrompt, transcript)
	if err != nil {
		return Result{Intent: IntentUnknown}, err
	}
	var raw rawResult
	if err := json.Unmarshal([]byte(stripFences(body)), &raw); err != nil {
		return Result{Intent: IntentUnknown}, nil
	}
	r := Result{
		Intent:   ParseIntent(raw.Intent),
		FAQTopic: strings.ToLower(strings.TrimSpace(raw.FAQTopic)),
		Service:  NormalizeService(raw.Service),
		Date:     NormalizeDate(raw.Date, time.Now()),
		Time:     NormalizeTime(raw.Time),
		Name:     strings.TrimSpace(raw.Name),
		Phone:    NormalizePhone(raw.Phone),
	}
	return r, nil
}

// Quip produces one short non-question acknowledgment for smalltalk heard
// mid-booking. The word cap is enforced locally in case the model rambles.
func (c *Classifier) Quip(ctx context.Context, transcript string) (string, error) {
	body, err := c.chat(ctx, quipPrompt, transcript)
	if err != nil {
		return "", err
	}
	reply := strings.Trim(strings.TrimSpace(body), `"`)
	reply = strings.ReplaceAll(reply, "?", "")
	words := strings.Fields(reply)
	if len(words) > 12 {
		words = words[:12]
	}
	return strings.Join(words, " "), nil
}

func (c *Classifier) chat(ctx context.Context, system, user string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("cerebras api key missing")
	}
	reqBody, _ := json.Marshal(chatCompletionsRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("cerebras error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("cerebras: empty choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
