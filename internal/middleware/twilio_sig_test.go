package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func signRequest(authToken, fullURL string, params url.Values) string {
	data := fullURL
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data += k + params.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func runAuth(t *testing.T, token, path, signature string, form url.Values) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotParams map[string]string
	handler := TwilioAuth(func() string { return token })(func(c echo.Context) error {
		gotParams, _ = c.Get("twilioParams").(map[string]string)
		return c.String(http.StatusOK, "handled")
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	return rec, gotParams
}

func TestTwilioAuth_ValidSignaturePassesWithParams(t *testing.T) {
	form := url.Values{"CallSid": {"CA1"}, "From": {"+15550001111"}}
	sig := signRequest("tok", "https://example.com/twilio/voice", form)

	rec, params := runAuth(t, "tok", "https://example.com/twilio/voice", sig, form)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if params["From"] != "+15550001111" {
		t.Fatalf("params = %v", params)
	}
}

func TestTwilioAuth_InvalidSignatureRejected(t *testing.T) {
	form := url.Values{"CallSid": {"CA1"}}
	rec, _ := runAuth(t, "tok", "https://example.com/twilio/voice", "bogus", form)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTwilioAuth_TamperedParamRejected(t *testing.T) {
	form := url.Values{"CallSid": {"CA1"}}
	sig := signRequest("tok", "https://example.com/twilio/voice", form)
	form.Set("CallSid", "CA2")

	rec, _ := runAuth(t, "tok", "https://example.com/twilio/voice", sig, form)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTwilioAuth_MediaEndpointExempt(t *testing.T) {
	rec, _ := runAuth(t, "tok", "https://example.com/twilio/media", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTwilioAuth_NonTwilioPathUntouched(t *testing.T) {
	rec, _ := runAuth(t, "tok", "https://example.com/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTwilioAuth_MissingTokenIsServerError(t *testing.T) {
	rec, _ := runAuth(t, "", "https://example.com/twilio/voice", "sig", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
