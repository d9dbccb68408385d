package httpserver

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/development-NHI/twillio-premium-bot-sub000/internal/config"
	"github.com/development-NHI/twillio-premium-bot-sub000/internal/gateway"
	"github.com/development-NHI/twillio-premium-bot-sub000/internal/middleware"
	"github.com/development-NHI/twillio-premium-bot-sub000/internal/recording"
	"github.com/development-NHI/twillio-premium-bot-sub000/internal/storage"
)

// voiceTwiML answers the inbound-call webhook: bridge the call audio onto
// our websocket and pass the caller's number along as a stream parameter.
const voiceTwiML = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="%s">
            <Parameter name="caller" value="%s"/>
        </Stream>
    </Connect>
</Response>`

// Server bundles the HTTP router and its dependencies.
type Server struct {
	Router http.Handler

	cfg config.Config
	rec *recording.Service
}

// New constructs the HTTP server with routes.
func New(cfg config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.TwilioAuth(func() string { return cfg.TwilioAuthToken }))

	s := &Server{Router: e, cfg: cfg}

	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		store, err := storage.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
		if err != nil {
			log.Printf("recording storage disabled: %v", err)
		} else {
			s.rec = recording.New(recording.Config{
				AccountSID: cfg.TwilioAccountSID,
				AuthToken:  cfg.TwilioAuthToken,
			}, store)
		}
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/twilio/voice", s.handleVoice)
	e.GET("/twilio/media", gateway.NewHandler(cfg).HandleMedia)
	if s.rec != nil {
		e.POST("/twilio/recording-status", s.rec.HandleStatus)
	}

	return s
}

func (s *Server) handleVoice(c echo.Context) error {
	params, _ := c.Get("twilioParams").(map[string]string)
	callSID := params["CallSid"]
	from := params["From"]

	log.Printf("call %s: inbound from %s", callSID, from)

	host := s.cfg.PublicHost
	if host == "" {
		host = c.Request().Host
	}

	if s.rec != nil && callSID != "" {
		callbackURL := "https://" + host + "/twilio/recording-status"
		go func() {
			if err := s.rec.Start(callSID, callbackURL); err != nil {
				log.Printf("call %s: %v", callSID, err)
			}
		}()
	}

	twiml := fmt.Sprintf(voiceTwiML, "wss://"+host+"/twilio/media", from)
	return c.Blob(http.StatusOK, "text/xml", []byte(twiml))
}
