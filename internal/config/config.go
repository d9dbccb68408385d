package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string
	// PublicHost is the externally reachable host used when building the
	// wss:// media-stream URL handed to Twilio. Falls back to the request
	// host when empty.
	PublicHost string

	TwilioAccountSID string
	TwilioAuthToken  string

	DeepgramKey     string
	CerebrasKey     string
	CerebrasModelID string

	// TTSProvider selects the synthesis backend: "elevenlabs" or "deepgram".
	TTSProvider       string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	DeepgramTTSModel  string

	FAQWebhookURL string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - transcription will not work")
	}

	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	cerebrasModel := os.Getenv("CEREBRAS_MODEL_ID")
	if cerebrasModel == "" {
		cerebrasModel = "llama-3.3-70b"
	}
	if cerebrasKey == "" {
		log.Println("Warning: CEREBRAS_API_KEY not set - intent classification will not work")
	}

	provider := os.Getenv("TTS_PROVIDER")
	if provider == "" {
		provider = "elevenlabs"
	}
	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")
	if provider == "elevenlabs" && elevenKey == "" {
		log.Println("Warning: ELEVENLABS_API_KEY not set - synthesis will not work")
	}

	log.Printf("config: HTTP_ADDRESS=%s TTS_PROVIDER=%s", addr, provider)
	return Config{
		HTTPAddress:       addr,
		PublicHost:        os.Getenv("PUBLIC_HOST"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		DeepgramKey:       deepgramKey,
		CerebrasKey:       cerebrasKey,
		CerebrasModelID:   cerebrasModel,
		TTSProvider:       provider,
		ElevenLabsKey:     elevenKey,
		ElevenLabsVoiceID: voiceID,
		DeepgramTTSModel:  os.Getenv("DEEPGRAM_TTS_MODEL"),
		FAQWebhookURL:     os.Getenv("FAQ_WEBHOOK_URL"),
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseKey:       os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:    os.Getenv("SUPABASE_BUCKET"),
	}
}
