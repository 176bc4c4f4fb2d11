// Package openai is a Completer for OpenAI-compatible chat/completions
// endpoints.
package openai

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Config struct {
	APIKey            string        // falls back to OPENAI_API_KEY
	BaseURL           string        // defaults to the public OpenAI API
	Timeout           time.Duration // per HTTP request
	RequestsPerMinute int           // outbound pacing shared by all models; <= 0 is unlimited
}

// Client talks to one endpoint for every model in the chain, so pacing is
// per client rather than per model.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	log      *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(limit, 1),
		log:      common.LoggerOrDefault(logger),
	}
}
