package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xhad/primarysources/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "primary-sources-bot/1.0 (+https://example.local/)"

type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
	// MaxBodyBytes caps the response size; larger bodies are a TransportError.
	MaxBodyBytes int64
	Client       *http.Client
	Logger       *zap.Logger
}

type Fetcher struct {
	config  FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewWithConfig(config FetcherConfig) *Fetcher {
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.Burst == 0 {
		config.Burst = 5
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = 32 << 20
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	// Timeout is applied per request through the context.
	return &Fetcher{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		logger:  config.Logger,
	}
}

func New() *Fetcher {
	return NewWithConfig(FetcherConfig{})
}

// Fetch performs one GET. Network errors, timeouts and non-2xx statuses all
// come back as *models.TransportError. There is no retry.
func (f *Fetcher) Fetch(ctx context.Context, req models.FetchRequest) (*models.RawContent, error) {
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return nil, &models.TransportError{URL: req.URL, Err: err}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &models.TransportError{URL: target, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &models.TransportError{URL: target, Err: err}
	}
	httpReq.Header.Set("User-Agent", f.config.UserAgent)

	start := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &models.TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.TransportError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("received status code %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		return nil, &models.TransportError{URL: target, Err: err}
	}
	if int64(len(body)) > f.config.MaxBodyBytes {
		return nil, &models.TransportError{
			URL: target,
			Err: fmt.Errorf("response exceeds %d bytes", f.config.MaxBodyBytes),
		}
	}

	f.logger.Debug("fetched",
		zap.String("source", string(req.Source)),
		zap.String("url", target),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))

	return &models.RawContent{
		Source:      req.Source,
		URL:         target,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now(),
	}, nil
}

func buildURL(rawURL string, query url.Values) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if !parsed.IsAbs() {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}
	if len(query) > 0 {
		q := parsed.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		parsed.RawQuery = q.Encode()
	}
	return parsed.String(), nil
}
