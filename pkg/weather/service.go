package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rybuilt/humelink/internal/observability"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultEndpoint serves JSON conditions for the reference region.
	DefaultEndpoint = "https://wttr.in/Syracuse,NY?format=j1"

	// DefaultCacheTTL is how long a fetched report is reused verbatim.
	DefaultCacheTTL = 20 * time.Minute

	// DefaultFetchTimeout bounds a single upstream fetch.
	DefaultFetchTimeout = 10 * time.Second

	// Unavailable is returned when no report can be produced at all.
	Unavailable = "Unable to fetch current weather data."
)

// payload is the subset of the upstream response the report needs.
// current_condition and weather must both be present for the payload to
// count as well-formed.
type payload struct {
	CurrentCondition []struct {
		TempF          string `json:"temp_F"`
		FeelsLikeF     string `json:"FeelsLikeF"`
		Humidity       string `json:"humidity"`
		WindSpeedMiles string `json:"windspeedMiles"`
		WeatherDesc    []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
	Weather []struct {
		MaxTempF string `json:"maxtempF"`
		MinTempF string `json:"mintempF"`
	} `json:"weather"`
}

// Service fetches current conditions for the reference region, caching
// the formatted report process-wide. On upstream failure the last good
// report is served regardless of age.
type Service struct {
	endpoint string
	client   *http.Client
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	cached    string
	fetchedAt time.Time
}

// Option configures a Service
type Option func(*Service)

// WithEndpoint overrides the upstream endpoint
func WithEndpoint(endpoint string) Option {
	return func(s *Service) {
		if endpoint != "" {
			s.endpoint = endpoint
		}
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithCacheTTL overrides the cache TTL
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the service clock, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new weather service
func NewService(opts ...Option) *Service {
	observability.EnsureRegistered()

	s := &Service{
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: DefaultFetchTimeout},
		ttl:      DefaultCacheTTL,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Report returns the formatted weather report. Cached reports younger
// than the TTL are returned unchanged; a failed refresh falls back to
// the last good report, then to the unavailable sentinel. The report
// never names the region.
func (s *Service) Report(ctx context.Context) string {
	s.mu.Lock()
	if s.cached != "" && s.now().Sub(s.fetchedAt) < s.ttl {
		report := s.cached
		s.mu.Unlock()
		observability.RecordWeatherLookup("hit")
		return report
	}
	s.mu.Unlock()

	report, err := s.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Weather fetch failed")

		s.mu.Lock()
		stale := s.cached
		s.mu.Unlock()

		if stale != "" {
			observability.RecordWeatherLookup("stale")
			return stale
		}
		observability.RecordWeatherLookup("unavailable")
		return Unavailable
	}

	// Concurrent refreshes race here; last writer wins, which is fine
	// because reports are equivalent within the TTL window.
	s.mu.Lock()
	s.cached = report
	s.fetchedAt = s.now()
	s.mu.Unlock()

	observability.RecordWeatherLookup("fetch")
	return report
}

// fetch performs one upstream lookup and formats the report
func (s *Service) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather upstream returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read weather response: %w", err)
	}

	var data payload
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("failed to parse weather response: %w", err)
	}

	if len(data.CurrentCondition) == 0 || len(data.Weather) == 0 {
		return "", fmt.Errorf("malformed weather payload: missing current conditions or forecast")
	}

	current := data.CurrentCondition[0]
	today := data.Weather[0]

	condition := ""
	if len(current.WeatherDesc) > 0 {
		condition = current.WeatherDesc[0].Value
	}

	return fmt.Sprintf(
		"Current weather: %s, %s°F (feels like %s°F). High: %s°F, Low: %s°F. Humidity: %s%%, Wind: %s mph. Gardening note: %s",
		condition,
		current.TempF,
		current.FeelsLikeF,
		today.MaxTempF,
		today.MinTempF,
		current.Humidity,
		current.WindSpeedMiles,
		gardeningNote(s.now()),
	), nil
}

// gardeningNote maps the calendar month to a seasonal activity note for
// the reference growing zone.
func gardeningNote(t time.Time) string {
	month := int(t.Month()) - 1 // zero-based, matching the season rule

	switch {
	case month >= 10 || month <= 2:
		return "Too cold for outdoor gardening. Ground is likely frozen."
	case month == 3:
		return "Early spring - too early for most planting, but good for planning and starting seeds indoors."
	case month == 4:
		return "Spring planting season beginning for cold-hardy crops."
	case month >= 5 && month <= 8:
		return "Prime growing season."
	default: // September
		return "Fall harvest time, can plant cool-season crops."
	}
}
