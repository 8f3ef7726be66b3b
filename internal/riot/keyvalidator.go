package riot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"match-collector/internal/logger"
)

const (
	// Lightweight endpoint used to check a key
	statusEndpoint = "/lol/status/v4/platform-data"

	defaultValidationTimeout = 10 * time.Second
)

// KeyCheck is the outcome of a key check
type KeyCheck struct {
	Valid    bool
	Platform string // platform name reported by the status endpoint, when valid
}

// KeyValidator checks the status endpoint with a key before a run starts
type KeyValidator struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Entry
}

// KeyValidatorOption configures a KeyValidator
type KeyValidatorOption func(*KeyValidator)

// WithValidatorBaseURL sets a custom platform URL (useful for testing)
func WithValidatorBaseURL(url string) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.baseURL = url
	}
}

// WithValidatorLogger replaces the component logger
func WithValidatorLogger(log *logger.Entry) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.log = log
	}
}

// WithValidatorTimeout sets the timeout of the check request
func WithValidatorTimeout(timeout time.Duration) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.httpClient.Timeout = timeout
	}
}

func NewKeyValidator(platform string, opts ...KeyValidatorOption) *KeyValidator {
	if platform == "" {
		platform = DefaultPlatform
	}
	v := &KeyValidator{
		httpClient: &http.Client{
			Timeout: defaultValidationTimeout,
		},
		baseURL: fmt.Sprintf("https://%s.api.riotgames.com", platform),
		log:     logger.Component("riot"),
	}

	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks apiKey against the upstream.
//   - 200: Valid is true
//   - 401/403: Valid is false, no error
//   - anything else: error, validity unknown
func (v *KeyValidator) Validate(ctx context.Context, apiKey string) (KeyCheck, error) {
	if apiKey == "" {
		return KeyCheck{}, fmt.Errorf("API key cannot be empty: %w", ErrConfiguration)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+statusEndpoint, nil)
	if err != nil {
		return KeyCheck{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Riot-Token", apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return KeyCheck{}, fmt.Errorf("%w: %v", ErrTransportFault, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var status struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		// The key is good either way; the platform name is informational
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			v.log.WithError(err).Debug("could not read status body")
		} else if err := json.Unmarshal(body, &status); err != nil {
			v.log.WithError(err).WithFields(logger.Fields{"bytes": len(body)}).Debug("could not decode status body")
		}
		return KeyCheck{Valid: true, Platform: status.ID}, nil

	case http.StatusUnauthorized, http.StatusForbidden:
		return KeyCheck{Valid: false}, nil

	default:
		return KeyCheck{}, &StatusError{StatusCode: resp.StatusCode, URL: v.baseURL + statusEndpoint}
	}
}
