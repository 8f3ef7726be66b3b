package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"match-collector/internal/collector"
	"match-collector/internal/logger"
	"match-collector/internal/riot"
)

const (
	// Colors for Discord embeds
	colorRed    = 15158332 // 0xE74C3C - for errors/expiration
	colorGreen  = 5763719  // 0x57F287 - for success
	colorYellow = 16705372 // 0xFEE75C - finished with failed units

	// Default timeout for webhook requests
	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3

	// Discord rejects field values above 1024 characters
	maxFieldValue = 1024
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// NewRunSummaryPayload creates a payload describing a finished collection run
func NewRunSummaryPayload(s *collector.Summary) WebhookPayload {
	title := "✅ Collection Complete"
	color := colorGreen
	if len(s.FailedUnits) > 0 {
		title = "⚠️ Collection Complete With Failures"
		color = colorYellow
	}

	fields := []EmbedField{
		{Name: "Units", Value: fmt.Sprintf("%d (%d failed)", s.Units, len(s.FailedUnits)), Inline: true},
		{Name: "Runtime", Value: formatDuration(s.Elapsed), Inline: true},
		{Name: "Identities", Value: formatNumber(s.Identities), Inline: true},
		{Name: "Matches Fetched", Value: formatNumber(s.Fetched), Inline: true},
		{Name: "Match Rows", Value: formatNumber(s.MatchRows), Inline: true},
		{Name: "Timeline Rows", Value: formatNumber(s.FeatureRows), Inline: true},
	}
	if len(s.FailedUnits) > 0 {
		fields = append(fields, EmbedField{
			Name:  "Failed Units",
			Value: truncate(strings.Join(s.FailedUnits, ", "), maxFieldValue),
		})
	}

	return WebhookPayload{
		Embeds: []Embed{
			{
				Title:     title,
				Color:     color,
				Fields:    fields,
				Footer:    &EmbedFooter{Text: "Run " + s.RunID},
				Timestamp: s.Started.Add(s.Elapsed).UTC().Format(time.RFC3339),
			},
		},
	}
}

// NewKeyRejectedPayload creates a payload for an API key the upstream refused
func NewKeyRejectedPayload(apiKey string, matchesCollected int, runtime time.Duration) WebhookPayload {
	return WebhookPayload{
		Content: "@here API Key Rejected!",
		Embeds: []Embed{
			{
				Title: "🔑 API Key Rejected",
				Color: colorRed,
				Fields: []EmbedField{
					{
						Name:   "Key",
						Value:  riot.MaskKey(apiKey),
						Inline: true,
					},
					{
						Name:   "Matches Collected",
						Value:  formatNumber(matchesCollected),
						Inline: true,
					},
					{
						Name:   "Runtime",
						Value:  formatDuration(runtime),
						Inline: true,
					},
				},
				Footer: &EmbedFooter{
					Text: "Set a new RIOT_API_KEY and rerun",
				},
			},
		},
	}
}

// NewRunKeyRejectedPayload reports a key refused part way through run s
func NewRunKeyRejectedPayload(apiKey string, s *collector.Summary) WebhookPayload {
	payload := NewKeyRejectedPayload(apiKey, s.Fetched, s.Elapsed)
	embed := &payload.Embeds[0]
	embed.Fields = append(embed.Fields,
		EmbedField{Name: "Matches Refused", Value: formatNumber(s.KeyRejected), Inline: true},
		EmbedField{Name: "Units Done", Value: strconv.Itoa(s.Units), Inline: true},
	)
	embed.Footer.Text = "Run " + s.RunID + " continues. Set a new RIOT_API_KEY and rerun"
	return payload
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	apiKey     string // shown masked in key notifications
	httpClient *http.Client
	log        *logger.Entry
}

// NewWebhookClient creates a new WebhookClient. apiKey is the key the run
// uses; it only ever leaves masked.
func NewWebhookClient(webhookURL, apiKey string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		apiKey:     apiKey,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
		log: logger.Component("discord"),
	}
}

// NotifyRun implements collector.Notifier
func (c *WebhookClient) NotifyRun(ctx context.Context, summary *collector.Summary) error {
	return c.sendPayload(ctx, NewRunSummaryPayload(summary))
}

// NotifyKeyRejected implements collector.Notifier
func (c *WebhookClient) NotifyKeyRejected(ctx context.Context, summary *collector.Summary) error {
	return c.sendPayload(ctx, NewRunKeyRejectedPayload(c.apiKey, summary))
}

// SendKeyRejectedNotification reports a key refused before any collection started
func (c *WebhookClient) SendKeyRejectedNotification(ctx context.Context) error {
	return c.sendPayload(ctx, NewKeyRejectedPayload(c.apiKey, 0, 0))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Success - Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		// Rate limited - wait and retry
		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfter(resp.Header.Get("Retry-After"))
			c.log.WithFields(logger.Fields{"attempt": attempt + 1, "wait": waitDuration.String()}).Warn("webhook rate limited")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		// Other error
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// retryAfter reads Discord's Retry-After, which may be fractional seconds
func retryAfter(v string) time.Duration {
	if v == "" {
		return time.Second
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil || seconds < 0 {
		return time.Second
	}
	return time.Duration(seconds * float64(time.Second))
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 1000 {
		return strconv.Itoa(n)
	}

	s := strconv.Itoa(n)
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xh Ym" (e.g., 18h 32m)
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
