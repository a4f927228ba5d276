package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
)

const (
	colorEpic = 2303786 // #23272A

	// Discord accepts at most 10 embeds per message.
	maxEmbedsPerMessage = 10
	maxRetries          = 3
	maxDescriptionLen   = 300
)

type DiscordClient struct {
	webhookURL  string
	client      *http.Client
	rateLimiter *rate.Limiter
	backoffBase time.Duration
}

func NewDiscord(webhookURL string) *DiscordClient {
	return &DiscordClient{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Webhooks allow roughly 5 requests per 2 seconds.
		rateLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		backoffBase: time.Second,
	}
}

// Send posts the promotions as embeds, ten per webhook message.
func (c *DiscordClient) Send(ctx context.Context, promos []models.Promotion) error {
	if c.webhookURL == "" || len(promos) == 0 {
		return nil
	}
	for start := 0; start < len(promos); start += maxEmbedsPerMessage {
		end := min(start+maxEmbedsPerMessage, len(promos))
		payload := discordWebhookPayload{}
		for _, p := range promos[start:end] {
			payload.Embeds = append(payload.Embeds, formatPromotionToEmbed(p))
		}
		if err := c.post(ctx, payload); err != nil {
			return fmt.Errorf("%w: discord: %v", models.ErrNotification, err)
		}
	}
	slog.Info("Discord notification sent", "count", len(promos))
	return nil
}

// Internal structures
type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedImage struct {
	URL string `json:"url,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Image       *discordEmbedImage  `json:"image,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
}

func formatPromotionToEmbed(p models.Promotion) discordEmbed {
	embed := discordEmbed{
		Title:       p.Title,
		URL:         p.URL,
		Description: truncate(p.Description, maxDescriptionLen),
		Color:       colorEpic,
		Fields: []discordEmbedField{
			{Name: "Free until", Value: formatDate(p.EndDate), Inline: true},
		},
	}
	if p.ImageURL != nil && *p.ImageURL != "" {
		embed.Image = &discordEmbedImage{URL: *p.ImageURL}
	}
	if price := formatPrice(p.OriginalPrice, p.Currency); price != "" {
		embed.Fields = append(embed.Fields, discordEmbedField{Name: "Normally", Value: price, Inline: true})
	}
	if t, err := time.Parse(time.RFC3339, p.StartDate); err == nil {
		embed.Timestamp = t.UTC().Format(time.RFC3339)
	}
	return embed
}

func (c *DiscordClient) post(ctx context.Context, payload discordWebhookPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payloadBytes))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		backoff := c.retryBackoff(resp, attempt)
		if backoff == 0 || attempt >= maxRetries {
			return fmt.Errorf("discord status: %s, body: %s", resp.Status, string(bodyBytes))
		}
		slog.Warn("Discord webhook failed, retrying", "status", resp.StatusCode, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// retryBackoff returns how long to wait before retrying, or zero when the
// response is not retryable. Retry-After on 429 is honored.
func (c *DiscordClient) retryBackoff(resp *http.Response, attempt int) time.Duration {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
		return c.backoffBase << attempt
	case resp.StatusCode >= 500:
		return c.backoffBase << attempt
	default:
		return 0
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
