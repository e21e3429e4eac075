package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/config"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/metrics"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/ratelimit"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

var notifierJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Client implements the four chat-platform operations Lifecycle and Creation
// call into: post_to_channel, edit_card, post_reply, send_private_text.
//
// Deliberately not wrapped in pkg/retry — failures here are reported to the
// caller and absorbed there; retrying inside the client would just delay that
// signal. Nothing re-sends a failed call: the periodic trigger-index rebuild
// does not edit cards, so a card whose edit failed stays stale.
type Client struct {
	http     *HTTPClient
	limiter  *ratelimit.RateLimiter
	baseURL  string
	botToken string
	cfg      config.NotifierConfig
	log      *utils.Logger
}

// New builds a Client around the shared pooled HTTPClient and a Token
// Bucket limiter sized from config, so a burst of lifecycle events (several
// take-profit hits landing on the same tick) can't overrun the chat
// platform's own rate limit.
func New(cfg config.NotifierConfig) *Client {
	return &Client{
		http:     GetGlobalHTTPClient(),
		limiter:  ratelimit.NewRateLimiter(cfg.RequestsPerSecond, float64(cfg.Burst)),
		baseURL:  cfg.BaseURL,
		botToken: cfg.BotToken,
		cfg:      cfg,
		log:      utils.L().WithComponent("notifier"),
	}
}

type postToChannelRequest struct {
	ChannelID int64    `json:"channel_id"`
	Text      string   `json:"text"`
	Keyboard  Keyboard `json:"keyboard,omitempty"`
}

type postToChannelResponse struct {
	MessageID string `json:"message_id"`
}

// PostToChannel renders view and posts it as a new card on channelID,
// returning the platform's opaque message identifier.
func (c *Client) PostToChannel(ctx context.Context, channelID int64, view RecommendationView, keyboard Keyboard) (string, error) {
	body := postToChannelRequest{
		ChannelID: channelID,
		Text:      renderCard(view),
		Keyboard:  keyboard,
	}
	var resp postToChannelResponse
	if err := c.doJSON(ctx, "post_to_channel", http.MethodPost, "/channels/messages", body, &resp); err != nil {
		return "", fmt.Errorf("notifier: post to channel %d: %w", channelID, err)
	}
	return resp.MessageID, nil
}

type editCardRequest struct {
	ChannelID   int64  `json:"channel_id"`
	MessageID   string `json:"message_id"`
	Text        string `json:"text"`
	BotUsername string `json:"bot_username,omitempty"`
}

// EditCard idempotently rewrites a previously posted card in place.
func (c *Client) EditCard(ctx context.Context, channelID int64, messageID string, view RecommendationView, botUsername string) error {
	body := editCardRequest{
		ChannelID:   channelID,
		MessageID:   messageID,
		Text:        renderCard(view),
		BotUsername: botUsername,
	}
	if err := c.doJSON(ctx, "edit_card", http.MethodPatch, "/channels/messages", body, nil); err != nil {
		return fmt.Errorf("notifier: edit card %s/%s: %w", messageID, channelID, err)
	}
	return nil
}

type postReplyRequest struct {
	ChannelID int64  `json:"channel_id"`
	MessageID string `json:"message_id,omitempty"`
	Text      string `json:"text"`
}

// PostReply posts a threaded reply under a previously posted card, used for
// lifecycle events (activation, partial close, final close).
func (c *Client) PostReply(ctx context.Context, channelID int64, messageID, text string) error {
	body := postReplyRequest{ChannelID: channelID, MessageID: messageID, Text: text}
	if err := c.doJSON(ctx, "post_reply", http.MethodPost, "/channels/replies", body, nil); err != nil {
		return fmt.Errorf("notifier: post reply to channel %d: %w", channelID, err)
	}
	return nil
}

type sendPrivateTextRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// SendPrivateText direct-messages a UserTrade's owner.
func (c *Client) SendPrivateText(ctx context.Context, chatID int64, text string) error {
	body := sendPrivateTextRequest{ChatID: chatID, Text: text}
	if err := c.doJSON(ctx, "send_private_text", http.MethodPost, "/chats/messages", body, nil); err != nil {
		return fmt.Errorf("notifier: send private text to chat %d: %w", chatID, err)
	}
	return nil
}

// doJSON rate-limits, encodes, sends, and decodes a single call against the
// configured endpoint. A nil out skips response decoding.
func (c *Client) doJSON(ctx context.Context, operation, method, path string, in, out interface{}) error {
	err := c.doJSONUnmetered(ctx, method, path, in, out)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.NotifierCalls.WithLabelValues(operation, outcome).Inc()
	return err
}

func (c *Client) doJSONUnmetered(ctx context.Context, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := notifierJSON.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.botToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.botToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := notifierJSON.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// renderCard produces the plain-text rendering of a recommendation card.
// The chat platform's own formatting (markdown, HTML) is applied downstream;
// this layer only owns content, not markup.
func renderCard(view RecommendationView) string {
	rec := view.Recommendation
	if rec == nil {
		return ""
	}
	text := fmt.Sprintf("%s %s\nEntry: %s\nStop-loss: %s\n", rec.Symbol, rec.Side, rec.Entry.String(), rec.StopLoss.String())
	for i, t := range rec.Targets {
		text += fmt.Sprintf("TP%d: %s (%s%%)\n", i+1, t.Price.String(), t.ClosePercent.String())
	}
	if view.AnalystName != "" {
		text += fmt.Sprintf("Analyst: %s\n", view.AnalystName)
	}
	return text
}
