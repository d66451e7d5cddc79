// Package telegram provides a client for sending market summaries via
// the Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/polyrecon/internal/models"
	"github.com/rewired-gh/polyrecon/internal/price"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendSummary sends one market's reconciled state and merged series
// as a formatted message.
func (c *Client) SendSummary(state *models.MarketState, series []models.SeriesPoint) error {
	return c.sendMarkdownV2(formatSummary(state, series))
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// formatSummary formats one market into a Telegram MarkdownV2 message.
func formatSummary(state *models.MarketState, series []models.SeriesPoint) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 *%s*\n", escapeMarkdownV2(state.Question))
	if state.EventTitle != "" {
		fmt.Fprintf(&b, "🗂 %s\n", escapeMarkdownV2(state.EventTitle))
	}

	status := "active"
	if state.Closed {
		status = "closed"
	} else if !state.Active {
		status = "inactive"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)

	if state.EndDate != nil {
		fmt.Fprintf(&b, "Ends: %s\n", escapeMarkdownV2(state.EndDate.UTC().Format("2006-01-02 15:04")))
	}

	fmt.Fprintf(&b, "YES %s / %s\n", formatQuote(state.BidYes), formatQuote(state.AskYes))
	fmt.Fprintf(&b, "NO %s / %s\n", formatQuote(state.BidNo), formatQuote(state.AskNo))

	if len(series) > 0 {
		last := series[len(series)-1]
		fmt.Fprintf(&b, "Last YES price: %s \\(%s leg, %s\\)\n",
			escapeMarkdownV2(last.YesPrice.String()),
			last.Source,
			escapeMarkdownV2(last.Timestamp.UTC().Format("2006-01-02 15:04:05")))
		fmt.Fprintf(&b, "Series points: %d\n", len(series))
	}

	return b.String()
}

func formatQuote(p *price.Price) string {
	if p == nil {
		return "—"
	}
	return escapeMarkdownV2(p.String())
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
