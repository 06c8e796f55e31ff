package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tradeEngine/internal/ports"
)

const (
	maxMessageLength = 4096 // Characters, not bytes
	defaultTimeout   = 10 * time.Second
)

// sender is the slice of tgbotapi.BotAPI used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers engine notifications to a single Telegram chat.
type Notifier struct {
	bot    sender
	chatID int64
	logger ports.Logger
}

// Config holds configuration for the Telegram notifier.
type Config struct {
	Token       string
	ChatID      int64
	APIEndpoint string       // Optional, defaults to tgbotapi.APIEndpoint
	HTTPClient  *http.Client  // Optional, overrides Timeout
	Timeout     time.Duration // Per request, defaults to 10s
	Logger      ports.Logger
}

// New connects to the Bot API and returns a notifier for cfg.ChatID.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for telegram notifier")
	}
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required: %w", ports.ErrConfigurationError)
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w: %w", ports.ErrAuthenticationFailed, err)
	}
	cfg.Logger.Info(context.Background(), "Telegram notifier connected", map[string]interface{}{"bot": bot.Self.UserName})
	return &Notifier{bot: bot, chatID: cfg.ChatID, logger: cfg.Logger}, nil
}

// Notify sends title and message as one chat message. It returns when the
// Bot API answers or ctx is done, whichever comes first; the HTTP client
// timeout bounds a send abandoned by ctx.
func (n *Notifier) Notify(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return contextError(title, err)
	}
	msg := tgbotapi.NewMessage(n.chatID, formatMessage(title, message))

	done := make(chan error, 1)
	go func() {
		_, err := n.bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			n.logger.Warn(ctx, "Telegram delivery failed", map[string]interface{}{"title": title, "error": err.Error()})
			return fmt.Errorf("send telegram message: %w", err)
		}
		return nil
	case <-ctx.Done():
		n.logger.Warn(ctx, "Telegram delivery abandoned", map[string]interface{}{"title": title, "error": ctx.Err().Error()})
		return contextError(title, ctx.Err())
	}
}

func contextError(title string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("notify %q: %w: %w", title, ports.ErrTimeout, err)
	}
	return fmt.Errorf("notify %q: %w: %w", title, ports.ErrContextCanceled, err)
}

func formatMessage(title, message string) string {
	text := title
	if message != "" {
		text = title + "\n\n" + message
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		text = string([]rune(text)[:maxMessageLength-3]) + "..."
	}
	return text
}

// LogNotifier writes notifications to the log. Used when Telegram is not configured.
type LogNotifier struct {
	logger ports.Logger
}

// NewLogNotifier returns a notifier that only logs.
func NewLogNotifier(logger ports.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification at info level.
func (l *LogNotifier) Notify(ctx context.Context, title, message string) error {
	l.logger.Info(ctx, "Notification: "+title, map[string]interface{}{"message": message})
	return nil
}
