package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/report"
)

// sender is the part of tgbotapi.BotAPI used for outgoing messages
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends watch results via Telegram
type Notifier struct {
	bot      sender
	chatID   int64
	enabled  bool
	renderer *report.Renderer
	logger   *slog.Logger
}

// NewNotifierFromController creates a notifier using an existing BotController
func NewNotifierFromController(controller *BotController) *Notifier {
	if controller == nil || !controller.IsEnabled() {
		return &Notifier{enabled: false}
	}
	return newNotifier(controller.bot, controller.chatID, controller.renderer, controller.logger)
}

func newNotifier(bot sender, chatID int64, renderer *report.Renderer, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		bot:      bot,
		chatID:   chatID,
		enabled:  true,
		renderer: renderer,
		logger:   logger,
	}
}

// NotifyBenchmarkChanged reports a market rent average that moved since the
// previous watch run
func (n *Notifier) NotifyBenchmarkChanged(ctx context.Context, prev, cur domain.MarketRentResult) error {
	if !n.enabled {
		return nil
	}
	text, err := n.renderer.Change(prev, cur)
	if err != nil {
		return err
	}
	return n.send(text, cur.Benchmark)
}

// NotifyAnalysis sends the rendered result of a watched listing
func (n *Notifier) NotifyAnalysis(ctx context.Context, res *domain.AnalysisResult) error {
	if !n.enabled {
		return nil
	}
	text, err := n.renderer.Analysis(res)
	if err != nil {
		return err
	}
	return n.send(text, nil)
}

// NotifyError sends an error notification to the admin
func (n *Notifier) NotifyError(ctx context.Context, errMsg string) error {
	if !n.enabled {
		return nil
	}
	return n.send(fmt.Sprintf("⚠️ <b>Fehler</b>\n\n%s", html.EscapeString(errMsg)), nil)
}

// NotifyStartup sends a notification that the watch has started
func (n *Notifier) NotifyStartup(ctx context.Context, postalCodes, urls int) error {
	if !n.enabled {
		return nil
	}
	return n.send(fmt.Sprintf(
		"🚀 <b>Mietcheck gestartet</b>\n\nBeobachtete PLZ: %d\nBeobachtete Inserate: %d",
		postalCodes, urls,
	), nil)
}

// IsEnabled returns whether the notifier is enabled
func (n *Notifier) IsEnabled() bool {
	return n.enabled
}

func (n *Notifier) send(text string, bench *domain.RentBenchmark) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if bench != nil && bench.SourceURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("🔗 Quelle ansehen", bench.SourceURL),
			),
		)
	}

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
