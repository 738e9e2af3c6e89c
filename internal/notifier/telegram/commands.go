package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/report"
)

// commandTimeout bounds one /analyze or /mietspiegel request
const commandTimeout = 3 * time.Minute

// Service is what the bot needs from the analyzer
type Service interface {
	AnalyzeURL(ctx context.Context, url string) (*domain.AnalysisResult, error)
	MarketRent(ctx context.Context, postalCode string) domain.MarketRentResult
	MarketRentBatch(ctx context.Context, postalCodes []string) []domain.MarketRentResult
	ModelEnabled() bool
}

// BotController handles Telegram commands for the authorised chat
type BotController struct {
	bot      sender
	updates  func() tgbotapi.UpdatesChannel
	chatID   int64
	enabled  bool
	svc      Service
	renderer *report.Renderer
	logger   *slog.Logger

	started time.Time

	// Callbacks
	onStatusRequest func() string
}

// NewBotController creates a new bot controller with command handling
func NewBotController(botToken string, chatID int64, enabled bool, svc Service, logger *slog.Logger) (*BotController, error) {
	if !enabled || botToken == "" {
		return &BotController{enabled: false}, nil
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	c, err := newController(bot, chatID, svc, logger)
	if err != nil {
		return nil, err
	}
	c.updates = func() tgbotapi.UpdatesChannel {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		return bot.GetUpdatesChan(u)
	}
	return c, nil
}

func newController(bot sender, chatID int64, svc Service, logger *slog.Logger) (*BotController, error) {
	if logger == nil {
		logger = slog.Default()
	}
	renderer, err := report.NewRenderer(report.FormatHTML)
	if err != nil {
		return nil, err
	}
	return &BotController{
		bot:      bot,
		chatID:   chatID,
		enabled:  true,
		svc:      svc,
		renderer: renderer,
		logger:   logger,
		started:  time.Now(),
	}, nil
}

// SetStatusCallback adds extra lines to the /status reply
func (c *BotController) SetStatusCallback(onStatus func() string) {
	c.onStatusRequest = onStatus
}

// StartCommandListener starts listening for Telegram commands
func (c *BotController) StartCommandListener(ctx context.Context) {
	if !c.enabled || c.updates == nil {
		return
	}

	updates := c.updates()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-updates:
				if update.Message == nil || !update.Message.IsCommand() {
					continue
				}

				// Only respond to authorized chat
				if update.Message.Chat.ID != c.chatID {
					continue
				}

				c.reply(c.handleCommand(ctx, update.Message))
			}
		}
	}()
}

func (c *BotController) reply(text string) {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := c.bot.Send(msg); err != nil {
		c.logger.Warn("telegram reply failed", "error", err)
	}
}

func (c *BotController) handleCommand(ctx context.Context, msg *tgbotapi.Message) string {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		return helpMessage
	case "status":
		return c.statusMessage()
	case "analyze":
		if args == "" {
			return "Bitte eine URL angeben: /analyze &lt;url&gt;"
		}
		return c.analyze(ctx, args)
	case "mietspiegel":
		if args == "" {
			return "PLZ fehlt: /mietspiegel &lt;plz&gt;"
		}
		return c.marketRent(ctx, strings.FieldsFunc(args, func(r rune) bool {
			return r == ',' || r == ' '
		}))
	default:
		return "Unbekannter Befehl. Nutze /help für eine Übersicht."
	}
}

func (c *BotController) analyze(ctx context.Context, url string) string {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	res, err := c.svc.AnalyzeURL(ctx, url)
	if err != nil {
		return "❌ <b>Analyse fehlgeschlagen</b>\n\n" + html.EscapeString(err.Error())
	}
	text, err := c.renderer.Analysis(res)
	if err != nil {
		c.logger.Error("render analysis", "error", err)
		return "❌ Darstellung fehlgeschlagen"
	}
	return text
}

func (c *BotController) marketRent(ctx context.Context, postalCodes []string) string {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	results := c.svc.MarketRentBatch(ctx, postalCodes)
	parts := make([]string, 0, len(results))
	for _, res := range results {
		text, err := c.renderer.MarketRent(res)
		if err != nil {
			c.logger.Error("render market rent", "postal_code", res.PostalCode, "error", err)
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

const helpMessage = `🏠 <b>Mietcheck Befehle</b>

/analyze &lt;url&gt; - Inserat auswerten
/mietspiegel &lt;plz&gt; - Mietspiegel für eine oder mehrere PLZ
/status - Aktueller Status
/help - Diese Hilfe`

func (c *BotController) statusMessage() string {
	model := "⚠️ nicht konfiguriert"
	if c.svc.ModelEnabled() {
		model = "✅ aktiv"
	}

	status := fmt.Sprintf(`🏠 <b>Mietcheck Status</b>

<b>KI-Extraktion:</b> %s
<b>Läuft seit:</b> %s`, model, time.Since(c.started).Round(time.Second))

	if c.onStatusRequest != nil {
		status += "\n\n" + c.onStatusRequest()
	}

	return status
}

// IsEnabled returns whether the controller is enabled
func (c *BotController) IsEnabled() bool {
	return c.enabled
}
