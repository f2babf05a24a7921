package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/sirupsen/logrus"

	"referral-bot/internal/router"
)

// Bot is the Telegram transport adapter. It turns updates into intents for
// the router and renders replies; all business rules live behind the router.
type Bot struct {
	Instance *telego.Bot
	Router   *router.Router
	username string
}

func NewBot(token string, r *router.Router) (*Bot, error) {
	tgBot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		Instance: tgBot,
		Router:   r,
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	if info, err := b.Instance.GetMe(ctx); err == nil {
		b.username = info.Username
	} else {
		logrus.Warnf("Failed to resolve bot username: %v", err)
	}

	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	// /start command, optionally carrying a referral code payload
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		telegramID := message.From.ID

		code := ""
		if parts := strings.Split(message.Text, " "); len(parts) > 1 {
			code = parts[1]
		}

		reply, err := b.Router.HandleRegister(ctx.Context(), telegramID, message.From.Username, code)
		if err != nil {
			logrus.WithField("telegram_id", telegramID).Errorf("Register intent failed: %v", err)
		}

		text := reply.Text
		var keyboard *telego.InlineKeyboardMarkup
		if reply.ReferralCode != "" {
			link := b.referralLink(reply.ReferralCode)
			text += fmt.Sprintf("\n\nYour Referral Link:\n%s", link)
			keyboard = tu.InlineKeyboard(
				tu.InlineKeyboardRow(
					tu.InlineKeyboardButton("Invite & Earn 💰").WithURL(link),
				),
				tu.InlineKeyboardRow(
					tu.InlineKeyboardButton("💰 Balance").WithCallbackData("balance"),
					tu.InlineKeyboardButton("🏆 Leaderboard").WithCallbackData("leaderboard"),
				),
				tu.InlineKeyboardRow(
					tu.InlineKeyboardButton("🤝 My referrals").WithCallbackData("referral_info"),
				),
			)
		}

		msg := tu.Message(tu.ID(message.Chat.ID), text)
		if keyboard != nil {
			msg = msg.WithReplyMarkup(keyboard)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), msg)
		return nil
	}, th.CommandEqual("start"))

	// /balance command
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		reply, err := b.Router.HandleBalance(ctx.Context(), telegramID)
		if err != nil {
			logrus.WithField("telegram_id", telegramID).Errorf("Balance intent failed: %v", err)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(update.Message.Chat.ID), reply.Text))
		return nil
	}, th.CommandEqual("balance"))

	// /withdraw command
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		reply, err := b.Router.HandleWithdraw(ctx.Context(), telegramID)
		if err != nil {
			logrus.WithField("telegram_id", telegramID).Errorf("Withdraw intent failed: %v", err)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(update.Message.Chat.ID), reply.Text))
		return nil
	}, th.CommandEqual("withdraw"))

	// /leaderboard command
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		reply, err := b.Router.HandleLeaderboard(ctx.Context())
		if err != nil {
			logrus.Errorf("Leaderboard intent failed: %v", err)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(update.Message.Chat.ID), reply.Text))
		return nil
	}, th.CommandEqual("leaderboard"))

	// Callback for balance button
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		reply, err := b.Router.HandleBalance(ctx.Context(), callback.From.ID)
		if err != nil {
			logrus.Errorf("Balance callback failed: %v", err)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(callback.From.ID), reply.Text))
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("balance"))

	// Callback for leaderboard button
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		reply, err := b.Router.HandleLeaderboard(ctx.Context())
		if err != nil {
			logrus.Errorf("Leaderboard callback failed: %v", err)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(callback.From.ID), reply.Text))
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("leaderboard"))

	// Callback for referral info button
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		reply, err := b.Router.HandleReferralInfo(ctx.Context(), callback.From.ID)
		if err != nil {
			logrus.Errorf("Referral info callback failed: %v", err)
		}

		text := reply.Text
		if reply.ReferralCode != "" {
			text += fmt.Sprintf("\n\n🔗 Your link:\n`%s`", b.referralLink(reply.ReferralCode))
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(callback.From.ID), text).WithParseMode(telego.ModeMarkdown))
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("referral_info"))

	go func() {
		<-ctx.Done()
		handler.Stop()
	}()

	return handler.Start()
}

func (b *Bot) referralLink(code string) string {
	username := b.username
	if username == "" {
		username = "referral_bot"
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", username, code)
}
