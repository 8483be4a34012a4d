package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chefbot/internal/model"
	"chefbot/internal/repository"
	"chefbot/internal/service"
	"chefbot/internal/telegram"
)

// Sender is the outbound Telegram surface the router writes to.
type Sender interface {
	SendMessage(ctx context.Context, m telegram.OutgoingMessage) error
	EditMessageText(ctx context.Context, m telegram.EditMessage) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}

// Router maps inbound updates onto service calls and renders the answers.
// It never returns errors upward: the webhook must stay a 200 no matter
// what, so every failure is handled or logged right here.
type Router struct {
	svc      service.ChefService
	tg       Sender
	isAdmin  func(int64) bool
	currency string
	maxLen   int
}

func NewRouter(svc service.ChefService, tg Sender, isAdmin func(int64) bool, currency string, maxPromptLength int) *Router {
	return &Router{svc: svc, tg: tg, isAdmin: isAdmin, currency: currency, maxLen: maxPromptLength}
}

// HandleUpdate dispatches one webhook update.
func (r *Router) HandleUpdate(ctx context.Context, upd telegram.Update) {
	switch {
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil && upd.CallbackQuery.Message != nil:
		r.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.From != nil:
		r.handleMessage(ctx, upd.Message)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *telegram.Message) {
	acc, err := r.svc.EnsureAccount(ctx, msg.From.ID, msg.From.Username, msg.From.FullName())
	if err != nil {
		slog.Error("bot: ensure account", "user_id", msg.From.ID, "error", err)
		r.send(ctx, msg.Chat.ID, msgSomethingWrong, nil)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		r.send(ctx, msg.Chat.ID, welcomeText(acc), mainKeyboard())
	case text == "/recipe":
		r.send(ctx, msg.Chat.ID, msgAskIngredients, nil)
	case strings.HasPrefix(text, "/recipe "):
		r.generateAndReply(ctx, msg.Chat.ID, msg.From.ID, strings.TrimPrefix(text, "/recipe "))
	case strings.HasPrefix(text, "/buy"):
		r.sendCatalog(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/balance"):
		r.sendBalance(ctx, msg.Chat.ID, acc)
	case strings.HasPrefix(text, "/help"):
		r.send(ctx, msg.Chat.ID, msgHelp, mainKeyboard())
	case strings.HasPrefix(text, "/admin"):
		r.sendStats(ctx, msg.Chat.ID, msg.From.ID)
	case strings.HasPrefix(text, "/"):
		r.send(ctx, msg.Chat.ID, msgUnknownCommand, nil)
	default:
		r.sendOffer(ctx, msg)
	}
}

// sendOffer answers a free-form message with a one-tap confirm button. The
// generation only starts when the user presses it, so stray chatter never
// burns a token.
func (r *Router) sendOffer(ctx context.Context, msg *telegram.Message) {
	out := telegram.OutgoingMessage{
		ChatID:           msg.Chat.ID,
		Text:             offerText(promptPreview(strings.TrimSpace(msg.Text))),
		ParseMode:        "HTML",
		ReplyToMessageID: msg.MessageID,
		ReplyMarkup:      offerKeyboard(),
	}
	if err := r.tg.SendMessage(ctx, out); err != nil {
		slog.Error("bot: send message", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if err := r.tg.AnswerCallback(ctx, cb.ID, ""); err != nil {
		slog.Warn("bot: answer callback", "callback_id", cb.ID, "error", err)
	}
	acc, err := r.svc.EnsureAccount(ctx, cb.From.ID, cb.From.Username, cb.From.FullName())
	if err != nil {
		slog.Error("bot: ensure account", "user_id", cb.From.ID, "error", err)
		r.send(ctx, cb.Message.Chat.ID, msgSomethingWrong, nil)
		return
	}

	chatID := cb.Message.Chat.ID
	switch data := cb.Data; {
	case data == "new_recipe":
		r.send(ctx, chatID, msgAskIngredients, nil)
	case data == "balance":
		r.sendBalance(ctx, chatID, acc)
	case data == "buy":
		r.sendCatalog(ctx, chatID)
	case data == "help":
		r.send(ctx, chatID, msgHelp, mainKeyboard())
	case data == "back_main":
		r.sendWelcomeBack(ctx, chatID, cb.From)
	case data == "recipe_from_msg":
		r.generateFromReply(ctx, cb)
	case strings.HasPrefix(data, "buy_"):
		r.startPurchase(ctx, chatID, cb.From.ID, strings.TrimPrefix(data, "buy_"))
	case strings.HasPrefix(data, "check_payment_"):
		r.checkPayment(ctx, chatID, strings.TrimPrefix(data, "check_payment_"))
	default:
		slog.Warn("bot: unknown callback", "data", data)
	}
}

// generateAndReply runs the paid pipeline and translates every outcome into
// a reply. The recipe itself goes out without parse mode: model output is
// not trusted to be valid HTML.
func (r *Router) generateAndReply(ctx context.Context, chatID, userID int64, prompt string) {
	if err := r.tg.SendTyping(ctx, chatID); err != nil {
		slog.Warn("bot: send typing", "chat_id", chatID, "error", err)
	}

	res, err := r.svc.GenerateRecipe(ctx, userID, prompt)
	if err != nil {
		text, kb := r.generateFailureReply(userID, err)
		r.send(ctx, chatID, text, kb)
		return
	}
	r.sendPlain(ctx, chatID, res.Text+recipeFooter(res.BalanceAfter), r.afterRecipeKeyboard(res.BalanceAfter))
}

// generateFromReply serves the confirm button under a quoted message: the
// prompt is the message the offer replied to, and the offer itself is edited
// in place through the thinking and result stages.
func (r *Router) generateFromReply(ctx context.Context, cb *telegram.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	quoted := cb.Message.ReplyToMessage
	if quoted == nil || strings.TrimSpace(quoted.Text) == "" {
		r.edit(ctx, chatID, cb.Message.MessageID, msgCantReadText, nil)
		return
	}

	r.edit(ctx, chatID, cb.Message.MessageID, msgThinking, nil)

	res, err := r.svc.GenerateRecipe(ctx, cb.From.ID, quoted.Text)
	if err != nil {
		text, kb := r.generateFailureReply(cb.From.ID, err)
		r.edit(ctx, chatID, cb.Message.MessageID, text, kb)
		return
	}
	r.editPlain(ctx, chatID, cb.Message.MessageID, res.Text+recipeFooter(res.BalanceAfter), r.afterRecipeKeyboard(res.BalanceAfter))
}

// afterRecipeKeyboard swaps the menu for the package catalog on the recipe
// that spends the last token.
func (r *Router) afterRecipeKeyboard(balanceAfter int) *telegram.InlineKeyboardMarkup {
	if balanceAfter == 0 {
		return r.catalogKb()
	}
	return mainKeyboard()
}

// generateFailureReply maps a pipeline error onto the message the user sees.
// Unexpected failures are logged here with the account id.
func (r *Router) generateFailureReply(userID int64, err error) (string, *telegram.InlineKeyboardMarkup) {
	var rle *service.RateLimitedError
	switch {
	case errors.Is(err, service.ErrPromptTooLong):
		return tooLongText(r.maxLen), nil
	case errors.As(err, &rle):
		return rateLimitedText(rle.Seconds), nil
	case errors.Is(err, service.ErrNoBalance):
		return outOfTokensText(), r.catalogKb()
	case errors.Is(err, service.ErrBalanceDrained):
		return msgTokensDrained, r.catalogKb()
	case errors.Is(err, service.ErrGeneration):
		slog.Error("bot: generation failed", "user_id", userID, "error", err)
		return msgKitchenDown, nil
	default:
		slog.Error("bot: recipe request failed", "user_id", userID, "error", err)
		return msgSomethingWrong, nil
	}
}

func (r *Router) startPurchase(ctx context.Context, chatID, userID int64, packageKey string) {
	checkout, err := r.svc.StartPurchase(ctx, userID, packageKey)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPackage) {
			r.send(ctx, chatID, msgUnknownCommand, nil)
			return
		}
		slog.Error("bot: start purchase", "user_id", userID, "package", packageKey, "error", err)
		r.send(ctx, chatID, msgPaymentFailed, nil)
		return
	}
	r.send(ctx, chatID, checkoutText(checkout, r.price(checkout.Amount)), checkoutKeyboard(checkout))
}

func (r *Router) checkPayment(ctx context.Context, chatID int64, paymentID string) {
	status, settlement, err := r.svc.CheckPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			// Operator problem, not a user problem: to the user the payment
			// is simply not confirmed yet.
			slog.Error("bot: payment unknown to ledger", "payment_id", paymentID)
			r.send(ctx, chatID, msgPaymentPending, nil)
			return
		}
		slog.Error("bot: check payment", "payment_id", paymentID, "error", err)
		r.send(ctx, chatID, msgSomethingWrong, nil)
		return
	}

	switch {
	case status == model.PaymentPending:
		r.send(ctx, chatID, msgPaymentPending, nil)
	case status == model.PaymentCanceled:
		r.send(ctx, chatID, msgPaymentGone, r.catalogKb())
	case settlement != nil && settlement.Credited:
		r.send(ctx, chatID, creditedText(settlement), mainKeyboard())
	default:
		r.send(ctx, chatID, msgPaymentDone, mainKeyboard())
	}
}

func (r *Router) sendWelcomeBack(ctx context.Context, chatID int64, from *telegram.User) {
	acc, err := r.svc.EnsureAccount(ctx, from.ID, from.Username, from.FullName())
	if err != nil {
		slog.Error("bot: ensure account", "user_id", from.ID, "error", err)
		r.send(ctx, chatID, msgSomethingWrong, nil)
		return
	}
	r.send(ctx, chatID, welcomeText(acc), mainKeyboard())
}

func (r *Router) sendCatalog(ctx context.Context, chatID int64) {
	r.send(ctx, chatID, "💳 <b>Recipe packages</b>\n\nPick one and keep the kitchen running:", r.catalogKb())
}

func (r *Router) catalogKb() *telegram.InlineKeyboardMarkup {
	return catalogKeyboard(r.svc.Packages(), r.price)
}

func (r *Router) sendBalance(ctx context.Context, chatID int64, acc *model.Account) {
	r.send(ctx, chatID, balanceText(acc, r.price(acc.TotalSpent)), balanceKeyboard())
}

func (r *Router) sendStats(ctx context.Context, chatID, userID int64) {
	if !r.isAdmin(userID) {
		r.send(ctx, chatID, msgNotAvailable, nil)
		return
	}
	stats, err := r.svc.Stats(ctx)
	if err != nil {
		slog.Error("bot: load stats", "error", err)
		r.send(ctx, chatID, msgSomethingWrong, nil)
		return
	}
	r.send(ctx, chatID, statsText(stats), nil)
}

func (r *Router) price(amount int64) string {
	if r.currency == "RUB" {
		return fmt.Sprintf("%d ₽", amount)
	}
	return fmt.Sprintf("%d %s", amount, r.currency)
}

func (r *Router) send(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) {
	msg := telegram.OutgoingMessage{ChatID: chatID, Text: text, ParseMode: "HTML", ReplyMarkup: kb}
	if err := r.tg.SendMessage(ctx, msg); err != nil {
		slog.Error("bot: send message", "chat_id", chatID, "error", err)
	}
}

func (r *Router) sendPlain(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) {
	msg := telegram.OutgoingMessage{ChatID: chatID, Text: text, ReplyMarkup: kb}
	if err := r.tg.SendMessage(ctx, msg); err != nil {
		slog.Error("bot: send message", "chat_id", chatID, "error", err)
	}
}

func (r *Router) edit(ctx context.Context, chatID, messageID int64, text string, kb *telegram.InlineKeyboardMarkup) {
	msg := telegram.EditMessage{ChatID: chatID, MessageID: messageID, Text: text, ParseMode: "HTML", ReplyMarkup: kb}
	if err := r.tg.EditMessageText(ctx, msg); err != nil {
		slog.Error("bot: edit message", "chat_id", chatID, "error", err)
	}
}

func (r *Router) editPlain(ctx context.Context, chatID, messageID int64, text string, kb *telegram.InlineKeyboardMarkup) {
	msg := telegram.EditMessage{ChatID: chatID, MessageID: messageID, Text: text, ReplyMarkup: kb}
	if err := r.tg.EditMessageText(ctx, msg); err != nil {
		slog.Error("bot: edit message", "chat_id", chatID, "error", err)
	}
}
