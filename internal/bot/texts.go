package bot

import (
	"fmt"
	"html"
	"strings"

	"chefbot/internal/model"
	"chefbot/internal/telegram"
)

const (
	msgAskIngredients = "🍳 What are we cooking? Send me a dish name or the ingredients you have, and I'll write a recipe."
	msgHelp           = "ℹ️ <b>How this works</b>\n\n" +
		"Send any dish or list of ingredients and I'll answer with a full recipe. " +
		"Every recipe costs one token; new accounts start with a few free ones.\n\n" +
		"/recipe — ask for a recipe\n" +
		"/balance — tokens left\n" +
		"/buy — top up\n" +
		"/help — this message"
	msgUnknownCommand = "🤔 I don't know that command. Try /help."
	msgNotAvailable   = "This command is not available."
	msgCantReadText   = "❌ Couldn't read that message. Send /recipe and your request."
	msgThinking       = "🧑‍🍳 The chef is thinking over your recipe...\nUsually takes 5-15 seconds."
	msgSomethingWrong = "😔 Something went wrong on our side. Please try again later."
	msgKitchenDown    = "🔥 The kitchen is overloaded right now — your tokens were not touched. Try again in a minute."
	msgTokensDrained  = "😔 Your tokens ran out while the recipe was cooking. Grab a package and try that one again!"
	msgPaymentFailed  = "💳 Couldn't start the payment. Please try again later."
	msgPaymentPending = "⏳ The payment isn't confirmed yet. If you've just paid, give it a minute and press the button again."
	msgPaymentDone    = "✅ This payment was already processed."
	msgPaymentGone    = "❌ The payment was canceled. Nothing was charged."
)

// welcomeText greets a first-time user with the free-recipe gift and a
// returning one with their balance. Names come straight from Telegram
// profiles, so they are escaped like any other user text.
func welcomeText(acc *model.Account) string {
	name := html.EscapeString(acc.FullName)
	if name == "" {
		name = "chef"
	}
	if acc.TotalRecipes == 0 {
		return fmt.Sprintf(
			"👨‍🍳 Welcome to the AI Chef, %s!\n\n"+
				"I turn your ingredients or your mood into a proper recipe in seconds.\n\n"+
				"🎁 Gift: <b>%d</b> free recipes already on your account!\n\n"+
				"Try it:\n"+
				"• /recipe chicken, tomatoes, garlic\n"+
				"• /recipe something light for dinner",
			name, acc.TokensBalance)
	}
	return fmt.Sprintf(
		"👨‍🍳 Welcome back, %s!\n\n💳 Balance: <b>%d</b> recipes\n\nReady to cook something tasty? 😋",
		name, acc.TokensBalance)
}

func balanceText(acc *model.Account, spent string) string {
	status := "✅ Plenty left"
	switch {
	case acc.TokensBalance == 0:
		status = "😔 All used up"
	case acc.TokensBalance <= 3:
		status = "⚠️ Running low"
	}
	return fmt.Sprintf(
		"💳 <b>Your balance</b>\n\n"+
			"📖 Recipes left: <b>%d</b> %s\n"+
			"🍳 Cooked so far: <b>%d</b>\n"+
			"💰 Spent: <b>%s</b>",
		acc.TokensBalance, status, acc.TotalRecipes, spent)
}

func recipeFooter(balanceAfter int) string {
	if balanceAfter == 0 {
		return "\n\n🍽 That was your last token. Time to restock!"
	}
	return fmt.Sprintf("\n\n🍳 Recipes left: %d", balanceAfter)
}

func tooLongText(maxLen int) string {
	return fmt.Sprintf("✍️ That's a bit much! Keep your request under %d characters.", maxLen)
}

// offerText previews a free-form message and proposes turning it into a
// recipe. The preview is HTML-escaped, user text is not trusted markup.
func offerText(preview string) string {
	return fmt.Sprintf("🤔 Want a recipe from «<b>%s</b>»?\n\nPress the button below, or send /recipe and your request.",
		html.EscapeString(preview))
}

func promptPreview(text string) string {
	const max = 50
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}

func rateLimitedText(seconds int) string {
	return fmt.Sprintf("⏳ Easy, chef! Wait %d s before the next recipe.", seconds)
}

func outOfTokensText() string {
	return "🍽 You're out of recipe tokens. Grab a package and keep cooking!"
}

func checkoutText(c *model.Checkout, price string) string {
	return fmt.Sprintf(
		"💳 <b>%d recipes — %s</b>\n\nTap «Pay» to open the checkout page, then come back and press «I've paid».",
		c.Recipes, price)
}

func creditedText(s *model.Settlement) string {
	return fmt.Sprintf("✅ Payment received! +%d recipes.\n🍳 Recipes left: <b>%d</b>",
		s.Payment.Recipes, s.BalanceAfter)
}

func statsText(s *model.Stats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Kitchen stats</b>\n\n")
	fmt.Fprintf(&b, "👥 Users: %d (+%d today)\n", s.TotalUsers, s.NewToday)
	fmt.Fprintf(&b, "🍳 Recipes: %d (+%d today)\n", s.TotalRecipes, s.RecipesToday)
	fmt.Fprintf(&b, "💰 Revenue: %d\n", s.TotalRevenue)
	if len(s.TopPrompts) > 0 {
		b.WriteString("\n🔥 Most requested:\n")
		for _, p := range s.TopPrompts {
			fmt.Fprintf(&b, "  %s — %d\n", html.EscapeString(p.Prompt), p.Count)
		}
	}
	return b.String()
}

// Keyboards.

func mainKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "🍳 New recipe", CallbackData: "new_recipe"}},
		{
			{Text: "💰 Balance", CallbackData: "balance"},
			{Text: "💳 Buy recipes", CallbackData: "buy"},
		},
		{{Text: "ℹ️ Help", CallbackData: "help"}},
	}}
}

func catalogKeyboard(packages []model.Package, price func(int64) string) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(packages)+1)
	for _, p := range packages {
		label := fmt.Sprintf("%s — %d recipes · %s", p.Name, p.Recipes, price(p.Price))
		rows = append(rows, []telegram.InlineKeyboardButton{
			{Text: label, CallbackData: "buy_" + p.Key},
		})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: "« Back", CallbackData: "back_main"}})
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func checkoutKeyboard(c *model.Checkout) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "💳 Pay", URL: c.URL}},
		{{Text: "🔄 I've paid", CallbackData: "check_payment_" + c.PaymentID}},
		{{Text: "« Back", CallbackData: "back_main"}},
	}}
}

func balanceKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "💳 Buy recipes", CallbackData: "buy"}},
		{{Text: "« Back", CallbackData: "back_main"}},
	}}
}

func offerKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "🍳 Make a recipe from this!", CallbackData: "recipe_from_msg"}},
	}}
}
