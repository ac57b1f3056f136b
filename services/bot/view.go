package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-bot/pkg/errutil"
	"storefront-bot/services/catalog"
	"storefront-bot/services/coupon"
	"storefront-bot/services/customer"
	"storefront-bot/services/loyalty"
	"storefront-bot/services/reward"
	"storefront-bot/services/status"
	"storefront-bot/services/ticket"
	"storefront-bot/services/verification"

	"github.com/bwmarrin/discordgo"
)

const (
	colorSuccess = 0x2ECC71
	colorError   = 0xE74C3C
	colorWarning = 0xF39C12
	colorInfo    = 0x5865F2
	colorGold    = 0xF1C40F

	progressWidth = 10
)

func mention(id string) string { return "<@" + id + ">" }

func listOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

// errorMessage surfaces the message of a domain error and hides anything else.
func errorMessage(err error, fallback string) string {
	var be errutil.BaseError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

func errorEmbed(title, desc string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "❌ " + title, Description: desc, Color: colorError}
}

func notVerifiedEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Not verified",
		Description: "Verify your purchase in the verify channel to unlock your profile.",
		Color:       colorWarning,
	}
}

func progressBar(percent float64) string {
	filled := int(percent / 100 * progressWidth)
	if filled > progressWidth {
		filled = progressWidth
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", progressWidth-filled)
}

func productNames(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if p, ok := catalog.ProductByID(id); ok {
			names = append(names, p.Name)
		} else {
			names = append(names, id)
		}
	}
	return names
}

func profileEmbed(name string, rec verification.Record, keys loyalty.Record, products []string, coupons []coupon.Coupon) *discordgo.MessageEmbed {
	prog := catalog.LevelProgress(rec.TotalSpent)
	next := "Max level reached"
	if prog.NextLevel > 0 {
		next = fmt.Sprintf("%s %.0f%%\n$%.2f to level %d", progressBar(prog.Percent), prog.Percent, prog.NeededForNext, prog.NextLevel)
	}

	var codes []string
	for _, c := range coupons {
		if !c.Used {
			codes = append(codes, fmt.Sprintf("`%s` (%d%%)", c.Code, c.Percent))
		}
	}

	return &discordgo.MessageEmbed{
		Title: "👤 " + name,
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Level", Value: fmt.Sprintf("%d (%s)", rec.Level, catalog.LevelName(rec.Level)), Inline: true},
			{Name: "Total spent", Value: fmt.Sprintf("$%.2f", rec.TotalSpent), Inline: true},
			{Name: "Purchases", Value: fmt.Sprintf("%d", rec.PurchaseCount), Inline: true},
			{Name: "Progress", Value: next, Inline: false},
			{Name: "Loyalty keys", Value: fmt.Sprintf("%d (earned %d, used %d)", keys.KeysBalance, keys.TotalKeysEarned, keys.TotalKeysUsed), Inline: true},
			{Name: "Products", Value: listOr(productNames(products), "None"), Inline: false},
			{Name: "Coupons", Value: listOr(codes, "None"), Inline: false},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Verified " + rec.VerifiedAt.Format("2006-01-02")},
	}
}

func verifyEmbed(res verification.VerifyResult) *discordgo.MessageEmbed {
	switch res.Outcome {
	case verification.OutcomeInvalidEmail:
		return errorEmbed("Invalid email", "That does not look like an email address.")
	case verification.OutcomeAlreadyVerified:
		desc := "Your account is already verified."
		if res.Record != nil {
			desc = fmt.Sprintf("Your account is already verified with `%s`.", verification.MaskEmail(res.Record.Email))
		}
		return &discordgo.MessageEmbed{Title: "Already verified", Description: desc, Color: colorWarning}
	case verification.OutcomeEmailTaken:
		return errorEmbed("Email in use", "This email is already linked to another Discord account. Open a ticket if this is a mistake.")
	case verification.OutcomeCustomerNotFound:
		return errorEmbed("Customer not found", "No purchases were found for this email. Use the email from your order.")
	case verification.OutcomeInsufficientSpend:
		return errorEmbed("Not enough purchases",
			fmt.Sprintf("Verification needs at least $%.2f in purchases. Your total is $%.2f.", catalog.MinVerifySpend, res.Spent))
	}

	rec := res.Record
	fields := []*discordgo.MessageEmbedField{
		{Name: "Level", Value: fmt.Sprintf("%d (%s)", rec.Level, catalog.LevelName(rec.Level)), Inline: true},
		{Name: "Total spent", Value: fmt.Sprintf("$%.2f", rec.TotalSpent), Inline: true},
		{Name: "Loyalty keys", Value: fmt.Sprintf("%d", res.InitialKeys), Inline: true},
		{Name: "Products", Value: listOr(productNames(res.Products), "None"), Inline: false},
		{Name: "Roles", Value: listOr(res.Roles.Added, "No changes"), Inline: false},
	}
	if res.Coupon != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Coupon",
			Value: fmt.Sprintf("`%s` (%d%% off)", res.Coupon.Code, res.Coupon.Percent),
		})
	}
	return &discordgo.MessageEmbed{
		Title:       "✅ Verified",
		Description: "Welcome aboard! Your buyer roles are now active.",
		Color:       colorSuccess,
		Fields:      fields,
	}
}

func couponEmbed(code string, percent, level int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎟️ Your discount coupon",
		Description: fmt.Sprintf("Thanks for verifying! Here is a **%d%%** coupon for level %d.\n\nCode: `%s`", percent, level, code),
		Color:       colorGold,
	}
}

func verifiedLogEmbed(memberID string, res verification.VerifyResult) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "New verification",
		Color: colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: mention(memberID), Inline: true},
			{Name: "Email", Value: verification.MaskEmail(res.Record.Email), Inline: true},
			{Name: "Spent", Value: fmt.Sprintf("$%.2f", res.Record.TotalSpent), Inline: true},
			{Name: "Level", Value: fmt.Sprintf("%d", res.Record.Level), Inline: true},
			{Name: "Keys", Value: fmt.Sprintf("%d", res.InitialKeys), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func noKeysEmbed(keys loyalty.Record) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "No loyalty keys",
		Description: fmt.Sprintf("You don't have any loyalty keys.\nEvery %d purchases earn one key.\n\n"+
			"Balance: %d\nTotal earned: %d\nTotal used: %d",
			catalog.PurchasesPerKey, keys.KeysBalance, keys.TotalKeysEarned, keys.TotalKeysUsed),
		Color: colorWarning,
	}
}

func rewardEmbed(res reward.ClaimResult) *discordgo.MessageEmbed {
	g := res.Grant
	howTo := "Open a ticket to claim your reward."
	if g.Kind == catalog.RewardDiscountKey {
		howTo = fmt.Sprintf("Use code `%s` at checkout within %d day(s).", g.Code, g.Value)
	}
	return &discordgo.MessageEmbed{
		Title:       "🎁 Reward claimed!",
		Description: fmt.Sprintf("You used 1 loyalty key and won:\n\n**%s**\n\nReward code: `%s`", g.Description, g.Code),
		Color:       colorGold,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Roll", Value: fmt.Sprintf("%d", res.Roll), Inline: true},
			{Name: "Keys remaining", Value: fmt.Sprintf("%d", res.KeysLeft), Inline: true},
			{Name: "How to use", Value: howTo, Inline: false},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Thank you for your loyalty!"},
		Timestamp: g.IssuedAt.UTC().Format(time.RFC3339),
	}
}

func openTicketEmbed(res ticket.OpenResult) *discordgo.MessageEmbed {
	switch res.Outcome {
	case ticket.OpenNotVerified:
		return errorEmbed("Not verified", "Only verified buyers can open tickets.")
	case ticket.OpenNotEligible:
		return errorEmbed("Not eligible", fmt.Sprintf("Priority tickets need $%.0f in purchases.", catalog.PrioritySpend))
	case ticket.OpenAlreadyOpen:
		return &discordgo.MessageEmbed{
			Title:       "Ticket already open",
			Description: fmt.Sprintf("You already have an open ticket: <#%s>", res.Ticket.ChannelID),
			Color:       colorWarning,
		}
	}
	return &discordgo.MessageEmbed{
		Title:       "🎫 Ticket created",
		Description: fmt.Sprintf("Your ticket is ready: <#%s>", res.Ticket.ChannelID),
		Color:       colorSuccess,
	}
}

func statusCheckEmbed(entries []status.Entry) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(catalog.Products))
	for _, p := range catalog.Products {
		lines = append(lines, status.LineFor(entries, p).String())
	}
	return &discordgo.MessageEmbed{
		Title:       "📊 Current status",
		Description: strings.Join(lines, "\n"),
		Color:       colorInfo,
	}
}

func lookupEmbed(rec verification.Record, keys loyalty.Record) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Member lookup",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Discord ID", Value: rec.MemberID, Inline: true},
			{Name: "Member", Value: mention(rec.MemberID), Inline: true},
			{Name: "Email", Value: "`" + rec.Email + "`", Inline: false},
			{Name: "Total spent", Value: fmt.Sprintf("$%.2f", rec.TotalSpent), Inline: true},
			{Name: "Purchase count", Value: fmt.Sprintf("%d", rec.PurchaseCount), Inline: true},
			{Name: "Level", Value: fmt.Sprintf("%d", rec.Level), Inline: true},
			{Name: "Loyalty keys", Value: fmt.Sprintf("%d", keys.KeysBalance), Inline: true},
			{Name: "Verified at", Value: rec.VerifiedAt.UTC().Format("2006-01-02 15:04"), Inline: true},
		},
	}
}

func cacheEmbed(st customer.Stats) *discordgo.MessageEmbed {
	last := "never"
	if !st.LastLoad.IsZero() {
		last = st.LastLoad.UTC().Format("2006-01-02 15:04:05")
	}
	return &discordgo.MessageEmbed{
		Title: "Customer cache",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Loaded", Value: fmt.Sprintf("%t", st.Loaded), Inline: true},
			{Name: "Customers", Value: fmt.Sprintf("%d", st.Customers), Inline: true},
			{Name: "Last load", Value: last, Inline: true},
		},
	}
}
