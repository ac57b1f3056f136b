package bot

import (
	"fmt"

	"storefront-bot/services/catalog"
	"storefront-bot/services/ticket"

	"github.com/bwmarrin/discordgo"
)

// Panel is a persistent message with buttons, installed by admin_setup.
type Panel struct {
	Channel  string
	Category string
	Topic    string
	Embed    *discordgo.MessageEmbed
	Buttons  []discordgo.Button
}

func (p Panel) Message() *discordgo.MessageSend {
	row := make([]discordgo.MessageComponent, 0, len(p.Buttons))
	for _, btn := range p.Buttons {
		row = append(row, btn)
	}
	return &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{p.Embed},
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: row}},
	}
}

func Panels() []Panel {
	return []Panel{
		{
			Channel:  "verify",
			Category: "Information",
			Topic:    "Account verification | Click the button",
			Embed: &discordgo.MessageEmbed{
				Title: "Verify your purchase",
				Description: fmt.Sprintf("Press **Verify** and enter the email you used at checkout.\n\n"+
					"Buyers with at least $%.0f in purchases get the buyer roles, loyalty keys and a level coupon.",
					catalog.MinVerifySpend),
				Color: colorInfo,
			},
			Buttons: []discordgo.Button{
				{Label: "Verify", Style: discordgo.SuccessButton, CustomID: VerifyButtonID, Emoji: &discordgo.ComponentEmoji{Name: "✅"}},
			},
		},
		{
			Channel:  "support",
			Category: "Buyers Zone",
			Topic:    "Create a support ticket",
			Embed: &discordgo.MessageEmbed{
				Title:       "Support",
				Description: "Need help with a purchase? Open a private ticket and our staff will answer there.",
				Color:       colorInfo,
			},
			Buttons: []discordgo.Button{
				{Label: "Create Ticket", Style: discordgo.PrimaryButton, CustomID: ticket.OpenButtonID, Emoji: &discordgo.ComponentEmoji{Name: "🎫"}},
			},
		},
		{
			Channel:  "vip-support",
			Category: "VIP Zone",
			Topic:    fmt.Sprintf("Priority support for VIP ($%.0f+)", catalog.PrioritySpend),
			Embed: &discordgo.MessageEmbed{
				Title:       "Priority support",
				Description: fmt.Sprintf("Customers with $%.0f or more in purchases get priority tickets answered first.", catalog.PrioritySpend),
				Color:       colorGold,
			},
			Buttons: []discordgo.Button{
				{Label: "Priority Ticket", Style: discordgo.SuccessButton, CustomID: ticket.PriorityButtonID, Emoji: &discordgo.ComponentEmoji{Name: "⭐"}},
			},
		},
		{
			Channel:  "rewards",
			Category: "Buyers Zone",
			Topic:    "Claim your loyalty rewards",
			Embed: &discordgo.MessageEmbed{
				Title:       "Loyalty rewards",
				Description: rewardTable(),
				Color:       colorGold,
			},
			Buttons: []discordgo.Button{
				{Label: "Claim Reward", Style: discordgo.PrimaryButton, CustomID: ClaimButtonID, Emoji: &discordgo.ComponentEmoji{Name: "🎁"}},
			},
		},
	}
}

func rewardTable() string {
	s := fmt.Sprintf("Every %d purchases earn one loyalty key. Spend a key for a random reward:\n\n", catalog.PurchasesPerKey)
	for _, r := range catalog.Rewards {
		s += fmt.Sprintf("• %s (%d%%)\n", r.Description, r.Weight)
	}
	return s
}
