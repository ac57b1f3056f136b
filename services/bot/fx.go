package bot

import (
	"context"

	"storefront-bot/pkg/config"
	"storefront-bot/services/coupon"
	"storefront-bot/services/customer"
	"storefront-bot/services/discord"
	"storefront-bot/services/loyalty"
	"storefront-bot/services/membersync"
	"storefront-bot/services/reward"
	"storefront-bot/services/role"
	"storefront-bot/services/status"
	"storefront-bot/services/ticket"
	"storefront-bot/services/verification"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("bot",
	fx.Provide(provideBot),
	fx.Invoke(register),
)

type botParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Session   *discordgo.Session
	Client    *discord.Client
	Verifier  *verification.Verifier
	Members   *verification.Ledger
	Loyalty   *loyalty.Ledger
	Rewards   *reward.Service
	Coupons   *coupon.Service
	Tickets   *ticket.Service
	Runner    *membersync.Runner
	Directory *customer.Directory
	Roles     *role.Reconciler
	Status    *status.Service
}

func provideBot(p botParams) *Bot {
	base, cancel := context.WithCancel(context.Background())
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})

	return New(Deps{
		Verifier:     p.Verifier,
		Members:      p.Members,
		Keys:         p.Loyalty,
		Rewards:      p.Rewards,
		Coupons:      p.Coupons,
		Tickets:      p.Tickets,
		Sync:         p.Runner,
		Cache:        p.Directory,
		Roles:        p.Roles,
		Status:       p.Status,
		Guild:        p.Client,
		LogChannelID: p.Config.Discord.LogChannelID,
	}, p.Session, base)
}

// register attaches the handlers before the session opens; the discord module
// opens the gateway in its own OnStart hook.
func register(session *discordgo.Session, cfg *config.Config, b *Bot) {
	session.AddHandler(b.OnInteraction)
	session.AddHandler(b.OnMessage)
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		zap.L().Info("[Discord] ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
		registered, err := s.ApplicationCommandBulkOverwrite(r.User.ID, cfg.Discord.GuildID, Commands())
		if err != nil {
			zap.L().Error("[Discord] failed to register commands", zap.Error(err))
			return
		}
		zap.L().Info("[Discord] commands registered", zap.Int("count", len(registered)))
	})
}
