package discord

import (
	"context"

	"storefront-bot/pkg/config"
	"storefront-bot/services/role"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("discord",
	fx.Provide(
		NewSession,
		NewClient,
		func(c *Client) role.Guild { return c },
	),
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsDirectMessages

// NewSession builds the gateway session. Handlers registered by fx invokes are
// attached before the OnStart hook opens the connection.
func NewSession(lc fx.Lifecycle, cfg *config.Config) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = intents
	session.StateEnabled = true

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := session.Open(); err != nil {
				zap.L().Error("[Discord] failed to open gateway session", zap.Error(err))
				return err
			}
			zap.L().Info("[Discord] gateway session opened", zap.String("guild_id", cfg.Discord.GuildID))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("[Discord] closing gateway session")
			return session.Close()
		},
	})

	return session, nil
}
