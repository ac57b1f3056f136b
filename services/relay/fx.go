package relay

import (
	"context"
	"sync"

	"storefront-bot/pkg/config"
	"storefront-bot/services/ticket"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("relay",
	fx.Provide(provideService),
	fx.Invoke(register),
)

type serviceParams struct {
	fx.In
	Config  *config.Config
	DB      *gorm.DB
	Tickets *ticket.Service
}

type relayOut struct {
	fx.Out
	Service *Service
	API     *tgbotapi.BotAPI
}

func provideService(p serviceParams) (relayOut, error) {
	if p.Config.Telegram.Token == "" {
		zap.L().Info("[Relay] telegram token not configured, relay disabled")
		return relayOut{Service: NewService(p.DB, nil, p.Tickets, "")}, nil
	}

	api, err := tgbotapi.NewBotAPI(p.Config.Telegram.Token)
	if err != nil {
		return relayOut{}, err
	}
	zap.L().Info("[Relay] authorized on telegram", zap.String("bot", api.Self.UserName))
	return relayOut{
		Service: NewService(p.DB, api, p.Tickets, p.Config.Telegram.AdminSecret),
		API:     api,
	}, nil
}

type registerParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Service   *Service
	Tickets   *ticket.Service
	API       *tgbotapi.BotAPI `optional:"true"`
}

// register subscribes the relay to ticket events and runs the long-polling
// loop for the lifetime of the app.
func register(p registerParams) {
	if p.API == nil {
		return
	}
	p.Tickets.Subscribe(p.Service)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			u := tgbotapi.NewUpdate(0)
			u.Timeout = 60
			updates := p.API.GetUpdatesChan(u)

			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case update, ok := <-updates:
						if !ok {
							return
						}
						go p.Service.HandleUpdate(ctx, update)
					case <-ctx.Done():
						return
					}
				}
			}()
			zap.L().Info("[Relay] polling telegram updates")
			return nil
		},
		OnStop: func(context.Context) error {
			p.API.StopReceivingUpdates()
			cancel()
			wg.Wait()
			return nil
		},
	})
}
