package api

import (
	"storefront-bot/pkg/config"
	"storefront-bot/services/ticket"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("api",
	fx.Provide(func(s *ticket.Service) *Handler { return NewHandler(s) }),
	fx.Invoke(register),
)

func register(engine *gin.Engine, cfg *config.Config, h *Handler) {
	if cfg.API.Key == "" {
		zap.L().Warn("[API] API.KEY is empty, ticket routes are unauthenticated")
	}
	h.Register(engine, cfg.API.Key, cfg.API.AllowOrigins)
}
