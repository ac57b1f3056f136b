package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"storefront-bot/pkg/config"
	"storefront-bot/pkg/db"
	"storefront-bot/pkg/logger"
	"storefront-bot/services/schema"
)

// migrate creates or updates the relational schema and exits.
func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		schema.Module,
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	_ = app.Stop(ctx)
	log.Println("schema up to date")
}
