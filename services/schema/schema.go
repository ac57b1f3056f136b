package schema

import (
	"storefront-bot/pkg/db"
	"storefront-bot/services/coupon"
	"storefront-bot/services/loyalty"
	"storefront-bot/services/relay"
	"storefront-bot/services/reward"
	"storefront-bot/services/status"
	"storefront-bot/services/ticket"
	"storefront-bot/services/verification"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module migrates every relational table on startup.
var Module = fx.Module("schema", fx.Invoke(Migrate))

// Models lists the gorm models owned by the bot. Ticket tables are created
// even when tickets live in MongoDB so switching backends needs no migration.
func Models() []any {
	models := []any{
		&loyalty.Record{},
		&coupon.Coupon{},
		&reward.Grant{},
		&status.Snapshot{},
		&relay.Operator{},
	}
	models = append(models, verification.Models()...)
	return append(models, ticket.Models()...)
}

func Migrate(gdb *gorm.DB) error {
	return db.Migrate(gdb, Models()...)
}
