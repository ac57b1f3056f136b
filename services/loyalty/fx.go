package loyalty

import (
	"go.uber.org/fx"
)

var Module = fx.Module("loyalty.ledger",
	fx.Provide(NewLedger),
)
