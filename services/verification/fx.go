package verification

import "go.uber.org/fx"

var Module = fx.Module("verification",
	fx.Provide(
		NewLedger,
		NewVerifier,
	),
)
