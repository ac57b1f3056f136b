package gen

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake",
	fx.Provide(NewNode),
)

// NewNode returns the process-wide snowflake node. A single bot instance runs
// per guild, so node 1 is fixed.
func NewNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
