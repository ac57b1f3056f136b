package profiling

import (
	"testing"

	"storefront-bot/pkg/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestRegisterIsNoopWithoutAddress(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	Register(lc, &config.Config{AppName: "storefront-bot"})
	lc.RequireStart().RequireStop()
}

func TestProfileConfigTagsEnvironment(t *testing.T) {
	c := &config.Config{AppName: "storefront-bot", AppEnv: "production"}
	c.Pyroscope.Addr = "http://pyroscope:4040"

	pc := profileConfig(c)
	require.Equal(t, "storefront-bot", pc.ApplicationName)
	require.Equal(t, "http://pyroscope:4040", pc.ServerAddress)
	require.Equal(t, "production", pc.Tags["env"])
	require.NotEmpty(t, pc.ProfileTypes)
}
