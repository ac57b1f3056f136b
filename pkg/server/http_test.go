package server

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"storefront-bot/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRunServesEngine(t *testing.T) {
	cfg := &config.Config{AppEnv: "test"}
	cfg.Server.Addr = "0"

	engine := NewEngine(cfg)
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	srv := NewHttpServer(Params{Config: cfg, Engine: engine})

	lc := fxtest.NewLifecycle(t)
	Run(lc, srv)
	lc.RequireStart()
	defer lc.RequireStop()

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", srv.Addr().(*net.TCPAddr).Port))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "pong", string(body))
}

func TestRunFailsWithoutCertificate(t *testing.T) {
	cfg := &config.Config{AppEnv: "test"}
	cfg.Server.Addr = "0"
	cfg.TLS.Enable = true
	cfg.TLS.CertPath = "missing.crt"
	cfg.TLS.KeyPath = "missing.key"

	srv := NewHttpServer(Params{Config: cfg, Engine: NewEngine(cfg)})
	lc := fxtest.NewLifecycle(t)
	Run(lc, srv)
	require.Error(t, lc.Start(t.Context()))
}
