package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"storefront-bot/pkg/config"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ProvideHTTPServer = fx.Module("http.server",
	fx.Provide(
		NewEngine,
		NewHttpServer,
	),
	fx.Invoke(Run),
)

type Server struct {
	server   *http.Server
	tlsMutex sync.RWMutex
	cert     *tls.Certificate
	certPath string
	keyPath  string
	addr     net.Addr
}

// NewEngine builds the shared gin engine. Route groups are attached by the
// modules that own them.
func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog())
	return engine
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		zap.L().Debug("[HTTP] request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

type Params struct {
	fx.In
	Config *config.Config
	Engine *gin.Engine
}

func NewHttpServer(p Params) *Server {
	cfg := p.Config
	srv := &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Addr),
			Handler:      p.Engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		certPath: cfg.TLS.CertPath,
		keyPath:  cfg.TLS.KeyPath,
	}

	if cfg.TLS.Enable {
		srv.server.TLSConfig = &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: srv.certificate,
		}
	}

	return srv
}

// Addr is the bound listener address once the server has started.
func (s *Server) Addr() net.Addr { return s.addr }

func (s *Server) certificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	s.tlsMutex.RLock()
	defer s.tlsMutex.RUnlock()
	if s.cert == nil {
		return nil, errors.New("no TLS cert loaded")
	}
	return s.cert, nil
}

func (s *Server) reloadCert() error {
	cert, err := tls.LoadX509KeyPair(s.certPath, s.keyPath)
	if err != nil {
		zap.L().Error("[HTTP] failed to load TLS cert", zap.String("cert", s.certPath), zap.Error(err))
		return err
	}
	s.tlsMutex.Lock()
	s.cert = &cert
	s.tlsMutex.Unlock()
	zap.L().Info("[HTTP] TLS certificate loaded")
	return nil
}

// watchTLSFiles reloads the certificate whenever the cert or key file
// changes, until done is closed.
func (s *Server) watchTLSFiles(done <-chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		zap.L().Error("[HTTP] failed to create fsnotify watcher", zap.Error(err))
		return
	}
	defer watcher.Close()

	_ = watcher.Add(s.certPath)
	_ = watcher.Add(s.keyPath)

	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				_ = s.reloadCert()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			zap.L().Error("[HTTP] watcher error", zap.Error(err))
		}
	}
}

// Run binds the listener in OnStart so a port clash fails startup instead of
// surfacing later in a goroutine.
func Run(lc fx.Lifecycle, srv *Server) {
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.server.Addr)
			if err != nil {
				return err
			}
			srv.addr = ln.Addr()

			if srv.server.TLSConfig != nil {
				if err := srv.reloadCert(); err != nil {
					_ = ln.Close()
					return err
				}
				go srv.watchTLSFiles(done)
				ln = tls.NewListener(ln, srv.server.TLSConfig)
			}

			zap.L().Info("[HTTP] server started", zap.String("addr", srv.addr.String()), zap.Bool("tls", srv.server.TLSConfig != nil))
			go func() {
				if err := srv.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					zap.L().Error("[HTTP] server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			zap.L().Info("[HTTP] shutting down server gracefully")
			return srv.server.Shutdown(ctx)
		},
	})
}
