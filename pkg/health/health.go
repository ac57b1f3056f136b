package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	checkTimeout    = 2 * time.Second
)

var errGatewayDown = errors.New("gateway session not connected")

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

// Gateway reports whether the Discord gateway session is connected.
type Gateway interface {
	Connected() bool
}

type health struct {
	db      *gorm.DB
	redis   *redis.Client
	gateway Gateway
}

type HealthParams struct {
	fx.In
	DB      *gorm.DB      `optional:"true"`
	Redis   *redis.Client `optional:"true"`
	Gateway Gateway       `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{db: p.DB, redis: p.Redis, gateway: p.Gateway}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{Status: statusHealthy, Message: "OK"})
}

// Readiness pings every dependency and answers 503 when any is down.
func (h *health) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	this := &Health{Status: statusHealthy, Message: "OK", Deps: h.check(ctx)}
	code := http.StatusOK
	for _, d := range this.Deps {
		if d.Status != statusHealthy {
			this.Status, this.Message = statusUnhealthy, d.Name+" unavailable"
			code = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, this)
}

func (h *health) check(ctx context.Context) []Dependency {
	deps := make([]Dependency, 0, 3)
	ping := func(name string, fn func() error) {
		dep := Dependency{Name: name, Status: statusHealthy, Message: "OK"}
		if err := fn(); err != nil {
			dep.Status, dep.Message = statusUnhealthy, err.Error()
		}
		deps = append(deps, dep)
	}

	if h.db != nil {
		ping(h.db.Name(), func() error {
			sql, err := h.db.DB()
			if err != nil {
				return err
			}
			return sql.PingContext(ctx)
		})
	}
	if h.redis != nil {
		ping("redis", func() error { return h.redis.Ping(ctx).Err() })
	}
	if h.gateway != nil {
		ping("discord", func() error {
			if !h.gateway.Connected() {
				return errGatewayDown
			}
			return nil
		})
	}
	return deps
}
