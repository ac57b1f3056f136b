package membersync

import (
	"context"

	"storefront-bot/pkg/config"
	"storefront-bot/pkg/periodic"
	"storefront-bot/pkg/task"
	"storefront-bot/pkg/taskname"
	"storefront-bot/services/customer"
	"storefront-bot/services/discord"
	"storefront-bot/services/role"
	"storefront-bot/services/verification"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("membersync",
	fx.Provide(
		provideScheduler,
		provideRunner,
	),
	fx.Invoke(
		registerHandlers,
		registerTasks,
	),
)

type schedulerParams struct {
	fx.In
	Config         *config.Config
	Members        *verification.Ledger
	Directory      *customer.Directory
	Roles          *role.Reconciler
	Enqueuer       task.Enqueuer
	TracerProvider trace.TracerProvider `optional:"true"`
}

func provideScheduler(p schedulerParams) *Scheduler {
	var tracer trace.Tracer
	if p.TracerProvider != nil {
		tracer = p.TracerProvider.Tracer("storefront-bot/membersync")
	}
	return NewScheduler(Options{
		Members:     p.Members,
		Directory:   p.Directory,
		Roles:       p.Roles,
		Notifier:    NewTaskNotifier(p.Enqueuer),
		Tracer:      tracer,
		MemberDelay: p.Config.Sync.MemberDelay,
	})
}

func provideRunner(cfg *config.Config, s *Scheduler, enqueuer task.Enqueuer, client *discord.Client) *Runner {
	return NewRunner(s, cfg.Sync.Interval, enqueuer, client)
}

func registerHandlers(mux *asynq.ServeMux, r *Runner) {
	mux.HandleFunc(taskname.SyncMembers, r.HandleSyncTask)
	mux.HandleFunc(taskname.NotifyKeysEarned, r.HandleKeysEarnedTask)
}

// registerTasks starts the member sync and the customer cache refresh. The
// cache refresh runs immediately so the directory is warm before the first
// member sync.
func registerTasks(lc fx.Lifecycle, cfg *config.Config, r *Runner, dir *customer.Directory) {
	periodic.Register(lc, periodic.New("customer-cache", cfg.Sync.CacheInterval, func(ctx context.Context) error {
		return dir.Refresh(ctx)
	}, periodic.WithImmediateRun()))
	periodic.Register(lc, r.Task())
}
