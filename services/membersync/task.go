package membersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-bot/pkg/errutil"
	"storefront-bot/pkg/periodic"
	"storefront-bot/pkg/rediskey"
	"storefront-bot/pkg/task"
	"storefront-bot/pkg/taskname"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	colorKeys   = 0xF1C40F
	colorFailed = 0xE74C3C
	colorReport = 0x3498DB
)

type SyncPayload struct {
	RequestID   string `json:"request_id"`
	RequestedBy string `json:"requested_by"`
	// ChannelID receives the report when set.
	ChannelID string `json:"channel_id,omitempty"`
}

type KeysEarnedPayload struct {
	MemberID string `json:"member_id"`
	Keys     int    `json:"keys"`
	Balance  int    `json:"balance"`
}

// TaskNotifier queues key notifications so a slow or closed DM channel never
// holds up the sync loop.
type TaskNotifier struct {
	enqueuer task.Enqueuer
}

func NewTaskNotifier(enqueuer task.Enqueuer) *TaskNotifier {
	return &TaskNotifier{enqueuer: enqueuer}
}

func (n *TaskNotifier) KeysEarned(ctx context.Context, memberID string, keys, balance int) error {
	t, err := task.NewJSONTask(taskname.NotifyKeysEarned, KeysEarnedPayload{MemberID: memberID, Keys: keys, Balance: balance})
	if err != nil {
		return err
	}
	_, err = n.enqueuer.Enqueue(ctx, t,
		asynq.Queue(taskname.QueueLow),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	return err
}

// Messenger is the outbound half of the Discord client.
type Messenger interface {
	DirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) error
	Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error)
}

// Runner owns the periodic sync task and the asynq handlers that feed it.
type Runner struct {
	scheduler *Scheduler
	task      *periodic.Task
	enqueuer  task.Enqueuer
	messenger Messenger
}

func NewRunner(s *Scheduler, interval time.Duration, enqueuer task.Enqueuer, messenger Messenger) *Runner {
	r := &Runner{scheduler: s, enqueuer: enqueuer, messenger: messenger}
	r.task = periodic.New("member-sync", interval, func(ctx context.Context) error {
		_, err := s.RunOnce(ctx)
		return err
	})
	return r
}

func (r *Runner) Task() *periodic.Task { return r.task }

func (r *Runner) Scheduler() *Scheduler { return r.scheduler }

func (r *Runner) CheckProducts(ctx context.Context, memberID string) (*ProductCheck, error) {
	return r.scheduler.CheckProducts(ctx, memberID)
}

// RequestSync queues an out-of-band sync. At most one request waits in the
// queue at a time; a second one gets a Conflict.
func (r *Runner) RequestSync(ctx context.Context, requestedBy, channelID string) (string, error) {
	p := SyncPayload{RequestID: uuid.NewString(), RequestedBy: requestedBy, ChannelID: channelID}
	t, err := task.NewJSONTask(taskname.SyncMembers, p)
	if err != nil {
		return "", err
	}

	_, err = r.enqueuer.Enqueue(ctx, t,
		asynq.TaskID(rediskey.BuildSyncRequestKey("members")),
		asynq.Queue(taskname.QueueCritical),
		asynq.MaxRetry(0),
		asynq.Timeout(time.Hour),
	)
	if errors.Is(err, task.ErrDuplicate) {
		return "", errutil.Conflict("a member sync is already queued", err)
	}
	if err != nil {
		return "", err
	}

	zap.L().Info("[Sync] sync requested", zap.String("request_id", p.RequestID), zap.String("requested_by", requestedBy))
	return p.RequestID, nil
}

// HandleSyncTask runs a requested sync. Requests are queued under a fixed
// task ID with no retries, so the handler always returns nil: a failed task
// would be archived and keep holding the ID, blocking every later request.
func (r *Runner) HandleSyncTask(ctx context.Context, t *asynq.Task) error {
	var p SyncPayload
	if err := task.Decode(t, &p); err != nil {
		zap.L().Error("[Sync] dropping malformed sync request", zap.Error(err))
		return nil
	}

	ran, err := r.task.TryRun(ctx)
	if !ran {
		zap.L().Info("[Sync] requested sync skipped, a run is in progress", zap.String("request_id", p.RequestID))
		r.report(ctx, p.ChannelID, &discordgo.MessageEmbed{
			Title:       "Sync already running",
			Description: "A member sync is in progress; its results will show in the next report.",
			Color:       colorReport,
		})
		return nil
	}
	if err != nil {
		zap.L().Error("[Sync] requested sync failed", zap.String("request_id", p.RequestID), zap.Error(err))
		r.report(ctx, p.ChannelID, &discordgo.MessageEmbed{
			Title:       "Member sync failed",
			Description: "The sync stopped early. Check the bot logs, then request it again.",
			Color:       colorFailed,
		})
		return nil
	}

	if rep, ok := r.scheduler.LastReport(); ok {
		r.report(ctx, p.ChannelID, ReportEmbed(rep, p.RequestedBy))
	}
	return nil
}

func (r *Runner) report(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) {
	if channelID == "" || r.messenger == nil {
		return
	}
	if _, err := r.messenger.Send(ctx, channelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
		zap.L().Warn("[Sync] failed to post sync report", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (r *Runner) HandleKeysEarnedTask(ctx context.Context, t *asynq.Task) error {
	var p KeysEarnedPayload
	if err := task.Decode(t, &p); err != nil {
		return err
	}
	return r.messenger.DirectMessage(ctx, p.MemberID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{KeysEmbed(p.Keys, p.Balance)},
	})
}

func KeysEmbed(keys, balance int) *discordgo.MessageEmbed {
	noun := "key"
	if keys != 1 {
		noun = "keys"
	}
	return &discordgo.MessageEmbed{
		Title:       "🔑 New loyalty keys",
		Description: fmt.Sprintf("Thanks for your purchase! You earned **%d %s**.", keys, noun),
		Color:       colorKeys,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Balance", Value: fmt.Sprintf("%d", balance), Inline: true},
			{Name: "Redeem", Value: "Press **Claim Reward** in the rewards channel.", Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func ReportEmbed(rep Report, requestedBy string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Member sync finished",
		Color: colorReport,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Checked", Value: fmt.Sprintf("%d", rep.Checked), Inline: true},
			{Name: "Updated", Value: fmt.Sprintf("%d", rep.Updated), Inline: true},
			{Name: "Keys awarded", Value: fmt.Sprintf("%d", rep.KeysAwarded), Inline: true},
			{Name: "Role changes", Value: fmt.Sprintf("%d", rep.RolesChanged), Inline: true},
			{Name: "Failed", Value: fmt.Sprintf("%d", rep.Failed), Inline: true},
			{Name: "Duration", Value: rep.Duration.Round(time.Second).String(), Inline: true},
		},
		Timestamp: rep.StartedAt.UTC().Format(time.RFC3339),
	}
	if requestedBy != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Requested by " + requestedBy}
	}
	return embed
}
