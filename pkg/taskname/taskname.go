package taskname

const (
	// Sync tasks
	SyncMembers = "sync:members"

	// Notification tasks
	NotifyKeysEarned = "notify:keys_earned"
	NotifyVerified   = "notify:verified"
)

// Queues, highest priority first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)
