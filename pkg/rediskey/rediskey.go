package rediskey

import "fmt"

// Key prefixes shared by every component that touches Redis.
const (
	CustomerPrefix = "customers"
	SyncPrefix     = "sync"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildCustomerSnapshotKey returns "customers:snapshot:{storeID}".
func BuildCustomerSnapshotKey(storeID string) string {
	return NamespaceKey(CustomerPrefix, NamespaceKey("snapshot", storeID))
}

// BuildSyncRequestKey returns "sync:request:{scope}", used as the asynq unique key
// for admin-triggered syncs.
func BuildSyncRequestKey(scope string) string {
	return NamespaceKey(SyncPrefix, NamespaceKey("request", scope))
}
