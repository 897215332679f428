package signoff

import (
	"context"
	"sync"
	"time"
)

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.notifications = append(n.notifications, notification)

	return nil
}

func (n *recordingNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notification, len(n.notifications))
	copy(out, n.notifications)

	return out
}

func (n *recordingNotifier) byType(notificationType NotificationType) []Notification {
	var out []Notification
	for _, notification := range n.all() {
		if notification.Type == notificationType {
			out = append(out, notification)
		}
	}

	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.notifications = nil
}

type staticDirectory map[string]bool

func (d staticDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	return d[userID], nil
}

type staticFiles map[string]bool

func (f staticFiles) FileExists(ctx context.Context, fileID string) (bool, error) {
	return f[fileID], nil
}

// staticFolders maps a folder to its parent; missing entries are roots.
type staticFolders map[string]string

func (f staticFolders) ParentFolder(ctx context.Context, folderID string) (string, error) {
	return f[folderID], nil
}

func newTestEngine(opts ...EngineOption) (*Engine, *MemoryStore) {
	store := NewMemoryStore()
	engine := NewEngine(NewMemoryTxManager(), store, opts...)

	return engine, store
}

func approvers(userIDs ...string) []ApproverSpec {
	specs := make([]ApproverSpec, 0, len(userIDs))
	for i, userID := range userIDs {
		specs = append(specs, ApproverSpec{UserID: userID, OrderIndex: i})
	}

	return specs
}

// testClock returns a deterministic time source that advances one second per
// call.
func testClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start

	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		current = current.Add(time.Second)

		return current
	}
}

func eventTypes(events []WorkflowEvent) []string {
	types := make([]string, 0, len(events))
	for _, event := range events {
		types = append(types, event.EventType)
	}

	return types
}
