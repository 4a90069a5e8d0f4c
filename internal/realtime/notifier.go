package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_market/internal/logger"
	goredis "github.com/redis/go-redis/v9"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a short user-facing message (a toast).
type Notification struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier is the notification sink. Delivery is fire-and-forget: failures
// are logged and never reach the caller.
type Notifier struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewNotifier(rdb *goredis.Client, log *logger.Logger) *Notifier {
	return &Notifier{
		log: log.With("component", "notifier"),
		rdb: rdb,
	}
}

func NotificationChannel(sessionID string) string {
	return fmt.Sprintf("notifications:%s", sessionID)
}

func (n *Notifier) Success(ctx context.Context, sessionID, msg string) {
	n.send(ctx, sessionID, LevelSuccess, msg)
}

func (n *Notifier) Warning(ctx context.Context, sessionID, msg string) {
	n.send(ctx, sessionID, LevelWarning, msg)
}

func (n *Notifier) Error(ctx context.Context, sessionID, msg string) {
	n.send(ctx, sessionID, LevelError, msg)
}

func (n *Notifier) send(ctx context.Context, sessionID string, level Level, msg string) {
	raw, err := json.Marshal(Notification{Level: level, Message: msg, CreatedAt: time.Now().UTC()})
	if err != nil {
		n.log.Warn("marshal notification failed", "error", err)
		return
	}
	if err := n.rdb.Publish(ctx, NotificationChannel(sessionID), raw).Err(); err != nil {
		n.log.Warn("publish notification failed", "session_id", sessionID, "level", level, "error", err)
	}
}
