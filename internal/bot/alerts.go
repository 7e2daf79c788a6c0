package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"time-to-sell/internal/session"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AlertDispatcher broadcasts committed label changes of the primary target to
// subscribed chats.
type AlertDispatcher struct {
	sender messageSender
	log    zerolog.Logger

	mu          sync.RWMutex
	subscribers map[int64]struct{}
}

func NewAlertDispatcher(sender messageSender, logger zerolog.Logger) *AlertDispatcher {
	return &AlertDispatcher{
		sender:      sender,
		log:         logger,
		subscribers: make(map[int64]struct{}),
	}
}

func (d *AlertDispatcher) Subscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; exists {
		return false
	}
	d.subscribers[chatID] = struct{}{}
	return true
}

func (d *AlertDispatcher) Unsubscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; !exists {
		return false
	}
	delete(d.subscribers, chatID)
	return true
}

func (d *AlertDispatcher) IsSubscribed(chatID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.subscribers[chatID]
	return exists
}

func (d *AlertDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// Watch forwards label-change events until ctx is done or events is closed.
func (d *AlertDispatcher) Watch(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != session.EventLabelChanged {
				continue
			}
			if err := d.NotifyLabelChange(ctx, ev); err != nil {
				d.log.Warn().Err(err).Str("target", string(ev.Target)).Msg("label alert delivery failed")
			}
		}
	}
}

func (d *AlertDispatcher) NotifyLabelChange(ctx context.Context, ev session.Event) error {
	_ = ctx
	if d == nil || d.sender == nil || ev.Kind != session.EventLabelChanged {
		return nil
	}

	chatIDs := d.snapshotSubscribers()
	if len(chatIDs) == 0 {
		return nil
	}

	msg := formatAlertMessage(ev)
	var failures []string
	for _, chatID := range chatIDs {
		if _, err := d.sender.Send(&tele.Chat{ID: chatID}, msg); err != nil {
			failures = append(failures, fmt.Sprintf("chat %d: %v", chatID, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("failed sending %d alerts: %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}

func (d *AlertDispatcher) snapshotSubscribers() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	chatIDs := make([]int64, 0, len(d.subscribers))
	for chatID := range d.subscribers {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })
	return chatIDs
}

func parseAlertMode(args []string) (string, error) {
	if len(args) == 0 {
		return "status", nil
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "on":
		return "on", nil
	case "off":
		return "off", nil
	case "status":
		return "status", nil
	default:
		return "", fmt.Errorf("invalid mode")
	}
}

func formatAlertMessage(ev session.Event) string {
	lines := []string{
		fmt.Sprintf("Sell-timing alert: %s", ev.Target.DisplayName()),
		fmt.Sprintf("Label: %s -> %s", labelOrDash(ev.PrevLabel), labelOrDash(ev.Label)),
	}
	if resp := ev.State.Response; resp != nil {
		lines = append(lines, fmt.Sprintf("Total score: %.1f", resp.Scores.Total))
	}
	return strings.Join(lines, "\n")
}

func labelOrDash(label string) string {
	if strings.TrimSpace(label) == "" {
		return "-"
	}
	return label
}
