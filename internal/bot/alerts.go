package bot

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"trade-coach/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// RiskAlertDispatcher pushes a summary to subscribed chats whenever a
// coaching run completes with a risk score at or above the threshold.
type RiskAlertDispatcher struct {
	sender    messageSender
	threshold int

	mu          sync.RWMutex
	subscribers map[int64]struct{}
}

func NewRiskAlertDispatcher(sender messageSender, threshold int) *RiskAlertDispatcher {
	return &RiskAlertDispatcher{
		sender:      sender,
		threshold:   threshold,
		subscribers: make(map[int64]struct{}),
	}
}

func (d *RiskAlertDispatcher) Subscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; exists {
		return false
	}
	d.subscribers[chatID] = struct{}{}
	return true
}

func (d *RiskAlertDispatcher) Unsubscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; !exists {
		return false
	}
	delete(d.subscribers, chatID)
	return true
}

func (d *RiskAlertDispatcher) IsSubscribed(chatID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.subscribers[chatID]
	return exists
}

func (d *RiskAlertDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// WorkflowCompleted broadcasts high-risk results to every subscriber.
// Send failures are logged so one bad chat never blocks the rest.
func (d *RiskAlertDispatcher) WorkflowCompleted(result domain.CoachingResult) {
	if d == nil || d.sender == nil {
		return
	}
	if result.RiskScore < d.threshold {
		return
	}

	chatIDs := d.snapshotSubscribers()
	if len(chatIDs) == 0 {
		return
	}

	msg := formatRiskAlert(result)
	for _, chatID := range chatIDs {
		if _, err := d.sender.Send(&tele.Chat{ID: chatID}, msg); err != nil {
			log.Printf("failed to send risk alert to chat %d: %v", chatID, err)
		}
	}
}

func (d *RiskAlertDispatcher) snapshotSubscribers() []int64 {
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

func formatRiskAlert(result domain.CoachingResult) string {
	lines := []string{
		fmt.Sprintf("High risk score alert: %d/100", result.RiskScore),
		result.Patterns.OverLeverage.Message,
		result.Patterns.TiltRevenge.Message,
		"",
		"Run /coach for fresh advice.",
	}
	return strings.Join(lines, "\n")
}
