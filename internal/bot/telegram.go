package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"trade-coach/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type WorkflowRunner interface {
	Start(ctx context.Context) (string, error)
	Status(ctx context.Context, id string) *domain.WorkflowRun
	LatestResult(ctx context.Context) (*domain.CoachingResult, error)
}

func StartTelegramBot(workflowService WorkflowRunner, riskThreshold int) *RiskAlertDispatcher {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewRiskAlertDispatcher(b, riskThreshold)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/coach", func(c tele.Context) error {
		if workflowService == nil {
			return c.Send("Coaching service unavailable")
		}
		id, err := workflowService.Start(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error starting coaching run: %v", err))
		}
		return c.Send(fmt.Sprintf("Coaching run started.\nCheck progress with /status %s", id))
	})

	b.Handle("/status", func(c tele.Context) error {
		if workflowService == nil {
			return c.Send("Coaching service unavailable")
		}
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /status <workflow-id>")
		}
		id := strings.TrimSpace(args[0])
		run := workflowService.Status(context.Background(), id)
		if run == nil {
			return c.Send(fmt.Sprintf("No workflow found with ID: %s", id))
		}
		return c.Send(formatRunStatus(run))
	})

	b.Handle("/latest", func(c tele.Context) error {
		if workflowService == nil {
			return c.Send("Coaching service unavailable")
		}
		result, err := workflowService.LatestResult(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching latest coaching: %v", err))
		}
		if result == nil {
			return c.Send("No coaching result available yet. Run /coach first.")
		}
		return c.Send(formatCoachingResult(result))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("High-risk alerts enabled for this chat.")
			}
			return c.Send("High-risk alerts are already enabled for this chat.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("High-risk alerts disabled for this chat.")
			}
			return c.Send("High-risk alerts are already disabled for this chat.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts status: ON")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	log.Println("Telegram bot started")
	go b.Start()
	return alerts
}

func formatRunStatus(run *domain.WorkflowRun) string {
	switch run.Status {
	case domain.WorkflowCompleted:
		if run.Result != nil {
			return formatCoachingResult(run.Result)
		}
		return "Workflow completed."
	case domain.WorkflowFailed:
		return fmt.Sprintf("Workflow failed at %s: %s", run.FailedStep, run.Error)
	default:
		return "Workflow still running. Check again in a moment."
	}
}

func formatCoachingResult(result *domain.CoachingResult) string {
	text := result.Coaching
	if len(text) > 4000 {
		text = text[:4000] + "\n\n[truncated]"
	}
	return fmt.Sprintf("Risk score: %d/100\n\n%s", result.RiskScore, text)
}
