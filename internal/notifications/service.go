package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
)

const userAgent = "Instrumental-Go/0.1.0"

// Event identifies a pipeline milestone that can be published to subscribers.
type Event string

const (
	// EventJobCompleted fires after a job's instrumental landed in the library.
	EventJobCompleted Event = "job_completed"
	// EventJobFailed fires when a job exhausts its retries.
	EventJobFailed Event = "job_failed"
	// EventQueueDrained fires when the queue empties after processing work.
	EventQueueDrained Event = "queue_drained"
	// EventTest exercises the delivery path on demand.
	EventTest Event = "test"
)

// Payload carries event-specific fields used to compose the outgoing message.
// Composition tolerates missing keys so callers only set what they know.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventJobCompleted: cfg.Notifications.JobComplete,
			EventJobFailed:    cfg.Notifications.JobFailed,
			EventQueueDrained: cfg.Notifications.QueueEmpty,
			EventTest:         true,
		},
	}
}

// message is a composed ntfy request: body plus the header-carried metadata.
type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if !n.enabled[event] {
		return nil
	}
	data, ok := compose(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func compose(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobCompleted:
		item := stringField(payload, "item")
		if item == "" {
			item = "queue item"
		}
		body := fmt.Sprintf("✅ Instrumental ready: %s", item)
		if finalFile := stringField(payload, "finalFile"); finalFile != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, finalFile)
		}
		return message{
			title: "Instrumental - Job Complete",
			body:  body,
			tags:  []string{"instrumental", "job", "completed"},
		}, true
	case EventJobFailed:
		var builder strings.Builder
		builder.WriteString("❌ Job failed")
		if item := stringField(payload, "item"); item != "" {
			builder.WriteString(": ")
			builder.WriteString(item)
		}
		if errText := stringField(payload, "error"); errText != "" {
			builder.WriteString("\n")
			builder.WriteString(errText)
		}
		return message{
			title:    "Instrumental - Job Failed",
			body:     builder.String(),
			tags:     []string{"instrumental", "job", "failed"},
			priority: "high",
		}, true
	case EventQueueDrained:
		processed := intField(payload, "processed")
		failed := intField(payload, "failed")
		duration := durationField(payload, "duration").Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		durationText := duration.String()
		if duration == 0 {
			durationText = "0s"
		}

		if failed == 0 {
			return message{
				title: "Instrumental - Queue Empty",
				body:  fmt.Sprintf("Queue drained: %d jobs completed in %s", processed, durationText),
				tags:  []string{"instrumental", "queue", "drained"},
			}, true
		}
		return message{
			title: "Instrumental - Queue Empty (with errors)",
			body:  fmt.Sprintf("Queue drained: %d completed, %d failed in %s", processed, failed, durationText),
			tags:  []string{"instrumental", "queue", "drained"},
		}, true
	case EventTest:
		return message{
			title:    "Instrumental - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"instrumental", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func stringField(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch value := payload[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case error:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(value.Error())
	case fmt.Stringer:
		return strings.TrimSpace(value.String())
	}
	return ""
}

func intField(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	if value, ok := payload[key].(int); ok {
		return value
	}
	return 0
}

func durationField(payload Payload, key string) time.Duration {
	if payload == nil {
		return 0
	}
	if value, ok := payload[key].(time.Duration); ok {
		return value
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
