package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"squash/internal/config"
)

const userAgent = "squash/0.1.0"

// Summary describes a finished job for a notification.
type Summary struct {
	JobID          string
	InputPath      string
	OutputPath     string
	OriginalSize   int64
	CompressedSize int64
	Ratio          float64
	Elapsed        time.Duration
	Error          string
}

// Service defines the notification surface used by the daemon and the CLI.
type Service interface {
	NotifyJobCompleted(ctx context.Context, job Summary) error
	NotifyJobFailed(ctx context.Context, job Summary) error
	NotifyJobCancelled(ctx context.Context, job Summary) error
	NotifyBatchCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		failed:    cfg.Notifications.Failed,
		cancelled: cfg.Notifications.Cancelled,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client

	completed bool
	failed    bool
	cancelled bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job Summary) error {
	if !n.completed {
		return nil
	}
	message := fmt.Sprintf("✅ Compressed %s: %s → %s",
		displayName(job.InputPath),
		humanize.Bytes(uint64(max(job.OriginalSize, 0))),
		humanize.Bytes(uint64(max(job.CompressedSize, 0))),
	)
	if job.Ratio > 0 {
		message += fmt.Sprintf(" (%.0f%%)", job.Ratio*100)
	}
	if job.Elapsed > 0 {
		message += fmt.Sprintf(" in %s", job.Elapsed.Round(time.Second))
	}
	if out := strings.TrimSpace(job.OutputPath); out != "" {
		message += "\nFile: " + out
	}
	data := payload{
		title:   "Squash - Complete",
		message: message,
		tags:    []string{"squash", "job", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job Summary) error {
	if !n.failed {
		return nil
	}
	reason := firstLine(job.Error)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Squash - Failed",
		message:  fmt.Sprintf("❌ Failed %s: %s", displayName(job.InputPath), reason),
		tags:     []string{"squash", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCancelled(ctx context.Context, job Summary) error {
	if !n.cancelled {
		return nil
	}
	data := payload{
		title:   "Squash - Cancelled",
		message: fmt.Sprintf("Cancelled %s", displayName(job.InputPath)),
		tags:    []string{"squash", "job", "cancelled"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	duration = max(duration.Round(time.Second), 0)

	var title, message string
	if failed == 0 {
		title = "Squash - Batch Complete"
		message = fmt.Sprintf("Batch complete: %d files compressed in %s", processed, duration)
	} else {
		title = "Squash - Batch Complete (with errors)"
		message = fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", processed, failed, duration)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"squash", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Squash - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"squash", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func displayName(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "unknown file"
	}
	return filepath.Base(path)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, Summary) error                   { return nil }
func (noopService) NotifyJobFailed(context.Context, Summary) error                      { return nil }
func (noopService) NotifyJobCancelled(context.Context, Summary) error                   { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
