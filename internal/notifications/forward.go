package notifications

import (
	"context"
	"log/slog"

	"squash/internal/events"
	"squash/internal/logging"
)

// Outcome classifies a finished job for routing.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

// Lookup resolves a finished job's summary. ok is false when the job is no
// longer known, in which case no notification is sent.
type Lookup func(jobID string) (summary Summary, outcome Outcome, ok bool)

// Forward reads completion events from sub and sends one notification per
// finished job until ctx ends or the subscription closes. Delivery failures
// are logged and never stop the loop.
func Forward(ctx context.Context, sub *events.Subscription, lookup Lookup, svc Service, logger *slog.Logger) {
	if sub == nil || svc == nil || lookup == nil {
		return
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			if evt.Type != events.TypeCompleted || evt.Completion == nil {
				continue
			}
			summary, outcome, found := lookup(evt.Completion.JobID)
			if !found {
				continue
			}
			if summary.Error == "" {
				summary.Error = evt.Completion.Error
			}
			var err error
			switch outcome {
			case OutcomeCompleted:
				err = svc.NotifyJobCompleted(ctx, summary)
			case OutcomeCancelled:
				err = svc.NotifyJobCancelled(ctx, summary)
			default:
				err = svc.NotifyJobFailed(ctx, summary)
			}
			if err != nil {
				logging.WarnWithContext(logger, "notification delivery failed", "notification_failed",
					logging.JobID(summary.JobID),
					logging.String(logging.FieldImpact, "job outcome was not pushed"),
					logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
					logging.Error(err),
				)
			}
		}
	}
}
