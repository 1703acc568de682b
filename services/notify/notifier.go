package notify

import (
	"context"
	"encoding/json"
	"time"

	pkgasynq "licensecore/pkg/asynq"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// reminderDelay is how long a customer gets to resubmit proofs before
// the reminder fires.
const reminderDelay = 24 * time.Hour

// Notifier dispatches customer-facing messages. Implementations must
// be fire-and-forget: a delivery problem is logged, never returned to
// the business flow that triggered it.
type Notifier interface {
	LicenseDelivered(ctx context.Context, p pkgasynq.LicenseDeliveryPayload)
	WarrantyDecided(ctx context.Context, p pkgasynq.WarrantyDecisionPayload)
	ReplacementDecided(ctx context.Context, p pkgasynq.ReplacementDecisionPayload)
	RemindResubmission(ctx context.Context, p pkgasynq.ResubmissionReminderPayload)
}

type queueNotifier struct {
	client *asynq.Client
}

func NewQueueNotifier(client *asynq.Client) Notifier {
	return &queueNotifier{client: client}
}

func (n *queueNotifier) enqueue(taskType string, payload any, opts ...asynq.Option) {
	b, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("failed to marshal notification payload", zap.String("task_type", taskType), zap.Error(err))
		return
	}

	if len(opts) == 0 {
		opts = []asynq.Option{asynq.Queue("default")}
	}
	if _, err := n.client.Enqueue(asynq.NewTask(taskType, b), opts...); err != nil {
		zap.L().Error("failed to enqueue notification", zap.String("task_type", taskType), zap.Error(err))
	}
}

func (n *queueNotifier) LicenseDelivered(ctx context.Context, p pkgasynq.LicenseDeliveryPayload) {
	n.enqueue(pkgasynq.TaskLicenseDelivery, p)
}

func (n *queueNotifier) WarrantyDecided(ctx context.Context, p pkgasynq.WarrantyDecisionPayload) {
	n.enqueue(pkgasynq.TaskWarrantyDecision, p)
}

func (n *queueNotifier) ReplacementDecided(ctx context.Context, p pkgasynq.ReplacementDecisionPayload) {
	n.enqueue(pkgasynq.TaskReplacementDecision, p)
}

func (n *queueNotifier) RemindResubmission(ctx context.Context, p pkgasynq.ResubmissionReminderPayload) {
	n.enqueue(pkgasynq.TaskResubmissionReminder, p,
		asynq.Queue("low"), asynq.ProcessIn(reminderDelay))
}

// Nop is used in tests and in deployments without a queue.
type Nop struct{}

func (Nop) LicenseDelivered(ctx context.Context, p pkgasynq.LicenseDeliveryPayload)        {}
func (Nop) WarrantyDecided(ctx context.Context, p pkgasynq.WarrantyDecisionPayload)        {}
func (Nop) ReplacementDecided(ctx context.Context, p pkgasynq.ReplacementDecisionPayload)  {}
func (Nop) RemindResubmission(ctx context.Context, p pkgasynq.ResubmissionReminderPayload) {}
