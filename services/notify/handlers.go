package notify

import (
	"context"
	"encoding/json"
	"time"

	pkgasynq "licensecore/pkg/asynq"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterHandlers binds the notification task types onto the asynq
// mux. Actual email/whatsapp transports live outside this service; the
// handlers log the dispatch so deliveries are traceable.
func RegisterHandlers(mux *asynq.ServeMux, db *gorm.DB) {
	h := &handlers{db: db}

	mux.HandleFunc(pkgasynq.TaskLicenseDelivery, handleLicenseDelivery)
	mux.HandleFunc(pkgasynq.TaskWarrantyDecision, handleWarrantyDecision)
	mux.HandleFunc(pkgasynq.TaskReplacementDecision, handleReplacementDecision)
	mux.HandleFunc(pkgasynq.TaskResubmissionReminder, h.handleResubmissionReminder)
}

type handlers struct {
	db *gorm.DB
}

func handleLicenseDelivery(ctx context.Context, t *asynq.Task) error {
	var p pkgasynq.LicenseDeliveryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Info("dispatching license delivery notification",
		zap.String("order_id", p.OrderID),
		zap.String("email", p.Email),
		zap.Int("keys", len(p.LicenseKeys)),
	)
	return nil
}

func handleWarrantyDecision(ctx context.Context, t *asynq.Task) error {
	var p pkgasynq.WarrantyDecisionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Info("dispatching warranty decision notification",
		zap.String("warranty_id", p.WarrantyID),
		zap.String("order_id", p.OrderID),
		zap.String("status", p.Status),
	)
	return nil
}

// handleResubmissionReminder fires a day after a resubmission request.
// The conditional update on the warranty table (addressed by name to
// keep this package free of a warranty import) bumps reminder_count
// only while the registration still needs resubmission; a registration
// resolved in the meantime skips the reminder.
func (h *handlers) handleResubmissionReminder(ctx context.Context, t *asynq.Task) error {
	var p pkgasynq.ResubmissionReminderPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	res := h.db.WithContext(ctx).Table("warranty_registrations").
		Where("id = ? AND status = ?", p.WarrantyID, "NEEDS_RESUBMISSION").
		Updates(map[string]any{
			"reminder_count": gorm.Expr("reminder_count + 1"),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		zap.L().Info("resubmission already resolved, skipping reminder",
			zap.String("warranty_id", p.WarrantyID))
		return nil
	}

	zap.L().Info("dispatching resubmission reminder",
		zap.String("warranty_id", p.WarrantyID),
		zap.String("order_id", p.OrderID),
		zap.String("email", p.Email),
	)
	return nil
}

func handleReplacementDecision(ctx context.Context, t *asynq.Task) error {
	var p pkgasynq.ReplacementDecisionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Info("dispatching replacement decision notification",
		zap.String("request_id", p.RequestID),
		zap.String("order_id", p.OrderID),
		zap.String("status", p.Status),
	)
	return nil
}
