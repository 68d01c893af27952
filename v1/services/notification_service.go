package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/parpass/parpass-backend/shared/monitoring"
	"github.com/parpass/parpass-backend/v1/models"
	"gorm.io/gorm"
)

// defaultChunkTimeout bounds each push-gateway call during dispatch
const defaultChunkTimeout = 15 * time.Second

// NotificationService dispatches push notifications and maintains the batch
// log and per-member delivery records
type NotificationService struct {
	db           *gorm.DB
	targeting    *TargetingService
	channel      PushChannel
	chunkTimeout time.Duration
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB, targeting *TargetingService, channel PushChannel) *NotificationService {
	return &NotificationService{
		db:           db,
		targeting:    targeting,
		channel:      channel,
		chunkTimeout: defaultChunkTimeout,
	}
}

// Broadcast sends to every reachable member
func (s *NotificationService) Broadcast(ctx context.Context, req *models.BroadcastRequest) (*models.DispatchResponse, error) {
	if req.Title == "" || req.Body == "" {
		return nil, &ValidationError{Message: "title and body are required"}
	}
	recipients, err := s.targeting.ResolveRecipients(nil)
	if err != nil {
		return nil, err
	}
	return s.Dispatch(ctx, models.NotificationTypeBroadcast, req.Title, req.Body, nil, req.Data, recipients)
}

// Targeted sends to the members matching the request criteria
func (s *NotificationService) Targeted(ctx context.Context, req *models.TargetedRequest) (*models.DispatchResponse, error) {
	if req.Title == "" || req.Body == "" {
		return nil, &ValidationError{Message: "title and body are required"}
	}
	recipients, err := s.targeting.ResolveRecipients(req.Criteria)
	if err != nil {
		return nil, err
	}
	return s.Dispatch(ctx, models.NotificationTypeTargeted, req.Title, req.Body, req.Criteria, req.Data, recipients)
}

// SendToMember sends to a single member. The member must exist; a member
// without an enabled push token yields an empty dispatch, not an error.
func (s *NotificationService) SendToMember(ctx context.Context, memberID string, req *models.BroadcastRequest) (*models.DispatchResponse, error) {
	if req.Title == "" || req.Body == "" {
		return nil, &ValidationError{Message: "title and body are required"}
	}

	var member models.Member
	if err := s.db.First(&member, "member_id = ?", memberID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "member", ID: memberID}
		}
		return nil, fmt.Errorf("failed to load member: %w", err)
	}

	var recipients []Recipient
	var pref models.MemberPreference
	err := s.db.First(&pref, "member_id = ?", memberID).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if err == nil && pref.NotificationsEnabled && pref.PushToken != nil && *pref.PushToken != "" {
		recipients = append(recipients, Recipient{MemberID: memberID, PushToken: *pref.PushToken})
	}

	return s.Dispatch(ctx, models.NotificationTypeIndividual, req.Title, req.Body, nil, req.Data, recipients)
}

// Dispatch records a pending batch, pushes to every recipient in chunks, and
// finalizes the batch exactly once with per-recipient delivery rows. A
// failing gateway call degrades its chunk to failed rows; it never aborts
// the batch. Store failures do abort.
func (s *NotificationService) Dispatch(ctx context.Context, kind models.NotificationType, title, body string, criteria *models.Criteria, data map[string]interface{}, recipients []Recipient) (*models.DispatchResponse, error) {
	log := models.NotificationLog{
		NotificationID: "ntf_" + uuid.New().String(),
		Type:           kind,
		Title:          title,
		Body:           body,
		Criteria:       models.CriteriaJSON{Criteria: criteria},
		RecipientCount: len(recipients),
		Status:         models.BatchStatusPending,
	}
	if err := s.db.Create(&log).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification log: %w", err)
	}

	// Split out recipients whose stored token cannot be a valid device token
	var valid []Recipient
	var rows []models.MemberNotification
	for _, r := range recipients {
		if IsValidPushToken(r.PushToken) {
			valid = append(valid, r)
			continue
		}
		rows = append(rows, s.deliveryRow(&log, r.MemberID, models.DeliveryStatusFailed, strPtr("invalid_token")))
	}

	for start := 0; start < len(valid); start += PushChunkSize {
		end := start + PushChunkSize
		if end > len(valid) {
			end = len(valid)
		}
		chunk := valid[start:end]

		messages := make([]PushMessage, len(chunk))
		for i, r := range chunk {
			messages[i] = PushMessage{To: r.PushToken, Title: title, Body: body, Sound: "default", Data: data}
		}

		chunkCtx, cancel := context.WithTimeout(ctx, s.chunkTimeout)
		tickets, err := s.channel.Send(chunkCtx, messages)
		cancel()

		if err != nil {
			slog.Error("Push chunk failed", "notificationID", log.NotificationID, "chunkSize", len(chunk), "error", err)
			msg := err.Error()
			for _, r := range chunk {
				rows = append(rows, s.deliveryRow(&log, r.MemberID, models.DeliveryStatusFailed, &msg))
			}
			continue
		}

		for i, r := range chunk {
			if tickets[i].Status == "ok" {
				rows = append(rows, s.deliveryRow(&log, r.MemberID, models.DeliveryStatusSent, nil))
			} else {
				msg := tickets[i].Message
				if msg == "" {
					msg = tickets[i].Status
				}
				rows = append(rows, s.deliveryRow(&log, r.MemberID, models.DeliveryStatusFailed, &msg))
			}
		}
	}

	sent, failed := 0, 0
	for _, row := range rows {
		if row.Status == models.DeliveryStatusSent {
			sent++
		} else {
			failed++
		}
	}

	// Any failure in a multi-recipient batch is partial delivery; the failed
	// status is reserved for a single recipient whose one send was rejected
	status := models.BatchStatusSent
	if failed > 0 {
		if sent == 0 && len(recipients) == 1 {
			status = models.BatchStatusFailed
		} else {
			status = models.BatchStatusPartial
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to create delivery records: %w", err)
			}
		}
		updates := map[string]interface{}{
			"recipient_count": sent + failed,
			"sent_count":      sent,
			"failed_count":    failed,
			"status":          status,
		}
		if err := tx.Model(&models.NotificationLog{}).
			Where("notification_id = ?", log.NotificationID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to finalize notification log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordBusinessEvent("notification_dispatch", string(status))
	slog.Info("Notification dispatched", "notificationID", log.NotificationID,
		"type", kind, "sent", sent, "failed", failed, "status", status)
	return &models.DispatchResponse{Success: failed == 0, Sent: sent, Failed: failed}, nil
}

func (s *NotificationService) deliveryRow(log *models.NotificationLog, memberID string, status models.DeliveryStatus, errMsg *string) models.MemberNotification {
	return models.MemberNotification{
		MemberNotificationID: "mn_" + uuid.New().String(),
		NotificationID:       log.NotificationID,
		MemberID:             memberID,
		Title:                log.Title,
		Body:                 log.Body,
		Status:               status,
		Error:                errMsg,
	}
}

func strPtr(s string) *string {
	return &s
}

// History lists recent batches, newest first
func (s *NotificationService) History(limit int, typeFilter *models.NotificationType) ([]models.NotificationLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.Order("created_at DESC").Limit(limit)
	if typeFilter != nil {
		q = q.Where("type = ?", *typeFilter)
	}
	var logs []models.NotificationLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to load notification history: %w", err)
	}
	return logs, nil
}

// Stats aggregates the batch log
func (s *NotificationService) Stats() (*models.NotificationStats, error) {
	var stats models.NotificationStats
	now := time.Now()

	type totals struct {
		Count  int64
		Sent   int64
		Failed int64
	}
	var t totals
	err := s.db.Model(&models.NotificationLog{}).
		Select("COUNT(*) as count, COALESCE(SUM(sent_count), 0) as sent, COALESCE(SUM(failed_count), 0) as failed").
		Scan(&t).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate notification log: %w", err)
	}
	stats.TotalNotifications = t.Count
	stats.TotalSent = t.Sent
	stats.TotalFailed = t.Failed

	countByType := func(kind models.NotificationType) (int64, error) {
		var n int64
		err := s.db.Model(&models.NotificationLog{}).Where("type = ?", kind).Count(&n).Error
		return n, err
	}
	if stats.BroadcastCount, err = countByType(models.NotificationTypeBroadcast); err != nil {
		return nil, fmt.Errorf("failed to count broadcasts: %w", err)
	}
	if stats.TargetedCount, err = countByType(models.NotificationTypeTargeted); err != nil {
		return nil, fmt.Errorf("failed to count targeted: %w", err)
	}
	if stats.IndividualCount, err = countByType(models.NotificationTypeIndividual); err != nil {
		return nil, fmt.Errorf("failed to count individual: %w", err)
	}

	countSince := func(d time.Duration) (int64, error) {
		var n int64
		err := s.db.Model(&models.NotificationLog{}).Where("created_at >= ?", now.Add(-d)).Count(&n).Error
		return n, err
	}
	if stats.Last7Days, err = countSince(7 * 24 * time.Hour); err != nil {
		return nil, fmt.Errorf("failed to count last 7 days: %w", err)
	}
	if stats.Last30Days, err = countSince(30 * 24 * time.Hour); err != nil {
		return nil, fmt.Errorf("failed to count last 30 days: %w", err)
	}

	return &stats, nil
}

// Inbox lists a member's delivery records, newest first
func (s *NotificationService) Inbox(memberID string, limit int) ([]models.MemberNotification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.MemberNotification
	err := s.db.Where("member_id = ?", memberID).
		Order("created_at DESC").Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load inbox: %w", err)
	}
	return rows, nil
}

// UnreadCount counts a member's successfully delivered but unread records
func (s *NotificationService) UnreadCount(memberID string) (int64, error) {
	var count int64
	err := s.db.Model(&models.MemberNotification{}).
		Where("member_id = ? AND status = ?", memberID, models.DeliveryStatusSent).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return count, nil
}

// MarkRead transitions one delivery record from sent to read
func (s *NotificationService) MarkRead(memberNotificationID string) error {
	now := time.Now()
	result := s.db.Model(&models.MemberNotification{}).
		Where("member_notification_id = ? AND status = ?", memberNotificationID, models.DeliveryStatusSent).
		Updates(map[string]interface{}{"status": models.DeliveryStatusRead, "read_at": now})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var existing models.MemberNotification
		if err := s.db.First(&existing, "member_notification_id = ?", memberNotificationID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "notification", ID: memberNotificationID}
			}
			return fmt.Errorf("failed to load notification: %w", err)
		}
		// Already read or failed; mark-read is idempotent for read rows
	}
	return nil
}
