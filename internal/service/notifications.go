package service

import (
	"context"

	"SafeYatra/internal/models"
	"SafeYatra/internal/store"
	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/util"
	"SafeYatra/pkg/validator"

	"github.com/google/uuid"
)

// NotificationService serves a user's own notifications. Reads and writes
// are always scoped to the caller.
type NotificationService struct {
	store   store.Store
	signals *util.Signals
}

func NewNotificationService(s store.Store, signals *util.Signals) *NotificationService {
	return &NotificationService{store: s, signals: signals}
}

type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unreadCount"`
	Pagination    Pagination            `json:"pagination"`
}

func (n *NotificationService) List(ctx context.Context, actor models.Identity, f store.NotificationFilter) (*NotificationPage, error) {
	f.UserID = actor.UserID
	items, total, err := n.store.ListNotifications(ctx, f)
	if err != nil {
		return nil, err
	}
	unread, err := n.store.CountUnread(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{
		Notifications: items,
		UnreadCount:   unread,
		Pagination:    NewPagination(f.Page, f.Limit, total),
	}, nil
}

// Since returns notifications created strictly after ts, oldest first, for
// clients catching up after a reconnect.
func (n *NotificationService) Since(ctx context.Context, actor models.Identity, ts models.Timestamp, limit int) ([]models.Notification, error) {
	if ts.IsZero() {
		return nil, apperrors.Validation("since is required")
	}
	items, _, err := n.store.ListNotifications(ctx, store.NotificationFilter{UserID: actor.UserID, Since: &ts, Page: 1, Limit: limit})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (n *NotificationService) UnreadCount(ctx context.Context, actor models.Identity) (int64, error) {
	return n.store.CountUnread(ctx, actor.UserID)
}

func (n *NotificationService) MarkRead(ctx context.Context, actor models.Identity, id string) (*models.Notification, error) {
	return n.store.MarkNotificationRead(ctx, actor.UserID, id)
}

func (n *NotificationService) MarkAllRead(ctx context.Context, actor models.Identity) (int64, error) {
	return n.store.MarkAllNotificationsRead(ctx, actor.UserID)
}

func (n *NotificationService) Delete(ctx context.Context, actor models.Identity, id string) error {
	return n.store.DeleteNotification(ctx, actor.UserID, id)
}

func (n *NotificationService) Clear(ctx context.Context, actor models.Identity) (int64, error) {
	return n.store.ClearNotifications(ctx, actor.UserID)
}

// NotificationInput is the body of a manual notification.
type NotificationInput struct {
	Title         string `json:"title" validate:"required,max=255"`
	Message       string `json:"message" validate:"required"`
	Type          string `json:"type" validate:"omitempty,oneof=info warning alert"`
	ReferenceID   string `json:"referenceId"`
	ReferenceType string `json:"referenceType"`
	TargetUserID  string `json:"targetUserId"`
}

// Create persists a notification and pushes it. Only authorities may target
// another user.
func (n *NotificationService) Create(ctx context.Context, actor models.Identity, in NotificationInput) (*models.Notification, error) {
	if err := validator.ValidateStruct(in); err != nil {
		return nil, err
	}
	target := in.TargetUserID
	if target == "" {
		target = actor.UserID
	}
	if target != actor.UserID {
		if err := requireAuthority(actor, "notify other users"); err != nil {
			return nil, err
		}
	}
	typ := models.NotificationType(in.Type)
	if typ == "" {
		typ = models.NotificationInfo
	}
	note := &models.Notification{
		ID:            uuid.NewString(),
		UserID:        target,
		Title:         in.Title,
		Message:       in.Message,
		Type:          typ,
		ReferenceID:   in.ReferenceID,
		ReferenceType: in.ReferenceType,
	}
	if err := n.store.CreateNotification(ctx, note); err != nil {
		return nil, err
	}
	n.signals.Emit(models.SigNotificationCreated, note)
	return note, nil
}
