package service

import (
	"context"
	"fmt"
	"math"

	"SafeYatra/internal/models"
	"SafeYatra/internal/store"
	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/logger"
	"SafeYatra/pkg/util"
	"SafeYatra/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SOSUpdateTitle = "🆘 SOS Update"
	myAlertsLimit  = 10
)

// SOSInput is the body of an SOS trigger.
type SOSInput struct {
	Latitude    *float64 `json:"latitude" validate:"required,lat"`
	Longitude   *float64 `json:"longitude" validate:"required,lng"`
	AlertType   string   `json:"alertType" validate:"omitempty,max=32"`
	Description string   `json:"description"`
	PlaceName   string   `json:"placeName"`
}

// StatusInput is the body of a status update.
type StatusInput struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// AlertView is an alert joined with the names of the people involved.
type AlertView struct {
	models.SOSAlert
	TouristName           string `json:"touristName,omitempty"`
	TouristPhone          string `json:"touristPhone,omitempty"`
	TouristEmail          string `json:"touristEmail,omitempty"`
	AssignedAuthorityName string `json:"assignedAuthorityName,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

// ActiveCounts summarises alerts still awaiting resolution.
type ActiveCounts struct {
	Active       int64 `json:"active"`
	Acknowledged int64 `json:"acknowledged"`
	Responding   int64 `json:"responding"`
	Total        int64 `json:"total"`
}

// SOSService is the SOS Lifecycle Manager. Every status change is checked
// against the transition table and committed together with the creator's
// notification.
type SOSService struct {
	store   store.Store
	signals *util.Signals
}

func NewSOSService(s store.Store, signals *util.Signals) *SOSService {
	return &SOSService{store: s, signals: signals}
}

// Create opens a new alert in state active.
func (s *SOSService) Create(ctx context.Context, actor models.Identity, in SOSInput) (*models.SOSAlert, error) {
	if err := validator.ValidateStruct(in); err != nil {
		return nil, err
	}
	alertType := in.AlertType
	if alertType == "" {
		alertType = models.DefaultAlertType
	}
	alert := &models.SOSAlert{
		ID:          uuid.NewString(),
		UserID:      actor.UserID,
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		PlaceName:   in.PlaceName,
		AlertType:   alertType,
		Status:      models.SOSActive,
		Description: in.Description,
	}
	if err := s.store.CreateAlert(ctx, alert); err != nil {
		logger.Error("create sos failed", zap.String("userId", actor.UserID), zap.Error(err))
		return nil, err
	}

	creator, err := s.store.GetUser(ctx, actor.UserID)
	if err != nil {
		if !apperrors.IsKind(err, apperrors.KindNotFound) {
			logger.Warn("sos creator lookup failed", zap.String("userId", actor.UserID), zap.Error(err))
		}
		creator = &models.User{ID: actor.UserID, Name: actor.Name, Role: actor.Role}
	}

	where := alert.PlaceName
	if where == "" {
		where = fmt.Sprintf("%.6f,%.6f", alert.Latitude, alert.Longitude)
	}
	logger.Warn("new sos alert",
		zap.String("alertId", alert.ID),
		zap.String("type", alert.AlertType),
		zap.String("from", creator.Name),
		zap.String("at", where))
	s.signals.Emit(models.SigSOSCreated, alert, creator)
	return alert, nil
}

// UpdateStatus moves an alert to status on behalf of an authority.
func (s *SOSService) UpdateStatus(ctx context.Context, actor models.Identity, alertID string, in StatusInput) (*models.SOSAlert, error) {
	if err := requireAuthority(actor, "update alert status"); err != nil {
		return nil, err
	}
	next := models.SOSStatus(in.Status)
	if !next.Settable() {
		return nil, apperrors.InvalidStatus(in.Status)
	}

	var (
		alert *models.SOSAlert
		prev  models.SOSStatus
		note  *models.Notification
	)
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		alert, err = tx.GetAlert(ctx, alertID)
		if err != nil {
			return err
		}
		prev = alert.Status
		if !models.CanTransition(prev, next) {
			return apperrors.InvalidState("cannot move alert from %s to %s", prev, next)
		}

		now := models.Now()
		alert.Status = next
		switch next {
		case models.SOSAcknowledged, models.SOSResponding:
			by := actor.UserID
			alert.AssignedAuthorityID = &by
			if next == models.SOSAcknowledged && alert.AcknowledgedAt == nil {
				alert.AcknowledgedAt = models.TimestampPtr(now)
			}
		case models.SOSResolved:
			if alert.ResolvedAt == nil {
				alert.ResolvedAt = models.TimestampPtr(now)
			}
		}
		if in.Notes != "" {
			alert.ResolutionNotes = in.Notes
		}
		if err := tx.UpdateAlert(ctx, alert); err != nil {
			return err
		}

		note = &models.Notification{
			ID:            uuid.NewString(),
			UserID:        alert.UserID,
			Title:         SOSUpdateTitle,
			Message:       "Your SOS alert status has been updated to: " + string(next),
			Type:          models.NotificationInfo,
			ReferenceID:   alert.ID,
			ReferenceType: models.ReferenceSOSAlert,
		}
		return tx.CreateNotification(ctx, note)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("sos status changed",
		zap.String("alertId", alert.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
		zap.String("by", actor.UserID))
	s.signals.Emit(models.SigSOSStatusChanged, alert, actor, prev)
	s.signals.Emit(models.SigNotificationCreated, note)
	return alert, nil
}

// Acknowledge is UpdateStatus to acknowledged.
func (s *SOSService) Acknowledge(ctx context.Context, actor models.Identity, alertID string) (*models.SOSAlert, error) {
	return s.UpdateStatus(ctx, actor, alertID, StatusInput{Status: string(models.SOSAcknowledged)})
}

// Cancel lets the creator withdraw an alert. Alerts owned by someone else
// are reported as missing.
func (s *SOSService) Cancel(ctx context.Context, actor models.Identity, alertID string) (*models.SOSAlert, error) {
	var alert *models.SOSAlert
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		alert, err = tx.GetAlert(ctx, alertID)
		if err != nil {
			return err
		}
		if alert.UserID != actor.UserID {
			return apperrors.NotFound("alert", alertID)
		}
		if alert.Status == models.SOSResolved {
			return apperrors.InvalidState("Cannot cancel a resolved alert")
		}
		if !models.CanTransition(alert.Status, models.SOSCancelled) {
			return apperrors.InvalidState("Cannot cancel an alert that is %s", alert.Status)
		}
		alert.Status = models.SOSCancelled
		return tx.UpdateAlert(ctx, alert)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("sos cancelled", zap.String("alertId", alert.ID), zap.String("by", actor.UserID))
	s.signals.Emit(models.SigSOSCancelled, alert, actor)
	return alert, nil
}

// Get returns an alert to its creator or to an authority.
func (s *SOSService) Get(ctx context.Context, actor models.Identity, alertID string) (*AlertView, error) {
	alert, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.UserID != actor.UserID && !actor.Role.IsAuthority() {
		return nil, apperrors.NotFound("alert", alertID)
	}
	views, err := s.views(ctx, []models.SOSAlert{*alert})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List pages through all alerts, newest first. Authorities only.
func (s *SOSService) List(ctx context.Context, actor models.Identity, f store.AlertFilter) ([]AlertView, Pagination, error) {
	if err := requireAuthority(actor, "list alerts"); err != nil {
		return nil, Pagination{}, err
	}
	alerts, total, err := s.store.ListAlerts(ctx, f)
	if err != nil {
		return nil, Pagination{}, err
	}
	views, err := s.views(ctx, alerts)
	if err != nil {
		return nil, Pagination{}, err
	}
	return views, NewPagination(f.Page, f.Limit, total), nil
}

// ListMine returns the caller's most recent alerts.
func (s *SOSService) ListMine(ctx context.Context, actor models.Identity) ([]models.SOSAlert, error) {
	alerts, _, err := s.store.ListAlerts(ctx, store.AlertFilter{UserID: actor.UserID, Page: 1, Limit: myAlertsLimit})
	return alerts, err
}

func (s *SOSService) ActiveCounts(ctx context.Context) (*ActiveCounts, error) {
	counts, err := s.store.CountAlertsByStatus(ctx, models.SOSActive, models.SOSAcknowledged, models.SOSResponding)
	if err != nil {
		return nil, err
	}
	out := &ActiveCounts{
		Active:       counts[models.SOSActive],
		Acknowledged: counts[models.SOSAcknowledged],
		Responding:   counts[models.SOSResponding],
	}
	out.Total = out.Active + out.Acknowledged + out.Responding
	return out, nil
}

func (s *SOSService) views(ctx context.Context, alerts []models.SOSAlert) ([]AlertView, error) {
	users := make(map[string]*models.User)
	lookup := func(id string) (*models.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		u, err := s.store.GetUser(ctx, id)
		if err != nil && !apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, err
		}
		users[id] = u
		return u, nil
	}

	out := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		v := AlertView{SOSAlert: a}
		u, err := lookup(a.UserID)
		if err != nil {
			return nil, err
		}
		if u != nil {
			v.TouristName, v.TouristPhone, v.TouristEmail = u.Name, u.Phone, u.Email
		}
		if a.AssignedAuthorityID != nil {
			auth, err := lookup(*a.AssignedAuthorityID)
			if err != nil {
				return nil, err
			}
			if auth != nil {
				v.AssignedAuthorityName = auth.Name
			}
		}
		out = append(out, v)
	}
	return out, nil
}
