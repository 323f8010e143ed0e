package store

import (
	"context"

	"SafeYatra/internal/models"
)

type LocationFilter struct {
	UserID string
	Since  *models.Timestamp
	Until  *models.Timestamp
	Limit  int
}

type ZoneFilter struct {
	// Type is empty or "all" for no restriction.
	Type string
	// Active nil lists every zone; otherwise only zones with that flag.
	Active *bool
}

type AlertFilter struct {
	UserID    string
	Status    string
	AlertType string
	Page      int
	Limit     int
}

type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Type       string
	// Since restricts to notifications created strictly after the instant.
	Since *models.Timestamp
	Page  int
	Limit int
}

type ZoneStats struct {
	Total    int64            `json:"total"`
	HighRisk int64            `json:"highRisk"`
	ByType   map[string]int64 `json:"byType"`
}

// Snapshot is a whole-store export.
type Snapshot struct {
	Version       int                     `json:"version"`
	ExportedAt    models.Timestamp        `json:"exportedAt"`
	Users         []models.User           `json:"users"`
	Zones         []models.SafetyZone     `json:"zones"`
	Locations     []models.LocationSample `json:"locations"`
	Alerts        []models.SOSAlert       `json:"alerts"`
	Notifications []models.Notification   `json:"notifications"`
}

const SnapshotVersion = 1

// Store is the canonical persistence for users, samples, zones, alerts and
// notifications. Lookups of unknown ids fail with a NotFound error; driver
// failures surface as StoreFailure and are never retried.
type Store interface {
	// WithTx runs fn against a transactional view. Any error rolls back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close() error
	IsEmpty(ctx context.Context) (bool, error)

	UpsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)

	CreateLocation(ctx context.Context, l *models.LocationSample) error
	ListLocations(ctx context.Context, f LocationFilter) ([]models.LocationSample, error)
	LatestLocation(ctx context.Context, userID string) (*models.LocationSample, error)

	CreateZone(ctx context.Context, z *models.SafetyZone) error
	UpdateZone(ctx context.Context, z *models.SafetyZone) error
	DeleteZone(ctx context.Context, id string) error
	GetZone(ctx context.Context, id string) (*models.SafetyZone, error)
	// ListZones orders by creation time then id, the order classification
	// ties resolve in.
	ListZones(ctx context.Context, f ZoneFilter) ([]models.SafetyZone, error)
	ZoneStats(ctx context.Context) (*ZoneStats, error)

	CreateAlert(ctx context.Context, a *models.SOSAlert) error
	GetAlert(ctx context.Context, id string) (*models.SOSAlert, error)
	UpdateAlert(ctx context.Context, a *models.SOSAlert) error
	ListAlerts(ctx context.Context, f AlertFilter) ([]models.SOSAlert, int64, error)
	CountAlertsByStatus(ctx context.Context, statuses ...models.SOSStatus) (map[models.SOSStatus]int64, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, f NotificationFilter) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) error
	ClearNotifications(ctx context.Context, userID string) (int64, error)

	Export(ctx context.Context) (*Snapshot, error)
	// Import replaces the store's contents with s.
	Import(ctx context.Context, s *Snapshot) error
}
