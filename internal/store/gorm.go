package store

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"SafeYatra/internal/models"
	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GormStore implements Store over any gorm dialect.
type GormStore struct {
	db    *gorm.DB
	clock *clock
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, clock: &clock{}}
}

// Open connects to driver/dsn and migrates the schema.
func Open(logWriter io.Writer, driver, dsn string) (*GormStore, error) {
	db, err := util.InitDatabase(logWriter, driver, dsn)
	if err != nil {
		return nil, apperrors.StoreFailure("store.Open", err)
	}
	s := NewGormStore(db)
	if err := s.Migrate(); err != nil {
		return nil, apperrors.StoreFailure("store.Migrate", err)
	}
	return s, nil
}

// Migrate creates or updates every table.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.SafetyZone{},
		&models.LocationSample{},
		&models.SOSAlert{},
		&models.Notification{},
	)
}

// DB exposes the handle for health checks.
func (s *GormStore) DB() *gorm.DB { return s.db }

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, clock: s.clock})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	const op = "store.Gorm.Ping"
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperrors.StoreFailure(op, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.StoreFailure(op, err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) IsEmpty(ctx context.Context) (bool, error) {
	const op = "store.Gorm.IsEmpty"
	for _, m := range []interface{}{&models.User{}, &models.SafetyZone{}, &models.LocationSample{}, &models.SOSAlert{}, &models.Notification{}} {
		var n int64
		if err := s.conn(ctx).Model(m).Count(&n).Error; err != nil {
			return false, apperrors.StoreFailure(op, err)
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}

// ---- users

func (s *GormStore) UpsertUser(ctx context.Context, u *models.User) error {
	const op = "store.Gorm.UpsertUser"
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.clock.now()
	}
	if err := s.conn(ctx).Save(u).Error; err != nil {
		return apperrors.StoreFailure(op, err)
	}
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "store.Gorm.GetUser"
	var u models.User
	if err := s.conn(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, notFoundOr(op, "user", id, err)
	}
	return &u, nil
}

// ---- locations

func (s *GormStore) CreateLocation(ctx context.Context, l *models.LocationSample) error {
	const op = "store.Gorm.CreateLocation"
	if l.RecordedAt.IsZero() {
		l.RecordedAt = s.clock.now()
	}
	if err := s.conn(ctx).Create(l).Error; err != nil {
		return apperrors.StoreFailure(op, err)
	}
	return nil
}

func (s *GormStore) ListLocations(ctx context.Context, f LocationFilter) ([]models.LocationSample, error) {
	const op = "store.Gorm.ListLocations"
	q := s.conn(ctx).Model(&models.LocationSample{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	// Timestamps are fixed-width text, so string comparison is time order.
	if f.Since != nil {
		q = q.Where("recorded_at >= ?", f.Since.String())
	}
	if f.Until != nil {
		q = q.Where("recorded_at <= ?", f.Until.String())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	var out []models.LocationSample
	if err := q.Order("recorded_at DESC").Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, apperrors.StoreFailure(op, err)
	}
	return out, nil
}

func (s *GormStore) LatestLocation(ctx context.Context, userID string) (*models.LocationSample, error) {
	const op = "store.Gorm.LatestLocation"
	var l models.LocationSample
	err := s.conn(ctx).Where("user_id = ?", userID).Order("recorded_at DESC").Order("id DESC").Take(&l).Error
	if err != nil {
		return nil, notFoundOr(op, "location for user", userID, err)
	}
	return &l, nil
}

// ---- zones

func (s *GormStore) CreateZone(ctx context.Context, z *models.SafetyZone) error {
	const op = "store.Gorm.CreateZone"
	now := s.clock.now()
	if z.CreatedAt.IsZero() {
		z.CreatedAt = now
	}
	if z.UpdatedAt.IsZero() {
		z.UpdatedAt = z.CreatedAt
	}
	if err := s.conn(ctx).Create(z).Error; err != nil {
		return apperrors.StoreFailure(op, err)
	}
	return nil
}

func (s *GormStore) UpdateZone(ctx context.Context, z *models.SafetyZone) error {
	const op = "store.Gorm.UpdateZone"
	z.UpdatedAt = s.clock.now()
	res := s.conn(ctx).Model(&models.SafetyZone{}).Where("id = ?", z.ID).Select("*").Updates(z)
	if res.Error != nil {
		return apperrors.StoreFailure(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("zone", z.ID)
	}
	return nil
}

func (s *GormStore) DeleteZone(ctx context.Context, id string) error {
	const op = "store.Gorm.DeleteZone"
	res := s.conn(ctx).Where("id = ?", id).Delete(&models.SafetyZone{})
	if res.Error != nil {
		return apperrors.StoreFailure(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("zone", id)
	}
	return nil
}

func (s *GormStore) GetZone(ctx context.Context, id string) (*models.SafetyZone, error) {
	const op = "store.Gorm.GetZone"
	var z models.SafetyZone
	if err := s.conn(ctx).Where("id = ?", id).Take(&z).Error; err != nil {
		return nil, notFoundOr(op, "zone", id, err)
	}
	return &z, nil
}

func (s *GormStore) ListZones(ctx context.Context, f ZoneFilter) ([]models.SafetyZone, error) {
	const op = "store.Gorm.ListZones"
	q := s.conn(ctx).Model(&models.SafetyZone{})
	if f.Type != "" && f.Type != "all" {
		q = q.Where("zone_type = ?", f.Type)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	var out []models.SafetyZone
	if err := q.Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, apperrors.StoreFailure(op, err)
	}
	return out, nil
}

func (s *GormStore) ZoneStats(ctx context.Context) (*ZoneStats, error) {
	const op = "store.Gorm.ZoneStats"
	stats := &ZoneStats{ByType: map[string]int64{}}
	if err := s.conn(ctx).Model(&models.SafetyZone{}).Count(&stats.Total).Error; err != nil {
		return nil, apperrors.StoreFailure(op, err)
	}

	var rows []struct {
		ZoneType string
		Count    int64
	}
	err := s.conn(ctx).Model(&models.SafetyZone{}).
		Select("zone_type, COUNT(*) AS count").
		Where("active = ?", true).
		Group("zone_type").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.StoreFailure(op, err)
	}
	for _, r := range rows {
		stats.ByType[r.ZoneType] = r.Count
	}
	stats.HighRisk = stats.ByType[string(models.ZoneHighRisk)]
	return stats, nil
}

// ---- alerts

func (s *GormStore) CreateAlert(ctx context.Context, a *models.SOSAlert) error {
	const op = "store.Gorm.CreateAlert"
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock.now()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	if err := s.conn(ctx).Create(a).Error; err != nil {
		return apperrors.StoreFailure(op, err)
	}
	return nil
}

func (s *GormStore) GetAlert(ctx context.Context, id string) (*models.SOSAlert, error) {
	const op = "store.Gorm.GetAlert"
	var a models.SOSAlert
	if err := s.conn(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		return nil, notFoundOr(op, "alert", id, err)
	}
	return &a, nil
}

func (s *GormStore) UpdateAlert(ctx context.Context, a *models.SOSAlert) error {
	const op = "store.Gorm.UpdateAlert"
	a.UpdatedAt = s.clock.now()
	res := s.conn(ctx).Model(&models.SOSAlert{}).Where("id = ?", a.ID).Select("*").Updates(a)
	if res.Error != nil {
		return apperrors.StoreFailure(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("alert", a.ID)
	}
	return nil
}

func (s *GormStore) ListAlerts(ctx context.Context, f AlertFilter) ([]models.SOSAlert, int64, error) {
	const op = "store.Gorm.ListAlerts"
	q := s.conn(ctx).Model(&models.SOSAlert{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" && f.Status != "all" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AlertType != "" && f.AlertType != "all" {
		q = q.Where("alert_type = ?", f.AlertType)
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperrors.StoreFailure(op, err)
	}

	page, limit := normalizePage(f.Page, f.Limit)
	var out []models.SOSAlert
	err := q.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, apperrors.StoreFailure(op, err)
	}
	return out, total, nil
}

func (s *GormStore) CountAlertsByStatus(ctx context.Context, statuses ...models.SOSStatus) (map[models.SOSStatus]int64, error) {
	const op = "store.Gorm.CountAlertsByStatus"
	var rows []struct {
		Status string
		Count  int64
	}
	q := s.conn(ctx).Model(&models.SOSAlert{}).Select("status, COUNT(*) AS count")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, apperrors.StoreFailure(op, err)
	}
	out := make(map[models.SOSStatus]int64, len(statuses))
	for _, st := range statuses {
		out[st] = 0
	}
	for _, r := range rows {
		out[models.SOSStatus(r.Status)] = r.Count
	}
	return out, nil
}

// ---- notifications

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	const op = "store.Gorm.CreateNotification"
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock.now()
	}
	if err := s.conn(ctx).Create(n).Error; err != nil {
		return apperrors.StoreFailure(op, err)
	}
	return nil
}

func (s *GormStore) ListNotifications(ctx context.Context, f NotificationFilter) ([]models.Notification, int64, error) {
	const op = "store.Gorm.ListNotifications"
	q := s.conn(ctx).Model(&models.Notification{}).Where("user_id = ?", f.UserID)
	if f.UnreadOnly {
		q = q.Where(unread)
	}
	if f.Type != "" && f.Type != "all" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Since != nil {
		q = q.Where("created_at > ?", f.Since.String())
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperrors.StoreFailure(op, err)
	}

	page, limit := normalizePage(f.Page, f.Limit)
	var out []models.Notification
	err := q.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, apperrors.StoreFailure(op, err)
	}
	return out, total, nil
}

func (s *GormStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	const op = "store.Gorm.CountUnread"
	var n int64
	err := s.conn(ctx).Model(&models.Notification{}).
		Where("user_id = ?", userID).Where(unread).
		Count(&n).Error
	if err != nil {
		return 0, apperrors.StoreFailure(op, err)
	}
	return n, nil
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	const op = "store.Gorm.MarkNotificationRead"
	var n models.Notification
	if err := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&n).Error; err != nil {
		return nil, notFoundOr(op, "notification", id, err)
	}
	if n.Read {
		return &n, nil
	}
	readAt := s.clock.now()
	err := s.conn(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"read": true, "read_at": readAt}).Error
	if err != nil {
		return nil, apperrors.StoreFailure(op, err)
	}
	n.Read = true
	n.ReadAt = &readAt
	return &n, nil
}

func (s *GormStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	const op = "store.Gorm.MarkAllNotificationsRead"
	res := s.conn(ctx).Model(&models.Notification{}).
		Where("user_id = ?", userID).Where(unread).
		Updates(map[string]interface{}{"read": true, "read_at": s.clock.now()})
	if res.Error != nil {
		return 0, apperrors.StoreFailure(op, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) DeleteNotification(ctx context.Context, userID, id string) error {
	const op = "store.Gorm.DeleteNotification"
	res := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return apperrors.StoreFailure(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("notification", id)
	}
	return nil
}

func (s *GormStore) ClearNotifications(ctx context.Context, userID string) (int64, error) {
	const op = "store.Gorm.ClearNotifications"
	res := s.conn(ctx).Where("user_id = ?", userID).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, apperrors.StoreFailure(op, res.Error)
	}
	return res.RowsAffected, nil
}

// ---- snapshot

func (s *GormStore) Export(ctx context.Context) (*Snapshot, error) {
	const op = "store.Gorm.Export"
	snap := &Snapshot{Version: SnapshotVersion, ExportedAt: models.Now()}
	db := s.conn(ctx)
	steps := []struct {
		dest  interface{}
		order string
	}{
		{&snap.Users, "id"},
		{&snap.Zones, "created_at, id"},
		{&snap.Locations, "recorded_at, id"},
		{&snap.Alerts, "created_at, id"},
		{&snap.Notifications, "created_at, id"},
	}
	for _, st := range steps {
		if err := db.Order(st.order).Find(st.dest).Error; err != nil {
			return nil, apperrors.StoreFailure(op, err)
		}
	}
	return snap, nil
}

func (s *GormStore) Import(ctx context.Context, snap *Snapshot) error {
	const op = "store.Gorm.Import"
	if snap == nil {
		return apperrors.Validation("empty snapshot")
	}
	if snap.Version != SnapshotVersion {
		return apperrors.Validation("unsupported snapshot version %d", snap.Version)
	}
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&models.Notification{}, &models.SOSAlert{}, &models.LocationSample{}, &models.SafetyZone{}, &models.User{}} {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return apperrors.StoreFailure(op, err)
			}
		}
		if err := createAll(tx, snap.Users); err != nil {
			return apperrors.StoreFailure(op, err)
		}
		if err := createAll(tx, snap.Zones); err != nil {
			return apperrors.StoreFailure(op, err)
		}
		if err := createAll(tx, snap.Locations); err != nil {
			return apperrors.StoreFailure(op, err)
		}
		if err := createAll(tx, snap.Alerts); err != nil {
			return apperrors.StoreFailure(op, err)
		}
		if err := createAll(tx, snap.Notifications); err != nil {
			return apperrors.StoreFailure(op, err)
		}
		return nil
	})
}

// "read" is reserved in MySQL; let the dialect quote it.
var unread = clause.Eq{Column: clause.Column{Name: "read"}, Value: false}

func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, 200).Error
}

func notFoundOr(op, entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(entity, id)
	}
	return apperrors.StoreFailure(op, err)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// clock hands out strictly increasing timestamps so rows written in the
// same nanosecond still order by insertion.
type clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *clock) now() models.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return models.NewTimestamp(t)
}
