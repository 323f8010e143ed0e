package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"SafeYatra/internal/models"
	apperrors "SafeYatra/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := Open(nil, "sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func zone(name string, typ models.ZoneType, lat, lng, radius float64, active bool) *models.SafetyZone {
	return &models.SafetyZone{
		ID: uuid.NewString(), Name: name, ZoneType: typ,
		Latitude: lat, Longitude: lng, Radius: radius, Active: active,
	}
}

func TestZonesOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	names := []string{"c", "a", "b"}
	for _, n := range names {
		require.NoError(t, s.CreateZone(ctx, zone(n, models.ZoneSafe, 1, 1, 100, true)))
	}
	require.NoError(t, s.CreateZone(ctx, zone("off", models.ZoneHighRisk, 1, 1, 100, false)))

	active := true
	zones, err := s.ListZones(ctx, ZoneFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, zones, 3)
	for i, n := range names {
		assert.Equal(t, n, zones[i].Name)
	}

	all, err := s.ListZones(ctx, ZoneFilter{Type: "all"})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	risky, err := s.ListZones(ctx, ZoneFilter{Type: string(models.ZoneHighRisk)})
	require.NoError(t, err)
	require.Len(t, risky, 1)
	assert.False(t, risky[0].Active)
}

func TestZoneUpdateDeleteNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	z := zone("gate", models.ZoneTouristSpot, 28.6, 77.2, 300, true)
	require.NoError(t, s.CreateZone(ctx, z))

	z.Active = false
	z.Radius = 50
	require.NoError(t, s.UpdateZone(ctx, z))
	got, err := s.GetZone(ctx, z.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, 50.0, got.Radius)

	require.NoError(t, s.DeleteZone(ctx, z.ID))
	_, err = s.GetZone(ctx, z.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	assert.True(t, apperrors.IsKind(s.DeleteZone(ctx, z.ID), apperrors.KindNotFound))
	assert.True(t, apperrors.IsKind(s.UpdateZone(ctx, zone("x", models.ZoneSafe, 0, 0, 1, true)), apperrors.KindNotFound))
}

func TestZoneStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateZone(ctx, zone("a", models.ZoneHighRisk, 0, 0, 1, true)))
	require.NoError(t, s.CreateZone(ctx, zone("b", models.ZoneHighRisk, 0, 0, 1, false)))
	require.NoError(t, s.CreateZone(ctx, zone("c", models.ZoneHospital, 0, 0, 1, true)))

	stats, err := s.ZoneStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.HighRisk)
	assert.Equal(t, int64(1), stats.ByType["hospital"])
}

func TestLocationHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateLocation(ctx, &models.LocationSample{
			ID: uuid.NewString(), UserID: "u1", Latitude: float64(i), Longitude: 1,
			ZoneType: models.ZoneSafe, RecordedAt: models.NewTimestamp(base.Add(time.Duration(i) * time.Minute)),
		}))
	}
	require.NoError(t, s.CreateLocation(ctx, &models.LocationSample{ID: uuid.NewString(), UserID: "u2", ZoneType: models.ZoneSafe}))

	since := models.NewTimestamp(base.Add(time.Minute))
	until := models.NewTimestamp(base.Add(3 * time.Minute))
	rows, err := s.ListLocations(ctx, LocationFilter{UserID: "u1", Since: &since, Until: &until})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 3.0, rows[0].Latitude)
	assert.Equal(t, 1.0, rows[2].Latitude)

	latest, err := s.LatestLocation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, latest.Latitude)

	_, err = s.LatestLocation(ctx, "nobody")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestAlertsListAndCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	statuses := []models.SOSStatus{models.SOSActive, models.SOSActive, models.SOSResponding, models.SOSResolved}
	for i, st := range statuses {
		owner := "u1"
		if i == 3 {
			owner = "u2"
		}
		require.NoError(t, s.CreateAlert(ctx, &models.SOSAlert{
			ID: uuid.NewString(), UserID: owner, Status: st, AlertType: models.DefaultAlertType,
		}))
	}

	list, total, err := s.ListAlerts(ctx, AlertFilter{Status: "active", Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 1)

	mine, total, err := s.ListAlerts(ctx, AlertFilter{UserID: "u1", Status: "all"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, mine, 3)
	assert.Equal(t, models.SOSResponding, mine[0].Status, "newest first")

	counts, err := s.CountAlertsByStatus(ctx, models.SOSActive, models.SOSAcknowledged, models.SOSResponding)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.SOSActive])
	assert.Equal(t, int64(0), counts[models.SOSAcknowledged])
	assert.Equal(t, int64(1), counts[models.SOSResponding])
}

func TestUpdateAlertPersistsOptionalFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &models.SOSAlert{ID: uuid.NewString(), UserID: "u1", Status: models.SOSActive, AlertType: "medical"}
	require.NoError(t, s.CreateAlert(ctx, a))
	assert.Nil(t, a.AcknowledgedAt)

	by := "auth-1"
	now := models.Now()
	a.Status = models.SOSAcknowledged
	a.AssignedAuthorityID = &by
	a.AcknowledgedAt = &now
	require.NoError(t, s.UpdateAlert(ctx, a))

	got, err := s.GetAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SOSAcknowledged, got.Status)
	require.NotNil(t, got.AssignedAuthorityID)
	assert.Equal(t, by, *got.AssignedAuthorityID)
	require.NotNil(t, got.AcknowledgedAt)
	assert.Equal(t, now.String(), got.AcknowledgedAt.String())
	assert.Nil(t, got.ResolvedAt)
}

func TestNotificationsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		n := &models.Notification{ID: uuid.NewString(), UserID: "u1", Title: "t", Message: "m", Type: models.NotificationInfo}
		require.NoError(t, s.CreateNotification(ctx, n))
		ids = append(ids, n.ID)
	}
	other := &models.Notification{ID: uuid.NewString(), UserID: "u2", Title: "t", Message: "m", Type: models.NotificationWarning}
	require.NoError(t, s.CreateNotification(ctx, other))

	_, err := s.MarkNotificationRead(ctx, "u1", other.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	n, err := s.MarkNotificationRead(ctx, "u1", ids[0])
	require.NoError(t, err)
	assert.True(t, n.Read)
	assert.NotNil(t, n.ReadAt)

	unread, err := s.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	list, total, err := s.ListNotifications(ctx, NotificationFilter{UserID: "u1", UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	all, _, err := s.ListNotifications(ctx, NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	since := all[2].CreatedAt
	after, _, err := s.ListNotifications(ctx, NotificationFilter{UserID: "u1", Since: &since})
	require.NoError(t, err)
	assert.Len(t, after, 2)

	changed, err := s.MarkAllNotificationsRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	assert.True(t, apperrors.IsKind(s.DeleteNotification(ctx, "u2", ids[1]), apperrors.KindNotFound))
	require.NoError(t, s.DeleteNotification(ctx, "u1", ids[1]))

	cleared, err := s.ClearNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)

	remaining, total, err := s.ListNotifications(ctx, NotificationFilter{UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, remaining, 1)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.WithTx(ctx, func(tx Store) error {
		require.NoError(t, tx.CreateLocation(ctx, &models.LocationSample{ID: uuid.NewString(), UserID: "u1", ZoneType: models.ZoneSafe}))
		return apperrors.Validation("boom")
	})
	require.Error(t, err)

	rows, err := s.ListLocations(ctx, LocationFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)

	seeded, err := SeedDemo(ctx, src)
	require.NoError(t, err)
	require.True(t, seeded)
	require.NoError(t, src.CreateAlert(ctx, &models.SOSAlert{ID: uuid.NewString(), UserID: "tourist-john", Status: models.SOSActive, AlertType: "emergency"}))

	again, err := SeedDemo(ctx, src)
	require.NoError(t, err)
	assert.False(t, again)

	path := filepath.Join(t.TempDir(), "snap", "state.json")
	require.NoError(t, NewSnapshotter(src, path).Flush(ctx))

	dst := newTestStore(t)
	restored, err := NewSnapshotter(dst, path).Restore(ctx)
	require.NoError(t, err)
	require.True(t, restored)

	srcZones, err := src.ListZones(ctx, ZoneFilter{})
	require.NoError(t, err)
	dstZones, err := dst.ListZones(ctx, ZoneFilter{})
	require.NoError(t, err)
	require.Len(t, dstZones, len(srcZones))
	for i := range srcZones {
		assert.Equal(t, srcZones[i].ID, dstZones[i].ID)
	}

	u, err := dst.GetUser(ctx, "auth-rajesh")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAuthority, u.Role)

	// a non-empty store is left alone
	restored, err = NewSnapshotter(dst, path).Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestSnapshotMissingFile(t *testing.T) {
	s := newTestStore(t)
	restored, err := NewSnapshotter(s, filepath.Join(t.TempDir(), "none.json")).Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
}
