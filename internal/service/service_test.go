package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SafeYatra/internal/models"
	"SafeYatra/internal/store"
	"SafeYatra/pkg/cache"
	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/search"
	"SafeYatra/pkg/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tourist   = models.Identity{UserID: "tourist-1", Name: "John Smith", Role: models.RoleTourist}
	stranger  = models.Identity{UserID: "tourist-2", Name: "Emma Wilson", Role: models.RoleTourist}
	authority = models.Identity{UserID: "auth-1", Name: "Inspector Rajesh Kumar", Role: models.RoleAuthority}
)

// recorder captures emitted signals by name.
type recorder struct {
	mu     sync.Mutex
	events map[string][][]any
}

func (r *recorder) hook(sig *util.Signals, names ...string) {
	r.events = make(map[string][][]any)
	for _, name := range names {
		name := name
		sig.Connect(name, func(sender any, params ...any) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events[name] = append(r.events[name], append([]any{sender}, params...))
		})
	}
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[name])
}

type fixture struct {
	store *store.GormStore
	sig   *util.Signals
	rec   *recorder
	zones *ZoneService
	loc   *LocationService
	sos   *SOSService
	notes *NotificationService
}

func newFixture(t *testing.T, window time.Duration) *fixture {
	t.Helper()
	s, err := store.Open(nil, "sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	for _, id := range []models.Identity{tourist, stranger, authority} {
		require.NoError(t, s.UpsertUser(ctx, &models.User{ID: id.UserID, Name: id.Name, Role: id.Role, Phone: "+91-100"}))
	}

	sig := util.NewSignals()
	rec := &recorder{}
	rec.hook(sig, models.SigLocationRecorded, models.SigSOSCreated, models.SigSOSStatusChanged, models.SigSOSCancelled, models.SigNotificationCreated)

	zones := NewZoneService(s, time.Minute)
	suppress := cache.NewGoCache(cache.LocalConfig{DefaultExpiration: time.Minute, CleanupInterval: time.Minute})
	return &fixture{
		store: s,
		sig:   sig,
		rec:   rec,
		zones: zones,
		loc:   NewLocationService(s, zones, sig, suppress, window),
		sos:   NewSOSService(s, sig),
		notes: NewNotificationService(s, sig),
	}
}

func (f *fixture) addZone(t *testing.T, name string, typ models.ZoneType, lat, lng float64) *models.SafetyZone {
	t.Helper()
	z, err := f.zones.Create(context.Background(), authority, ZoneInput{
		Name: name, ZoneType: string(typ), Latitude: &lat, Longitude: &lng,
	})
	require.NoError(t, err)
	return z
}

func ptr(v float64) *float64 { return &v }

func TestNearestZone(t *testing.T) {
	zones := []models.SafetyZone{
		{ID: "b", ZoneType: models.ZoneModerate, Latitude: 0.02, Longitude: 0},
		{ID: "a", ZoneType: models.ZoneHighRisk, Latitude: 0.01, Longitude: 0},
		{ID: "c", ZoneType: models.ZoneSafe, Latitude: -0.01, Longitude: 0},
	}
	got := NearestZone(zones, 0, 0)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID, "exact tie keeps the first zone")

	assert.Nil(t, NearestZone(nil, 1, 1))
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	zt, err := f.zones.Classify(ctx, 28.6, 77.2)
	require.NoError(t, err)
	assert.Equal(t, models.ZoneSafe, zt, "no zones")

	// A at squared distance 0.0001, B at 0.0002
	f.addZone(t, "A", models.ZoneModerate, 28.61, 77.20)
	f.addZone(t, "B", models.ZoneHighRisk, 28.61, 77.21)
	for i := 0; i < 3; i++ {
		zt, err = f.zones.Classify(ctx, 28.60, 77.20)
		require.NoError(t, err)
		assert.Equal(t, models.ZoneModerate, zt)
	}

	// no radius check: far away still takes the nearest zone
	zt, err = f.zones.Classify(ctx, -33.9, 18.4)
	require.NoError(t, err)
	assert.Equal(t, models.ZoneModerate, zt)

	f.addZone(t, "hospital", models.ZoneHospital, 28.60, 77.20)
	zt, err = f.zones.Classify(ctx, 28.60, 77.20)
	require.NoError(t, err)
	assert.Equal(t, models.ZoneSafe, zt, "cache invalidated on create; hospital maps to safe")
}

func TestClassifySkipsInactiveZones(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	z := f.addZone(t, "risky", models.ZoneHighRisk, 10, 10)
	f.addZone(t, "calm", models.ZoneModerate, 20, 20)

	zt, err := f.zones.Classify(ctx, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, models.ZoneHighRisk, zt)

	off := false
	_, err = f.zones.Update(ctx, authority, z.ID, ZonePatch{Active: &off})
	require.NoError(t, err)
	zt, err = f.zones.Classify(ctx, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, models.ZoneModerate, zt)
}

func TestZoneAdminRequiresAuthority(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	_, err := f.zones.Create(ctx, tourist, ZoneInput{Name: "x", ZoneType: "safe", Latitude: ptr(1), Longitude: ptr(1)})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = f.zones.Create(ctx, authority, ZoneInput{Name: "x", ZoneType: "safe", Latitude: ptr(100), Longitude: ptr(1)})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	assert.True(t, apperrors.IsKind(f.zones.Delete(ctx, authority, "missing"), apperrors.KindNotFound))
}

func TestZoneSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	_, err := f.zones.Search(ctx, "fort", "", 10)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState), "search disabled without an index")

	early := f.addZone(t, "Red Fort", models.ZoneTouristSpot, 28.65, 77.24)

	engine, err := search.New(search.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	f.zones.WithSearch(engine)
	require.NoError(t, f.zones.Reindex(ctx))

	market := f.addZone(t, "Night Market", models.ZoneHighRisk, 28.70, 77.10)

	got, err := f.zones.Search(ctx, "fort", "", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, early.ID, got[0].ID, "zones created before the index are picked up by Reindex")

	got, err = f.zones.Search(ctx, "", string(models.ZoneHighRisk), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, market.ID, got[0].ID)

	name := "Bazaar"
	_, err = f.zones.Update(ctx, authority, market.ID, ZonePatch{Name: &name})
	require.NoError(t, err)
	got, err = f.zones.Search(ctx, "bazaar", "", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, f.zones.Delete(ctx, authority, market.ID))
	got, err = f.zones.Search(ctx, "bazaar", "", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.zones.Search(ctx, "", "", 10)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestRecordHighRisk(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.addZone(t, "Paharganj Area", models.ZoneHighRisk, 28.6448, 77.2107)

	sample, err := f.loc.Record(ctx, tourist, LocationInput{Latitude: ptr(28.6448), Longitude: ptr(77.2107)})
	require.NoError(t, err)
	assert.NotEmpty(t, sample.ID)
	assert.Equal(t, models.ZoneHighRisk, sample.ZoneType)

	page, err := f.notes.List(ctx, tourist, store.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	n := page.Notifications[0]
	assert.Equal(t, models.NotificationWarning, n.Type)
	assert.Contains(t, n.Title, "High-Risk")

	assert.Equal(t, 1, f.rec.count(models.SigLocationRecorded))
	assert.Equal(t, 1, f.rec.count(models.SigNotificationCreated))

	// observed behaviour: every sample in the zone warns again
	_, err = f.loc.Record(ctx, tourist, LocationInput{Latitude: ptr(28.6448), Longitude: ptr(77.2107)})
	require.NoError(t, err)
	count, err := f.notes.UnreadCount(ctx, tourist)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRecordSuppressionWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.addZone(t, "risky", models.ZoneHighRisk, 10, 10)
	f.addZone(t, "calm", models.ZoneSafe, 50, 50)

	in := LocationInput{Latitude: ptr(10), Longitude: ptr(10)}
	for i := 0; i < 3; i++ {
		_, err := f.loc.Record(ctx, tourist, in)
		require.NoError(t, err)
	}
	count, err := f.notes.UnreadCount(ctx, tourist)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = f.loc.Record(ctx, tourist, LocationInput{Latitude: ptr(50), Longitude: ptr(50)})
	require.NoError(t, err)
	_, err = f.loc.Record(ctx, tourist, in)
	require.NoError(t, err)
	count, err = f.notes.UnreadCount(ctx, tourist)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "re-entry warns again")
}

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	_, err := f.loc.Record(ctx, tourist, LocationInput{Longitude: ptr(1)})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	rows, err := f.loc.History(ctx, tourist.UserID, nil, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, f.rec.count(models.SigLocationRecorded))

	cur, err := f.loc.Current(ctx, tourist.UserID)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestNearbyAndHeatmap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	for _, p := range [][2]float64{{28.6001, 77.2001}, {28.6002, 77.2002}} {
		_, err := f.loc.Record(ctx, tourist, LocationInput{Latitude: ptr(p[0]), Longitude: ptr(p[1])})
		require.NoError(t, err)
	}
	_, err := f.loc.Record(ctx, authority, LocationInput{Latitude: ptr(1), Longitude: ptr(1)})
	require.NoError(t, err)

	_, err = f.loc.Nearby(ctx, tourist)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	near, err := f.loc.Nearby(ctx, authority)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, tourist.Name, near[0].TouristName)
	assert.Equal(t, 28.6002, near[0].Latitude)

	cells, err := f.loc.Heatmap(ctx, 1)
	require.NoError(t, err)
	total := 0
	for _, c := range cells {
		total += c.Intensity
	}
	assert.Equal(t, 3, total)
}

func TestCreateSOS(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	alert, err := f.sos.Create(ctx, tourist, SOSInput{Latitude: ptr(28.61), Longitude: ptr(77.22), AlertType: "medical"})
	require.NoError(t, err)
	assert.Equal(t, models.SOSActive, alert.Status)
	assert.Nil(t, alert.AssignedAuthorityID)
	assert.Nil(t, alert.ResolvedAt)
	assert.Equal(t, 1, f.rec.count(models.SigSOSCreated))

	def, err := f.sos.Create(ctx, tourist, SOSInput{Latitude: ptr(0), Longitude: ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAlertType, def.AlertType)

	_, err = f.sos.Create(ctx, tourist, SOSInput{Latitude: ptr(1)})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestUpdateStatusAcknowledge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	alert, err := f.sos.Create(ctx, tourist, SOSInput{Latitude: ptr(28.61), Longitude: ptr(77.22), AlertType: "medical"})
	require.NoError(t, err)

	updated, err := f.sos.UpdateStatus(ctx, authority, alert.ID, StatusInput{Status: "acknowledged"})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedAuthorityID)
	assert.Equal(t, authority.UserID, *updated.AssignedAuthorityID)
	assert.NotNil(t, updated.AcknowledgedAt)
	assert.Nil(t, updated.ResolvedAt)

	page, err := f.notes.List(ctx, tourist, store.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Contains(t, page.Notifications[0].Message, "acknowledged")
	assert.Equal(t, alert.ID, page.Notifications[0].ReferenceID)

	resolved, err := f.sos.UpdateStatus(ctx, authority, alert.ID, StatusInput{Status: "resolved", Notes: "handled"})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, "handled", resolved.ResolutionNotes)
	assert.Equal(t, 2, f.rec.count(models.SigSOSStatusChanged))

	view, err := f.sos.Get(ctx, authority, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, tourist.Name, view.TouristName)
	assert.Equal(t, authority.Name, view.AssignedAuthorityName)
}

func TestUpdateStatusErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	alert, err := f.sos.Create(ctx, tourist, SOSInput{Latitude: ptr(1), Longitude: ptr(1)})
	require.NoError(t, err)

	_, err = f.sos.UpdateStatus(ctx, tourist, alert.ID, StatusInput{Status: "acknowledged"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = f.sos.UpdateStatus(ctx, authority, alert.ID, StatusInput{Status: "closed"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)

	_, err = f.sos.UpdateStatus(ctx, authority, alert.ID, StatusInput{Status: "cancelled"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus, "cancellation is owner-only")

	_, err = f.sos.UpdateStatus(ctx, authority, uuid.NewString(), StatusInput{Status: "resolved"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	_, err = f.sos.UpdateStatus(ctx, authority, alert.ID, StatusInput{Status: "false-alarm"})
	require.NoError(t, err)
	_, err = f.sos.UpdateStatus(ctx, authority, alert.ID, StatusInput{Status: "responding"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))

	got, err := f.sos.Get(ctx, tourist, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SOSFalseAlarm, got.Status)

	// the failed transition wrote no notification
	count, err := f.notes.UnreadCount(ctx, tourist)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	open, err := f.sos.Create(ctx, tourist, SOSInput{Latitude: ptr(1), Longitude: ptr(1)})
	require.NoError(t, err)

	_, err = f.sos.Cancel(ctx, stranger, open.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	cancelled, err := f.sos.Cancel(ctx, tourist, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SOSCancelled, cancelled.Status)
	assert.Equal(t, 1, f.rec.count(models.SigSOSCancelled))

	_, err = f.sos.Cancel(ctx, tourist, open.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))

	done, err := f.sos.Create(ctx, tourist, SOSInput{Latitude: ptr(1), Longitude: ptr(1)})
	require.NoError(t, err)
	_, err = f.sos.UpdateStatus(ctx, authority, done.ID, StatusInput{Status: "resolved"})
	require.NoError(t, err)
	_, err = f.sos.Cancel(ctx, tourist, done.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))

	_, err = f.sos.Cancel(ctx, tourist, uuid.NewString())
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestSOSQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	var ids []string
	for i := 0; i < 12; i++ {
		a, err := f.sos.Create(ctx, tourist, SOSInput{Latitude: ptr(1), Longitude: ptr(1)})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	_, err := f.sos.Acknowledge(ctx, authority, ids[0])
	require.NoError(t, err)
	_, err = f.sos.UpdateStatus(ctx, authority, ids[1], StatusInput{Status: "responding"})
	require.NoError(t, err)

	mine, err := f.sos.ListMine(ctx, tourist)
	require.NoError(t, err)
	assert.Len(t, mine, 10)
	assert.Equal(t, ids[11], mine[0].ID)

	_, _, err = f.sos.List(ctx, tourist, store.AlertFilter{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	list, pg, err := f.sos.List(ctx, authority, store.AlertFilter{Status: "active", Page: 2, Limit: 4})
	require.NoError(t, err)
	assert.Len(t, list, 4)
	assert.Equal(t, int64(10), pg.Total)
	assert.Equal(t, 3, pg.TotalPages)

	counts, err := f.sos.ActiveCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ActiveCounts{Active: 10, Acknowledged: 1, Responding: 1, Total: 12}, counts)

	_, err = f.sos.Get(ctx, stranger, ids[0])
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestNotificationsCatchUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	first, err := f.notes.Create(ctx, tourist, NotificationInput{Title: "one", Message: "m"})
	require.NoError(t, err)
	_, err = f.notes.Create(ctx, authority, NotificationInput{Title: "two", Message: "m", TargetUserID: tourist.UserID, Type: "alert"})
	require.NoError(t, err)
	_, err = f.notes.Create(ctx, authority, NotificationInput{Title: "three", Message: "m", TargetUserID: tourist.UserID})
	require.NoError(t, err)

	_, err = f.notes.Create(ctx, tourist, NotificationInput{Title: "x", Message: "m", TargetUserID: stranger.UserID})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	since, err := f.notes.Since(ctx, tourist, first.CreatedAt, 0)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "two", since[0].Title)
	assert.Equal(t, "three", since[1].Title)

	_, err = f.notes.MarkRead(ctx, stranger, first.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	n, err := f.notes.MarkAllRead(ctx, tourist)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 3, f.rec.count(models.SigNotificationCreated))
}

// pausingStore blocks the first armed ListZones after it has read, so a
// zone write can land between the read and the cache fill.
type pausingStore struct {
	store.Store
	armed  atomic.Bool
	loaded chan struct{}
	resume chan struct{}
}

func (p *pausingStore) ListZones(ctx context.Context, f store.ZoneFilter) ([]models.SafetyZone, error) {
	zones, err := p.Store.ListZones(ctx, f)
	if p.armed.CompareAndSwap(true, false) {
		close(p.loaded)
		<-p.resume
	}
	return zones, err
}

func TestClassifyCacheIgnoresStaleLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	ps := &pausingStore{Store: f.store, loaded: make(chan struct{}), resume: make(chan struct{})}
	zones := NewZoneService(ps, time.Minute)

	risky, err := zones.Create(ctx, authority, ZoneInput{Name: "risky", ZoneType: "high-risk", Latitude: ptr(10), Longitude: ptr(10)})
	require.NoError(t, err)

	ps.armed.Store(true)
	inflight := make(chan models.ZoneType, 1)
	go func() {
		zt, err := zones.Classify(ctx, 10, 10)
		assert.NoError(t, err)
		inflight <- zt
	}()
	<-ps.loaded

	off := false
	_, err = zones.Update(ctx, authority, risky.ID, ZonePatch{Active: &off})
	require.NoError(t, err)
	close(ps.resume)
	assert.Equal(t, models.ZoneHighRisk, <-inflight, "read before the update committed")

	zt, err := zones.Classify(ctx, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, models.ZoneSafe, zt)
}

func TestSampleKeepsClassificationAfterZoneChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	z := f.addZone(t, "Paharganj Area", models.ZoneHighRisk, 28.6448, 77.2107)

	first, err := f.loc.Record(ctx, tourist, LocationInput{Latitude: ptr(28.6448), Longitude: ptr(77.2107)})
	require.NoError(t, err)
	require.Equal(t, models.ZoneHighRisk, first.ZoneType)

	safe := string(models.ZoneSafe)
	_, err = f.zones.Update(ctx, authority, z.ID, ZonePatch{ZoneType: &safe})
	require.NoError(t, err)
	second, err := f.loc.Record(ctx, tourist, LocationInput{Latitude: ptr(28.6448), Longitude: ptr(77.2107)})
	require.NoError(t, err)
	assert.Equal(t, models.ZoneSafe, second.ZoneType)

	off := false
	_, err = f.zones.Update(ctx, authority, z.ID, ZonePatch{Active: &off})
	require.NoError(t, err)

	history, err := f.loc.History(ctx, tourist.UserID, nil, nil, 0)
	require.NoError(t, err)
	byID := make(map[string]models.ZoneType, len(history))
	for _, s := range history {
		byID[s.ID] = s.ZoneType
	}
	assert.Equal(t, models.ZoneHighRisk, byID[first.ID])
	assert.Equal(t, models.ZoneSafe, byID[second.ID])
}

func TestCancelOnlyWhileActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	for _, status := range []string{"acknowledged", "responding", "false-alarm"} {
		alert, err := f.sos.Create(ctx, tourist, SOSInput{Latitude: ptr(1), Longitude: ptr(1)})
		require.NoError(t, err)
		_, err = f.sos.UpdateStatus(ctx, authority, alert.ID, StatusInput{Status: status})
		require.NoError(t, err)

		_, err = f.sos.Cancel(ctx, tourist, alert.ID)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState), status)

		got, err := f.sos.Get(ctx, tourist, alert.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SOSStatus(status), got.Status)
	}
	assert.Equal(t, 0, f.rec.count(models.SigSOSCancelled))
}
