package service

import (
	"context"
	"math"
	"time"

	"SafeYatra/internal/models"
	"SafeYatra/internal/store"
	"SafeYatra/pkg/cache"
	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/logger"
	"SafeYatra/pkg/util"
	"SafeYatra/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HighRiskTitle   = "⚠️ High-Risk Area"
	HighRiskMessage = "You have entered a high-risk zone. Please stay alert and keep your belongings safe."

	defaultHistoryLimit = 100
	nearbyWindow        = 30 * time.Minute
	heatmapSampleLimit  = 10000
)

// LocationInput is one position report from a tourist device.
type LocationInput struct {
	Latitude     *float64 `json:"latitude" validate:"required,lat"`
	Longitude    *float64 `json:"longitude" validate:"required,lng"`
	Accuracy     *float64 `json:"accuracy"`
	Altitude     *float64 `json:"altitude"`
	Speed        *float64 `json:"speed"`
	Heading      *float64 `json:"heading"`
	PlaceName    string   `json:"placeName"`
	BatteryLevel *int     `json:"batteryLevel" validate:"omitempty,min=0,max=100"`
	NetworkType  string   `json:"networkType"`
	IsOffline    bool     `json:"isOffline"`
}

// TouristPosition is a tourist's latest sample joined with their profile.
type TouristPosition struct {
	models.LocationSample
	TouristName  string `json:"touristName"`
	TouristPhone string `json:"touristPhone,omitempty"`
}

// HeatCell aggregates samples on a 0.001° grid.
type HeatCell struct {
	Lat       float64         `json:"lat"`
	Lng       float64         `json:"lng"`
	Intensity int             `json:"intensity"`
	ZoneType  models.ZoneType `json:"zoneType"`
}

// LocationService is the Location Ingest.
type LocationService struct {
	store    store.Store
	zones    *ZoneService
	signals  *util.Signals
	suppress cache.Cache
	window   time.Duration
}

// NewLocationService wires ingest. With window > 0 a high-risk warning is
// raised once on entry and then at most once per window while the user stays
// in high-risk territory; window 0 warns on every such sample.
func NewLocationService(s store.Store, zones *ZoneService, signals *util.Signals, suppress cache.Cache, window time.Duration) *LocationService {
	return &LocationService{store: s, zones: zones, signals: signals, suppress: suppress, window: window}
}

// Record classifies and stores a sample. The sample and any high-risk
// notification commit together.
func (l *LocationService) Record(ctx context.Context, actor models.Identity, in LocationInput) (*models.LocationSample, error) {
	if err := validator.ValidateStruct(in); err != nil {
		return nil, err
	}
	lat, lng := *in.Latitude, *in.Longitude

	zoneType, err := l.zones.Classify(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	sample := &models.LocationSample{
		ID:           uuid.NewString(),
		UserID:       actor.UserID,
		Latitude:     lat,
		Longitude:    lng,
		Accuracy:     in.Accuracy,
		Altitude:     in.Altitude,
		Speed:        in.Speed,
		Heading:      in.Heading,
		PlaceName:    in.PlaceName,
		BatteryLevel: in.BatteryLevel,
		NetworkType:  in.NetworkType,
		IsOffline:    in.IsOffline,
		ZoneType:     zoneType,
	}

	var warning *models.Notification
	if zoneType == models.ZoneHighRisk && l.shouldWarn(ctx, actor.UserID) {
		warning = &models.Notification{
			ID:      uuid.NewString(),
			UserID:  actor.UserID,
			Title:   HighRiskTitle,
			Message: HighRiskMessage,
			Type:    models.NotificationWarning,
		}
	} else if zoneType != models.ZoneHighRisk {
		l.clearWarned(ctx, actor.UserID)
	}

	err = l.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateLocation(ctx, sample); err != nil {
			return err
		}
		if warning != nil {
			return tx.CreateNotification(ctx, warning)
		}
		return nil
	})
	if err != nil {
		if warning != nil {
			l.clearWarned(ctx, actor.UserID)
		}
		logger.Error("record location failed", zap.String("userId", actor.UserID), zap.Error(err))
		return nil, err
	}

	l.signals.Emit(models.SigLocationRecorded, sample, actor)
	if warning != nil {
		logger.Info("high-risk warning raised", zap.String("userId", actor.UserID), zap.String("sampleId", sample.ID))
		l.signals.Emit(models.SigNotificationCreated, warning)
	}
	return sample, nil
}

func (l *LocationService) suppressKey(userID string) string { return "highrisk:" + userID }

func (l *LocationService) shouldWarn(ctx context.Context, userID string) bool {
	if l.window <= 0 || l.suppress == nil {
		return true
	}
	ok, err := l.suppress.SetNX(ctx, l.suppressKey(userID), time.Now().Unix(), l.window)
	if err != nil {
		// fail open
		logger.Warn("suppression check failed", zap.String("userId", userID), zap.Error(err))
		return true
	}
	return ok
}

func (l *LocationService) clearWarned(ctx context.Context, userID string) {
	if l.window <= 0 || l.suppress == nil {
		return
	}
	if err := l.suppress.Delete(ctx, l.suppressKey(userID)); err != nil {
		logger.Warn("suppression reset failed", zap.String("userId", userID), zap.Error(err))
	}
}

// History returns the user's samples newest first within [since, until].
func (l *LocationService) History(ctx context.Context, userID string, since, until *models.Timestamp, limit int) ([]models.LocationSample, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if since != nil && until != nil && until.Before(since.Time) {
		return nil, apperrors.Validation("endDate is before startDate")
	}
	return l.store.ListLocations(ctx, store.LocationFilter{UserID: userID, Since: since, Until: until, Limit: limit})
}

// Current returns the latest sample or nil when the user has none.
func (l *LocationService) Current(ctx context.Context, userID string) (*models.LocationSample, error) {
	sample, err := l.store.LatestLocation(ctx, userID)
	if apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, nil
	}
	return sample, err
}

// Nearby lists the latest position of every tourist seen in the last 30
// minutes. Authorities only.
func (l *LocationService) Nearby(ctx context.Context, actor models.Identity) ([]TouristPosition, error) {
	if err := requireAuthority(actor, "view tourist positions"); err != nil {
		return nil, err
	}
	since := models.NewTimestamp(time.Now().Add(-nearbyWindow))
	samples, err := l.store.ListLocations(ctx, store.LocationFilter{Since: &since, Limit: heatmapSampleLimit})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := make([]TouristPosition, 0)
	for _, s := range samples {
		if seen[s.UserID] {
			continue
		}
		seen[s.UserID] = true
		u, err := l.store.GetUser(ctx, s.UserID)
		if err != nil {
			if apperrors.IsKind(err, apperrors.KindNotFound) {
				continue
			}
			return nil, err
		}
		if u.Role != models.RoleTourist {
			continue
		}
		out = append(out, TouristPosition{LocationSample: s, TouristName: u.Name, TouristPhone: u.Phone})
	}
	return out, nil
}

// Heatmap buckets samples from the last hours onto a 0.001° grid.
func (l *LocationService) Heatmap(ctx context.Context, hours int) ([]HeatCell, error) {
	if hours <= 0 {
		hours = 24
	}
	since := models.NewTimestamp(time.Now().Add(-time.Duration(hours) * time.Hour))
	samples, err := l.store.ListLocations(ctx, store.LocationFilter{Since: &since, Limit: heatmapSampleLimit})
	if err != nil {
		return nil, err
	}

	type key struct{ lat, lng int64 }
	cells := make(map[key]*HeatCell)
	order := make([]key, 0)
	for _, s := range samples {
		k := key{int64(math.Round(s.Latitude * 1000)), int64(math.Round(s.Longitude * 1000))}
		c, ok := cells[k]
		if !ok {
			c = &HeatCell{Lat: float64(k.lat) / 1000, Lng: float64(k.lng) / 1000, ZoneType: s.ZoneType}
			cells[k] = c
			order = append(order, k)
		}
		c.Intensity++
		if riskRank(s.ZoneType) > riskRank(c.ZoneType) {
			c.ZoneType = s.ZoneType
		}
	}
	out := make([]HeatCell, 0, len(order))
	for _, k := range order {
		out = append(out, *cells[k])
	}
	return out, nil
}

func riskRank(z models.ZoneType) int {
	switch z {
	case models.ZoneHighRisk:
		return 2
	case models.ZoneModerate:
		return 1
	}
	return 0
}
