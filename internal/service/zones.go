package service

import (
	"context"
	"sync"
	"time"

	"SafeYatra/internal/models"
	"SafeYatra/internal/store"
	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/logger"
	"SafeYatra/pkg/search"
	"SafeYatra/pkg/validator"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const activeZonesKey = "zones:active"

// ZoneInput is the body of a zone create request.
type ZoneInput struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description string   `json:"description"`
	ZoneType    string   `json:"zoneType" validate:"required,max=32"`
	Latitude    *float64 `json:"latitude" validate:"required,lat"`
	Longitude   *float64 `json:"longitude" validate:"required,lng"`
	Radius      *float64 `json:"radius" validate:"omitempty,gt=0"`
	RiskScore   *float64 `json:"riskScore" validate:"omitempty,min=0,max=100"`
	CrowdLevel  string   `json:"crowdLevel"`
	MaxCapacity *int     `json:"maxCapacity" validate:"omitempty,min=0"`
	Active      *bool    `json:"active"`
}

// ZonePatch carries the fields of a zone update; nil leaves a field as is.
type ZonePatch struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string  `json:"description"`
	ZoneType    *string  `json:"zoneType" validate:"omitempty,min=1,max=32"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,lat"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,lng"`
	Radius      *float64 `json:"radius" validate:"omitempty,gt=0"`
	RiskScore   *float64 `json:"riskScore" validate:"omitempty,min=0,max=100"`
	CrowdLevel  *string  `json:"crowdLevel"`
	MaxCapacity *int     `json:"maxCapacity" validate:"omitempty,min=0"`
	Active      *bool    `json:"active"`
}

// ZoneService is the Zone Classifier plus the authority-only zone admin.
// The active zone list is cached in process and dropped on every mutation.
type ZoneService struct {
	store store.Store
	cache *gocache.Cache
	ttl   time.Duration
	index search.Engine

	// gen counts invalidations; a load only fills the cache when no
	// invalidation happened while it was reading.
	mu  sync.Mutex
	gen uint64
}

func NewZoneService(s store.Store, ttl time.Duration) *ZoneService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ZoneService{
		store: s,
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// WithSearch keeps e in step with zone writes and enables Search.
func (z *ZoneService) WithSearch(e search.Engine) *ZoneService {
	z.index = e
	return z
}

// Reindex loads every zone into the search index.
func (z *ZoneService) Reindex(ctx context.Context) error {
	if z.index == nil {
		return nil
	}
	zones, err := z.store.ListZones(ctx, store.ZoneFilter{})
	if err != nil {
		return err
	}
	docs := make([]search.Doc, 0, len(zones))
	for i := range zones {
		docs = append(docs, zoneDoc(&zones[i]))
	}
	if err := z.index.IndexBatch(ctx, docs); err != nil {
		return err
	}
	logger.Info("zone index rebuilt", zap.Int("zones", len(docs)))
	return nil
}

// Search finds zones by name or description text, best match first.
func (z *ZoneService) Search(ctx context.Context, q, zoneType string, limit int) ([]models.SafetyZone, error) {
	if z.index == nil {
		return nil, apperrors.InvalidState("zone search is not enabled")
	}
	if q == "" && zoneType == "" {
		return nil, apperrors.Validation("q or type is required")
	}
	res, err := z.index.Search(ctx, search.Request{
		Query:   q,
		Filters: map[string]string{search.FieldZoneType: zoneType},
		Size:    limit,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "zone search failed")
	}
	zones := make([]models.SafetyZone, 0, len(res.Hits))
	for _, hit := range res.Hits {
		zone, err := z.store.GetZone(ctx, hit.ID)
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		zones = append(zones, *zone)
	}
	return zones, nil
}

func zoneDoc(zone *models.SafetyZone) search.Doc {
	return search.Doc{ID: zone.ID, Type: search.DocTypeZone, Fields: map[string]any{
		search.FieldName:        zone.Name,
		search.FieldDescription: zone.Description,
		search.FieldZoneType:    string(zone.ZoneType),
		search.FieldCrowdLevel:  zone.CrowdLevel,
		search.FieldRiskScore:   zone.RiskScore,
	}}
}

// reindex mirrors a zone write into the search index. The store stays
// authoritative, so index failures are only logged.
func (z *ZoneService) reindex(ctx context.Context, zone *models.SafetyZone, deleted string) {
	if z.index == nil {
		return
	}
	var err error
	if zone != nil {
		err = z.index.Index(ctx, zoneDoc(zone))
	} else {
		err = z.index.Delete(ctx, deleted)
	}
	if err != nil {
		logger.Warn("zone index update failed", zap.Error(err))
	}
}

// ActiveZones returns active zones in creation order.
func (z *ZoneService) ActiveZones(ctx context.Context) ([]models.SafetyZone, error) {
	if v, ok := z.cache.Get(activeZonesKey); ok {
		return v.([]models.SafetyZone), nil
	}
	z.mu.Lock()
	gen := z.gen
	z.mu.Unlock()

	active := true
	zones, err := z.store.ListZones(ctx, store.ZoneFilter{Active: &active})
	if err != nil {
		return nil, err
	}

	z.mu.Lock()
	if z.gen == gen {
		z.cache.Set(activeZonesKey, zones, z.ttl)
	}
	z.mu.Unlock()
	return zones, nil
}

// Invalidate drops the cached zone list and any load still in flight.
func (z *ZoneService) Invalidate() {
	z.mu.Lock()
	z.gen++
	z.cache.Delete(activeZonesKey)
	z.mu.Unlock()
}

// Classify tags a point with the coarse type of the nearest active zone, or
// safe when there are none. There is no radius check.
func (z *ZoneService) Classify(ctx context.Context, lat, lng float64) (models.ZoneType, error) {
	zones, err := z.ActiveZones(ctx)
	if err != nil {
		return "", err
	}
	nearest := NearestZone(zones, lat, lng)
	if nearest == nil {
		return models.ZoneSafe, nil
	}
	return nearest.ZoneType.Coarse(), nil
}

// NearestZone picks the zone with the smallest planar squared distance to
// (lat, lng). The first zone wins an exact tie.
func NearestZone(zones []models.SafetyZone, lat, lng float64) *models.SafetyZone {
	var (
		best     *models.SafetyZone
		bestDist float64
	)
	for i := range zones {
		dLat := zones[i].Latitude - lat
		dLng := zones[i].Longitude - lng
		d := dLat*dLat + dLng*dLng
		if best == nil || d < bestDist {
			best = &zones[i]
			bestDist = d
		}
	}
	return best
}

func (z *ZoneService) List(ctx context.Context, f store.ZoneFilter) ([]models.SafetyZone, error) {
	return z.store.ListZones(ctx, f)
}

func (z *ZoneService) Get(ctx context.Context, id string) (*models.SafetyZone, error) {
	return z.store.GetZone(ctx, id)
}

func (z *ZoneService) Stats(ctx context.Context) (*store.ZoneStats, error) {
	return z.store.ZoneStats(ctx)
}

func (z *ZoneService) Create(ctx context.Context, actor models.Identity, in ZoneInput) (*models.SafetyZone, error) {
	if err := requireAuthority(actor, "manage zones"); err != nil {
		return nil, err
	}
	if err := validator.ValidateStruct(in); err != nil {
		return nil, err
	}
	zone := &models.SafetyZone{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		ZoneType:    models.ZoneType(in.ZoneType),
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		Radius:      500,
		CrowdLevel:  in.CrowdLevel,
		MaxCapacity: in.MaxCapacity,
		Active:      true,
		CreatedBy:   actor.UserID,
	}
	if in.Radius != nil {
		zone.Radius = *in.Radius
	}
	if in.RiskScore != nil {
		zone.RiskScore = *in.RiskScore
	}
	if in.Active != nil {
		zone.Active = *in.Active
	}
	if err := z.store.CreateZone(ctx, zone); err != nil {
		return nil, err
	}
	z.Invalidate()
	z.reindex(ctx, zone, "")
	logger.Info("zone created", zap.String("zoneId", zone.ID), zap.String("type", string(zone.ZoneType)), zap.String("by", actor.UserID))
	return zone, nil
}

func (z *ZoneService) Update(ctx context.Context, actor models.Identity, id string, p ZonePatch) (*models.SafetyZone, error) {
	if err := requireAuthority(actor, "manage zones"); err != nil {
		return nil, err
	}
	if err := validator.ValidateStruct(p); err != nil {
		return nil, err
	}
	zone, err := z.store.GetZone(ctx, id)
	if err != nil {
		return nil, err
	}
	p.apply(zone)
	if err := z.store.UpdateZone(ctx, zone); err != nil {
		return nil, err
	}
	z.Invalidate()
	z.reindex(ctx, zone, "")
	logger.Info("zone updated", zap.String("zoneId", id), zap.String("by", actor.UserID))
	return zone, nil
}

func (z *ZoneService) Delete(ctx context.Context, actor models.Identity, id string) error {
	if err := requireAuthority(actor, "manage zones"); err != nil {
		return err
	}
	if err := z.store.DeleteZone(ctx, id); err != nil {
		return err
	}
	z.Invalidate()
	z.reindex(ctx, nil, id)
	logger.Info("zone deleted", zap.String("zoneId", id), zap.String("by", actor.UserID))
	return nil
}

func (p ZonePatch) apply(zone *models.SafetyZone) {
	if p.Name != nil {
		zone.Name = *p.Name
	}
	if p.Description != nil {
		zone.Description = *p.Description
	}
	if p.ZoneType != nil {
		zone.ZoneType = models.ZoneType(*p.ZoneType)
	}
	if p.Latitude != nil {
		zone.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		zone.Longitude = *p.Longitude
	}
	if p.Radius != nil {
		zone.Radius = *p.Radius
	}
	if p.RiskScore != nil {
		zone.RiskScore = *p.RiskScore
	}
	if p.CrowdLevel != nil {
		zone.CrowdLevel = *p.CrowdLevel
	}
	if p.MaxCapacity != nil {
		zone.MaxCapacity = p.MaxCapacity
	}
	if p.Active != nil {
		zone.Active = *p.Active
	}
}

func requireAuthority(actor models.Identity, action string) error {
	if !actor.Role.IsAuthority() {
		return apperrors.Forbidden("only authorities can %s", action)
	}
	return nil
}
