package store

import (
	"context"

	"SafeYatra/internal/models"
	"SafeYatra/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DemoUsers are the accounts SeedDemo creates.
var DemoUsers = []models.User{
	{ID: "auth-rajesh", Name: "Inspector Rajesh Kumar", Email: "rajesh.kumar@delhipolice.gov.in", Phone: "+91-9810000001", Role: models.RoleAuthority},
	{ID: "auth-priya", Name: "Dr. Priya Sharma", Email: "priya.sharma@tourism.gov.in", Phone: "+91-9810000002", Role: models.RoleAuthority},
	{ID: "auth-amit", Name: "Officer Amit Singh", Email: "amit.singh@delhipolice.gov.in", Phone: "+91-9810000003", Role: models.RoleAdmin},
	{ID: "tourist-john", Name: "John Smith", Email: "john.smith@example.com", Phone: "+1-555-0101", Role: models.RoleTourist},
	{ID: "tourist-emma", Name: "Emma Wilson", Email: "emma.wilson@example.com", Phone: "+44-7700-900101", Role: models.RoleTourist},
	{ID: "tourist-akira", Name: "Akira Tanaka", Email: "akira.tanaka@example.com", Phone: "+81-90-0000-0101", Role: models.RoleTourist},
	{ID: "tourist-maria", Name: "Maria Garcia", Email: "maria.garcia@example.com", Phone: "+34-600-000-101", Role: models.RoleTourist},
	{ID: "tourist-priyanka", Name: "Priyanka Patel", Email: "priyanka.patel@example.com", Phone: "+91-9820000101", Role: models.RoleTourist},
}

func demoZones() []models.SafetyZone {
	z := func(name, desc string, t models.ZoneType, lat, lng, radius, risk float64, crowd string) models.SafetyZone {
		return models.SafetyZone{
			ID: uuid.NewString(), Name: name, Description: desc, ZoneType: t,
			Latitude: lat, Longitude: lng, Radius: radius, RiskScore: risk,
			CrowdLevel: crowd, Active: true, CreatedBy: "auth-amit",
		}
	}
	return []models.SafetyZone{
		z("India Gate", "War memorial and open lawns along Rajpath", models.ZoneTouristSpot, 28.6129, 77.2295, 300, 10, "high"),
		z("Red Fort", "Mughal fort complex, heavy footfall on weekends", models.ZoneTouristSpot, 28.6562, 77.2410, 400, 15, "high"),
		z("Qutub Minar", "UNESCO heritage site", models.ZoneTouristSpot, 28.5245, 77.1855, 300, 10, "medium"),
		z("Lotus Temple", "Bahai house of worship", models.ZoneTouristSpot, 28.5535, 77.2588, 300, 5, "medium"),
		z("Humayun Tomb", "Mughal garden tomb", models.ZoneTouristSpot, 28.5933, 77.2507, 300, 5, "medium"),
		z("Connaught Place", "Central shopping and business district", models.ZoneSafe, 28.6315, 77.2167, 600, 20, "high"),
		z("Chandni Chowk", "Crowded old market, watch for pickpockets", models.ZoneModerate, 28.6506, 77.2334, 800, 45, "very-high"),
		z("Paharganj Area", "Reports of scams and petty theft after dark", models.ZoneHighRisk, 28.6448, 77.2107, 500, 65, "high"),
		z("AIIMS Hospital", "All India Institute of Medical Sciences, 24x7 emergency", models.ZoneHospital, 28.5672, 77.2100, 500, 0, "high"),
		z("Parliament Street PS", "Police station with tourist help desk", models.ZonePoliceStation, 28.6200, 77.2150, 300, 0, "low"),
	}
}

// SeedDemo fills an empty store with New Delhi zones and demo accounts. It
// reports whether anything was written.
func SeedDemo(ctx context.Context, s Store) (bool, error) {
	empty, err := s.IsEmpty(ctx)
	if err != nil || !empty {
		return false, err
	}
	err = s.WithTx(ctx, func(tx Store) error {
		for i := range DemoUsers {
			u := DemoUsers[i]
			if err := tx.UpsertUser(ctx, &u); err != nil {
				return err
			}
		}
		for _, zone := range demoZones() {
			zone := zone
			if err := tx.CreateZone(ctx, &zone); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	logger.Info("demo data seeded", zap.Int("users", len(DemoUsers)))
	return true, nil
}
