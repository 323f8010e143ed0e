package models

// ZoneType 区域类型. The set is open; unknown types classify as safe.
type ZoneType string

const (
	ZoneSafe          ZoneType = "safe"
	ZoneModerate      ZoneType = "moderate"
	ZoneHighRisk      ZoneType = "high-risk"
	ZoneHospital      ZoneType = "hospital"
	ZonePoliceStation ZoneType = "police-station"
	ZoneTouristSpot   ZoneType = "tourist-spot"
)

// Coarse collapses a zone type onto the tagging categories high-risk,
// moderate and safe.
func (z ZoneType) Coarse() ZoneType {
	switch z {
	case ZoneHighRisk:
		return ZoneHighRisk
	case ZoneModerate:
		return ZoneModerate
	default:
		return ZoneSafe
	}
}

type SafetyZone struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	ZoneType    ZoneType  `json:"zoneType" gorm:"size:32;not null;index"`
	Latitude    float64   `json:"latitude" gorm:"not null"`
	Longitude   float64   `json:"longitude" gorm:"not null"`
	Radius      float64   `json:"radius" gorm:"not null;default:500"` // 米
	RiskScore   float64   `json:"riskScore" gorm:"default:0"`
	CrowdLevel  string    `json:"crowdLevel,omitempty" gorm:"size:32"`
	MaxCapacity *int      `json:"maxCapacity,omitempty"`
	Active      bool      `json:"active" gorm:"not null;index"`
	CreatedBy   string    `json:"createdBy,omitempty" gorm:"size:64"`
	CreatedAt   Timestamp `json:"createdAt" gorm:"size:32;index"`
	UpdatedAt   Timestamp `json:"updatedAt" gorm:"size:32"`
}

func (SafetyZone) TableName() string { return "safety_zones" }
