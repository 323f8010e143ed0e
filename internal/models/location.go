package models

// LocationSample is append-only; ZoneType is fixed when the sample is written.
type LocationSample struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	UserID       string    `json:"userId" gorm:"size:64;not null;index:idx_locations_user_time,priority:1"`
	Latitude     float64   `json:"latitude" gorm:"not null"`
	Longitude    float64   `json:"longitude" gorm:"not null"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	Altitude     *float64  `json:"altitude,omitempty"`
	Speed        *float64  `json:"speed,omitempty"`
	Heading      *float64  `json:"heading,omitempty"`
	PlaceName    string    `json:"placeName,omitempty" gorm:"size:255"`
	BatteryLevel *int      `json:"batteryLevel,omitempty"`
	NetworkType  string    `json:"networkType,omitempty" gorm:"size:32"`
	IsOffline    bool      `json:"isOffline" gorm:"not null;default:false"`
	ZoneType     ZoneType  `json:"zoneType" gorm:"size:32;not null;default:safe"`
	RecordedAt   Timestamp `json:"recordedAt" gorm:"size:32;index:idx_locations_user_time,priority:2"`
}

func (LocationSample) TableName() string { return "locations" }
