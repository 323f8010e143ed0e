package models

// SOSStatus SOS 警报状态
type SOSStatus string

const (
	SOSActive       SOSStatus = "active"
	SOSAcknowledged SOSStatus = "acknowledged"
	SOSResponding   SOSStatus = "responding"
	SOSResolved     SOSStatus = "resolved"
	SOSFalseAlarm   SOSStatus = "false-alarm"
	SOSCancelled    SOSStatus = "cancelled"
)

const DefaultAlertType = "emergency"

// sosTransitions lists every legal next state. Terminal states have none.
var sosTransitions = map[SOSStatus][]SOSStatus{
	SOSActive:       {SOSAcknowledged, SOSResponding, SOSResolved, SOSFalseAlarm, SOSCancelled},
	SOSAcknowledged: {SOSResponding, SOSResolved, SOSFalseAlarm},
	SOSResponding:   {SOSResolved, SOSFalseAlarm},
	SOSResolved:     nil,
	SOSFalseAlarm:   nil,
	SOSCancelled:    nil,
}

// Settable reports whether an authority may request s through a status
// update. Cancellation is owner-only and goes through its own path.
func (s SOSStatus) Settable() bool {
	switch s {
	case SOSActive, SOSAcknowledged, SOSResponding, SOSResolved, SOSFalseAlarm:
		return true
	}
	return false
}

func (s SOSStatus) Terminal() bool {
	_, known := sosTransitions[s]
	return known && len(sosTransitions[s]) == 0
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to SOSStatus) bool {
	for _, next := range sosTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SOSAlert SOS 求助警报
type SOSAlert struct {
	ID                  string     `json:"id" gorm:"primaryKey;size:36"`
	UserID              string     `json:"userId" gorm:"size:64;not null;index"`
	Latitude            float64    `json:"latitude" gorm:"not null"`
	Longitude           float64    `json:"longitude" gorm:"not null"`
	PlaceName           string     `json:"placeName,omitempty" gorm:"size:255"`
	AlertType           string     `json:"alertType" gorm:"size:32;not null;default:emergency;index"`
	Status              SOSStatus  `json:"status" gorm:"size:16;not null;default:active;index"`
	Description         string     `json:"description,omitempty" gorm:"type:text"`
	AssignedAuthorityID *string    `json:"assignedAuthorityId" gorm:"size:64"`
	ResolutionNotes     string     `json:"resolutionNotes,omitempty" gorm:"type:text"`
	CreatedAt           Timestamp  `json:"createdAt" gorm:"size:32;index"`
	UpdatedAt           Timestamp  `json:"updatedAt" gorm:"size:32"`
	AcknowledgedAt      *Timestamp `json:"acknowledgedAt" gorm:"size:32"`
	ResolvedAt          *Timestamp `json:"resolvedAt" gorm:"size:32"`
}

func (SOSAlert) TableName() string { return "sos_alerts" }
