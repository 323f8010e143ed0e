package models

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
	NotificationAlert   NotificationType = "alert"
)

const ReferenceSOSAlert = "sos_alert"

type Notification struct {
	ID            string           `json:"id" gorm:"primaryKey;size:36"`
	UserID        string           `json:"userId" gorm:"size:64;not null;index:idx_notifications_user_time,priority:1"`
	Title         string           `json:"title" gorm:"size:255;not null"`
	Message       string           `json:"message" gorm:"type:text;not null"`
	Type          NotificationType `json:"type" gorm:"size:16;not null;default:info"`
	Read          bool             `json:"read" gorm:"not null;default:false"`
	ReadAt        *Timestamp       `json:"readAt,omitempty" gorm:"size:32"`
	ActionURL     string           `json:"actionUrl,omitempty" gorm:"size:512"`
	ReferenceID   string           `json:"referenceId,omitempty" gorm:"size:36"`
	ReferenceType string           `json:"referenceType,omitempty" gorm:"size:32"`
	CreatedAt     Timestamp        `json:"createdAt" gorm:"size:32;index:idx_notifications_user_time,priority:2"`
}

func (Notification) TableName() string { return "notifications" }
