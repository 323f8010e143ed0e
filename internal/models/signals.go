package models

// Domain signals emitted after a write commits. The sender is the entity
// pointer; params carry the extra values listed per signal.
const (
	// sender *LocationSample, params: Identity
	SigLocationRecorded = "location.recorded"
	// sender *SOSAlert, params: *User (creator, may be nil)
	SigSOSCreated = "sos.created"
	// sender *SOSAlert, params: Identity (actor), SOSStatus (previous)
	SigSOSStatusChanged = "sos.status_changed"
	// sender *SOSAlert, params: Identity (actor)
	SigSOSCancelled = "sos.cancelled"
	// sender *Notification
	SigNotificationCreated = "notification.created"
)
