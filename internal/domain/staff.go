package domain

import "time"

// StaffStatus marks whether a support_list row is eligible for rotation.
type StaffStatus string

const (
	StaffStatusOnline  StaffStatus = "online"
	StaffStatusOffline StaffStatus = "offline"
)

// StaffRecord models one row of support_list. Rows are provisioned outside
// this service; only LastAssigned is ever written here.
type StaffRecord struct {
	Name         string
	ID           string
	Status       StaffStatus
	LastAssigned *time.Time
}

// Owner projects the record onto the identity used in notifications.
func (s StaffRecord) Owner() OwnerInfo {
	return OwnerInfo{Name: s.Name, ID: s.ID}
}

// OwnerInfo identifies who is responsible for an inbound event.
type OwnerInfo struct {
	Name string
	ID   string
}

// HasMention reports whether the owner carries a chat mention identifier.
func (o OwnerInfo) HasMention() bool {
	return o.ID != ""
}
