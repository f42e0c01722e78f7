package messages

import "time"

// PackageUpdated публикуется при смене статуса посылки.
type PackageUpdated struct {
	TrackingNumber string     `json:"tracking_number"`
	Carrier        string     `json:"carrier,omitempty"`
	OldStatus      string     `json:"old_status"`
	NewStatus      string     `json:"new_status"`
	InfoText       string     `json:"info_text,omitempty"`
	Location       string     `json:"location,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	CheckedAt      time.Time  `json:"checked_at"`
}
