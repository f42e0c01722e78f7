package models

import "time"

// EventRecord / PackageRecord — формат хранения (JSON, ISO-8601 таймстемпы).
// Это wire-контракт стораджа: менять теги нельзя без миграции.
type EventRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
}

type PackageRecord struct {
	TrackingNumber string        `json:"tracking_number"`
	Carrier        string        `json:"carrier"`
	FriendlyName   string        `json:"friendly_name,omitempty"`
	Status         string        `json:"status"`
	InfoText       string        `json:"info_text,omitempty"`
	Location       string        `json:"location,omitempty"`
	Events         []EventRecord `json:"events"`
	AddedAt        time.Time     `json:"added_at"`
	LastUpdated    *time.Time    `json:"last_updated,omitempty"`
	DeliveredAt    *time.Time    `json:"delivered_at,omitempty"`
	Source         string        `json:"source"`
	Archived       bool          `json:"archived,omitempty"`
}

func (p *Package) ToRecord() PackageRecord {
	var events []EventRecord
	if p.Events != nil {
		events = make([]EventRecord, 0, len(p.Events))
		for _, e := range p.Events {
			events = append(events, EventRecord{
				Timestamp:   e.Timestamp,
				Description: e.Description,
				Location:    e.Location,
			})
		}
	}
	return PackageRecord{
		TrackingNumber: p.TrackingNumber,
		Carrier:        p.Carrier,
		FriendlyName:   p.FriendlyName,
		Status:         p.Status,
		InfoText:       p.InfoText,
		Location:       p.Location,
		Events:         events,
		AddedAt:        p.AddedAt,
		LastUpdated:    p.LastUpdated,
		DeliveredAt:    p.DeliveredAt,
		Source:         p.Source,
		Archived:       p.Archived,
	}
}

func FromRecord(r PackageRecord) *Package {
	var events []TrackingEvent
	if r.Events != nil {
		events = make([]TrackingEvent, 0, len(r.Events))
		for _, e := range r.Events {
			events = append(events, TrackingEvent{
				Timestamp:   e.Timestamp,
				Description: e.Description,
				Location:    e.Location,
			})
		}
	}
	return &Package{
		TrackingNumber: r.TrackingNumber,
		Carrier:        r.Carrier,
		FriendlyName:   r.FriendlyName,
		Status:         r.Status,
		InfoText:       r.InfoText,
		Location:       r.Location,
		Events:         events,
		AddedAt:        r.AddedAt,
		LastUpdated:    r.LastUpdated,
		DeliveredAt:    r.DeliveredAt,
		Source:         r.Source,
		Archived:       r.Archived,
	}
}
