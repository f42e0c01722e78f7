package models

import "time"

// Нормализованные статусы посылки (закрытый набор, см. normalize в seventeentrack).
const (
	StatusUnknown            = "unknown"
	StatusInfoReceived       = "info_received"
	StatusInTransit          = "in_transit"
	StatusOutForDelivery     = "out_for_delivery"
	StatusAvailableForPickup = "available_for_pickup"
	StatusDelivered          = "delivered"
	StatusDeliveryFailure    = "delivery_failure"
	StatusException          = "exception"
	StatusExpired            = "expired"
	StatusNotFound           = "not_found"
)

// Перевозчики.
const (
	CarrierChronopost = "chronopost"
	CarrierColissimo  = "colissimo"
	CarrierLaPoste    = "laposte"
	CarrierDHL        = "dhl"
	CarrierUPS        = "ups"
	CarrierAmazon     = "amazon"
	CarrierCainiao    = "cainiao"
	CarrierUnknown    = "unknown"
)

// Откуда посылка попала в реестр.
const (
	SourceManual = "manual"
	SourceEmail  = "email"
)

// TrackingEvent — одно событие перевозчика. Неизменяемое.
type TrackingEvent struct {
	Timestamp   time.Time
	Description string
	Location    string
}

// Package — отслеживаемая посылка. Ключ — нормализованный (upper-case) трек-номер.
type Package struct {
	TrackingNumber string
	Carrier        string
	FriendlyName   string
	Status         string
	InfoText       string
	Location       string
	Events         []TrackingEvent // newest first
	AddedAt        time.Time
	LastUpdated    *time.Time
	DeliveredAt    *time.Time
	Source         string
	Archived       bool
}

func (p *Package) DisplayName() string {
	if p.FriendlyName != "" {
		return p.FriendlyName
	}
	return p.TrackingNumber
}

func (p *Package) LastEvent() *TrackingEvent {
	if len(p.Events) == 0 {
		return nil
	}
	return &p.Events[0]
}
