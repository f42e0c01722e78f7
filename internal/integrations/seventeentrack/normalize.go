package seventeentrack

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ColisBox/internal/models"
)

// Обратная таблица код → перевозчик. 4036 отдаём как colissimo (laposte делит код).
var carrierByCode = map[int]string{
	4031:   models.CarrierChronopost,
	4036:   models.CarrierColissimo,
	100003: models.CarrierDHL,
	100002: models.CarrierUPS,
	100143: models.CarrierAmazon,
	190271: models.CarrierCainiao,
}

// Нечёткое сопоставление по названию перевозчика/типу сервиса.
// Порядок важен: первый вхождение-подстрока выигрывает.
type carrierKeyword struct {
	keyword string
	carrier string
}

var carrierKeywords = []carrierKeyword{
	{"chronopost", models.CarrierChronopost},
	{"colissimo", models.CarrierColissimo},
	{"la poste", models.CarrierLaPoste},
	{"laposte", models.CarrierLaPoste},
	{"dhl", models.CarrierDHL},
	{"amazon", models.CarrierAmazon},
	{"cainiao", models.CarrierCainiao},
	{"aliexpress", models.CarrierCainiao},
	{"yanwen", models.CarrierCainiao},
	{"ups", models.CarrierUPS},
}

func carrierFromKeyword(name string) string {
	low := strings.ToLower(name)
	if low == "" {
		return ""
	}
	for _, kw := range carrierKeywords {
		if strings.Contains(low, kw.keyword) {
			return kw.carrier
		}
	}
	return ""
}

// Статусы v2.2 приходят строками.
var statusByName = map[string]string{
	"InfoReceived":       models.StatusInfoReceived,
	"InTransit":          models.StatusInTransit,
	"OutForDelivery":     models.StatusOutForDelivery,
	"AvailableForPickup": models.StatusAvailableForPickup,
	"Delivered":          models.StatusDelivered,
	"DeliveryFailure":    models.StatusDeliveryFailure,
	"Exception":          models.StatusException,
	"Expired":            models.StatusExpired,
	"NotFound":           models.StatusNotFound,
}

// Статусы v1 — числами.
var statusByCode = map[int]string{
	0:  models.StatusNotFound,
	1:  models.StatusInfoReceived,
	10: models.StatusInTransit,
	20: models.StatusExpired,
	30: models.StatusAvailableForPickup,
	35: models.StatusDeliveryFailure,
	40: models.StatusDelivered,
	50: models.StatusException,
}

// parseEventTime разбирает таймстемп события. Пустая строка или мусор — событие
// пропускается, а не валит весь ответ.
func parseEventTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sortEventsNewestFirst(events []models.TrackingEvent) {
	// Stable: при равных таймстемпах сохраняем порядок провайдера.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}

// ---- v1 (legacy): z0 = последний статус, z1 = события, w1/w2 = коды перевозчика ----

type v1Event struct {
	Time        string `json:"a"`
	Description string `json:"z"`
	Location    string `json:"c"`
}

type v1Track struct {
	W1 int `json:"w1"`
	W2 int `json:"w2"`
	Z0 struct {
		StatusCode  int    `json:"s"`
		Description string `json:"z"`
		Location    string `json:"c"`
	} `json:"z0"`
	Z1 []v1Event `json:"z1"`
}

type v1Data struct {
	Accepted []struct {
		Number string  `json:"number"`
		Track  v1Track `json:"track"`
	} `json:"accepted"`
}

func parseTrackInfoV1(raw json.RawMessage) (map[string]TrackInfo, error) {
	var data v1Data
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, errors.Wrap(err, "decode v1 data")
		}
	}

	out := make(map[string]TrackInfo, len(data.Accepted))
	for _, item := range data.Accepted {
		info := TrackInfo{Status: models.StatusUnknown}
		if s, ok := statusByCode[item.Track.Z0.StatusCode]; ok {
			info.Status = s
		}

		var events []models.TrackingEvent
		for _, e := range item.Track.Z1 {
			ts, ok := parseEventTime(e.Time)
			if !ok {
				continue
			}
			events = append(events, models.TrackingEvent{
				Timestamp:   ts,
				Description: e.Description,
				Location:    e.Location,
			})
		}
		sortEventsNewestFirst(events)
		info.Events = events

		info.InfoText = item.Track.Z0.Description
		info.Location = item.Track.Z0.Location
		if info.InfoText == "" && len(events) > 0 {
			info.InfoText = events[0].Description
			info.Location = events[0].Location
		}

		if c, ok := carrierByCode[item.Track.W1]; ok {
			info.Carrier = c
		} else if c, ok := carrierByCode[item.Track.W2]; ok {
			info.Carrier = c
		}

		out[item.Number] = info
	}
	return out, nil
}

// ---- v2.2: track_info с "ногами" (providers) и latest_event/latest_status ----

type v2Event struct {
	TimeISO     string `json:"time_iso"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

type v2Provider struct {
	Provider struct {
		Key  int    `json:"key"`
		Name string `json:"name"`
	} `json:"provider"`
	ServiceType string    `json:"service_type"`
	Events      []v2Event `json:"events"`
}

type v2TrackInfo struct {
	LatestStatus struct {
		Status string `json:"status"`
	} `json:"latest_status"`
	LatestEvent *v2Event `json:"latest_event"`
	Tracking    struct {
		Providers []v2Provider `json:"providers"`
	} `json:"tracking"`
}

type v2Data struct {
	Accepted []struct {
		Number    string      `json:"number"`
		Carrier   int         `json:"carrier"`
		TrackInfo v2TrackInfo `json:"track_info"`
	} `json:"accepted"`
}

func parseTrackInfoV2(raw json.RawMessage) (map[string]TrackInfo, error) {
	var data v2Data
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, errors.Wrap(err, "decode v2 data")
		}
	}

	out := make(map[string]TrackInfo, len(data.Accepted))
	for _, item := range data.Accepted {
		ti := item.TrackInfo

		info := TrackInfo{Status: models.StatusUnknown}
		if s, ok := statusByName[ti.LatestStatus.Status]; ok {
			info.Status = s
		}

		// Сливаем события со всех ног маршрута.
		var events []models.TrackingEvent
		for _, leg := range ti.Tracking.Providers {
			for _, e := range leg.Events {
				ts, ok := parseEventTime(e.TimeISO)
				if !ok {
					continue
				}
				events = append(events, models.TrackingEvent{
					Timestamp:   ts,
					Description: e.Description,
					Location:    e.Location,
				})
			}
		}
		sortEventsNewestFirst(events)
		info.Events = events

		if ti.LatestEvent != nil {
			info.InfoText = ti.LatestEvent.Description
			info.Location = ti.LatestEvent.Location
		} else if len(events) > 0 {
			info.InfoText = events[0].Description
			info.Location = events[0].Location
		}

		info.Carrier = resolveCarrierV2(item.Carrier, ti)
		out[item.Number] = info
	}
	return out, nil
}

// resolveCarrierV2 — цепочка приоритетов: код ноги → имя ноги → тип сервиса →
// код на самом элементе. Первый непустой результат выигрывает.
func resolveCarrierV2(itemCarrier int, ti v2TrackInfo) string {
	for _, leg := range ti.Tracking.Providers {
		if c, ok := carrierByCode[leg.Provider.Key]; ok {
			return c
		}
	}
	for _, leg := range ti.Tracking.Providers {
		if c := carrierFromKeyword(leg.Provider.Name); c != "" {
			return c
		}
	}
	for _, leg := range ti.Tracking.Providers {
		if c := carrierFromKeyword(leg.ServiceType); c != "" {
			return c
		}
	}
	if c, ok := carrierByCode[itemCarrier]; ok {
		return c
	}
	return ""
}
