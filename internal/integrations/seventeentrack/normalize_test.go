package seventeentrack

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ColisBox/internal/models"
)

func TestParseEventTime(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2026-03-01T10:00:00Z", true},
		{"2026-03-01T10:00:00+02:00", true},
		{"2026-03-01T10:00:00", true},
		{"2026-03-01 10:00:00", true},
		{"", false},
		{"yesterday", false},
	}
	for _, tc := range cases {
		_, ok := parseEventTime(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
	}
}

func TestCarrierFromKeyword(t *testing.T) {
	require.Equal(t, models.CarrierChronopost, carrierFromKeyword("Chronopost France"))
	require.Equal(t, models.CarrierLaPoste, carrierFromKeyword("La Poste"))
	require.Equal(t, models.CarrierCainiao, carrierFromKeyword("AliExpress Standard Shipping"))
	require.Equal(t, models.CarrierUPS, carrierFromKeyword("UPS Ground"))
	require.Equal(t, "", carrierFromKeyword("FedEx"))
	require.Equal(t, "", carrierFromKeyword(""))
}

func TestParseTrackInfoV1(t *testing.T) {
	raw := json.RawMessage(`{
	  "accepted": [
	    {
	      "number": "6A12345678901",
	      "track": {
	        "w1": 0,
	        "w2": 4036,
	        "z0": {"s": 40, "z": "Votre colis est livré", "c": "Paris"},
	        "z1": [
	          {"a": "2026-03-01 08:00:00", "z": "Pris en charge", "c": "Lyon"},
	          {"a": "2026-03-03 12:00:00", "z": "Livré", "c": "Paris"},
	          {"a": "bogus", "z": "Ignored"},
	          {"a": "2026-03-02 10:00:00", "z": "En transit", "c": "Dijon"}
	        ]
	      }
	    }
	  ]
	}`)

	out, err := parseTrackInfoV1(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)

	info := out["6A12345678901"]
	require.Equal(t, models.StatusDelivered, info.Status)
	require.Equal(t, "Votre colis est livré", info.InfoText)
	require.Equal(t, "Paris", info.Location)
	// w1 неизвестен, перевозчик взят из w2.
	require.Equal(t, models.CarrierColissimo, info.Carrier)

	// Событие с нечитаемым временем выброшено, остальные — свежие первыми.
	require.Len(t, info.Events, 3)
	require.Equal(t, "Livré", info.Events[0].Description)
	require.Equal(t, "En transit", info.Events[1].Description)
	require.Equal(t, "Pris en charge", info.Events[2].Description)
}

func TestParseTrackInfoV1_UnknownStatusAndFallbackInfo(t *testing.T) {
	raw := json.RawMessage(`{
	  "accepted": [
	    {
	      "number": "1234567890",
	      "track": {
	        "z0": {"s": 99},
	        "z1": [{"a": "2026-03-01 08:00:00", "z": "Scanned", "c": "Berlin"}]
	      }
	    }
	  ]
	}`)

	out, err := parseTrackInfoV1(raw)
	require.NoError(t, err)

	info := out["1234567890"]
	require.Equal(t, models.StatusUnknown, info.Status)
	// z0 пустой — info/location берутся из свежайшего события.
	require.Equal(t, "Scanned", info.InfoText)
	require.Equal(t, "Berlin", info.Location)
	require.Equal(t, "", info.Carrier)
}

func TestParseTrackInfoV2(t *testing.T) {
	raw := json.RawMessage(`{
	  "accepted": [
	    {
	      "number": "LP123456789CN",
	      "carrier": 190271,
	      "track_info": {
	        "latest_status": {"status": "InTransit"},
	        "latest_event": {"time_iso": "2026-03-03T12:00:00Z", "description": "Arrived at facility", "location": "Roissy"},
	        "tracking": {
	          "providers": [
	            {
	              "provider": {"key": 190271, "name": "Cainiao"},
	              "service_type": "standard",
	              "events": [
	                {"time_iso": "2026-03-01T08:00:00Z", "description": "Accepted", "location": "Hangzhou"},
	                {"time_iso": "2026-03-03T12:00:00Z", "description": "Arrived at facility", "location": "Roissy"}
	              ]
	            },
	            {
	              "provider": {"key": 4036, "name": "Colissimo"},
	              "service_type": "",
	              "events": [
	                {"time_iso": "2026-03-02T10:00:00Z", "description": "Handover", "location": "Paris"}
	              ]
	            }
	          ]
	        }
	      }
	    }
	  ]
	}`)

	out, err := parseTrackInfoV2(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)

	info := out["LP123456789CN"]
	require.Equal(t, models.StatusInTransit, info.Status)
	require.Equal(t, "Arrived at facility", info.InfoText)
	require.Equal(t, "Roissy", info.Location)
	require.Equal(t, models.CarrierCainiao, info.Carrier)

	// События слиты со всех ног и отсортированы свежими вперёд.
	require.Len(t, info.Events, 3)
	require.Equal(t, "Arrived at facility", info.Events[0].Description)
	require.Equal(t, "Handover", info.Events[1].Description)
	require.Equal(t, "Accepted", info.Events[2].Description)
	require.True(t, info.Events[0].Timestamp.Equal(time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)))
}

func TestResolveCarrierV2_Chain(t *testing.T) {
	// 1. Код ноги.
	ti := v2TrackInfo{}
	ti.Tracking.Providers = []v2Provider{{}}
	ti.Tracking.Providers[0].Provider.Key = 4031
	require.Equal(t, models.CarrierChronopost, resolveCarrierV2(0, ti))

	// 2. Код неизвестен — имя ноги.
	ti = v2TrackInfo{}
	ti.Tracking.Providers = []v2Provider{{}}
	ti.Tracking.Providers[0].Provider.Name = "DHL Express"
	require.Equal(t, models.CarrierDHL, resolveCarrierV2(0, ti))

	// 3. Имя непонятно — тип сервиса.
	ti = v2TrackInfo{}
	ti.Tracking.Providers = []v2Provider{{ServiceType: "colissimo access"}}
	require.Equal(t, models.CarrierColissimo, resolveCarrierV2(0, ti))

	// 4. Ноги пустые — код на самом элементе.
	require.Equal(t, models.CarrierUPS, resolveCarrierV2(100002, v2TrackInfo{}))

	// 5. Совсем ничего.
	require.Equal(t, "", resolveCarrierV2(0, v2TrackInfo{}))
}
