package seventeentrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/BearBump/ColisBox/internal/models"
)

const (
	defaultBaseURL = "https://api.17track.net/track/v2.2"

	pathRegister     = "/register"
	pathGetTrackInfo = "/gettrackinfo"
	pathStopTrack    = "/stoptrack"
	pathGetQuota     = "/getquota"

	codeOK                = 0
	codeAlreadyRegistered = -18019901
	codeQuotaExceeded     = -18010014

	// ~3 запроса в секунду, как требует 17track.
	defaultMinInterval = 334 * time.Millisecond
)

// Версии схемы ответа gettrackinfo.
const (
	APIVersionV1 = "v1"
	APIVersionV2 = "v2.2"
)

// Коды перевозчиков 17track.
var carrierCodes = map[string]int{
	models.CarrierChronopost: 4031,
	models.CarrierColissimo:  4036,
	models.CarrierLaPoste:    4036,
	models.CarrierDHL:        100003,
	models.CarrierUPS:        100002,
	models.CarrierAmazon:     100143,
	models.CarrierCainiao:    190271,
}

// TrackInfo — нормализованный ответ по одному трек-номеру.
type TrackInfo struct {
	Status   string
	InfoText string
	Location string
	Events   []models.TrackingEvent // newest first
	Carrier  string                 // "" если провайдер не определил
}

// Quota — текущее потребление месячного лимита.
type Quota struct {
	Total     int `json:"quota_total"`
	Used      int `json:"quota_used"`
	Remaining int `json:"quota_remain"`
}

type Client struct {
	baseURL    string
	apiKey     string
	apiVersion string
	httpc      *http.Client

	// Один запрос за раз; limiter выдерживает минимальный интервал,
	// mutex гарантирует очередь строго в порядке прихода.
	mu      sync.Mutex
	limiter *rate.Limiter
}

func New(baseURL, apiKey, apiVersion string, minInterval time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if apiVersion == "" {
		apiVersion = APIVersionV2
	}
	if minInterval <= 0 {
		minInterval = defaultMinInterval
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiVersion: apiVersion,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *Client) post(ctx context.Context, path string, payload any) (*apiResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate wait")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("17token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("17track http %d", resp.StatusCode)
	}

	var r apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return &r, nil
}

// ValidateCredential проверяет ключ запросом квоты.
func (c *Client) ValidateCredential(ctx context.Context) error {
	r, err := c.post(ctx, pathGetQuota, struct{}{})
	if err != nil {
		return err
	}
	if r.Code != codeOK {
		return errors.Wrapf(ErrInvalidCredential, "code %d: %s", r.Code, r.Message)
	}
	return nil
}

// GetQuota возвращает текущие счётчики лимита.
func (c *Client) GetQuota(ctx context.Context) (Quota, error) {
	r, err := c.post(ctx, pathGetQuota, struct{}{})
	if err != nil {
		return Quota{}, err
	}
	if r.Code != codeOK {
		return Quota{}, fmt.Errorf("17track getquota code %d: %s", r.Code, r.Message)
	}
	var q Quota
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &q); err != nil {
			return Quota{}, errors.Wrap(err, "decode quota")
		}
	}
	return q, nil
}

type registerItem struct {
	Number  string `json:"number"`
	Carrier int    `json:"carrier,omitempty"`
}

type registerData struct {
	Accepted []struct {
		Number string `json:"number"`
	} `json:"accepted"`
	Rejected []struct {
		Number string `json:"number"`
		Error  struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"rejected"`
}

// Register регистрирует номер у провайдера. Стоит одну единицу квоты.
// "Уже зарегистрирован" — это успех, а не отказ.
func (c *Client) Register(ctx context.Context, number, carrier string) (bool, error) {
	item := registerItem{Number: number}
	if code, ok := carrierCodes[carrier]; ok {
		item.Carrier = code
	}

	r, err := c.post(ctx, pathRegister, []registerItem{item})
	if err != nil {
		return false, err
	}

	if r.Code == codeQuotaExceeded {
		return false, ErrQuotaExceeded
	}
	if r.Code != codeOK {
		slog.Error("17track register error", "number", number, "code", r.Code, "message", r.Message)
		return false, nil
	}

	var data registerData
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &data); err != nil {
			return false, errors.Wrap(err, "decode register data")
		}
	}
	if len(data.Accepted) > 0 {
		return true, nil
	}
	if len(data.Rejected) > 0 {
		rej := data.Rejected[0]
		if rej.Error.Code == codeAlreadyRegistered {
			slog.Debug("already registered on 17track", "number", number)
			return true, nil
		}
		slog.Warn("17track rejected number", "number", number, "message", rej.Error.Message)
		return false, nil
	}
	return false, nil
}

type queryItem struct {
	Number string `json:"number"`
}

// GetTrackInfo запрашивает статусы пачкой. Квоту не тратит.
// Номера, которых нет в ответе, просто отсутствуют в результате.
func (c *Client) GetTrackInfo(ctx context.Context, numbers []string) (map[string]TrackInfo, error) {
	out := make(map[string]TrackInfo, len(numbers))
	if len(numbers) == 0 {
		return out, nil
	}

	items := make([]queryItem, 0, len(numbers))
	for _, n := range numbers {
		items = append(items, queryItem{Number: n})
	}

	r, err := c.post(ctx, pathGetTrackInfo, items)
	if err != nil {
		return nil, err
	}
	if r.Code != codeOK {
		return nil, fmt.Errorf("17track gettrackinfo code %d: %s", r.Code, r.Message)
	}

	switch c.apiVersion {
	case APIVersionV1:
		return parseTrackInfoV1(r.Data)
	default:
		return parseTrackInfoV2(r.Data)
	}
}

// StopTracking снимает номер с отслеживания на стороне провайдера.
func (c *Client) StopTracking(ctx context.Context, number string) (bool, error) {
	r, err := c.post(ctx, pathStopTrack, []queryItem{{Number: number}})
	if err != nil {
		return false, err
	}
	return r.Code == codeOK, nil
}
