package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ColisBox/internal/broker/messages"
	"github.com/BearBump/ColisBox/internal/carriers"
	"github.com/BearBump/ColisBox/internal/integrations/seventeentrack"
	"github.com/BearBump/ColisBox/internal/mailbox"
	"github.com/BearBump/ColisBox/internal/models"
	"github.com/BearBump/ColisBox/internal/registry"
	"github.com/BearBump/ColisBox/internal/storage"
)

// Provider — клиент трекинг-агрегатора, нужный движку.
type Provider interface {
	Register(ctx context.Context, number, carrier string) (bool, error)
	GetTrackInfo(ctx context.Context, numbers []string) (map[string]seventeentrack.TrackInfo, error)
	StopTracking(ctx context.Context, number string) (bool, error)
}

// MailFetcher — почтовый коллаборатор.
type MailFetcher interface {
	Fetch(ctx context.Context, since time.Time, max int) ([]mailbox.Message, error)
	MarkSeen(ctx context.Context, uid uint32) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Engine — координатор синхронизации. Цикл и ручные операции сериализованы
// одним мьютексом: реестр мутируется только в одной логической
// последовательности. Гонки возможны лишь внутри клиента провайдера,
// у него свой FIFO-затвор.
type Engine struct {
	registry *registry.Registry
	store    storage.Store
	provider Provider
	mail     MailFetcher // nil — почта не настроена
	producer Producer    // nil — брокер не настроен
	topic    string

	updateInterval time.Duration
	emailInterval  time.Duration
	archiveAfter   time.Duration
	lookback       time.Duration
	fetchLimit     int
	dedicated      bool

	mu             sync.Mutex
	lastEmailCheck time.Time

	triggerCh chan struct{}

	now func() time.Time

	startedAtUnixNano int64
	lastCycleUnixNano atomic.Int64
	totalCycles       atomic.Int64
	totalDiscovered   atomic.Int64
	totalDelivered    atomic.Int64
	totalArchived     atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(reg *registry.Registry, store storage.Store, provider Provider) *Engine {
	return &Engine{
		registry:       reg,
		store:          store,
		provider:       provider,
		topic:          "colisbox.package.updated",
		updateInterval: 30 * time.Minute,
		emailInterval:  15 * time.Minute,
		archiveAfter:   2 * 24 * time.Hour,
		lookback:       24 * time.Hour,
		fetchLimit:     50,
		triggerCh:      make(chan struct{}, 1),
		now:            func() time.Time { return time.Now().UTC() },

		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (e *Engine) WithSettings(updateInterval, emailInterval, archiveAfter time.Duration) *Engine {
	if updateInterval > 0 {
		e.updateInterval = updateInterval
	}
	if emailInterval > 0 {
		e.emailInterval = emailInterval
	}
	// archiveAfter == 0 выключает автоархив.
	e.archiveAfter = archiveAfter
	return e
}

func (e *Engine) WithMailbox(mail MailFetcher, lookback time.Duration, fetchLimit int, dedicated bool) *Engine {
	e.mail = mail
	if lookback > 0 {
		e.lookback = lookback
	}
	if fetchLimit > 0 {
		e.fetchLimit = fetchLimit
	}
	e.dedicated = dedicated
	return e
}

func (e *Engine) WithProducer(p Producer, topic string) *Engine {
	e.producer = p
	if topic != "" {
		e.topic = topic
	}
	return e
}

// Trigger просит внеочередной цикл (best-effort, не блокирует).
func (e *Engine) Trigger() {
	select {
	case e.triggerCh <- struct{}{}:
	default:
	}
}

// Run крутит циклы до отмены контекста. Первый цикл — сразу.
func (e *Engine) Run(ctx context.Context) error {
	t := time.NewTicker(e.updateInterval)
	defer t.Stop()

	e.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			e.RunCycle(ctx)
		case <-e.triggerCh:
			e.RunCycle(ctx)
		}
	}
}

// RunCycle выполняет один цикл синхронизации. Циклы не перекрываются.
// Ошибки провайдера и почты гасятся на границе шага: состояние, изменённое
// предыдущими шагами, сохраняется.
func (e *Engine) RunCycle(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.lastCycleUnixNano.Store(now.UnixNano())
	e.totalCycles.Add(1)

	if e.mail != nil && e.shouldCheckEmail(now) {
		e.scanMailbox(ctx)
		e.lastEmailCheck = now
	}

	e.refreshTracking(ctx)
	e.autoArchive(ctx, e.now())
	e.persist(ctx)
}

func (e *Engine) shouldCheckEmail(now time.Time) bool {
	if e.lastEmailCheck.IsZero() {
		return true
	}
	return now.Sub(e.lastEmailCheck) >= e.emailInterval
}

func (e *Engine) scanMailbox(ctx context.Context) {
	since := e.now().Add(-e.lookback)
	msgs, err := e.mail.Fetch(ctx, since, e.fetchLimit)
	if err != nil {
		slog.Error("mailbox fetch failed", "error", err.Error())
		e.setLastError(err)
		return
	}

	known := e.registry.KnownNumbers()
	found, matchedUIDs := mailbox.Extract(msgs, e.dedicated, known)

	for _, item := range found {
		ok, err := e.addLocked(ctx, item.TrackingNumber, item.Carrier, item.FriendlyLabel, models.SourceEmail)
		if errors.Is(err, seventeentrack.ErrQuotaExceeded) {
			// Квота кончилась — дальше и пробовать нечего. Ящик переотдаст
			// эти письма в окне lookback на следующем цикле.
			slog.Warn("provider quota exceeded, deferring email registrations")
			e.setLastError(err)
			break
		}
		if err != nil {
			slog.Error("register discovered package", "number", item.TrackingNumber, "error", err.Error())
			e.setLastError(err)
			continue
		}
		if ok {
			e.totalDiscovered.Add(1)
			slog.Info("discovered package from email",
				"number", item.TrackingNumber, "carrier", item.Carrier, "sender", item.SourceSender)
		}
	}

	if e.dedicated {
		for _, uid := range matchedUIDs {
			if err := e.mail.MarkSeen(ctx, uid); err != nil {
				slog.Warn("mark seen failed", "uid", uid, "error", err.Error())
			}
		}
	}
}

func (e *Engine) refreshTracking(ctx context.Context) {
	// Доставленные опрашиваем ровно один раз после перехода: пока LastUpdated
	// пуст, посылка ещё в выборке.
	var query []string
	for _, p := range e.registry.Active() {
		if p.Status != models.StatusDelivered || p.LastUpdated == nil {
			query = append(query, p.TrackingNumber)
		}
	}
	if len(query) == 0 {
		return
	}

	results, err := e.provider.GetTrackInfo(ctx, query)
	if errors.Is(err, seventeentrack.ErrRateLimited) {
		slog.Warn("provider rate limited, retrying next cycle")
		e.setLastError(err)
		return
	}
	if err != nil {
		slog.Error("provider gettrackinfo failed", "error", err.Error())
		e.setLastError(err)
		return
	}

	now := e.now()
	for number, info := range results {
		p, ok := e.registry.Get(number)
		if !ok {
			continue
		}

		oldStatus := p.Status
		p.Status = info.Status
		p.InfoText = info.InfoText
		p.Location = info.Location
		p.Events = info.Events
		updated := now
		p.LastUpdated = &updated
		// Локальный перевозчик авторитетен, пока провайдер молчит.
		if info.Carrier != "" {
			p.Carrier = info.Carrier
		}

		if p.Status == models.StatusDelivered && oldStatus != models.StatusDelivered && p.DeliveredAt == nil {
			delivered := now
			p.DeliveredAt = &delivered
			e.totalDelivered.Add(1)
			slog.Info("package delivered", "number", p.TrackingNumber, "name", p.DisplayName())
		}

		if p.Status != oldStatus {
			e.publishUpdate(ctx, p, oldStatus, now)
		}
	}
}

func (e *Engine) autoArchive(ctx context.Context, now time.Time) {
	if e.archiveAfter <= 0 {
		return
	}
	cutoff := now.Add(-e.archiveAfter)
	for _, p := range e.registry.Active() {
		if p.Status != models.StatusDelivered || p.DeliveredAt == nil {
			continue
		}
		if !p.DeliveredAt.Before(cutoff) {
			continue
		}
		if stopped, err := e.provider.StopTracking(ctx, p.TrackingNumber); err != nil || !stopped {
			// Неудача на стороне провайдера не мешает локальному архиву.
			slog.Warn("stop tracking failed", "number", p.TrackingNumber)
		}
		p.Archived = true
		e.totalArchived.Add(1)
		slog.Info("auto-archived delivered package", "number", p.TrackingNumber)
	}
}

func (e *Engine) persist(ctx context.Context) {
	if err := e.store.Save(ctx, e.registry.Snapshot()); err != nil {
		slog.Error("save registry", "error", err.Error())
		e.setLastError(err)
	}
}

// AddPackage регистрирует посылку вручную. Возвращает false и не делает
// сетевых вызовов, если номер уже в реестре; не создаёт локальной записи,
// если провайдер номер не принял.
func (e *Engine) AddPackage(ctx context.Context, number, carrier, label string) bool {
	e.mu.Lock()
	ok, err := e.addLocked(ctx, number, carrier, label, models.SourceManual)
	if ok {
		e.persist(ctx)
	}
	e.mu.Unlock()

	if err != nil {
		slog.Error("add package", "number", number, "error", err.Error())
		e.setLastError(err)
		return false
	}
	if ok {
		e.Trigger()
	}
	return ok
}

func (e *Engine) addLocked(ctx context.Context, number, carrier, label, source string) (bool, error) {
	number = registry.NormalizeNumber(number)
	if number == "" {
		return false, nil
	}
	if e.registry.Has(number) {
		return false, nil
	}

	if carrier == "" || carrier == models.CarrierUnknown {
		carrier = carriers.InferFromNumber(number)
	}

	ok, err := e.provider.Register(ctx, number, carrier)
	if err != nil {
		return false, err
	}
	if !ok {
		slog.Warn("provider rejected registration", "number", number)
		return false, nil
	}

	e.registry.Add(&models.Package{
		TrackingNumber: number,
		Carrier:        carrier,
		FriendlyName:   label,
		Status:         models.StatusUnknown,
		AddedAt:        e.now(),
		Source:         source,
	})
	return true, nil
}

// RemovePackage убирает посылку из реестра. Снятие с отслеживания у
// провайдера — best-effort, его неудача локальное удаление не блокирует.
func (e *Engine) RemovePackage(ctx context.Context, number string) bool {
	e.mu.Lock()
	p, ok := e.registry.Remove(number)
	if ok {
		if stopped, err := e.provider.StopTracking(ctx, p.TrackingNumber); err != nil || !stopped {
			slog.Warn("stop tracking failed", "number", p.TrackingNumber)
		}
		e.persist(ctx)
	}
	e.mu.Unlock()

	if ok {
		e.Trigger()
	}
	return ok
}

// ArchiveDelivered архивирует все доставленные активные посылки.
func (e *Engine) ArchiveDelivered(ctx context.Context) int {
	e.mu.Lock()
	count := 0
	for _, p := range e.registry.Active() {
		if p.Status == models.StatusDelivered {
			p.Archived = true
			count++
		}
	}
	if count > 0 {
		e.totalArchived.Add(int64(count))
		e.persist(ctx)
	}
	e.mu.Unlock()

	if count > 0 {
		e.Trigger()
	}
	return count
}

func (e *Engine) publishUpdate(ctx context.Context, p *models.Package, oldStatus string, now time.Time) {
	if e.producer == nil {
		return
	}
	msg := messages.PackageUpdated{
		TrackingNumber: p.TrackingNumber,
		Carrier:        p.Carrier,
		OldStatus:      oldStatus,
		NewStatus:      p.Status,
		InfoText:       p.InfoText,
		Location:       p.Location,
		DeliveredAt:    p.DeliveredAt,
		CheckedAt:      now,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal package update", "error", err.Error())
		return
	}
	if err := e.producer.Publish(ctx, e.topic, []byte(p.TrackingNumber), b); err != nil {
		slog.Warn("publish package update", "number", p.TrackingNumber, "error", err.Error())
	}
}

func (e *Engine) setLastError(err error) {
	e.lastErrorMu.Lock()
	e.lastError = err.Error()
	e.lastErrorMu.Unlock()
}

type Stats struct {
	StartedAt       time.Time  `json:"startedAt"`
	LastCycleAt     *time.Time `json:"lastCycleAt,omitempty"`
	TotalCycles     int64      `json:"totalCycles"`
	TotalDiscovered int64      `json:"totalDiscovered"`
	TotalDelivered  int64      `json:"totalDelivered"`
	TotalArchived   int64      `json:"totalArchived"`
	ActivePackages  int        `json:"activePackages"`
	TotalPackages   int        `json:"totalPackages"`
	LastError       string     `json:"lastError,omitempty"`
}

func (e *Engine) Stats() Stats {
	st := Stats{
		StartedAt:       time.Unix(0, e.startedAtUnixNano).UTC(),
		TotalCycles:     e.totalCycles.Load(),
		TotalDiscovered: e.totalDiscovered.Load(),
		TotalDelivered:  e.totalDelivered.Load(),
		TotalArchived:   e.totalArchived.Load(),
		ActivePackages:  len(e.registry.Active()),
		TotalPackages:   e.registry.Len(),
	}
	if n := e.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	e.lastErrorMu.Lock()
	st.LastError = e.lastError
	e.lastErrorMu.Unlock()
	return st
}
