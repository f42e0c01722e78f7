package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/BearBump/ColisBox/internal/models"
)

// NormalizeNumber приводит трек-номер к каноническому виду (ключ реестра).
func NormalizeNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}

// Registry — реестр посылок по нормализованному трек-номеру.
// Архив — это флаг на записи, а не отдельная коллекция: активный срез
// всегда вычисляется фильтром, чтобы не разъезжались два хранилища.
type Registry struct {
	mu       sync.RWMutex
	packages map[string]*models.Package
}

func New() *Registry {
	return &Registry{packages: make(map[string]*models.Package)}
}

func (r *Registry) Get(number string) (*models.Package, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packages[NormalizeNumber(number)]
	return p, ok
}

func (r *Registry) Has(number string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.packages[NormalizeNumber(number)]
	return ok
}

func (r *Registry) Add(p *models.Package) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages[p.TrackingNumber] = p
}

func (r *Registry) Remove(number string) (*models.Package, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := NormalizeNumber(number)
	p, ok := r.packages[key]
	if ok {
		delete(r.packages, key)
	}
	return p, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.packages)
}

// Active возвращает неархивированные посылки.
func (r *Registry) Active() []*models.Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Package, 0, len(r.packages))
	for _, p := range r.packages {
		if !p.Archived {
			out = append(out, p)
		}
	}
	sortByAdded(out)
	return out
}

// All возвращает все посылки, включая архив.
func (r *Registry) All() []*models.Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Package, 0, len(r.packages))
	for _, p := range r.packages {
		out = append(out, p)
	}
	sortByAdded(out)
	return out
}

// KnownNumbers — множество всех номеров (и архивных тоже): извлечение из почты
// не должно переоткрывать уже виденные посылки.
func (r *Registry) KnownNumbers() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]struct{}, len(r.packages))
	for n := range r.packages {
		out[n] = struct{}{}
	}
	return out
}

// LoadRecords наполняет реестр из стораджа. Записи с пустым номером пропускаем.
func (r *Registry) LoadRecords(records []models.PackageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		key := NormalizeNumber(rec.TrackingNumber)
		if key == "" {
			continue
		}
		p := models.FromRecord(rec)
		p.TrackingNumber = key
		r.packages[key] = p
	}
}

// Snapshot — сериализуемый срез для стораджа, в детерминированном порядке.
func (r *Registry) Snapshot() []models.PackageRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pkgs := make([]*models.Package, 0, len(r.packages))
	for _, p := range r.packages {
		pkgs = append(pkgs, p)
	}
	sortByAdded(pkgs)
	out := make([]models.PackageRecord, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, p.ToRecord())
	}
	return out
}

func sortByAdded(pkgs []*models.Package) {
	sort.Slice(pkgs, func(i, j int) bool {
		if pkgs[i].AddedAt.Equal(pkgs[j].AddedAt) {
			return pkgs[i].TrackingNumber < pkgs[j].TrackingNumber
		}
		return pkgs[i].AddedAt.Before(pkgs[j].AddedAt)
	})
}
