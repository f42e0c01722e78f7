package seventeentrack

import "github.com/pkg/errors"

// Различимые ошибки провайдера: вызывающая сторона матчит их через errors.Is.
var (
	// ErrRateLimited — 429 от транспорта. Повторить на следующем цикле, не сразу.
	ErrRateLimited = errors.New("17track: rate limited")
	// ErrQuotaExceeded — месячный лимит регистраций (-18010014). Лечится ожиданием.
	ErrQuotaExceeded = errors.New("17track: monthly quota exceeded")
	// ErrInvalidCredential — ключ не принят. Только на этапе настройки.
	ErrInvalidCredential = errors.New("17track: invalid credential")
)
