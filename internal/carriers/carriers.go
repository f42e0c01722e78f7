package carriers

import (
	"regexp"
	"strings"

	"github.com/BearBump/ColisBox/internal/models"
)

// Таблицы определения перевозчика. Порядок важен: форматы пересекаются
// (13 цифр подходит и chronopost, и другим), поэтому сначала узкие форматы.

type numberPatterns struct {
	carrier  string
	patterns []*regexp.Regexp
}

var numberTable = []numberPatterns{
	{models.CarrierUPS, compileAll(
		`^1Z[A-Z0-9]{16}$`,
	)},
	{models.CarrierAmazon, compileAll(
		`^TBA\d{12,}$`,
	)},
	{models.CarrierCainiao, compileAll(
		`^L[RPT][A-Z0-9]{7,9}[A-Z]{2}$`,
		`^YANWEN\d+$`,
	)},
	{models.CarrierColissimo, compileAll(
		`^6[A-Z]\d{11}$`,
		`^[0-9]{15}$`,
	)},
	{models.CarrierChronopost, compileAll(
		`^[A-Z]{2}\d{9}FR$`,
		`^\d{13}$`,
	)},
	{models.CarrierDHL, compileAll(
		`^\d{10,11}$`,
		`^JJD\d{18}$`,
		`^\d{3}-\d{8}$`,
	)},
}

// Точные адреса отправителей нотификаций.
var senderTable = map[string]string{
	"noreply@chronopost.fr":          models.CarrierChronopost,
	"notification@chronopost.fr":     models.CarrierChronopost,
	"noreply@laposte.fr":             models.CarrierColissimo,
	"noreply@notif.laposte.fr":       models.CarrierColissimo,
	"noreply@dhl.com":                models.CarrierDHL,
	"noreply@ups.com":                models.CarrierUPS,
	"pkginfo@ups.com":                models.CarrierUPS,
	"shipment-tracking@amazon.fr":    models.CarrierAmazon,
	"no-reply@amazon.fr":             models.CarrierAmazon,
	"shipment-tracking@amazon.com":   models.CarrierAmazon,
	"noreply@aliexpress.com":         models.CarrierCainiao,
	"transaction@notice.aliexpress.com": models.CarrierCainiao,
}

// Fallback по домену (и поддоменам).
type domainCarrier struct {
	domain  string
	carrier string
}

var domainTable = []domainCarrier{
	{"chronopost.fr", models.CarrierChronopost},
	{"laposte.fr", models.CarrierColissimo},
	{"dhl.com", models.CarrierDHL},
	{"ups.com", models.CarrierUPS},
	{"amazon.fr", models.CarrierAmazon},
	{"amazon.com", models.CarrierAmazon},
	{"aliexpress.com", models.CarrierCainiao},
}

var addrInBrackets = regexp.MustCompile(`<([^>]+)>`)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// InferFromNumber определяет перевозчика по формату трек-номера.
// Первый совпавший паттерн в порядке таблицы выигрывает.
func InferFromNumber(trackingNumber string) string {
	number := strings.ToUpper(strings.TrimSpace(trackingNumber))
	for _, entry := range numberTable {
		for _, re := range entry.patterns {
			if re.MatchString(number) {
				return entry.carrier
			}
		}
	}
	return models.CarrierUnknown
}

// InferFromEmailSender определяет перевозчика по адресу отправителя письма.
// Понимает форму "Display Name <addr>".
func InferFromEmailSender(sender string) string {
	addr := strings.ToLower(strings.TrimSpace(sender))
	if m := addrInBrackets.FindStringSubmatch(addr); m != nil {
		addr = strings.ToLower(m[1])
	}

	if c, ok := senderTable[addr]; ok {
		return c
	}

	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return models.CarrierUnknown
	}
	domain := addr[at+1:]
	for _, dc := range domainTable {
		if domain == dc.domain || strings.HasSuffix(domain, "."+dc.domain) {
			return dc.carrier
		}
	}
	return models.CarrierUnknown
}
