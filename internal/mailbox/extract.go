package mailbox

import (
	"regexp"
	"strings"

	"github.com/BearBump/ColisBox/internal/carriers"
	"github.com/BearBump/ColisBox/internal/models"
)

// Сколько текста письма сканируем паттернами. HTML-простыни бывают огромными.
const maxScanBytes = 50 * 1024

const maxLabelLen = 60

// Паттерны трек-номеров: сначала общие, заякоренные на ключевые слова,
// потом форматы конкретных перевозчиков. Порядок — ревьюемый артефакт.
var trackingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:suivi|tracking|n[°o]?\s*(?:de\s+)?colis|shipment)\s*[:=]?\s*([A-Z0-9]{10,30})`),
	regexp.MustCompile(`(?i)(?:track|suivre)[^\n]*?([A-Z0-9]{10,30})`),
	regexp.MustCompile(`(?i)\b(1Z[A-Z0-9]{16})\b`),
	regexp.MustCompile(`(?i)\b(TBA\d{12,})\b`),
	regexp.MustCompile(`(?i)\b([A-Z]{2}\d{9}FR)\b`),
	regexp.MustCompile(`(?i)\b(6[A-Z]\d{11})\b`),
	regexp.MustCompile(`(?i)\b(L[RPT][A-Z0-9]{7,9}[A-Z]{2})\b`),
	regexp.MustCompile(`(?i)\b(JJD\d{18})\b`),
}

var replyPrefixes = []string{"re:", "fwd:", "fw:", "tr:"}

// Extracted — найденный в письме трек-номер.
type Extracted struct {
	TrackingNumber string
	Carrier        string
	FriendlyLabel  string
	SourceSender   string
}

// Extract прогоняет пачку писем через извлечение трек-номеров.
// known мутируется: найденные номера добавляются сразу, чтобы следующее письмо
// той же пачки не продублировало их. Второй результат — UID-ы писем, где
// что-то нашлось (для mark-seen в dedicated-режиме).
func Extract(messages []Message, dedicated bool, known map[string]struct{}) ([]Extracted, []uint32) {
	var results []Extracted
	var matchedUIDs []uint32

	for _, msg := range messages {
		senderCarrier := carriers.InferFromEmailSender(msg.Sender)
		// Личный ящик: письма от неизвестных отправителей не трогаем,
		// иначе ловим ложные срабатывания на любых длинных кодах.
		if !dedicated && senderCarrier == models.CarrierUnknown {
			continue
		}

		text := msg.Subject + "\n" + msg.Text + "\n" + msg.HTML
		if len(text) > maxScanBytes {
			text = text[:maxScanBytes]
		}

		found := findNumbers(text)
		if len(found) > 0 {
			matchedUIDs = append(matchedUIDs, msg.UID)
		}

		for _, number := range found {
			if _, ok := known[number]; ok {
				continue
			}
			carrier := senderCarrier
			if carrier == models.CarrierUnknown {
				carrier = carriers.InferFromNumber(number)
			}
			results = append(results, Extracted{
				TrackingNumber: number,
				Carrier:        carrier,
				FriendlyLabel:  friendlyLabel(msg.Subject, carrier),
				SourceSender:   msg.Sender,
			})
			known[number] = struct{}{}
		}
	}
	return results, matchedUIDs
}

func findNumbers(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, re := range trackingPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			number := m[0]
			if len(m) > 1 && m[1] != "" {
				number = m[1]
			}
			number = strings.ToUpper(number)
			if len(number) < 10 {
				continue
			}
			if _, ok := seen[number]; ok {
				continue
			}
			seen[number] = struct{}{}
			out = append(out, number)
		}
	}
	return out
}

// friendlyLabel строит человекочитаемую метку из темы письма.
func friendlyLabel(subject, carrier string) string {
	label := strings.TrimSpace(subject)
	for stripped := true; stripped; {
		stripped = false
		low := strings.ToLower(label)
		for _, prefix := range replyPrefixes {
			if strings.HasPrefix(low, prefix) {
				label = strings.TrimSpace(label[len(prefix):])
				stripped = true
				break
			}
		}
	}
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen]
	}
	if label == "" {
		label = capitalize(carrier)
	}
	return label
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
