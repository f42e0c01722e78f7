package carriers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ColisBox/internal/models"
)

func TestInferFromNumber(t *testing.T) {
	cases := []struct {
		number  string
		carrier string
	}{
		{"1Z999AA10123456784", models.CarrierUPS},
		{"TBA123456789012", models.CarrierAmazon},
		{"LP123456789CN", models.CarrierCainiao},
		{"YANWEN123456789", models.CarrierCainiao},
		{"6A12345678901", models.CarrierColissimo},
		{"123456789012345", models.CarrierColissimo},
		{"XY123456789FR", models.CarrierChronopost},
		{"1234567890", models.CarrierDHL},
		{"JJD123456789012345678", models.CarrierDHL},
		{"123-12345678", models.CarrierDHL},
		{"", models.CarrierUnknown},
		{"hello", models.CarrierUnknown},
		{"42", models.CarrierUnknown},
	}
	for _, tc := range cases {
		require.Equal(t, tc.carrier, InferFromNumber(tc.number), "number %q", tc.number)
	}
}

// Форматы пересекаются, порядок таблицы закреплён тестом:
// 13 цифр — chronopost, не dhl и не cainiao.
func TestInferFromNumber_Priority(t *testing.T) {
	require.Equal(t, models.CarrierChronopost, InferFromNumber("1234567890123"))
	// Нормализация: регистр и пробелы не влияют.
	require.Equal(t, models.CarrierUPS, InferFromNumber("  1z999aa10123456784 "))
}

func TestInferFromEmailSender(t *testing.T) {
	cases := []struct {
		sender  string
		carrier string
	}{
		{"noreply@chronopost.fr", models.CarrierChronopost},
		{"noreply@dhl.com", models.CarrierDHL},
		{"pkginfo@ups.com", models.CarrierUPS},
		{"shipment-tracking@amazon.fr", models.CarrierAmazon},
		{"transaction@notice.aliexpress.com", models.CarrierCainiao},
		// Display name с адресом в скобках.
		{"Chronopost <noreply@chronopost.fr>", models.CarrierChronopost},
		// Незнакомый адрес на знакомом домене — fallback по домену.
		{"promo@mail.laposte.fr", models.CarrierColissimo},
		{"someone@dhl.com", models.CarrierDHL},
		// Домен не должен совпадать по суффиксу без точки.
		{"x@notdhl.com", models.CarrierUnknown},
		{"friend@example.org", models.CarrierUnknown},
		{"not-an-address", models.CarrierUnknown},
		{"", models.CarrierUnknown},
	}
	for _, tc := range cases {
		require.Equal(t, tc.carrier, InferFromEmailSender(tc.sender), "sender %q", tc.sender)
	}
}
