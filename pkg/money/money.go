// Package money converts between peso amounts used at the API boundary
// and the centavo minor units stored everywhere else.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToCentavos converts a peso amount to centavos, rounding half away from zero.
func ToCentavos(pesos float64) int64 {
	return int64(math.Round(pesos * 100))
}

// FromCentavos converts centavos back to a peso amount for API responses.
func FromCentavos(centavos int64) float64 {
	return float64(centavos) / 100
}

// Format renders centavos as a display string, e.g. "PHP 1,234.50".
func Format(centavos int64) string {
	negative := centavos < 0
	if negative {
		centavos = -centavos
	}

	whole := centavos / 100
	frac := centavos % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("PHP %s%s.%02d", sign, b.String(), frac)
}
