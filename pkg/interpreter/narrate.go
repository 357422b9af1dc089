package interpreter

import (
	"fmt"
	"sort"
	"strings"
)

// User-facing sentences. Existing clients match on these, keep them verbatim.
const (
	NoBanknoteText      = "No se detectó billete"
	NoValidBanknoteText = "No se detectó billete válido"
)

// Narrate renders denomination counts as a Spanish sentence
func Narrate(counts map[int]int, total int) string {
	if len(counts) == 0 {
		return NoValidBanknoteText
	}

	if len(counts) == 1 {
		for value, count := range counts {
			if count == 1 {
				return fmt.Sprintf("Se detectó 1 billete de %d soles", value)
			}
			return fmt.Sprintf("Se detectaron %d billetes de %d soles", count, value)
		}
	}

	values := make([]int, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Ints(values)

	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%d de %d", counts[v], v))
	}

	return fmt.Sprintf("Se detectaron billetes: %s. Total: %d soles", strings.Join(parts, ", "), total)
}
