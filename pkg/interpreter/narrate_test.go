package interpreter

import "testing"

func TestNarrate(t *testing.T) {
	tests := []struct {
		name   string
		counts map[int]int
		total  int
		want   string
	}{
		{"none resolved", map[int]int{}, 0, "No se detectó billete válido"},
		{"nil counts", nil, 0, "No se detectó billete válido"},
		{"single note", map[int]int{50: 1}, 50, "Se detectó 1 billete de 50 soles"},
		{"two of one value", map[int]int{100: 2}, 200, "Se detectaron 2 billetes de 100 soles"},
		{"mixed", map[int]int{50: 1, 10: 2}, 70, "Se detectaron billetes: 2 de 10, 1 de 50. Total: 70 soles"},
		{"mixed all ones", map[int]int{200: 1, 20: 1, 100: 1}, 320, "Se detectaron billetes: 1 de 20, 1 de 100, 1 de 200. Total: 320 soles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Narrate(tt.counts, tt.total); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
