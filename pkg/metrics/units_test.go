package metrics

import "testing"

func TestFormatPower(t *testing.T) {
	tests := []struct {
		watts float64
		want  string
	}{
		{0, "0 W"},
		{-0.4, "0 W"},
		{950, "950 W"},
		{9999, "9999 W"},
		{-1200, "-1200 W"},
		{12345, "12.3 kW"},
		{-25000, "-25.0 kW"},
		{1.5e6, "1.5 MW"},
		{25e6, "25 MW"},
	}
	for _, tt := range tests {
		if got := FormatPower(tt.watts); got != tt.want {
			t.Errorf("FormatPower(%v) = %q, want %q", tt.watts, got, tt.want)
		}
	}
}

func TestFormatEnergy(t *testing.T) {
	tests := []struct {
		wh   float64
		want string
	}{
		{500, "500 Wh"},
		{1500, "1.5 kWh"},
		{15000, "15 kWh"},
		{2.5e6, "2.5 MWh"},
		{12e6, "12 MWh"},
	}
	for _, tt := range tests {
		if got := FormatEnergy(tt.wh); got != tt.want {
			t.Errorf("FormatEnergy(%v) = %q, want %q", tt.wh, got, tt.want)
		}
	}
}

func TestFormatKWh(t *testing.T) {
	if got := FormatKWh(12.34, 1); got != "12.3 kWh" {
		t.Errorf("got %q", got)
	}
	if got := FormatKWh(-0.04, 1); got != "0.0 kWh" {
		t.Errorf("got %q", got)
	}
}
