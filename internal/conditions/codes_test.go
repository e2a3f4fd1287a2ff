package conditions

import "testing"

func TestConditionForCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "Clear Sky"},
		{1, "Partly Cloudy"},
		{3, "Partly Cloudy"},
		{45, "Rainy"},
		{67, "Rainy"},
		{71, "Snowy"},
		{77, "Snowy"},
		{80, "Thunderstorm"},
		{99, "Thunderstorm"},
		{100, "Cloudy"},
		{-1, "Cloudy"},
	}
	for _, tt := range tests {
		if got := ConditionForCode(tt.code); got != tt.want {
			t.Errorf("ConditionForCode(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestDayConditionName(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "Sunny"},
		{2, "Partly Cloudy"},
		{61, "Rainy"},
		{75, "Thunderstorm"},
		{95, "Thunderstorm"},
		{120, "Cloudy"},
	}
	for _, tt := range tests {
		if got := DayConditionName(tt.code); got != tt.want {
			t.Errorf("DayConditionName(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestIconForCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, IconSun},
		{3, IconCloudSun},
		{63, IconRain},
		{73, IconSnow},
		{96, IconStorm},
		{150, IconCloud},
	}
	for _, tt := range tests {
		if got := IconForCode(tt.code); got != tt.want {
			t.Errorf("IconForCode(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestIconForDescription(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"Clear Sky", IconSun},
		{"Sunny", IconSun},
		{"Partly Cloudy", IconCloudSun},
		{"few clouds", IconCloudSun},
		{"overcast clouds", IconCloud},
		{"light drizzle", IconRain},
		{"Heavy Rain", IconRain},
		{"snow", IconSnow},
		{"thunderstorm", IconStorm},
		{"dust storm", IconStorm},
		{"mist", IconFog},
		{"Fog", IconFog},
		{"windy", IconWind},
		{"", IconCloud},
		{"haze", IconCloud},
	}
	for _, tt := range tests {
		if got := IconForDescription(tt.desc); got != tt.want {
			t.Errorf("IconForDescription(%q) = %q, want %q", tt.desc, got, tt.want)
		}
	}
}
