package calendar

import (
	"testing"
	"time"
)

func TestHolidays_Name(t *testing.T) {
	h := NewHolidays()

	tests := []struct {
		date time.Time
		want string
		ok   bool
	}{
		{time.Date(2024, 9, 18, 12, 0, 0, 0, time.UTC), "Independencia Nacional", true},
		{time.Date(2024, 12, 25, 8, 0, 0, 0, time.UTC), "Navidad", true},
		// Easter 2024 was 31 March.
		{time.Date(2024, 3, 29, 9, 0, 0, 0, time.UTC), "Viernes Santo", true},
		{time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.date.Format("2006-01-02"), func(t *testing.T) {
			got, ok := h.Name(tt.date)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Name() = %q, %v, want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
