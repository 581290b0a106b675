package domain

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIndividualAge(t *testing.T) {
	tests := []struct {
		name string
		dob  time.Time
		at   time.Time
		want int
	}{
		{"Birthday", date(1990, 5, 20), date(2026, 5, 20), 36},
		{"DayBefore", date(1990, 5, 20), date(2026, 5, 19), 35},
		{"EighteenthBirthdayLeapBirthYear", date(2008, 3, 1), date(2026, 3, 1), 18},
		{"DayBeforeBirthdayInLeapYear", date(2007, 12, 31), date(2024, 12, 30), 16},
		{"BirthdayInLeapYear", date(2007, 12, 31), date(2024, 12, 31), 17},
		{"LeapDayBirthNonLeapYear", date(2004, 2, 29), date(2022, 2, 28), 17},
		{"LeapDayBirthMarchFirst", date(2004, 2, 29), date(2022, 3, 1), 18},
		{"LeapDayBirthday", date(2004, 2, 29), date(2024, 2, 29), 20},
		{"ZeroDateOfBirth", time.Time{}, date(2026, 1, 1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := &Individual{DateOfBirth: tt.dob}
			if got := ind.Age(tt.at); got != tt.want {
				t.Errorf("Age(%s) with dob %s = %d, want %d",
					tt.at.Format(time.DateOnly), tt.dob.Format(time.DateOnly), got, tt.want)
			}
		})
	}
}
