package period

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeExpiration_lastDayOfEveryMonth(t *testing.T) {
	lastDays := map[time.Month]int{
		time.January: 31, time.February: 28, time.March: 31, time.April: 30,
		time.May: 31, time.June: 30, time.July: 31, time.August: 31,
		time.September: 30, time.October: 31, time.November: 30, time.December: 31,
	}
	for m := time.January; m <= time.December; m++ {
		for _, format := range []string{"%d-%02d", "%d-%d"} {
			input := fmt.Sprintf(format, 2025, int(m))

			t.Run(input, func(t *testing.T) {
				got, err := ComputeExpiration(input)
				require.NoError(t, err)

				assert.Equal(t, 2025, got.Year())
				assert.Equal(t, m, got.Month())
				assert.Equal(t, lastDays[m], got.Day())
				assert.Equal(t, 23, got.Hour())
				assert.Equal(t, 59, got.Minute())
				assert.Equal(t, 59, got.Second())
				assert.Equal(t, 999*int(time.Millisecond), got.Nanosecond())
				assert.Equal(t, time.Local, got.Location())
			})
		}
	}
}

func TestComputeExpiration_leapYears(t *testing.T) {
	tests := []struct {
		period  string
		wantDay int
	}{
		{period: "2024-02", wantDay: 29},
		{period: "2025-02", wantDay: 28},
		{period: "1900-02", wantDay: 28}, // century, not divisible by 400
		{period: "2000-02", wantDay: 29}, // divisible by 400
		{period: "2100-02", wantDay: 28},
		{period: "2028-2", wantDay: 29},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			got, err := ComputeExpiration(tt.period)
			if err != nil {
				t.Fatalf("ComputeExpiration() unexpected error = %v", err)
			}
			if got.Month() != time.February || got.Day() != tt.wantDay {
				t.Errorf("ComputeExpiration() = %v, want February %d", got, tt.wantDay)
			}
		})
	}
}

func TestComputeExpiration_invalid(t *testing.T) {
	inputs := []string{
		"2025-0",
		"2025-13",
		"2025-00",
		"2025--1",
		"2025-+1",
		"202501",
		"2025",
		"",
		"-",
		"2025-",
		"-01",
		"abcd-01",
		"2025-January",
		"2025-01-01",
		" 2025-01",
		"2025-1a",
	}
	for _, input := range inputs {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			got, err := ComputeExpiration(input)
			if err == nil {
				t.Fatalf("ComputeExpiration() = %v, want error", got)
			}
			if !errors.Is(err, ErrInvalidPeriod) {
				t.Errorf("ComputeExpiration() error = %v, want ErrInvalidPeriod", err)
			}

			var pErr *InvalidPeriodError
			require.True(t, errors.As(err, &pErr))
			assert.Equal(t, input, pErr.Period)
			assert.Equal(t, fmt.Sprintf("Invalid period received for expiration calculation: %q", input), err.Error())
			assert.True(t, got.IsZero())
		})
	}
}

func TestComputeExpiration_idempotent(t *testing.T) {
	first, err := ComputeExpiration("2025-06")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ComputeExpiration("2025-06")
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
}

func TestComputeExpiration_ordering(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Skipf("time zone database unavailable: %v", err)
	}

	for _, input := range []string{"2024-02", "2025-03", "2025-12"} {
		t.Run(input, func(t *testing.T) {
			p := MustParse(input)
			exp, err := ComputeExpirationIn(input, loc)
			require.NoError(t, err)

			for d := p.Start(loc); p.Contains(d); d = d.Add(6 * time.Hour) {
				assert.False(t, d.After(exp), "%v should not be after %v", d, exp)
			}
			lastMinute := time.Date(exp.Year(), exp.Month(), exp.Day(), 23, 59, 0, 0, loc)
			assert.True(t, lastMinute.Before(exp))

			nextStart := p.Next().Start(loc)
			assert.True(t, nextStart.After(exp))
			assert.Equal(t, time.Millisecond, nextStart.Sub(exp))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Period
	}{
		{input: "2025-01", want: Period{Year: 2025, Month: time.January}},
		{input: "2025-1", want: Period{Year: 2025, Month: time.January}},
		{input: "2025-012", want: Period{Year: 2025, Month: time.December}},
		{input: "1999-12", want: Period{Year: 1999, Month: time.December}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeriod_helpers(t *testing.T) {
	p := MustParse("2024-2")
	assert.Equal(t, "2024-02", p.String())
	assert.Equal(t, 29, p.Days())
	assert.Equal(t, Period{Year: 2024, Month: time.March}, p.Next())
	assert.Equal(t, Period{Year: 2025, Month: time.January}, MustParse("2024-12").Next())
	assert.Equal(t, p, FromTime(time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)))
	assert.Panics(t, func() { MustParse("2024-13") })
}
