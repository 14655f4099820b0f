package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeToSlotDefaults(t *testing.T) {
	cases := map[string]float64{
		"08:00": 0,
		"09:00": 2,
		"08:15": 0.5,
		"10:00": 4,
		"12:00": 8,
		"20:00": 24,
		"07:00": -2,
		"00:00": -16,
		"8:30":  1,
	}
	for in, want := range cases {
		got, err := TimeToSlot(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestTimeToSlotCustomMapper(t *testing.T) {
	m := SlotMapper{DayStartHour: 6, SlotMinutes: 15}
	got, err := m.TimeToSlot("07:00")
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)
}

func TestTimeToSlotMonotonic(t *testing.T) {
	prev, err := TimeToSlot("00:00")
	require.NoError(t, err)
	for mins := 1; mins <= 24*60; mins++ {
		cur, err := TimeToSlot(FormatClock(mins))
		require.NoError(t, err)
		require.Less(t, prev, cur, "at %s", FormatClock(mins))
		prev = cur
	}
}

func TestTimeToSlotFormatErrors(t *testing.T) {
	for _, in := range []string{"", "0800", "ab:cd", "08:", ":30", "8h30", "08:60", "25:00", "24:01", "-1:00", "08:3x", "123:00"} {
		_, err := TimeToSlot(in)
		require.Error(t, err, in)

		var fe *FormatError
		require.True(t, errors.As(err, &fe), "%q: %v", in, err)
		assert.Equal(t, in, fe.Input)
	}
}

func TestParseClockEndOfDay(t *testing.T) {
	mins, err := ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 1440, mins)
}

func TestSlotToClockRoundTrip(t *testing.T) {
	assert.Equal(t, "08:00", DefaultSlotMapper.SlotToClock(0))
	assert.Equal(t, "10:30", DefaultSlotMapper.SlotToClock(5))
	assert.Equal(t, "08:15", DefaultSlotMapper.SlotToClock(0.5))
}

func TestHourLabels(t *testing.T) {
	labels := DefaultSlotMapper.HourLabels(DefaultDayEndHour)
	require.Len(t, labels, 13)
	assert.Equal(t, "8:00", labels[0])
	assert.Equal(t, "20:00", labels[12])
	assert.Nil(t, DefaultSlotMapper.HourLabels(7))
	assert.Equal(t, 24, DefaultSlotMapper.SlotCount(DefaultDayEndHour))
}
