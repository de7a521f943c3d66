package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "10:30", want: 630},
		{in: "23:59", want: 1439},
		{in: "24:00", wantErr: true},
		{in: "9am", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, FormatClock(got))
		})
	}
}

func TestOverlaps(t *testing.T) {
	// 10:00-11:00 against other windows
	assert.True(t, Overlaps(600, 660, 630, 690))
	assert.True(t, Overlaps(600, 660, 540, 610))
	assert.True(t, Overlaps(600, 660, 610, 620))
	assert.False(t, Overlaps(600, 660, 660, 720), "adjacent windows do not overlap")
	assert.False(t, Overlaps(600, 660, 540, 600), "adjacent windows do not overlap")
}

func TestBookingStatusClassification(t *testing.T) {
	for _, s := range ActiveBookingStatuses {
		assert.True(t, s.IsActive(), s)
		assert.False(t, s.IsTerminal(), s)
	}
	assert.True(t, BookingStatusCompleted.IsTerminal())
	assert.True(t, BookingStatusCancelled.IsTerminal())
	assert.False(t, BookingStatusDisputed.IsActive())

	_, err := ParseBookingStatus("archived")
	assert.Error(t, err)
}

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole("provider")
	require.NoError(t, err)
	assert.Equal(t, RoleProvider, role)

	_, err = ParseUserRole("superuser")
	assert.Error(t, err)
}
