package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpot_ReservationRoundTrip(t *testing.T) {
	spot := NewSpot("spot-1", "A1", CategoryStandard, Location{X: 1, Y: 2}, SourceMock, true)
	assert.NoError(t, spot.Validate())
	assert.False(t, spot.Available())

	reserved := spot.WithReservation(Reservation{Code: "ABC123", DurationMinutes: 60, ArrivalTime: time.Now()})
	assert.True(t, reserved.IsReserved)
	assert.NoError(t, reserved.Validate())
	assert.False(t, spot.IsReserved, "original value must not change")

	cleared := reserved.WithoutReservation()
	assert.Equal(t, spot, cleared)
}

func TestSpot_ValidateMismatch(t *testing.T) {
	spot := Spot{ID: "x", IsReserved: true}
	assert.ErrorIs(t, spot.Validate(), ErrReservationMismatch)

	spot = Spot{ID: "y", Reservation: &Reservation{Code: "Q"}}
	assert.ErrorIs(t, spot.Validate(), ErrReservationMismatch)
}
