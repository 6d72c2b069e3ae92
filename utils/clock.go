package utils

import (
	"time"

	"github.com/facebookgo/clock"
)

// NewMockClock returns a mock clock advanced to at.
func NewMockClock(at time.Time) *clock.Mock {
	clk := clock.NewMock()
	clk.Add(at.Sub(clk.Now()))
	return clk
}
