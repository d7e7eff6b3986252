package sparsearray

import (
	"fmt"
)

type Range struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

func (r Range) Valid() bool {
	return r.Start >= 0 && r.Length > 0
}

// End is the first index after the range
func (r Range) End() int {
	return r.Start + r.Length
}

func (r Range) Contains(i int) bool {
	return i >= r.Start && i < r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("%d - %d", r.Start, r.End()-1)
}

// WindowStart rounds i down to the start of its window.
func WindowStart(i, windowSize int) int {
	if i < 0 {
		// floor division for negative indexes
		return -((-i + windowSize - 1) / windowSize) * windowSize
	}
	return (i / windowSize) * windowSize
}
