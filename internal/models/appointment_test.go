package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[AppointmentStatus][]AppointmentStatus{
		StatusPending:  {StatusApproved, StatusRejected, StatusCanceled},
		StatusApproved: {StatusCanceled, StatusCompleted},
	}
	all := []AppointmentStatus{StatusPending, StatusApproved, StatusRejected, StatusCanceled, StatusCompleted}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, candidate := range allowed[from] {
				if candidate == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, AppointmentStatus("archived").Valid())
}

func TestSlotAppliesOn(t *testing.T) {
	monday, _ := ParseDate("2026-10-19")
	tuesday, _ := ParseDate("2026-10-20")

	recurring := AvailabilitySlot{IsRecurring: true, DayOfWeek: "Monday"}
	assert.True(t, recurring.AppliesOn(monday))
	assert.False(t, recurring.AppliesOn(tuesday))

	oneOff := AvailabilitySlot{IsRecurring: false, DayOfWeek: "Tuesday", Date: &tuesday}
	assert.True(t, oneOff.AppliesOn(tuesday))
	nextTuesday, _ := ParseDate("2026-10-27")
	assert.False(t, oneOff.AppliesOn(nextTuesday))
}
