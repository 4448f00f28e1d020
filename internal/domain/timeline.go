package domain

import "time"

// StageState describes how a timeline stage should be rendered.
type StageState string

const (
	// StageCompleted marks a stage the order has already passed through.
	StageCompleted StageState = "completed"
	// StageActive marks the stage the order currently sits in.
	StageActive StageState = "active"
	// StageUpcoming marks a stage the order has not reached yet.
	StageUpcoming StageState = "upcoming"
)

// TimelineStage pairs a lifecycle status with its display state.
type TimelineStage struct {
	Status OrderStatus
	State  StageState
}

// OrderTimeline is the display projection of an order's fulfilment progress.
// When Cancelled is set the stages describe progress up to cancellation and
// renderers show the cancellation branch instead.
type OrderTimeline struct {
	Stages    []TimelineStage
	Cancelled bool
	PlacedAt  time.Time
}

// timelineStatuses is the forward-only fulfilment progression in display order.
var timelineStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// ProjectTimeline maps an order status onto the fulfilment timeline. Stages
// before the current status render completed, the current one active, the
// rest upcoming. Cancelled orders short-circuit to the cancellation branch.
// A status outside the progression yields all stages upcoming so stale or
// unknown data degrades to a "not started" view instead of an error.
func ProjectTimeline(status OrderStatus, placedAt time.Time) OrderTimeline {
	timeline := OrderTimeline{
		Stages:   make([]TimelineStage, len(timelineStatuses)),
		PlacedAt: placedAt,
	}

	if status == OrderStatusCancelled {
		timeline.Cancelled = true
		for i, s := range timelineStatuses {
			timeline.Stages[i] = TimelineStage{Status: s, State: StageUpcoming}
		}
		return timeline
	}

	current := -1
	for i, s := range timelineStatuses {
		if s == status {
			current = i
			break
		}
	}

	for i, s := range timelineStatuses {
		state := StageUpcoming
		switch {
		case current >= 0 && i < current:
			state = StageCompleted
		case current >= 0 && i == current:
			state = StageActive
		}
		timeline.Stages[i] = TimelineStage{Status: s, State: state}
	}

	return timeline
}
