package widget

import "time"

// AutoplayInterval is the cadence of the carousel's automatic advance.
const AutoplayInterval = 6000 * time.Millisecond

// CarouselActionKind enumerates the transitions of the carousel.
type CarouselActionKind int

const (
	CarouselNext CarouselActionKind = iota
	CarouselPrevious
	CarouselSelect
	CarouselTick
)

// CarouselAction is a single transition request. Index is read only for CarouselSelect.
type CarouselAction struct {
	Kind  CarouselActionKind
	Index int
}

// Next advances by one slide, wrapping to the first.
func Next() CarouselAction { return CarouselAction{Kind: CarouselNext} }

// Previous steps back by one slide, wrapping to the last.
func Previous() CarouselAction { return CarouselAction{Kind: CarouselPrevious} }

// Tick is the autoplay transition; it behaves like Next.
func Tick() CarouselAction { return CarouselAction{Kind: CarouselTick} }

// Select jumps to a dot index.
func Select(index int) CarouselAction { return CarouselAction{Kind: CarouselSelect, Index: index} }

// CarouselState is the cursor over a fixed number of slides.
type CarouselState struct {
	Index int
	Count int
}

// NewCarouselState starts at the first slide.
func NewCarouselState(count int) CarouselState {
	if count < 0 {
		count = 0
	}
	return CarouselState{Index: 0, Count: count}
}

// Interactive reports whether navigation controls, dots and autoplay apply.
func (state CarouselState) Interactive() bool {
	return state.Count >= 2
}

// Reduce applies an action and returns the next state. Non-interactive states never change.
func Reduce(state CarouselState, action CarouselAction) CarouselState {
	if !state.Interactive() {
		return state
	}
	if state.Index < 0 || state.Index >= state.Count {
		state.Index = 0
	}
	next := state
	switch action.Kind {
	case CarouselNext, CarouselTick:
		next.Index = (state.Index + 1) % state.Count
	case CarouselPrevious:
		if state.Index > 0 {
			next.Index = state.Index - 1
		} else {
			next.Index = state.Count - 1
		}
	case CarouselSelect:
		if action.Index >= 0 && action.Index < state.Count {
			next.Index = action.Index
		}
	}
	return next
}
