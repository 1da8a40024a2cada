// Package slots provides a bounded-churn pool of reusable rendering slots,
// each bound to one chapter at a time.
//
// A Pool only grows: released slots are kept and rebound on the next
// Acquire, so scrolling back and forth allocates nothing once the pool has
// reached the number of concurrently visible pages.
//
// A Pool is owned by a single goroutine. Acquire, Release and Slot.Fill
// must not be called concurrently.
package slots

import (
	"github.com/FocuswithJustin/JuniperReader/core/canon"
)

// State is the visual state of a slot.
type State int

const (
	// Loading means the slot is bound but its payload is stale or empty.
	Loading State = iota
	// Ready means the payload belongs to the bound chapter.
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "loading"
}

// Slot is a pooled rendering container.
type Slot[T any] struct {
	id      int
	book    int
	chapter int
	inUse   bool
	state   State
	payload T
}

// ID returns the slot's stable handle within its pool.
func (s *Slot[T]) ID() int { return s.id }

// Book returns the bound book index.
func (s *Slot[T]) Book() int { return s.book }

// Chapter returns the bound chapter index.
func (s *Slot[T]) Chapter() int { return s.chapter }

// InUse reports whether the slot is currently handed out.
func (s *Slot[T]) InUse() bool { return s.inUse }

// State returns Loading until content for the bound chapter is filled.
func (s *Slot[T]) State() State { return s.state }

// Payload returns the current payload. While Loading it may still hold the
// previous chapter's content; the renderer decides whether to show it.
func (s *Slot[T]) Payload() T { return s.payload }

// Fill stores payload if the slot is in use and still bound to
// (book, chapter). It returns false for a stale delivery, leaving the slot
// untouched.
func (s *Slot[T]) Fill(book, chapter int, payload T) bool {
	if !s.inUse || s.book != book || s.chapter != chapter {
		return false
	}
	s.payload = payload
	s.state = Ready
	return true
}

// Pool hands out slots bound to chapters of a layout.
type Pool[T any] struct {
	layout *canon.Layout
	slots  []*Slot[T]
}

// NewPool returns an empty pool over layout.
func NewPool[T any](layout *canon.Layout) *Pool[T] {
	return &Pool[T]{layout: layout}
}

// Acquire returns a slot bound to (book, chapter) and marked in use.
//
// A free slot still bound to the same chapter is preferred and keeps its
// content. Otherwise the first free slot is rebound and set to Loading, and
// only when no slot is free is a new one allocated. The caller requests
// content for a Loading slot and delivers it with Fill.
func (p *Pool[T]) Acquire(book, chapter int) *Slot[T] {
	var free *Slot[T]
	for _, s := range p.slots {
		if s.inUse {
			continue
		}
		if s.book == book && s.chapter == chapter {
			s.inUse = true
			return s
		}
		if free == nil {
			free = s
		}
	}

	if free == nil {
		free = &Slot[T]{id: len(p.slots)}
		p.slots = append(p.slots, free)
	}
	free.book = book
	free.chapter = chapter
	free.inUse = true
	free.state = Loading
	return free
}

// Release marks s free. Its binding and payload are kept.
func (p *Pool[T]) Release(s *Slot[T]) {
	s.inUse = false
}

// PositionOf returns the flat position of the chapter s is bound to.
func (p *Pool[T]) PositionOf(s *Slot[T]) (int, error) {
	return p.layout.Flatten(s.book, s.chapter)
}

// Len returns the number of slots ever allocated.
func (p *Pool[T]) Len() int {
	return len(p.slots)
}

// InUse returns the number of slots currently handed out.
func (p *Pool[T]) InUse() int {
	n := 0
	for _, s := range p.slots {
		if s.inUse {
			n++
		}
	}
	return n
}
