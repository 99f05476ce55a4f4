// Package view tracks whether the user is looking at the record list or at
// one record, and keeps that choice valid as records are deleted.
package view

import (
	"fmt"
	"sync"

	"github.com/entrhq/recordbook/pkg/records"
)

// Mode is the screen being shown.
type Mode int

const (
	ListView Mode = iota
	DetailView
)

func (m Mode) String() string {
	if m == DetailView {
		return "detail"
	}
	return "list"
}

// State is a snapshot of the selector. Index is only meaningful in DetailView.
type State struct {
	Mode  Mode
	Index int
}

func (s State) String() string {
	if s.Mode == DetailView {
		return fmt.Sprintf("detail(%d)", s.Index)
	}
	return "list"
}

// Selector starts in ListView.
type Selector struct {
	mu    sync.Mutex
	state State
}

// NewSelector returns a selector in ListView.
func NewSelector() *Selector {
	return &Selector{}
}

// Attach registers the selector as a delete listener of store.
func (s *Selector) Attach(store *records.Store) {
	store.OnDelete(s.RecordDeleted)
}

// Select switches to DetailView(i). n is the current collection length.
func (s *Selector) Select(i, n int) error {
	if err := records.CheckIndex(i, n); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Mode: DetailView, Index: i}
	return nil
}

// Back returns to ListView.
func (s *Selector) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Mode: ListView}
}

// RecordDeleted renormalizes the selection after the record at j was removed.
func (s *Selector) RecordDeleted(j int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Mode != DetailView {
		return
	}
	switch i := s.state.Index; {
	case j == i:
		s.state = State{Mode: ListView}
	case j < i:
		s.state.Index = i - 1
	}
}

// Current returns the viewed index, if any.
func (s *Selector) Current() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Mode != DetailView {
		return 0, false
	}
	return s.state.Index, true
}

// State returns the current state.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
