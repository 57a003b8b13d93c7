package models_test

import (
	"testing"

	"quillnotes/models"
)

func TestNetMonitorTransitions(t *testing.T) {
	m := models.NewNetMonitor(true)
	if !m.IsOnline() {
		t.Fatal("monitor should start with the supplied state")
	}

	var transitions []bool
	m.OnChange(func(online bool) { transitions = append(transitions, online) })

	// Repeating the current state is not a transition
	m.SetOnline(true)
	if len(transitions) != 0 {
		t.Fatalf("repeat report should not fire handlers, got %v", transitions)
	}

	m.SetOnline(false)
	m.SetOnline(false)
	m.SetOnline(true)

	if len(transitions) != 2 || transitions[0] != false || transitions[1] != true {
		t.Errorf("expected [false true], got %v", transitions)
	}
}

func TestNetMonitorUnsubscribe(t *testing.T) {
	m := models.NewNetMonitor(true)

	count := 0
	unsub := m.OnChange(func(bool) { count++ })

	m.SetOnline(false)
	unsub()
	m.SetOnline(true)

	if count != 1 {
		t.Errorf("expected 1 notification after unsubscribe, got %d", count)
	}
}
