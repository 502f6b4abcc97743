package workspace

import (
	"testing"
	"time"

	"multiplex/internal/keys"
	"multiplex/internal/session"
)

type testSink struct {
	signals int
}

func (s *testSink) Signal() {
	s.signals++
}

func newTestWorkspace(t *testing.T, max int) (*Workspace, *testSink) {
	t.Helper()
	sink := &testSink{}
	ws := New(Options{ProjectDir: t.TempDir(), MaxSessions: max, Redraw: sink})
	return ws, sink
}

func TestCreate_AssignsActiveToFirstSession(t *testing.T) {
	ws, _ := newTestWorkspace(t, 0)
	id, err := ws.Create("/bin/cat")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer ws.Close(id)

	active, ok := ws.ActiveID()
	if !ok || active != id {
		t.Fatalf("ActiveID = (%v, %v), want (%v, true)", active, ok, id)
	}
	if ws.Len() != 1 {
		t.Fatalf("Len = %d, want 1", ws.Len())
	}
}

func TestCreate_RejectsPastCap(t *testing.T) {
	ws, _ := newTestWorkspace(t, 2)
	id1, err := ws.Create("/bin/cat")
	if err != nil {
		t.Fatalf("Create 1: %v", err)
	}
	defer ws.Close(id1)
	id2, err := ws.Create("/bin/cat")
	if err != nil {
		t.Fatalf("Create 2: %v", err)
	}
	defer ws.Close(id2)

	before := ws.IDs()
	if _, err := ws.Create("/bin/cat"); err != ErrTooManySessions {
		t.Fatalf("Create at cap = %v, want ErrTooManySessions", err)
	}
	after := ws.IDs()
	if len(before) != len(after) {
		t.Fatalf("workspace mutated by rejected Create: %v -> %v", before, after)
	}
}

func TestClose_TransfersActiveToFirstRemaining(t *testing.T) {
	ws, _ := newTestWorkspace(t, 0)
	id1, _ := ws.Create("/bin/cat")
	id2, _ := ws.Create("/bin/cat")
	defer ws.Close(id2)

	ws.SetActive(id1)
	if err := ws.Close(id1); err != nil {
		t.Fatalf("Close: %v", err)
	}

	active, ok := ws.ActiveID()
	if !ok || active != id2 {
		t.Fatalf("ActiveID after close = (%v, %v), want (%v, true)", active, ok, id2)
	}
}

func TestClose_LastSessionLeavesActiveNone(t *testing.T) {
	ws, _ := newTestWorkspace(t, 0)
	id, _ := ws.Create("/bin/cat")

	if err := ws.Close(id); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := ws.ActiveID(); ok {
		t.Error("expected no active session after closing the last one")
	}
	if ws.Len() != 0 {
		t.Errorf("Len = %d, want 0", ws.Len())
	}
}

func TestClose_UnknownIDReturnsNotFound(t *testing.T) {
	ws, _ := newTestWorkspace(t, 0)
	if err := ws.Close(session.ID{}); err != ErrNotFound {
		t.Fatalf("Close unknown id = %v, want ErrNotFound", err)
	}
}

func TestNextPrevious_CycleThroughCreationOrder(t *testing.T) {
	ws, _ := newTestWorkspace(t, 0)
	id1, _ := ws.Create("/bin/cat")
	id2, _ := ws.Create("/bin/cat")
	id3, _ := ws.Create("/bin/cat")
	defer ws.Close(id1)
	defer ws.Close(id2)
	defer ws.Close(id3)

	ws.SetActive(id1)
	ws.Next()
	if active, _ := ws.ActiveID(); active != id2 {
		t.Fatalf("after Next, active = %v, want %v", active, id2)
	}
	ws.Next()
	ws.Next() // wraps back to id1
	if active, _ := ws.ActiveID(); active != id1 {
		t.Fatalf("Next did not wrap cyclically: active = %v, want %v", active, id1)
	}
	ws.Previous()
	if active, _ := ws.ActiveID(); active != id3 {
		t.Fatalf("Previous did not wrap cyclically: active = %v, want %v", active, id3)
	}
}

func TestSwitchTo_OutOfRangeIsNoOp(t *testing.T) {
	ws, _ := newTestWorkspace(t, 0)
	id, _ := ws.Create("/bin/cat")
	defer ws.Close(id)

	ws.SwitchTo(5)
	if active, _ := ws.ActiveID(); active != id {
		t.Fatalf("out-of-range SwitchTo changed active: %v", active)
	}
}

func TestSetActive_UnknownIDIsNoOp(t *testing.T) {
	ws, _ := newTestWorkspace(t, 0)
	id, _ := ws.Create("/bin/cat")
	defer ws.Close(id)

	ws.SetActive(session.ID{})
	if active, _ := ws.ActiveID(); active != id {
		t.Fatalf("SetActive with unknown id changed active: %v", active)
	}
}

func TestSendKey_RoundTripsThroughCatSession(t *testing.T) {
	ws, _ := newTestWorkspace(t, 0)
	id, err := ws.Create("/bin/cat")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer ws.Close(id)

	if err := ws.SendKey(keys.Event{Code: keys.CodeChar, Rune: 'x'}); err != nil {
		t.Fatalf("SendKey: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ws.Update()
		if snap, ok := ws.Snapshot(id); ok && snap.Grid.Cell(0, 0).Ch == 'x' {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("sent key never showed up in the session's grid")
}

func TestUpdate_SignalsRedrawOnDamage(t *testing.T) {
	ws, sink := newTestWorkspace(t, 0)
	id, err := ws.Create("/bin/echo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer ws.Close(id)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sink.signals == 0 {
		ws.Update()
		time.Sleep(5 * time.Millisecond)
	}
	if sink.signals == 0 {
		t.Fatal("expected at least one redraw signal after session produced output")
	}
}

func TestResize_UnknownIDReturnsNotFound(t *testing.T) {
	ws, _ := newTestWorkspace(t, 0)
	if err := ws.Resize(session.ID{}, 80, 24); err != ErrNotFound {
		t.Fatalf("Resize unknown id = %v, want ErrNotFound", err)
	}
}

func TestConflicts_FlagsFileSeenAcrossSessions(t *testing.T) {
	ws, _ := newTestWorkspace(t, 0)
	id1, err := ws.Create("/bin/echo -n error in shared.go")
	if err != nil {
		t.Fatalf("Create 1: %v", err)
	}
	defer ws.Close(id1)
	id2, err := ws.Create("/bin/echo -n editing shared.go")
	if err != nil {
		t.Fatalf("Create 2: %v", err)
	}
	defer ws.Close(id2)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ws.Update()
		conflicts := ws.Conflicts()
		if len(conflicts) > 0 {
			if conflicts[0].File != "shared.go" {
				t.Fatalf("Conflicts()[0].File = %q, want shared.go", conflicts[0].File)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected shared.go to be reported as a conflict")
}
