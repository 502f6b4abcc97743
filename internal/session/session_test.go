package session

import (
	"strings"
	"testing"
	"time"

	"multiplex/internal/keys"
	"multiplex/internal/pty"
)

func driveUntilDied(t *testing.T, s *Session, timeout time.Duration) UpdateResult {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r := s.Update()
		if r == Died {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never died within timeout")
	return NoChange
}

func rowText(s *Session, row int) string {
	var b strings.Builder
	snap := s.Snapshot()
	for col := 0; col < snap.Grid.Cols; col++ {
		b.WriteRune(snap.Grid.Cell(col, row).Ch)
	}
	return b.String()
}

func TestScenario_HelloWorldEcho(t *testing.T) {
	s, err := New(pty.Options{Program: "/bin/echo", Args: []string{"hello"}, Size: pty.Size{Cols: 80, Rows: 24}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	driveUntilDied(t, s, 2*time.Second)

	if s.Alive() {
		t.Error("expected session to be not-alive after Died")
	}
	row0 := rowText(s, 0)
	if !strings.HasPrefix(row0, "hello") {
		t.Errorf("row 0 = %q, want prefix %q", row0, "hello")
	}

	foundBanner := false
	snap := s.Snapshot()
	for row := 0; row < snap.Grid.Rows; row++ {
		if strings.Contains(rowText(s, row), "Process exited") {
			foundBanner = true
		}
	}
	if !foundBanner {
		t.Error("expected exit banner on some row")
	}
}

func TestUpdate_OnDeadSessionIsIdempotent(t *testing.T) {
	s, err := New(pty.Options{Program: "/bin/echo", Args: []string{"x"}, Size: pty.Size{Cols: 20, Rows: 5}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	driveUntilDied(t, s, 2*time.Second)
	before := s.Snapshot()

	for i := 0; i < 5; i++ {
		if r := s.Update(); r != NoChange {
			t.Fatalf("Update on dead session = %v, want NoChange", r)
		}
	}

	after := s.Snapshot()
	if len(before.Grid.Cells) != len(after.Grid.Cells) {
		t.Fatal("grid size changed across idempotent updates")
	}
	for i := range before.Grid.Cells {
		if before.Grid.Cells[i] != after.Grid.Cells[i] {
			t.Fatalf("cell %d changed after dead-session update: %+v -> %+v", i, before.Grid.Cells[i], after.Grid.Cells[i])
		}
	}
}

func TestSendKey_DeadSessionDropsBytesSilently(t *testing.T) {
	s, err := New(pty.Options{Program: "/bin/echo", Size: pty.Size{Cols: 20, Rows: 5}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	driveUntilDied(t, s, 2*time.Second)

	if err := s.SendKey(keys.Event{Code: keys.CodeChar, Rune: 'x'}); err != nil {
		t.Errorf("SendKey on dead session should not error, got %v", err)
	}
}

func TestWrite_RoundTripsThroughCatSession(t *testing.T) {
	s, err := New(pty.Options{Program: "/bin/cat", Size: pty.Size{Cols: 40, Rows: 5}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.SendKey(keys.Event{Code: keys.CodeChar, Rune: 'h'}); err != nil {
		t.Fatalf("SendKey: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Update() != NoChange {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if rowText(s, 0)[0] != 'h' {
		t.Errorf("row 0 first cell = %q, want 'h'", rowText(s, 0)[0])
	}
}

func TestActiveFiles_ExtractedFromOutput(t *testing.T) {
	s, err := New(pty.Options{Program: "/bin/echo", Args: []string{"-n", "error in main.go and see util.go:42"}, Size: pty.Size{Cols: 80, Rows: 5}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	driveUntilDied(t, s, 2*time.Second)

	files := s.ActiveFiles()
	want := map[string]bool{"main.go": true, "util.go": true}
	for _, f := range files {
		delete(want, f)
	}
	if len(want) != 0 {
		t.Errorf("ActiveFiles = %v, missing %v", files, want)
	}
}

func TestResize_ToCurrentSizeIsIdentity(t *testing.T) {
	s, err := New(pty.Options{Program: "/bin/cat", Size: pty.Size{Cols: 30, Rows: 10}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	before := s.Snapshot()
	if err := s.Resize(30, 10); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	after := s.Snapshot()

	if before.Grid.Cursor != after.Grid.Cursor {
		t.Errorf("cursor changed on no-op resize: %+v -> %+v", before.Grid.Cursor, after.Grid.Cursor)
	}
	for i := range before.Grid.Cells {
		if before.Grid.Cells[i] != after.Grid.Cells[i] {
			t.Fatalf("cell %d changed on no-op resize", i)
		}
	}
}

func TestID_IsUniquePerSession(t *testing.T) {
	s1, err := New(pty.Options{Program: "/bin/cat", Size: pty.Size{Cols: 10, Rows: 5}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s1.Close()
	s2, err := New(pty.Options{Program: "/bin/cat", Size: pty.Size{Cols: 10, Rows: 5}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s2.Close()

	if s1.ID == s2.ID {
		t.Error("expected distinct session IDs")
	}
}
