package pty

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpawn_EchoProducesOutput(t *testing.T) {
	ch, err := Spawn(Options{
		Program: "/bin/echo",
		Args:    []string{"hello"},
		Size:    Size{Cols: 80, Rows: 24},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer ch.Shutdown()

	var out bytes.Buffer
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r := ch.Poll()
		if r.Data != nil {
			out.Write(r.Data)
		}
		if r.Eof {
			break
		}
		if r.WouldBlock {
			time.Sleep(5 * time.Millisecond)
		}
	}

	if !strings.Contains(out.String(), "hello") {
		t.Errorf("output = %q, want it to contain %q", out.String(), "hello")
	}
	if ch.Alive() {
		t.Error("expected channel to be not-alive after EOF")
	}
}

func TestPoll_WouldBlockWhenIdle(t *testing.T) {
	ch, err := Spawn(Options{
		Program: "/bin/cat",
		Size:    Size{Cols: 80, Rows: 24},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer ch.Shutdown()

	time.Sleep(20 * time.Millisecond) // let cat block on stdin
	r := ch.Poll()
	if !r.WouldBlock {
		t.Errorf("expected WouldBlock with no output pending, got %+v", r)
	}
}

func TestWrite_RoundTripsThroughCat(t *testing.T) {
	ch, err := Spawn(Options{
		Program: "/bin/cat",
		Size:    Size{Cols: 80, Rows: 24},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer ch.Shutdown()

	if err := ch.Write([]byte("ping\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var out bytes.Buffer
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r := ch.Poll()
		if r.Data != nil {
			out.Write(r.Data)
		}
		if strings.Contains(out.String(), "ping") {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !strings.Contains(out.String(), "ping") {
		t.Errorf("output = %q, want it to contain %q", out.String(), "ping")
	}
}

func TestShutdown_IsIdempotentAndMarksDead(t *testing.T) {
	ch, err := Spawn(Options{Program: "/bin/cat", Size: Size{Cols: 80, Rows: 24}})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := ch.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := ch.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if ch.Alive() {
		t.Error("expected channel not-alive after Shutdown")
	}
	if err := ch.Write([]byte("x")); err != nil {
		t.Errorf("Write on dead channel should be a silent no-op, got %v", err)
	}
}

func TestResolveCommand(t *testing.T) {
	tests := []struct {
		name     string
		program  string
		args     []string
		wantArgs []string
	}{
		{"bare command keeps argv", "/bin/echo", []string{"hi"}, []string{"hi"}},
		{"whitespace runs under shell -c", "echo hi | cat", nil, []string{"-c", "echo hi | cat"}},
		{"empty program is a login shell", "", nil, []string{"-l"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, gotArgs := resolveCommand(tt.program, tt.args)
			if len(gotArgs) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", gotArgs, tt.wantArgs)
			}
			for i := range gotArgs {
				if gotArgs[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %q, want %q", i, gotArgs[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestMergedEnv_OverridesWinOverParent(t *testing.T) {
	t.Setenv("MULTIPLEX_TEST_VAR", "parent")
	env := mergedEnv(map[string]string{"MULTIPLEX_TEST_VAR": "override"})
	found := false
	for _, kv := range env {
		if kv == "MULTIPLEX_TEST_VAR=override" {
			found = true
		}
		if kv == "MULTIPLEX_TEST_VAR=parent" {
			t.Errorf("parent value leaked through: %q", kv)
		}
	}
	if !found {
		t.Error("expected override to appear in merged env")
	}
}

func TestMergedEnv_SetsTermDefaults(t *testing.T) {
	env := mergedEnv(nil)
	has := func(kv string) bool {
		for _, e := range env {
			if e == kv {
				return true
			}
		}
		return false
	}
	if !has("TERM=xterm-256color") {
		t.Error("expected TERM=xterm-256color")
	}
	if !has("COLORTERM=truecolor") {
		t.Error("expected COLORTERM=truecolor")
	}
}
