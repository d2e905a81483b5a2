// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	expected := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if len(tw.lines) != len(expected) {
		t.Fatalf("Writer should have logged %d lines, got: %v, expected: %v", len(expected), tw.lines, expected)
	}
	for i, l := range tw.lines {
		if l != expected[i] {
			t.Fatalf("line %d doesn't match, got: %q, expected: %q", i, l, expected[i])
		}
	}
}

func TestGoogleEmitter(t *testing.T) {
	tw := &testWriter{}
	e := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2024, time.March, 7, 9, 8, 7, 123456000, time.UTC)
	e.Emit(0, Warning, ts, "task %d faulted", 3)
	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %v", len(tw.lines), tw.lines)
	}
	line := tw.lines[0]
	if !strings.HasPrefix(line, "W0307 09:08:07.123456 ") {
		t.Errorf("bad header in %q", line)
	}
	if !strings.Contains(line, "log_test.go:") {
		t.Errorf("missing caller in %q", line)
	}
	if !strings.HasSuffix(line, "] task 3 faulted\n") {
		t.Errorf("bad message in %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}
	l.Debugf("hidden")
	l.Infof("shown")
	l.SetLevel(Debug)
	l.Debugf("now shown")
	want := []string{"shown", "\n", "now shown", "\n"}
	if len(tw.lines) != len(want) {
		t.Fatalf("got lines %q, want %q", tw.lines, want)
	}
	for i := range want {
		if tw.lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, tw.lines[i], want[i])
		}
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Debug, Emitter: &Writer{Next: tw}}
	rl := RateLimitedLogger(l, time.Hour)
	for i := 0; i < 10; i++ {
		rl.Warningf("fault %d\n", i)
	}
	if len(tw.lines) != 1 || tw.lines[0] != "fault 0\n" {
		t.Errorf("rate limited logger emitted %q, want only the first message", tw.lines)
	}
}

func TestRateLimitedLoggerReportsSuppressed(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Debug, Emitter: &Writer{Next: tw}}
	rl := BurstRateLimitedLogger(l, time.Millisecond, 1).(*rateLimitedLogger)
	rl.Infof("first\n")
	rl.suppressed.Store(4)
	time.Sleep(5 * time.Millisecond)
	rl.Infof("second\n")
	if len(tw.lines) != 2 || tw.lines[1] != "(4 suppressed) second\n" {
		t.Errorf("got %q, want the second message to carry the suppressed count", tw.lines)
	}
}

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", Debug, false},
		{"Info", Info, false},
		{"warning", Warning, false},
		{"verbose", Warning, true},
	} {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, err=%t)", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
}

func TestFileOptsBuild(t *testing.T) {
	opts := FileOpts{ID: "abc", Command: "boot"}
	if got, want := opts.Build("/tmp/rvsim/%ID%/%COMMAND%.log"), "/tmp/rvsim/abc/boot.log"; got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}
