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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	if err := testFlags.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	return testFlags
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t))
	if err != nil {
		t.Fatal(err)
	}
	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	if c.Scheduler != "rr" || c.Init != "init" {
		t.Errorf("defaults: scheduler %q, init %q", c.Scheduler, c.Init)
	}
}

func TestFromFlags(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t, "--debug", "--scheduler=stride", "--quantum=123", "--max-tasks=8", "--deadlock-detect"))
	if err != nil {
		t.Fatal(err)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := "stride"; c.Scheduler != want {
		t.Errorf("Scheduler=%v, want: %v", c.Scheduler, want)
	}
	if want := uint64(123); c.Quantum != want {
		t.Errorf("Quantum=%v, want: %v", c.Quantum, want)
	}
	if want := 8; c.MaxTasks != want {
		t.Errorf("MaxTasks=%v, want: %v", c.MaxTasks, want)
	}
	if !c.DeadlockDetect {
		t.Errorf("DeadlockDetect=false, want: true")
	}
}

func TestToFlagsFromFlags(t *testing.T) {
	args := []string{"--debug=true", "--hz=2000000", "--init=spawner", "--strace=true", "--strace-syscalls=spawn,wait4"}
	c, err := NewFromFlags(newFlagSet(t, args...))
	if err != nil {
		t.Fatal(err)
	}
	got := c.ToFlags()
	want := []string{"--debug=true", "--strace=true", "--strace-syscalls=spawn,wait4", "--init=spawner", "--hz=2000000"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToFlags() mismatch (-want +got):\n%s", diff)
	}

	// Round trip.
	c2, err := NewFromFlags(newFlagSet(t, got...))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c, c2); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	for _, args := range [][]string{
		{"--scheduler=fifo"},
		{"--log-format=xml"},
		{"--quantum=0"},
		{"--memory-pages=0"},
		{"--max-tasks=0"},
		{"--max-tasks=1000"},
		{"--init="},
	} {
		if _, err := NewFromFlags(newFlagSet(t, args...)); err == nil {
			t.Errorf("NewFromFlags(%v) succeeded", args)
		}
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rvsim.toml")
	contents := `
scheduler = "stride"
quantum = 500
memory_pages = 256
debug = true
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	// Flags set explicitly win over the file.
	c, err := NewFromFlags(newFlagSet(t, "--config="+path, "--quantum=700"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Scheduler != "stride" || c.MemoryPages != 256 || !c.Debug {
		t.Errorf("file settings not applied: %+v", c)
	}
	if c.Quantum != 700 {
		t.Errorf("Quantum=%d, want the flag value 700", c.Quantum)
	}
}

func TestConfigFileUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rvsim.toml")
	if err := os.WriteFile(path, []byte("network = \"host\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFlags(newFlagSet(t, "--config="+path)); err == nil {
		t.Errorf("unknown key accepted")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t, "--scheduler=stride", "--cycle-limit=99"))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.toml")
	if err := c.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := NewFromFlags(newFlagSet(t, "--config="+path))
	if err != nil {
		t.Fatal(err)
	}
	loaded.ConfigFile = ""
	if diff := cmp.Diff(c, loaded); diff != "" {
		t.Errorf("file round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestClone(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t))
	if err != nil {
		t.Fatal(err)
	}
	clone := c.Clone()
	if diff := cmp.Diff(c, clone); diff != "" {
		t.Errorf("Clone() mismatch (-want +got):\n%s", diff)
	}
	clone.Scheduler = "stride"
	if c.Scheduler == "stride" {
		t.Errorf("modifying the clone changed the original")
	}
}

func TestOverride(t *testing.T) {
	testFlags := newFlagSet(t)
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Override(testFlags, "scheduler", "stride"); err != nil {
		t.Fatalf("Override(scheduler): %v", err)
	}
	if c.Scheduler != "stride" {
		t.Errorf("Scheduler=%q after override", c.Scheduler)
	}
	if err := c.Override(testFlags, "scheduler", "fifo"); err == nil {
		t.Errorf("Override accepted an invalid scheduler")
	}
	if err := c.Override(testFlags, "no-such-flag", "1"); err == nil {
		t.Errorf("Override accepted an unknown flag")
	}
}
