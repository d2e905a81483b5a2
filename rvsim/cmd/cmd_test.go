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

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
	"gvisor.dev/rvkernel/pkg/sentry/loader"
	"gvisor.dev/rvkernel/pkg/sentry/loader/userprog"
	"gvisor.dev/rvkernel/pkg/sentry/syscalls/riscv64"
	"gvisor.dev/rvkernel/rvsim/config"
)

func testConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	conf, err := config.NewFromFlags(fs)
	if err != nil {
		t.Fatal(err)
	}
	return conf
}

func TestNewKernel(t *testing.T) {
	for _, sched := range []string{"rr", "stride"} {
		t.Run(sched, func(t *testing.T) {
			conf := testConfig(t, "--scheduler="+sched)
			k, err := NewKernel(conf, userprog.MustTable())
			if err != nil {
				t.Fatalf("NewKernel: %v", err)
			}
			es, err := k.Run(context.Background())
			if err != nil || es != (kernel.ExitStatus{}) {
				t.Errorf("Run = %v, %v; want a clean exit", es, err)
			}
			var buf bytes.Buffer
			if err := writeTaskTable(&buf, k); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), "init") {
				t.Errorf("task table does not list init:\n%s", buf.String())
			}
		})
	}
}

func TestNewKernelStraceFilter(t *testing.T) {
	conf := testConfig(t, "--strace", "--strace-syscalls=spawn,fork")
	if _, err := NewKernel(conf, userprog.MustTable()); err == nil {
		t.Errorf("NewKernel accepted an unknown syscall filter")
	}
}

func TestLoadApps(t *testing.T) {
	dir := t.TempDir()
	paths, err := writeImages(dir, []string{"exit7"})
	if err != nil {
		t.Fatalf("writeImages: %v", err)
	}
	apps, err := loadApps([]string{"seven=" + paths[0]})
	if err != nil {
		t.Fatalf("loadApps: %v", err)
	}
	if !bytes.Equal(apps["seven"], apps["exit7"]) {
		t.Errorf("loaded image differs from the built-in one")
	}
	for _, bad := range []string{"noequals", "=path", "name=", "x=" + filepath.Join(dir, "missing")} {
		if _, err := loadApps([]string{bad}); err == nil {
			t.Errorf("loadApps(%q) succeeded", bad)
		}
	}
}

func TestWriteImages(t *testing.T) {
	dir := t.TempDir()
	paths, err := writeImages(dir, nil)
	if err != nil {
		t.Fatalf("writeImages: %v", err)
	}
	if len(paths) != len(userprog.Programs()) {
		t.Errorf("wrote %d images, want %d", len(paths), len(userprog.Programs()))
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := loader.Load(data, loader.DefaultStackPages); err != nil {
			t.Errorf("%s does not load: %v", p, err)
		}
	}
	if _, err := writeImages(dir, []string{"nope"}); err == nil {
		t.Errorf("writeImages accepted an unknown program")
	}
}

func TestRunMachines(t *testing.T) {
	conf := testConfig(t, "--cycle-limit=100000")
	inits := []string{"exit7", "faulter", "spawner", "nope"}
	_, err := runMachines(context.Background(), conf, userprog.MustTable(), inits, 2)
	if err == nil {
		t.Fatalf("runMachines booted an unknown program")
	}

	inits = inits[:3]
	results, err := runMachines(context.Background(), conf, userprog.MustTable(), inits, 2)
	if err != nil {
		t.Fatalf("runMachines: %v", err)
	}
	want := []kernel.ExitStatus{
		{Code: 7},
		{Code: kernel.ExitCodePageFault, Signo: linux.SIGSEGV},
		{Code: 7},
	}
	for i, res := range results {
		if res.Init != inits[i] || res.Err != nil || res.Status != want[i] {
			t.Errorf("result %d = %+v, want %v for %s", i, res, want[i], inits[i])
		}
	}
	if results[0].BootID == results[1].BootID {
		t.Errorf("machines share a boot id")
	}
	if results[2].Spawned != 2 {
		t.Errorf("spawner machine spawned %d tasks, want 2", results[2].Spawned)
	}

	// The config passed in is not modified.
	if conf.Init != userprog.InitName {
		t.Errorf("conf.Init = %q", conf.Init)
	}
}

func TestRunMachinesCycleLimit(t *testing.T) {
	conf := testConfig(t, "--cycle-limit=5000")
	results, err := runMachines(context.Background(), conf, userprog.MustTable(), []string{"spinner"}, 0)
	if err != nil {
		t.Fatalf("runMachines: %v", err)
	}
	if !errors.Is(results[0].Err, kernel.ErrCycleLimit) {
		t.Errorf("spinner result = %+v, want ErrCycleLimit", results[0])
	}
	var buf bytes.Buffer
	if err := writeResults(&buf, results); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "cycle limit") {
		t.Errorf("results do not mention the error:\n%s", buf.String())
	}
}

func TestSyscallOutputs(t *testing.T) {
	docs := syscallDocs(riscv64.NewTable())

	var buf bytes.Buffer
	if err := outputJSON(&buf, docs); err != nil {
		t.Fatal(err)
	}
	var fromJSON []SyscallDoc
	if err := json.Unmarshal(buf.Bytes(), &fromJSON); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(docs, fromJSON); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	if err := outputYAML(&buf, docs); err != nil {
		t.Fatal(err)
	}
	var fromYAML []SyscallDoc
	if err := yaml.Unmarshal(buf.Bytes(), &fromYAML); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(docs, fromYAML); diff != "" {
		t.Errorf("YAML mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	if err := outputCSV(&buf, docs); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != len(docs)+1 {
		t.Errorf("CSV has %d lines, want %d", lines, len(docs)+1)
	}

	buf.Reset()
	if err := outputTable(&buf, docs); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "400  spawn") {
		t.Errorf("table does not list spawn:\n%s", buf.String())
	}
}
