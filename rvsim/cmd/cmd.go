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

// Package cmd holds implementations of the rvsim commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"gvisor.dev/rvkernel/pkg/log"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
	"gvisor.dev/rvkernel/pkg/sentry/kernel/sched"
	"gvisor.dev/rvkernel/pkg/sentry/loader/userprog"
	"gvisor.dev/rvkernel/pkg/sentry/platform/sim"
	"gvisor.dev/rvkernel/pkg/sentry/strace"
	"gvisor.dev/rvkernel/pkg/sentry/syscalls/riscv64"
	"gvisor.dev/rvkernel/rvsim/config"
)

// Fatalf logs to the log and to stderr, and exits.
func Fatalf(format string, args ...any) {
	log.Warningf(format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(128)
}

// stringFlags can be used with string flags that appear multiple times.
type stringFlags []string

// String implements flag.Value.
func (s *stringFlags) String() string {
	return strings.Join(*s, ",")
}

// Get implements flag.Getter.
func (s *stringFlags) Get() any {
	return s
}

// Set implements flag.Value.
func (s *stringFlags) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// loadApps returns the built-in programs plus the images named by args.
// Each arg has the form name=path and may replace a built-in program.
func loadApps(args []string) (map[string][]byte, error) {
	apps := userprog.MustTable()
	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid app %q, want name=path", arg)
		}
		if len(name) >= 255 {
			return nil, fmt.Errorf("app name %q is too long", name)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading app %q: %w", name, err)
		}
		apps[name] = data
	}
	return apps, nil
}

// NewKernel boots a kernel on a new simulated machine configured by conf.
func NewKernel(conf *config.Config, apps map[string][]byte) (*kernel.Kernel, error) {
	s, err := sched.New(conf.Scheduler)
	if err != nil {
		return nil, err
	}
	table := riscv64.NewTable()
	if conf.Strace {
		var names []string
		if conf.StraceSyscalls != "" {
			names = strings.Split(conf.StraceSyscalls, ",")
		}
		if err := strace.Enable(table, names); err != nil {
			return nil, fmt.Errorf("enabling strace: %w", err)
		}
	}
	return kernel.New(kernel.Config{
		Platform: sim.New(sim.Options{
			MemoryPages:  conf.MemoryPages,
			KernelStacks: conf.MaxTasks,
		}),
		Scheduler:      s,
		SyscallTable:   table,
		Apps:           apps,
		Init:           conf.Init,
		Hz:             conf.Hz,
		Quantum:        conf.Quantum,
		TrapCost:       conf.TrapCost,
		MaxTasks:       conf.MaxTasks,
		StackPages:     conf.StackPages,
		CycleLimit:     conf.CycleLimit,
		DeadlockDetect: conf.DeadlockDetect,
	})
}
