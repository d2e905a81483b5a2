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

// Package config provides basic infrastructure to set configuration settings
// for rvsim. Each setting is a field of Config, bound to a command line flag
// through its `flag` tag and to a key of the TOML configuration file through
// its `toml` tag.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/mohae/deepcopy"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
	"gvisor.dev/rvkernel/pkg/sentry/kernel/sched"
)

// Config holds configuration that is not part of the app table.
type Config struct {
	// ConfigFile is a TOML file whose settings apply beneath explicitly set
	// flags.
	ConfigFile string `flag:"config" toml:"-"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log" toml:"log"`

	// LogFormat is the log format: "text" or "json".
	LogFormat string `flag:"log-format" toml:"log_format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// Strace indicates that strace should be enabled.
	Strace bool `flag:"strace" toml:"strace"`

	// StraceSyscalls is the set of syscalls to trace (comma-separated
	// values). If Strace is true and this string is empty, then all
	// syscalls will be traced.
	StraceSyscalls string `flag:"strace-syscalls" toml:"strace_syscalls"`

	// Scheduler is the scheduling policy: "rr" or "stride".
	Scheduler string `flag:"scheduler" toml:"scheduler"`

	// Init is the program run as the root task.
	Init string `flag:"init" toml:"init"`

	// Hz is the simulated hart frequency.
	Hz uint64 `flag:"hz" toml:"hz"`

	// Quantum is the time slice in cycles.
	Quantum uint64 `flag:"quantum" toml:"quantum"`

	// TrapCost is the number of cycles charged per trap.
	TrapCost uint64 `flag:"trap-cost" toml:"trap_cost"`

	// CycleLimit stops the machine after this many cycles. 0 is unlimited.
	CycleLimit uint64 `flag:"cycle-limit" toml:"cycle_limit"`

	// MemoryPages is the number of physical frames.
	MemoryPages int `flag:"memory-pages" toml:"memory_pages"`

	// MaxTasks bounds the number of tasks, zombies included. It also sets
	// the number of kernel stacks.
	MaxTasks int `flag:"max-tasks" toml:"max_tasks"`

	// StackPages is the user stack size of each task.
	StackPages int `flag:"stack-pages" toml:"stack_pages"`

	// DeadlockDetect starts the kernel with deadlock detection on.
	DeadlockDetect bool `flag:"deadlock-detect" toml:"deadlock_detect"`
}

// LoadFile overlays the settings in the TOML file at path onto c. Keys that
// the file does not set are left alone.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %q: unknown keys %v", path, undecoded)
	}
	return nil
}

// WriteFile writes c to path as TOML.
func (c *Config) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	return deepcopy.Copy(c).(*Config)
}

func (c *Config) validate() error {
	if _, err := sched.New(c.Scheduler); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be text or json", c.LogFormat)
	}
	if c.Init == "" {
		return fmt.Errorf("init program must be set")
	}
	if c.Hz == 0 || c.Quantum == 0 {
		return fmt.Errorf("hz (%d) and quantum (%d) must be positive", c.Hz, c.Quantum)
	}
	if c.MemoryPages <= 0 || c.StackPages <= 0 {
		return fmt.Errorf("memory-pages (%d) and stack-pages (%d) must be positive", c.MemoryPages, c.StackPages)
	}
	if c.MaxTasks <= 0 || c.MaxTasks > kernel.TasksLimit {
		return fmt.Errorf("max-tasks must be between 1 and %d, got %d", kernel.TasksLimit, c.MaxTasks)
	}
	return nil
}
