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
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/rvkernel/pkg/log"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
	"gvisor.dev/rvkernel/rvsim/config"
)

// Boot implements subcommands.Command for the "boot" command.
type Boot struct {
	// apps are additional name=path images.
	apps stringFlags

	// metricsFile is where metrics are written after the run, if set.
	metricsFile string

	// tasks prints the task table after the run.
	tasks bool
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "boot a machine and run the init program until it exits"
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return `boot [flags] - boot a machine with the built-in programs (and any --app images)
and run --init as the root task. The exit status is the root's exit code.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	f.Var(&b.apps, "app", "additional program as name=path to an ELF image. May be repeated.")
	f.StringVar(&b.metricsFile, "metrics-file", "", "write Prometheus metrics to this file when the run ends.")
	f.BoolVar(&b.tasks, "tasks", true, "print the task table when the run ends.")
}

// Execute implements subcommands.Command.Execute.
func (b *Boot) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	status := args[1].(*kernel.ExitStatus)

	apps, err := loadApps(b.apps)
	if err != nil {
		Fatalf("%v", err)
	}
	k, err := NewKernel(conf, apps)
	if err != nil {
		Fatalf("booting: %v", err)
	}
	es, runErr := k.Run(ctx)
	if b.tasks {
		if err := writeTaskTable(os.Stdout, k); err != nil {
			Fatalf("writing task table: %v", err)
		}
	}
	if b.metricsFile != "" {
		if err := writeMetricsFile(b.metricsFile, k); err != nil {
			Fatalf("writing metrics: %v", err)
		}
	}
	if runErr != nil {
		log.Warningf("Run stopped after %d cycles: %v", k.Cycles(), runErr)
		fmt.Fprintf(os.Stderr, "run stopped: %v\n", runErr)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stdout, "%s exited with %v after %d cycles (%v)\n", conf.Init, es, k.Cycles(), k.Now())
	*status = es
	return subcommands.ExitSuccess
}

// writeTaskTable writes one line per task that still exists.
func writeTaskTable(w io.Writer, k *kernel.Kernel) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TID\tPPID\tNAME\tSTATE\tPRIO\tSYSCALLS\tUSER CYCLES\tEXIT\n")
	for _, t := range k.TaskSet().Tasks() {
		st := t.Stats()
		var syscalls uint64
		for _, n := range st.Syscalls {
			syscalls += uint64(n)
		}
		exit := "-"
		if t.State() == kernel.TaskZombie {
			exit = t.ExitStatus().String()
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%v\t%d\t%d\t%d\t%s\n",
			t.ThreadID(), t.ParentID(), t.Name(), t.State(), t.Priority(), syscalls, st.UserCycles, exit)
	}
	return tw.Flush()
}

func writeMetricsFile(path string, k *kernel.Kernel) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := k.WriteMetrics(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
