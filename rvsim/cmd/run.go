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
	"runtime"
	"text/tabwriter"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/rvkernel/pkg/log"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
	"gvisor.dev/rvkernel/rvsim/config"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	apps     stringFlags
	parallel int
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "run several programs, each as the init of its own machine"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] <program> [program...] - boot one independent machine per
program, all configured by the global flags, and report how each ended.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.Var(&r.apps, "app", "additional program as name=path to an ELF image. May be repeated.")
	f.IntVar(&r.parallel, "parallel", runtime.GOMAXPROCS(0), "maximum number of machines running at once.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	apps, err := loadApps(r.apps)
	if err != nil {
		Fatalf("%v", err)
	}
	results, err := runMachines(ctx, conf, apps, f.Args(), r.parallel)
	if err != nil {
		Fatalf("%v", err)
	}
	if err := writeResults(os.Stdout, results); err != nil {
		Fatalf("writing results: %v", err)
	}
	for _, res := range results {
		if res.Err != nil {
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

// machineResult is how one machine's run ended.
type machineResult struct {
	Init    string
	BootID  string
	Status  kernel.ExitStatus
	Err     error
	Cycles  uint64
	Spawned uint64
}

// runMachines boots one machine per init program and runs them
// concurrently, at most parallel at a time. A run that stops with an error
// is reported in its result; a machine that cannot boot fails the whole
// call and stops the others.
func runMachines(ctx context.Context, conf *config.Config, apps map[string][]byte, inits []string, parallel int) ([]machineResult, error) {
	results := make([]machineResult, len(inits))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, prog := range inits {
		g.Go(func() error {
			c := conf.Clone()
			c.Init = prog
			k, err := NewKernel(c, apps)
			if err != nil {
				return fmt.Errorf("booting %q: %w", prog, err)
			}
			log.Infof("Machine %v running %q", k.BootID(), prog)
			es, err := k.Run(ctx)
			results[i] = machineResult{
				Init:    prog,
				BootID:  k.BootID().String(),
				Status:  es,
				Err:     err,
				Cycles:  k.Cycles(),
				Spawned: k.Metrics().Uint64Values()["tasks_spawned_total"][""],
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func writeResults(w io.Writer, results []machineResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "INIT\tBOOT ID\tRESULT\tCYCLES\tTASKS\n")
	for _, res := range results {
		result := res.Status.String()
		if res.Err != nil {
			result = fmt.Sprintf("error: %v", res.Err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", res.Init, res.BootID, result, res.Cycles, res.Spawned)
	}
	return tw.Flush()
}
