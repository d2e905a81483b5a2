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
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"gvisor.dev/rvkernel/pkg/sentry/loader/userprog"
)

// MkImage implements subcommands.Command for the "mkimage" command.
type MkImage struct {
	dir string
}

// Name implements subcommands.Command.Name.
func (*MkImage) Name() string {
	return "mkimage"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*MkImage) Synopsis() string {
	return "write built-in programs as ELF images"
}

// Usage implements subcommands.Command.Usage.
func (*MkImage) Usage() string {
	return `mkimage [flags] [program...] - write the named built-in programs (all of
them if none are named) to <dir>/<program>.elf.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *MkImage) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.dir, "dir", ".", "directory the images are written to.")
}

// Execute implements subcommands.Command.Execute.
func (m *MkImage) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	paths, err := writeImages(m.dir, f.Args())
	if err != nil {
		Fatalf("%v", err)
	}
	for _, p := range paths {
		fmt.Fprintln(os.Stdout, p)
	}
	return subcommands.ExitSuccess
}

// writeImages writes the named programs, or all of them, into dir and
// returns the paths written.
func writeImages(dir string, names []string) ([]string, error) {
	var progs []userprog.Program
	if len(names) == 0 {
		progs = userprog.Programs()
	}
	for _, name := range names {
		p, ok := userprog.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("no built-in program %q", name)
		}
		progs = append(progs, p)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var paths []string
	for _, p := range progs {
		data, err := p.ELF()
		if err != nil {
			return nil, fmt.Errorf("building %q: %w", p.Name, err)
		}
		path := filepath.Join(dir, p.Name+".elf")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
