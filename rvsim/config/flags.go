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
	"fmt"
	"reflect"
	"strconv"

	"gvisor.dev/rvkernel/pkg/sentry/kernel"
	"gvisor.dev/rvkernel/pkg/sentry/loader"
	"gvisor.dev/rvkernel/pkg/sentry/loader/userprog"
)

// DefaultMemoryPages is the default number of physical frames.
const DefaultMemoryPages = 1024

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "TOML file with settings; flags set on the command line take precedence.")

	// Debugging flags.
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.Bool("strace", false, "enable strace.")
	flagSet.String("strace-syscalls", "", "comma-separated list of syscalls to trace. If --strace is true and this list is empty, then all syscalls will be traced.")

	// Flags that control the machine and the kernel.
	flagSet.String("scheduler", "rr", "scheduling policy: rr (default) or stride.")
	flagSet.String("init", userprog.InitName, "name of the program run as the root task.")
	flagSet.Uint64("hz", kernel.DefaultHz, "simulated hart frequency, used to convert cycles to time.")
	flagSet.Uint64("quantum", kernel.DefaultQuantum, "scheduling time slice in cycles.")
	flagSet.Uint64("trap-cost", kernel.DefaultTrapCost, "cycles charged for handling one trap.")
	flagSet.Uint64("cycle-limit", 0, "stop the machine after this many cycles. 0 disables the limit.")
	flagSet.Int("memory-pages", DefaultMemoryPages, "number of physical page frames.")
	flagSet.Int("max-tasks", kernel.TasksLimit, "maximum number of tasks, zombies included.")
	flagSet.Int("stack-pages", loader.DefaultStackPages, "user stack size in pages.")
	flagSet.Bool("deadlock-detect", false, "refuse mutex locks and semaphore downs that could deadlock with EDEADLK.")
}

// get returns the value held by a flag registered with RegisterFlags.
func get(v flag.Value) any {
	return v.(flag.Getter).Get()
}

// NewFromFlags creates a new Config with values coming from command line
// flags. If --config names a file, its settings apply first and flags that
// were set explicitly override them.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	if err := conf.setFromFlags(flagSet, func(fs *flag.FlagSet, fn func(*flag.Flag)) { fs.VisitAll(fn) }); err != nil {
		return nil, err
	}
	if conf.ConfigFile != "" {
		if err := conf.LoadFile(conf.ConfigFile); err != nil {
			return nil, err
		}
		if err := conf.setFromFlags(flagSet, func(fs *flag.FlagSet, fn func(*flag.Flag)) { fs.Visit(fn) }); err != nil {
			return nil, err
		}
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// setFromFlags copies the flags visited by visit into c.
func (c *Config) setFromFlags(flagSet *flag.FlagSet, visit func(*flag.FlagSet, func(*flag.Flag))) error {
	fields := c.fieldsByFlag()
	visit(flagSet, func(fl *flag.Flag) {
		if field, ok := fields[fl.Name]; ok {
			field.Set(reflect.ValueOf(get(fl.Value)))
		}
	})
	for name := range fields {
		if flagSet.Lookup(name) == nil {
			return fmt.Errorf("flag %q not registered", name)
		}
	}
	return nil
}

// fieldsByFlag maps flag names to the Config fields they set.
func (c *Config) fieldsByFlag() map[string]reflect.Value {
	fields := make(map[string]reflect.Value)
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		if name, ok := st.Field(i).Tag.Lookup("flag"); ok {
			fields[name] = obj.Field(i)
		}
	}
	return fields
}

// ToFlags returns a slice of flags that correspond to the given Config.
// Settings equal to their default are omitted.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		val := getVal(obj.Field(i))

		flag := flagSet.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		if val == flag.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", flag.Name, val))
	}
	return rv
}

// Override writes a new value to a flag.
func (c *Config) Override(flagSet *flag.FlagSet, name string, value string) error {
	field, ok := c.fieldsByFlag()[name]
	if !ok {
		return fmt.Errorf("flag %q not found. Cannot set it to %q", name, value)
	}
	fl := flagSet.Lookup(name)
	if fl == nil {
		// Flag must exist if there is a field match above.
		panic(fmt.Sprintf("Flag %q not found", name))
	}

	// Use flag to convert the string value to the underlying flag type, using
	// the same rules as the command-line for consistency.
	if err := fl.Value.Set(value); err != nil {
		return fmt.Errorf("error setting flag %s=%q: %w", name, value, err)
	}
	field.Set(reflect.ValueOf(get(fl.Value)))

	// Validates the config again to ensure it's left in a consistent state.
	return c.validate()
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
