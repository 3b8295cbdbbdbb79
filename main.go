package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stackvm/vm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var trace bool

	cmd := &cobra.Command{
		Use:   "stackvm <rom>",
		Short: "Run a flat binary image on the stack-based bytecode VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], trace)
		},
	}

	cmd.Flags().BoolVar(&trace, "trace", false, "print one diagnostic line per executed step")

	return cmd
}

func run(path string, trace bool) (runErr error) {
	// A guard bug could still let a slice index slip past the arity/overflow
	// checks in vm.Step; that's a bug worth reporting plainly rather than a
	// raw Go stack trace, not a condition the core is meant to recover from
	// itself.
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("internal VM panic: %v", r)
		}
	}()

	machine := vm.New()

	if err := vm.Load(path, machine); err != nil {
		return err
	}

	if trace {
		return machine.BootTrace(os.Stdout)
	}
	return machine.Boot()
}
