package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timewinder-dev/jvmcore/cas"
	"github.com/timewinder-dev/jvmcore/machine"
)

var (
	detailsFlag bool
	quietFlag   bool
)

var traceCmd = &cobra.Command{
	Use:   "trace RUNFILE",
	Short: "Run the entry method, snapshotting the frame after every instruction",
	Args:  cobra.ExactArgs(1),
	Run:   traceCommand,
}

func init() {
	traceCmd.Flags().BoolVar(&debugFlag, "debug", false, "Print the assembled program before running it")
	traceCmd.Flags().StringVar(&entryFlag, "entry", "", "Override the entry method from the run file")
	traceCmd.Flags().BoolVar(&detailsFlag, "details", false, "Print every stored frame snapshot after the run")
	traceCmd.Flags().BoolVar(&quietFlag, "quiet", false, "Don't print steps while running")
}

func traceCommand(cmd *cobra.Command, args []string) {
	m := loadMachine(args[0])
	store := m.NewTraceStore()

	var rep machine.Reporter = &machine.ColorReporter{Writer: os.Stderr}
	if quietFlag {
		rep = &machine.SilentReporter{}
	}
	result, runErr := m.Trace(store, rep)

	fmt.Fprint(os.Stdout, machine.FormatTrace(result))
	if detailsFlag {
		for i, step := range result.Trace {
			rec, err := cas.Retrieve[cas.FrameRecord](store, step.FrameHash)
			if err != nil {
				fmt.Fprintf(os.Stdout, "  Step %d: frame 0x%s (unavailable: %s)\n", i+1, step.FrameHash, err)
				continue
			}
			fmt.Fprintf(os.Stdout, "  Step %d:\n", i+1)
			fmt.Fprint(os.Stdout, machine.FormatFrameRecord(rec))
		}
	}
	if runErr != nil {
		fmt.Fprint(os.Stderr, machine.FormatError(runErr))
		os.Exit(1)
	}
	fmt.Fprint(os.Stdout, machine.FormatResult(&result.Result))
}
