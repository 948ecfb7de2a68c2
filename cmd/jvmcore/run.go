package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/timewinder-dev/jvmcore/machine"
)

var (
	debugFlag bool
	entryFlag string
)

var runCmd = &cobra.Command{
	Use:   "run RUNFILE",
	Short: "Run the entry method of a program",
	Args:  cobra.ExactArgs(1),
	Run:   runCommand,
}

func init() {
	runCmd.Flags().BoolVar(&debugFlag, "debug", false, "Print the assembled program before running it")
	runCmd.Flags().StringVar(&entryFlag, "entry", "", "Override the entry method from the run file")
}

// loadMachine reads a run file and assembles its program.
func loadMachine(path string) *machine.Machine {
	cfg, err := machine.LoadConfigFromFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't load run file")
	}
	if entryFlag != "" {
		cfg.Program.Entry = entryFlag
	}
	m, err := cfg.BuildMachine()
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't build machine for run file")
	}
	if debugFlag {
		m.Program.DebugPrint(os.Stderr)
	}
	return m
}

func runCommand(cmd *cobra.Command, args []string) {
	m := loadMachine(args[0])

	fmt.Fprintln(os.Stderr, color.Cyan.Sprint("Running ", m.Config.Program.Entry, "..."))
	result, err := m.Run()
	if err != nil {
		fmt.Fprint(os.Stderr, machine.FormatError(err))
		os.Exit(1)
	}
	fmt.Fprint(os.Stdout, machine.FormatResult(result))
}
