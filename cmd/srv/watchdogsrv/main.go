package main

import (
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/watchdog"

	"github.com/goccy/go-json"
	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config      string        `long:"config" short:"c" description:"path to the watchdog configuration file" required:"true"`
	RunDuration time.Duration `long:"run-duration" description:"stop after the given duration, e.g. 30s; runs until signalled when omitted"`
	Validate    bool          `long:"validate" description:"validate the configuration file, print its summary and exit"`
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	if opts.Validate {
		config, err := watchdog.ValidateConfigFile(opts.Config)
		if err != nil {
			fmt.Printf("Configuration is invalid: %v\n", err)
			os.Exit(1)
		}
		summary, err := json.MarshalIndent(watchdog.GetConfigSummary(config), "", "  ")
		if err != nil {
			fmt.Printf("Failed to render configuration summary: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(summary))
		return
	}

	err = watchdog.Run(watchdog.RunOptions{
		ConfigFile:  opts.Config,
		RunDuration: opts.RunDuration,
	})
	if err != nil {
		fmt.Printf("Watchdog failed: %v\n", err)
		os.Exit(1)
	}
}
