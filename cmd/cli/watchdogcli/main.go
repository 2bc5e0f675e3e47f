package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/control"
	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/logging"

	"github.com/goccy/go-json"
	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Address string        `long:"address" description:"watchdog gRPC address, overrides --port"`
	Port    int           `long:"port" default:"50055" description:"watchdog gRPC port on localhost"`
	Target  string        `long:"target" description:"show the status of one target, e.g. service/MockService"`
	Set     []string      `long:"set" description:"propose a configuration record, e.g. pool/mywebapipool=ManagedPool,Warning,30; may be repeated"`
	Start   string        `long:"start" description:"start a target"`
	Stop    string        `long:"stop" description:"stop a target"`
	Timeout time.Duration `long:"timeout" default:"10s" description:"timeout of each request"`
	Verbose bool          `long:"verbose" short:"v" description:"log connection details"`
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

	level := logging.LevelWarning
	if opts.Verbose {
		level = logging.LevelDebug
	}
	logConfig := logging.DefaultZapConfig()
	logConfig.Format = "console"
	logConfig.Output = "stderr"
	logger, err := logging.NewZapLogger(logConfig, logging.NewLevelController(level))
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	connection, err := control.NewConnection(control.ConnectionOptions{
		Address: opts.Address,
		Port:    opts.Port,
	}, logger)
	if err != nil {
		logger.Errorf("Failed to create connection: %v", err)
		os.Exit(1)
	}

	gateway := control.NewGRPCClientGateway(connection.GRPC(), logger)

	err = run(gateway, opts)
	connection.Shutdown()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(gateway domain.Contract, opts flagOptions) error {
	withTimeout := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), opts.Timeout)
	}

	// Records are applied in order; the first rejection stops the rest.
	for _, value := range opts.Set {
		id, record, err := parseSetRecord(value)
		if err != nil {
			return err
		}
		ctx, cancel := withTimeout()
		version, err := gateway.ProposeConfig(ctx, id, record)
		cancel()
		if err != nil {
			return fmt.Errorf("configuration for %s rejected: %w", id, err)
		}
		fmt.Printf("%s: configuration version %d\n", id, version)
	}

	if opts.Start != "" {
		ctx, cancel := withTimeout()
		err := gateway.StartTarget(ctx, opts.Start)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to start %s: %w", opts.Start, err)
		}
		fmt.Printf("%s: start issued\n", opts.Start)
	}

	if opts.Stop != "" {
		ctx, cancel := withTimeout()
		err := gateway.StopTarget(ctx, opts.Stop)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to stop %s: %w", opts.Stop, err)
		}
		fmt.Printf("%s: stop issued\n", opts.Stop)
	}

	if len(opts.Set) > 0 || opts.Start != "" || opts.Stop != "" {
		if opts.Target == "" {
			return nil
		}
	}

	ctx, cancel := withTimeout()
	defer cancel()

	var status any
	var err error
	if opts.Target != "" {
		status, err = gateway.TargetStatus(ctx, opts.Target)
	} else {
		status, err = gateway.Status(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// parseSetRecord parses "<kind>/<name>=<TargetKind>,<LogLevel>[,<PollIntervalSeconds>]".
func parseSetRecord(value string) (string, domain.ConfigRecord, error) {
	id, fields, found := strings.Cut(value, "=")
	if !found || id == "" {
		return "", domain.ConfigRecord{}, fmt.Errorf("invalid --set value %q: expected target=kind,level[,interval]", value)
	}

	parts := strings.Split(fields, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return "", domain.ConfigRecord{}, fmt.Errorf("invalid --set value %q: expected target=kind,level[,interval]", value)
	}

	record := domain.ConfigRecord{
		TargetKind: strings.TrimSpace(parts[0]),
		LogLevel:   strings.TrimSpace(parts[1]),
	}
	if len(parts) == 3 {
		seconds, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return "", domain.ConfigRecord{}, fmt.Errorf("invalid poll interval in %q: %w", value, err)
		}
		record.PollIntervalSeconds = &seconds
	}
	return id, record, nil
}
