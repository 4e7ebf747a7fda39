// Package main is the sdmox operator CLI for one-shot unit changes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"sdmox/internal/app"
	"sdmox/internal/config"
	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgsync"
	"sdmox/internal/domain/orgunit"
	"sdmox/internal/infrastructure/http/v1/dto"
	"sdmox/internal/infrastructure/http/v1/middleware"
	"sdmox/pkg/logger"
)

const usage = `usage: sdmox [flags] <command> <args>

commands:
  rename       UNIT_UUID NEW_NAME
  move         UNIT_UUID NEW_PARENT_UUID
  add-address  UNIT_UUID SCOPE VALUE
  edit-address UNIT_UUID SCOPE VALUE

flags:
`

// options are the parsed command line.
type options struct {
	configPath string
	dryRun     bool
	at         string
	sourceKey  string
	command    string
	args       []string
}

func parseArgs(argv []string, stderr io.Writer) (*options, error) {
	fs := pflag.NewFlagSet("sdmox", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "path to YAML settings (defaults to $SDMOX_CONFIG)")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "render and print the documents without sending them")
	fs.StringVar(&opts.at, "at", "", "effective date YYYY-MM-DD (required)")
	fs.StringVar(&opts.sourceKey, "source-key", "", "address source key, e.g. the purpose code key")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, fmt.Errorf("missing command")
	}
	opts.command = fs.Arg(0)
	opts.args = fs.Args()[1:]

	want := map[string]int{"rename": 2, "move": 2, "add-address": 3, "edit-address": 3}
	n, ok := want[opts.command]
	if !ok {
		fs.Usage()
		return nil, fmt.Errorf("unknown command %q", opts.command)
	}
	if len(opts.args) != n {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", opts.command, n, len(opts.args))
	}
	if opts.at == "" {
		return nil, fmt.Errorf("--at is required")
	}
	return opts, nil
}

// execute runs the parsed command against svc.
func execute(ctx context.Context, svc orgsync.Interface, opts *options) (*orgsync.Result, error) {
	at, err := orgunit.ParseDate(opts.at)
	if err != nil {
		return nil, err
	}
	a := opts.args
	switch opts.command {
	case "rename":
		return svc.RenameUnit(ctx, a[0], a[1], at, opts.dryRun)
	case "move":
		return svc.MoveUnit(ctx, a[0], a[1], at, opts.dryRun)
	}

	record := orgunit.AddressRecord{
		Scope:     orgunit.Scope(strings.ToUpper(a[1])),
		SourceKey: opts.sourceKey,
		Value:     a[2],
	}
	if opts.command == "add-address" {
		return svc.CreateAddress(ctx, a[0], record, at, opts.dryRun)
	}
	return svc.EditAddress(ctx, a[0], record, at, opts.dryRun)
}

// report prints the outcome and returns the process exit code.
func report(stdout, stderr io.Writer, res *orgsync.Result, err error) int {
	if err != nil {
		appErr, ok := apperror.AsAppError(err)
		if !ok {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "%s [%s]: %s\n", appErr.Code, appErr.Stage, middleware.Describe(appErr))
		if res == nil {
			return 1
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(dto.FromResult(res)); encErr != nil {
		fmt.Fprintf(stderr, "error: %v\n", encErr)
		return 1
	}
	if err != nil {
		return 1
	}
	return 0
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sdmox: %v\n", err)
		os.Exit(2)
	}

	settings, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       settings.Log.Level,
		Development: settings.Log.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	a, err := app.New(ctx, settings, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}

	res, err := execute(ctx, a.Service, opts)
	code := report(os.Stdout, os.Stderr, res, err)
	a.Close()
	os.Exit(code)
}
