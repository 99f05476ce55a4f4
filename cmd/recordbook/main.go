// Package main provides the recordbook application: a terminal UI for
// collecting images into titled records, plus a few subcommands for
// scripting against the same store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/recordbook/pkg/app"
	appconfig "github.com/entrhq/recordbook/pkg/config"
	"github.com/entrhq/recordbook/pkg/logging"
	"github.com/entrhq/recordbook/pkg/photo"
	"github.com/entrhq/recordbook/pkg/ui"
)

const version = "0.1.0"

// Config holds the command line configuration. Fields left empty fall back
// to the config file and environment.
type Config struct {
	ConfigPath  string
	Backend     string
	DataDir     string
	Debug       bool
	ShowVersion bool
	Args        []string

	// set names the flags given on the command line
	set map[string]bool
}

func main() {
	config := parseFlags(os.Args[1:])

	if config.ShowVersion {
		fmt.Printf("recordbook v%s\n", version)
		return
	}

	if err := config.validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if runErr := run(ctx, config, os.Stdout); runErr != nil {
		cancel()
		log.Fatalf("Application error: %v", runErr)
	}
	cancel()
}

// parseFlags parses the global flags. Everything after them is the
// subcommand and its arguments.
func parseFlags(args []string) *Config {
	config := &Config{}
	fs := flag.NewFlagSet("recordbook", flag.ExitOnError)

	fs.StringVar(&config.ConfigPath, "config", "", "Path to the config file (default ~/.recordbook/config.yaml)")
	fs.StringVar(&config.Backend, "backend", "", "Storage backend: file, sqlite, redis, s3 or memory")
	fs.StringVar(&config.DataDir, "data-dir", "", "Directory for the file and sqlite backends")
	fs.BoolVar(&config.Debug, "debug", false, "Enable debug logging and strict index checks")
	fs.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "recordbook - titled image records in the terminal\n\n")
		fmt.Fprintf(out, "Usage: recordbook [options] [command]\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nCommands:\n")
		fmt.Fprintf(out, "  (none)                        Start the interactive UI\n")
		fmt.Fprintf(out, "  list                          List records\n")
		fmt.Fprintf(out, "  show <n>                      Show record n\n")
		fmt.Fprintf(out, "  add -title T <path>...        Create a record from image files, directories or globs\n")
		fmt.Fprintf(out, "  delete <n>                    Delete record n\n")
		fmt.Fprintf(out, "  export <n> <out.pdf|dir>      Write record n as a PDF or as image files\n")
		fmt.Fprintf(out, "  dump [-plain]                 Print the stored document\n")
		fmt.Fprintf(out, "  version                       Show version\n")
		fmt.Fprintf(out, "\nEnvironment Variables:\n")
		fmt.Fprintf(out, "  RECORDBOOK_BACKEND     Storage backend\n")
		fmt.Fprintf(out, "  RECORDBOOK_DATA_DIR    Data directory\n")
		fmt.Fprintf(out, "  RECORDBOOK_TRUNCATION  keep-oldest or sliding-window\n")
		fmt.Fprintf(out, "  REDIS_ADDR, S3_BUCKET  Remote backend settings\n")
	}

	_ = fs.Parse(args)
	config.Args = fs.Args()
	config.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { config.set[f.Name] = true })
	return config
}

// validate checks the flags that can be checked before loading settings
func (c *Config) validate() error {
	switch c.Backend {
	case "", appconfig.BackendFile, appconfig.BackendSQLite, appconfig.BackendRedis,
		appconfig.BackendS3, appconfig.BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.DataDir != "" {
		info, err := os.Stat(c.DataDir)
		if err == nil && !info.IsDir() {
			return fmt.Errorf("data directory '%s' is not a directory", c.DataDir)
		}
	}

	if len(c.Args) > 0 {
		if _, ok := commands[c.Args[0]]; !ok {
			return fmt.Errorf("unknown command %q", c.Args[0])
		}
	}

	return nil
}

// settings loads the config file and environment and applies the flags
// that were given on top.
func (c *Config) settings() (*appconfig.Config, error) {
	if err := appconfig.LoadDotEnv(); err != nil {
		return nil, err
	}
	settings, err := appconfig.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	if c.set["backend"] {
		settings.Backend = c.Backend
	}
	if c.set["data-dir"] {
		settings.DataDir = c.DataDir
	}
	if c.set["debug"] {
		settings.Debug = c.Debug
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// run executes the main application logic
func run(ctx context.Context, config *Config, stdout io.Writer) error {
	if len(config.Args) > 0 && config.Args[0] == "version" {
		fmt.Fprintf(stdout, "recordbook v%s\n", version)
		return nil
	}

	settings, err := config.settings()
	if err != nil {
		return err
	}

	logging.SetLogDirectory(settings.Logging.Dir)
	logging.SetDebug(settings.Debug)
	// on error the logger writes to stderr and has already said why
	logger, _ := logging.NewLogger("recordbook")
	defer logger.Close()
	logger.InstallSlog()

	interactive := len(config.Args) == 0
	var warnings *ui.Warnings
	var onWarning app.WarningFunc
	if interactive {
		warnings = ui.NewWarnings()
		onWarning = warnings.Func()
	} else {
		onWarning = func(message string, err error) {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", message, err)
		}
	}

	svc, err := openService(ctx, settings, logger, onWarning)
	if err != nil {
		return err
	}
	defer svc.Close()

	if interactive {
		logger.Infof("starting ui with %s backend", settings.Backend)
		return ui.Run(ctx, svc, warnings)
	}
	return dispatch(ctx, svc, config.Args, stdout)
}

// openService builds the backing store and service from settings.
func openService(ctx context.Context, settings *appconfig.Config, logger *logging.Logger, onWarning app.WarningFunc) (*app.Service, error) {
	policy, err := settings.TruncationPolicy()
	if err != nil {
		return nil, err
	}

	accept := photo.DefaultAcceptFilter()
	if settings.AcceptPattern != "" {
		accept, err = photo.NewAcceptFilter(settings.AcceptPattern)
		if err != nil {
			return nil, err
		}
	}

	store, err := app.OpenStore(ctx, settings)
	if err != nil {
		return nil, err
	}

	return app.Open(ctx, store, app.Options{
		StorageKey: settings.StorageKey,
		Debug:      settings.Debug,
		Policy:     policy,
		Accept:     accept,
		Logger:     logger,
		OnWarning:  onWarning,
	}), nil
}
