package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hbomb79/Selene/internal"
	"github.com/hbomb79/Selene/pkg/logger"
	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
)

var log = logger.Get("Main")

// main is the entry point for Selene; it loads the user configuration
// (file-based, with environment variable overrides) and starts the server,
// blocking until an interrupt is received or a core service crashes.
func main() {
	if err := godotenv.Load(); err == nil {
		log.Emit(logger.INFO, "Loaded environment variables from .env file\n")
	}

	configPath := flag.String("config", defaultConfigPath(), "path to the YAML config file")
	verbosity := flag.Int("verbose", logger.INFO.Level(), "verbosity of logging output (0=verbose, 5=fatal)")
	flag.Parse()

	logger.SetMinLoggingLevel(*verbosity)

	config := internal.SeleneConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Emit(logger.FATAL, "%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Emit(logger.FATAL, "Selene encountered an unrecoverable error: %v\n", err)
		os.Exit(1)
	}

	log.Emit(logger.STOP, "Selene shutdown complete\n")
}

func defaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "config.yaml"
	}

	return filepath.Join(home, ".config", "selene", "config.yaml")
}
