// Command indexserver serves index computation over HTTP.
//
// Configuration comes from config.yaml (or -config) and LAE_* environment
// variables; see internal/config.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/LASER-IDEA/white-paper-sub000/internal/app"
	"github.com/LASER-IDEA/white-paper-sub000/internal/config"
	"github.com/LASER-IDEA/white-paper-sub000/internal/infrastructure"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		logger.Error("application stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
