package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sfbuilder/colony/cmd/colonyctl/commands"
	"github.com/sfbuilder/colony/pkg/goals"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Exit codes by error class.
const (
	exitFailure     = 1
	exitRecoverable = 2
	exitContract    = 3
	exitStorage     = 4
)

func main() {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// watch runs until interrupted; everything else finishes on its own.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = commands.Execute(ctx, Version, Commit, BuildDate)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var gerr *goals.GoalError
	if !errors.As(err, &gerr) {
		return exitFailure
	}
	switch gerr.Class {
	case goals.ErrorClassRecoverable:
		return exitRecoverable
	case goals.ErrorClassContract:
		return exitContract
	case goals.ErrorClassStorage:
		return exitStorage
	default:
		return exitFailure
	}
}
