package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"clubledger/cmd"
	"clubledger/config"
	"clubledger/database"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Migrations only need the database location, not the full configuration
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		_ = godotenv.Load()
		if err := handleMigrationCommand(os.Args[2:]); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	cfg := config.Get()
	if err := cmd.ConfigureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal("Logging error: ", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var err error
	switch command {
	case "serve":
		err = cmd.Run(ctx)
	case "adjust-balance":
		err = cmd.AdjustBalance(ctx, os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q (expected serve, migrate or adjust-balance)", command)
	}
	if err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: clubledger migrate [up|down|status] [args...]")
	}

	switch args[0] {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", args[0])
	}
}
