// main.go - Admin control tool for storekriti
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"storekriti/internal"
	"storekriti/internal/auth"
	"storekriti/internal/config"
	"storekriti/internal/database"
	"storekriti/internal/seeder"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// NeedsApp reports whether the command needs a database-backed application
	NeedsApp() bool
	// Execute runs the command with the given app and args. app is nil when NeedsApp is false.
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

var commands = []Command{
	&MigrateCommand{},
	&StatusCommand{},
	&SeedCommand{},
	&HashPasswordCommand{},
	&IssueTokenCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if cmd.NeedsApp() {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Fatalf("Failed to initialize app: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}()
	}

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }
func (c *MigrateCommand) NeedsApp() bool      { return true }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// StatusCommand prints row counts and connection pool statistics
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }
func (c *StatusCommand) NeedsApp() bool      { return true }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db := app.DBManager.GetConnection()

	counts, err := database.TableCounts(db)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	cfg := config.GetConfig()
	log.Println("System Status:")
	log.Printf("- Environment: %s", cfg.Environment)
	log.Printf("- Database: %s", cfg.GetDatabasePath())
	log.Printf("- Admin API: %s", enabledLabel(cfg.AdminConfigured()))
	log.Printf("- GeoIP: %s", enabledLabel(app.Geo.Enabled()))
	log.Printf("- Retention: %d days (0 keeps everything)", cfg.RetentionDays)

	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		log.Printf("- %s: %d rows", table, counts[table])
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	stats := sqlDB.Stats()
	log.Printf("- Max Open Connections: %d", stats.MaxOpenConnections)
	log.Printf("- Open Connections: %d", stats.OpenConnections)
	log.Printf("- In Use: %d", stats.InUse)
	log.Printf("- Idle: %d", stats.Idle)

	return nil
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// SeedCommand populates the DB with sample traffic and leads
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample traffic and leads" }
func (c *SeedCommand) NeedsApp() bool      { return true }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	sessions := fs.Int("sessions", 500, "number of sessions to generate")
	days := fs.Int("days", 30, "spread traffic over this many past days")
	leadRate := fs.Float64("lead-rate", 0.08, "share of sessions that submit a lead")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days < 1 {
		return errors.New("days must be at least 1")
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	se := seeder.NewSeeder(app.DBManager, slog.Default(), *sessions)
	se.Days = *days
	se.LeadRate = *leadRate

	_, err := se.Run(ctx)
	return err
}

// HashPasswordCommand prints a bcrypt hash usable as ADMIN_PASSWORD
type HashPasswordCommand struct{}

func (c *HashPasswordCommand) Name() string        { return "hash-password" }
func (c *HashPasswordCommand) Description() string { return "Hashes a password for ADMIN_PASSWORD" }
func (c *HashPasswordCommand) NeedsApp() bool      { return false }

func (c *HashPasswordCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	var password string
	if len(args) >= 1 {
		password = args[0]
	} else {
		fmt.Print("Enter password: ")
		passBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		if string(passBytes) != string(confirmBytes) {
			return errors.New("passwords do not match")
		}
		password = string(passBytes)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// IssueTokenCommand mints an admin token without going through the login endpoint
type IssueTokenCommand struct{}

func (c *IssueTokenCommand) Name() string        { return "issue-token" }
func (c *IssueTokenCommand) Description() string { return "Prints a fresh admin token signed with ADMIN_JWT_SECRET" }
func (c *IssueTokenCommand) NeedsApp() bool      { return false }

func (c *IssueTokenCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	cfg := config.GetConfig()
	if cfg.AdminJWTSecret == "" {
		return errors.New("ADMIN_JWT_SECRET is not set")
	}

	token, err := auth.NewIssuer(cfg.AdminJWTSecret).Issue(time.Now())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }
func (c *HelpCommand) NeedsApp() bool      { return false }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: skctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
