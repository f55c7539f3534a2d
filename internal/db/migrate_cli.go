package db

import (
	"fmt"
	"log"
	"os"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	// Open without migrating; the action decides what to apply.
	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch args[0] {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		printVersion(database)
	case "down":
		log.Printf("Rolling back one migration...")
		if err := database.MigrateDown(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		printVersion(database)
	case "status":
		printVersion(database)
	case "help":
		PrintMigrateHelp()
	default:
		fmt.Printf("Unknown migrate action: %s\n\n", args[0])
		PrintMigrateHelp()
		os.Exit(1)
	}
}

func printVersion(database *DB) {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		log.Fatalf("Failed to get migration status: %v", err)
	}
	latest, err := LatestMigration()
	if err != nil {
		log.Fatalf("Failed to read embedded migrations: %v", err)
	}
	fmt.Printf("Current version: %d (latest %d)\n", version, latest)
	fmt.Printf("Dirty: %v\n", dirty)
	if dirty {
		fmt.Println("\nWARNING: a migration failed mid-execution; inspect the catalog before converting again.")
	}
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp() {
	fmt.Println(`Usage: waymo2bag migrate <action> [-db path]

Actions:
  up      Apply all pending migrations
  down    Roll back the most recent migration
  status  Show the current migration version
  help    Show this help`)
}
