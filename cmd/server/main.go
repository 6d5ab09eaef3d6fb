package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/silkdb/webdb/db"

	_ "github.com/silkdb/webdb/driver/commit"
	_ "github.com/silkdb/webdb/driver/duckdb"
	_ "github.com/silkdb/webdb/driver/memory"
	_ "github.com/silkdb/webdb/driver/mysql"
	_ "github.com/silkdb/webdb/driver/sqlite"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (webdb.yaml searched when empty)")
	listen := flag.String("listen", "", "Listen address, overrides config")
	driverName := flag.String("driver", "", "Storage driver, overrides config")
	target := flag.String("target", "", "Storage target, overrides config")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("webdb server v%s\n", Version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *driverName != "" {
		cfg.Driver = *driverName
	}
	if *target != "" {
		cfg.Target = *target
	}

	log.Printf("Using %s driver (target %q)", cfg.Driver, cfg.Target)
	database, err := db.Connect(cfg.Driver, cfg.Target)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	server := NewServer(cfg, database)
	if err := server.Start(cfg.Listen); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Print banner
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   webdb server v%-20s  ║\n", Version)
	fmt.Println("║   Database Abstraction Layer          ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on %s\n", server.Addr())
	fmt.Println("Send JSON requests (one per line), 'quit' to disconnect")
	if cfg.Auth.Enabled {
		fmt.Println("Authentication required: AUTH JWT <token>")
	}
	fmt.Println()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	if err := server.Stop(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
