package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/silkdb/webdb/db"

	_ "github.com/silkdb/webdb/driver/commit"
	_ "github.com/silkdb/webdb/driver/duckdb"
	_ "github.com/silkdb/webdb/driver/memory"
	_ "github.com/silkdb/webdb/driver/mysql"
	_ "github.com/silkdb/webdb/driver/sqlite"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	promptColor  = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	headerColor  = color.New(color.FgCyan, color.Bold)
)

// CLI holds the REPL state
type CLI struct {
	database    *db.DB
	history     []string
	historyFile string
}

func main() {
	driverName := flag.String("driver", "memory", "Storage driver")
	target := flag.String("target", "", "Storage target (path, DSN or URL)")
	scriptFile := flag.String("file", "", "Command file to execute (non-interactive)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("webdb CLI v%s\n", Version)
		return
	}

	database, err := db.Connect(*driverName, *target)
	if err != nil {
		errorColor.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cli := &CLI{
		database:    database,
		historyFile: historyPath(),
	}
	cli.loadHistory()

	if *scriptFile != "" {
		if err := cli.importFile(*scriptFile); err != nil {
			errorColor.Printf("Error importing file: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printBanner(*driverName)
	cli.run()
}

func printBanner(driverName string) {
	fmt.Println()
	headerColor.Println("╔═══════════════════════════════════════╗")
	headerColor.Printf("║   webdb v%-27s  ║\n", Version)
	headerColor.Println("║   Database Abstraction Layer          ║")
	headerColor.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	successColor.Printf("Using %s driver\n", driverName)
	fmt.Println("Type .help for commands, .quit to exit")
	fmt.Println()
}

func (cli *CLI) run() {
	reader := bufio.NewReader(os.Stdin)

	for {
		promptColor.Print("webdb> ")

		input, err := reader.ReadString('\n')
		if err != nil {
			successColor.Println("\nGoodbye!")
			cli.saveHistory()
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, ".") {
			cli.handleCommand(input)
			continue
		}

		cli.addToHistory(input)
		if err := cli.execute(input); err != nil {
			errorColor.Printf("✗ Error: %v\n", err)
		}
	}
}

func (cli *CLI) handleCommand(input string) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case ".quit", ".exit", ".q":
		successColor.Println("Goodbye!")
		cli.saveHistory()
		cli.database.Close()
		os.Exit(0)

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".tables":
		for _, name := range cli.database.Tables() {
			fmt.Println("  " + name)
		}

	case ".clear", ".cls":
		fmt.Print("\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		fmt.Printf("webdb version %s\n", Version)

	case ".import":
		if len(parts) > 1 {
			if err := cli.importFile(parts[1]); err != nil {
				errorColor.Printf("✗ Error: %v\n", err)
			}
		} else {
			errorColor.Println("✗ Usage: .import <file>")
		}

	default:
		errorColor.Printf("✗ Unknown command: %s (type .help for commands)\n", parts[0])
	}
}

func (cli *CLI) printHelp() {
	fmt.Println()
	headerColor.Println("Special Commands:")
	fmt.Println("  .help, .h        Show this help message")
	fmt.Println("  .quit, .exit     Exit the CLI")
	fmt.Println("  .tables          List defined tables")
	fmt.Println("  .import <file>   Execute commands from a file")
	fmt.Println("  .history         Show command history")
	fmt.Println("  .clear           Clear the screen")
	fmt.Println("  .version         Show version info")
	fmt.Println()
	headerColor.Println("Commands:")
	fmt.Println("  define <table> <name:type[:required][:unique]> ...")
	fmt.Println("  describe <table>")
	fmt.Println("  insert <table> <col>=<value> ...")
	fmt.Println("  select <table> [cols <a,b,c>] [where <col> <op> <value>] [order <col> [desc]]")
	fmt.Println("  get <table> <rowid>")
	fmt.Println("  count <table> [where <col> <op> <value>]")
	fmt.Println("  update <table> <col>=<value> ... where <col> <op> <value>")
	fmt.Println("  delete <table> where <col> <op> <value>")
	fmt.Println("  drop <table>")
	fmt.Println("  dump <target>       Export all tables (.lz4 compresses)")
	fmt.Println("  load <target>       Import a previous dump")
	fmt.Println()
	headerColor.Print("Types:")
	fmt.Println(" rowid, integer, boolean, string, float, data, datetime")
	headerColor.Print("Operators:")
	fmt.Println(" eq, ne, lt, le, gt, ge, like, glob")
	fmt.Println()
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)
	if len(cli.history) > 1000 {
		cli.history = cli.history[len(cli.history)-1000:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Println("No command history")
		return
	}
	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}
	for i := start; i < len(cli.history); i++ {
		fmt.Printf("  %3d  %s\n", i+1, cli.history[i])
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".webdb_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}
	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}
	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	start := 0
	if len(cli.history) > 1000 {
		start = len(cli.history) - 1000
	}
	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}

// importFile reads and executes commands from a file, one per line.
func (cli *CLI) importFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	successCount := 0
	errorCount := 0
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := cli.execute(line); err != nil {
			errorColor.Printf("[%d] ✗ %v\n", i+1, err)
			errorCount++
		} else {
			successCount++
		}
	}

	successColor.Printf("✓ %d commands executed", successCount)
	if errorCount > 0 {
		errorColor.Printf(", %d failed", errorCount)
	}
	fmt.Println()
	return nil
}
