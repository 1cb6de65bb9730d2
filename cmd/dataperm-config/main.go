package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	dataperm "github.com/Await-d/maple-blog-sub000"
	"github.com/Await-d/maple-blog-sub000/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "apply":
		handleApply()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("dataperm-config - permission configuration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dataperm-config convert <input> <output>   - Convert between YAML and JSON")
	fmt.Println("  dataperm-config validate <file>            - Validate a configuration file")
	fmt.Println("  dataperm-config stats <file>               - Show configuration statistics")
	fmt.Println("  dataperm-config apply <file> <sqlite-db>   - Seed a database from a configuration")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func loadConfig(path string) (*dataperm.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	loader := dataperm.NewConfigLoader()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", filepath.Ext(path))
	}
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: dataperm-config convert <input> <output>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	out := os.Args[3]
	var data []byte
	switch strings.ToLower(filepath.Ext(out)) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		err = fmt.Errorf("unsupported output format: %s", filepath.Ext(out))
	}
	if err != nil {
		fmt.Printf("Error encoding config: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Printf("Error writing output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], out)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: dataperm-config validate <file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Invalid: %v\n", err)
		os.Exit(1)
	}
	// Seed entries must parse; applying against throwaway memory stores
	// exercises the same code path as production.
	eng, err := dataperm.NewEngine(
		stores.NewMemoryUserDirectory(),
		stores.NewMemoryRuleStore(),
		stores.NewMemoryTemporaryStore(),
	)
	if err != nil {
		fmt.Printf("Invalid: %v\n", err)
		os.Exit(1)
	}
	if err := eng.ApplyConfig(context.Background(), cfg); err != nil {
		fmt.Printf("Invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Valid")
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: dataperm-config stats <file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Role default overrides: %d\n", len(cfg.RoleDefaults))
	fmt.Printf("Seed rules:             %d\n", len(cfg.Rules))
	fmt.Printf("Seed temporary grants:  %d\n", len(cfg.Temporary))
	allows := 0
	for _, r := range cfg.Rules {
		if r.Allow {
			allows++
		}
	}
	fmt.Printf("  allow rules: %d, deny rules: %d\n", allows, len(cfg.Rules)-allows)
}

func handleApply() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: dataperm-config apply <file> <sqlite-db>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := sql.Open("sqlite", os.Args[3])
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	db := squealx.NewDb(sqlDB, "sqlite", "dataperm")
	if err := stores.Migrate(db); err != nil {
		fmt.Printf("Error migrating: %v\n", err)
		os.Exit(1)
	}

	eng, err := dataperm.NewEngine(
		stores.NewSQLUserDirectory(db),
		stores.NewSQLRuleStore(db),
		stores.NewSQLTemporaryStore(db),
	)
	if err != nil {
		fmt.Printf("Error building engine: %v\n", err)
		os.Exit(1)
	}
	if err := eng.ApplyConfig(context.Background(), cfg); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Applied %s to %s\n", os.Args[2], os.Args[3])
}
