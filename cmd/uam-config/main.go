package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/uam"
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
	case "evaluate":
		handleEvaluate()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("uam-config - Configuration tool for the access decision engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  uam-config convert <input> <output>         - Convert between formats")
	fmt.Println("  uam-config validate <file>                  - Validate configuration")
	fmt.Println("  uam-config stats <file>                     - Show configuration statistics")
	fmt.Println("  uam-config evaluate <config> <request.json> - Evaluate a request with trace")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: uam-config convert <input> <output>")
		os.Exit(1)
	}

	cfg, err := uam.NewConfigLoader().LoadFile(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := saveConfig(cfg, os.Args[3]); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], os.Args[3])
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: uam-config validate <file>")
		os.Exit(1)
	}

	cfg, err := uam.NewConfigLoader().LoadFile(os.Args[2])
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if issues := cfg.Validate(); len(issues) > 0 {
		fmt.Println("Configuration has issues:")
		for _, issue := range issues {
			fmt.Printf("  - %s\n", issue)
		}
		os.Exit(1)
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Rules:   %d\n", len(cfg.Rules))
	fmt.Printf("  Rows:    %d\n", len(cfg.Rows))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: uam-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := uam.NewConfigLoader().LoadFile(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Rules: %d\n", len(cfg.Rules))
	fmt.Printf("  Rows:  %d\n", len(cfg.Rows))
	fmt.Println()

	if len(cfg.Rules) > 0 {
		byPriority := map[uam.PriorityLevel]int{}
		autoGrant := 0
		totalPrereqs := 0
		for _, r := range cfg.Rules {
			byPriority[r.PriorityLevel]++
			if r.AutoGrantEnabled {
				autoGrant++
			}
			totalPrereqs += len(r.PreRequisites)
		}
		fmt.Println("Rule Details:")
		fmt.Printf("  High priority:     %d\n", byPriority[uam.PriorityHigh])
		fmt.Printf("  Medium priority:   %d\n", byPriority[uam.PriorityMedium])
		fmt.Printf("  Low priority:      %d\n", byPriority[uam.PriorityLow])
		fmt.Printf("  Auto-grant rules:  %d\n", autoGrant)
		fmt.Printf("  Avg prerequisites: %.1f\n", float64(totalPrereqs)/float64(len(cfg.Rules)))
		fmt.Println()
	}

	if len(cfg.Rows) > 0 {
		withTraining := 0
		withException := 0
		for _, row := range cfg.Rows {
			if strings.TrimSpace(row.TrainingRequired) != "" {
				withTraining++
			}
			if strings.TrimSpace(row.ExceptionScenario) != "" {
				withException++
			}
		}
		fmt.Println("Row Details:")
		fmt.Printf("  With training requirement: %d\n", withTraining)
		fmt.Printf("  With exception scenario:   %d\n", withException)
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Auto-grant threshold:       %.1f\n", cfg.Engine.AutoGrantThreshold)
	fmt.Printf("  Require-approval threshold: %.1f\n", cfg.Engine.RequireApprovalThreshold)
	fmt.Printf("  Decision cache TTL:         %dms\n", cfg.Engine.DecisionCacheTTL)
	fmt.Printf("  Reasoner endpoint:          %s\n", orNone(cfg.Engine.ReasonerEndpoint))
	fmt.Printf("  Ticketing URL:              %s\n", orNone(cfg.Engine.TicketingURL))
}

func handleEvaluate() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: uam-config evaluate <config> <request.json>")
		os.Exit(1)
	}

	cfg, err := uam.NewConfigLoader().LoadFile(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	reqData, err := os.ReadFile(os.Args[3])
	if err != nil {
		fmt.Printf("Error reading request: %v\n", err)
		os.Exit(1)
	}
	var req uam.EvaluationRequest
	if err := json.Unmarshal(reqData, &req); err != nil {
		fmt.Printf("Error parsing request: %v\n", err)
		os.Exit(1)
	}

	engine, err := uam.NewEngine(uam.NewMemoryRequestStore(), uam.NewMemoryAuditStore())
	if err != nil {
		fmt.Printf("Error creating engine: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := engine.ApplyConfig(ctx, cfg); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	decision, err := engine.Explain(ctx, &req)
	if err != nil {
		fmt.Printf("Evaluation failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(decision, "", "  ")
	fmt.Println(string(out))
}

func saveConfig(cfg *uam.Config, filename string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported file format: %s", filepath.Ext(filename))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
