package main

import (
	"fmt"
	"os"

	"github.com/marcelsud/webhook-outbox/seeds"
)

/* validate-seeds - Standalone CLI tool to validate endpoints.yaml
 * Usage: go run cmd/validate-seeds/main.go [endpoints.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	seedsFile := "endpoints.yaml"
	if len(os.Args) > 1 {
		seedsFile = os.Args[1]
	}

	fmt.Printf("Validating seeds file: %s\n", seedsFile)

	loader := seeds.NewLoader()
	if err := loader.Load(seedsFile); err != nil {
		fmt.Fprintf(os.Stderr, "VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	loaded := loader.List()
	fmt.Printf("VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d endpoint seed(s):\n", len(loaded))

	for i, seed := range loaded {
		fmt.Printf("\n%d. URL: %s\n", i+1, seed.URL)
		fmt.Printf("   Events:")
		for _, et := range seed.Events {
			fmt.Printf(" %s", et)
		}
		fmt.Println()
		if seed.MaxAttempts > 0 {
			fmt.Printf("   Max Attempts: %d\n", seed.MaxAttempts)
		}
		if seed.TimeoutSeconds > 0 {
			fmt.Printf("   Timeout: %ds\n", seed.TimeoutSeconds)
		}
		if seed.Secret != "" {
			fmt.Printf("   Secret: (provided)\n")
		}
	}

	fmt.Printf("\nAll seeds are valid!\n")
	os.Exit(0)
}
