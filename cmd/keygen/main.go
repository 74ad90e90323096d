package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tjfontaine/headline-restyler/internal/auth"
)

func main() {
	description := flag.String("description", "Generated key", "description stored next to the hash")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./cmd/keygen [-description text] <api-key>")
		fmt.Println("Generates an Argon2id hash of the provided API key for use in config.yaml")
		os.Exit(1)
	}

	apiKey := flag.Arg(0)
	keyHash, err := auth.HashAPIKey(apiKey, auth.DefaultParams())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Argon2id Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("auth:\n")
	fmt.Printf("  api_keys:\n")
	fmt.Printf("    - key_hash: '%s'\n", keyHash)
	fmt.Printf("      description: %q\n", *description)
}
