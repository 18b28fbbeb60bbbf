// Command validate provides a small CLI that validates deployment
// configuration JSON files in the ../configs directory. It checks:
//   - JSON structure and required fields
//   - max_players bounds (positive, within a sane ceiling)
//   - join_policy is one of "code" or "id"
//   - discovery is only enabled under the "id" policy
//   - key_length bounds for server-generated keys
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config mirrors the JSON schema for a deployment configuration.
type Config struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxPlayers  int    `json:"max_players"`
	JoinPolicy  string `json:"join_policy"`
	Discovery   bool   `json:"discovery"`
	KeyLength   int    `json:"key_length"`
}

// Validation bounds for deployment values.
const (
	MaxPlayersCeiling = 16
	MaxKeyLength      = 32
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateConfig loads and validates a single configuration JSON file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	if config.Name == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "Missing required field: name")
	}

	if config.MaxPlayers <= 0 {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("max_players must be positive, got %d", config.MaxPlayers))
	} else if config.MaxPlayers > MaxPlayersCeiling {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("max_players must not exceed %d, got %d", MaxPlayersCeiling, config.MaxPlayers))
	}

	switch config.JoinPolicy {
	case "code", "id":
	default:
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("join_policy must be \"code\" or \"id\", got %q", config.JoinPolicy))
	}

	if config.Discovery && config.JoinPolicy != "id" {
		result.Valid = false
		result.Errors = append(result.Errors, "discovery requires join_policy \"id\"")
	}

	if config.KeyLength < 0 || config.KeyLength > MaxKeyLength {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("key_length must be between 0 and %d, got %d", MaxKeyLength, config.KeyLength))
	}

	if config.KeyLength > 0 && config.JoinPolicy != "id" {
		result.Valid = false
		result.Errors = append(result.Errors, "key_length only applies to join_policy \"id\"")
	}

	// Add informational data
	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", config.Name))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Capacity: %d players", config.MaxPlayers))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Policy: join by %s", config.JoinPolicy))
		if config.Discovery {
			result.Errors = append(result.Errors, "✓ Discovery list enabled")
		}
	}

	return result
}

// main scans ../configs for *.json files and validates each one, printing a
// concise report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(configDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
