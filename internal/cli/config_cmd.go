//go:build native

package cli

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"wizgo/internal/config"
)

// runConfig prints the resolved configuration as YAML.
func runConfig(cfg config.Config) int {
	fmt.Println("=== wizgo configuration ===")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Printf("error marshaling config: %v\n", err)
		return 1
	}

	fmt.Println(string(data))
	return 0
}
