package template

import (
	"fmt"
	"os"
	"strings"
)

// ReadQueryFile reads a SQL file and returns its contents unchanged. A file
// with no statement text is an error.
func ReadQueryFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read query file: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return "", fmt.Errorf("query file %s is empty", path)
	}
	return string(content), nil
}
