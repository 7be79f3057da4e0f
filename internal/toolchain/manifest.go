package toolchain

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// CrateName extracts the package name from a Cargo.toml. The compiled wasm
// artifact is named after it with hyphens mapped to underscores.
func CrateName(manifestPath string) (string, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return "", fmt.Errorf("open manifest %s: %w", manifestPath, err)
	}
	defer f.Close()

	inPackage := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inPackage = line == "[package]"
			continue
		}
		if !inPackage {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != "name" {
			continue
		}
		name := strings.Trim(strings.TrimSpace(value), `"'`)
		if name == "" {
			break
		}
		return name, nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read manifest %s: %w", manifestPath, err)
	}
	return "", fmt.Errorf("no package name in %s", manifestPath)
}

// ArtifactBaseName maps a crate name to the artifact file stem cargo emits.
func ArtifactBaseName(crate string) string {
	return strings.ReplaceAll(crate, "-", "_")
}
