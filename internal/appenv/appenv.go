// Package appenv assembles the environment configuration is parsed from.
package appenv

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// Environ returns environ with the variables of the dotenv files added.
// Variables already in environ win over the files, and earlier files win
// over later ones. Missing files are skipped.
func Environ(environ []string, files ...string) ([]string, error) {
	seen := make(map[string]struct{}, len(environ))
	for _, kv := range environ {
		k, _, _ := strings.Cut(kv, "=")
		seen[k] = struct{}{}
	}

	result := append([]string(nil), environ...)
	for _, file := range files {
		vars, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("appenv.Environ: %w", err)
		}
		for k, v := range vars {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			result = append(result, k+"="+v)
		}
	}

	return result, nil
}
