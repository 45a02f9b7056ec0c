package build

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Output is the completion report written by the build tool.
// ArtifactPath is absolute after LoadOutput.
type Output struct {
	ArtifactPath string   `json:"artifact_path"`
	Platform     Platform `json:"platform"`
}

// LoadOutput reads the completion report from the session root and resolves
// the artifact path against it. A missing or malformed report is reported
// as ErrOutputLoad.
func LoadOutput(s *Session) (*Output, error) {
	data, err := os.ReadFile(s.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("build.LoadOutput: %w", errors.Join(ErrOutputLoad, err))
	}

	var output Output
	dec := json.NewDecoder(bytes.NewReader(data))
	if err = dec.Decode(&output); err != nil {
		return nil, fmt.Errorf("build.LoadOutput: %w", errors.Join(ErrOutputLoad, err))
	}
	if dec.More() {
		return nil, fmt.Errorf("build.LoadOutput: %w", errors.Join(ErrOutputLoad, errors.New("multiple top-level values")))
	}

	if err = validateOutput(&output); err != nil {
		return nil, fmt.Errorf("build.LoadOutput: %w", errors.Join(ErrOutputLoad, err))
	}

	output.ArtifactPath = filepath.Join(s.Root, filepath.FromSlash(output.ArtifactPath))
	return &output, nil
}

func validateOutput(output *Output) error {
	if output.ArtifactPath == "" {
		return errors.New("missing artifact_path")
	}
	p := filepath.FromSlash(output.ArtifactPath)
	if filepath.IsAbs(p) {
		return fmt.Errorf("artifact_path %q is absolute", output.ArtifactPath)
	}
	if clean := filepath.Clean(p); clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("artifact_path %q is outside of the session root", output.ArtifactPath)
	}
	if _, known := ParsePlatform(string(output.Platform)); !known {
		return fmt.Errorf("unknown platform %q", output.Platform)
	}
	return nil
}
