package build

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Settings is read by the build tool on startup from the session root.
type Settings struct {
	Platform    Platform `json:"platform"`
	Secret      string   `json:"secret"`
	Destination string   `json:"destination"`
}

// WriteSettings creates the session directory tree and writes settings into it.
// Failures are reported as ErrIO.
func WriteSettings(s *Session, settings *Settings) error {
	if err := os.MkdirAll(s.LogDir, 0o777); err != nil {
		return fmt.Errorf("build.WriteSettings: %w", errors.Join(ErrIO, err))
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("build.WriteSettings: %w", err)
	}
	if err = os.WriteFile(s.SettingsFile, data, 0o666); err != nil {
		return fmt.Errorf("build.WriteSettings: %w", errors.Join(ErrIO, err))
	}

	return nil
}

// ReadSettings reads the settings file of a session.
func ReadSettings(s *Session) (*Settings, error) {
	data, err := os.ReadFile(s.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("build.ReadSettings: %w", err)
	}

	var settings Settings
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err = dec.Decode(&settings); err != nil {
		return nil, fmt.Errorf("build.ReadSettings: %w", err)
	}
	if dec.More() {
		return nil, errors.New("build.ReadSettings: multiple top-level values")
	}

	return &settings, nil
}
