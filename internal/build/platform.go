package build

import "fmt"

// Platform is the target platform of a build.
// It selects the artifact output convention of the build tool.
type Platform string

const (
	PlatformAndroidDevelopment Platform = "AndroidDevelopment"
	PlatformAndroidRelease     Platform = "AndroidRelease"
)

var platforms = map[Platform]struct{}{
	PlatformAndroidDevelopment: {},
	PlatformAndroidRelease:     {},
}

// ParsePlatform converts a string to a Platform and checks if it is a known platform.
func ParsePlatform(s string) (platform Platform, known bool) {
	platform = Platform(s)
	_, known = platforms[platform]
	return platform, known
}

// Target returns the value of the build tool's -buildTarget flag.
func (p Platform) Target() string {
	return "android"
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Platform) UnmarshalText(text []byte) error {
	platform, known := ParsePlatform(string(text))
	if !known {
		return fmt.Errorf("unknown platform %q", text)
	}
	*p = platform
	return nil
}

// LogBehaviour controls where the build tool's output goes.
type LogBehaviour string

const (
	// LogBehaviourStdout echoes output to the console only.
	LogBehaviourStdout LogBehaviour = "Stdout"
	// LogBehaviourStdoutFile echoes output to the console and persists it to the log file.
	LogBehaviourStdoutFile LogBehaviour = "StdoutFile"
	// LogBehaviourFile persists output to the log file only.
	LogBehaviourFile LogBehaviour = "File"
)

var logBehaviours = map[LogBehaviour]struct{}{
	LogBehaviourStdout:     {},
	LogBehaviourStdoutFile: {},
	LogBehaviourFile:       {},
}

// ParseLogBehaviour converts a string to a LogBehaviour and checks if it is a known behaviour.
func ParseLogBehaviour(s string) (behaviour LogBehaviour, known bool) {
	behaviour = LogBehaviour(s)
	_, known = logBehaviours[behaviour]
	return behaviour, known
}

// Echoes reports whether output is echoed to the console.
func (b LogBehaviour) Echoes() bool {
	return b == LogBehaviourStdout || b == LogBehaviourStdoutFile
}

// Persists reports whether output is persisted to the log file.
func (b LogBehaviour) Persists() bool {
	return b == LogBehaviourStdoutFile || b == LogBehaviourFile
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *LogBehaviour) UnmarshalText(text []byte) error {
	behaviour, known := ParseLogBehaviour(string(text))
	if !known {
		return fmt.Errorf("unknown log behaviour %q", text)
	}
	*b = behaviour
	return nil
}
