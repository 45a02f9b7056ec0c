package build

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Launcher spawns the build tool for a session.
type Launcher struct {
	Bin string   // required
	Env []string // extra environment variables in the form "key=value"
}

// Args returns the command line arguments for a session, without the binary.
func (l *Launcher) Args(s *Session) []string {
	return []string{
		"-batchmode",
		"-quit",
		"-projectPath", s.Request.WorkspacePath(),
		"-executeMethod", s.Request.Entry(),
		"-buildTarget", s.Request.Platform().Target(),
		"-logFile", "-",
		"-sessionroot", s.RelRoot,
	}
}

// Environ returns the environment of the build tool for a session.
func (l *Launcher) Environ(s *Session) []string {
	environ := os.Environ()
	environ = append(environ, l.Env...)
	environ = append(environ,
		"TELEBUILD_SESSION_ID="+s.ID.String(),
		"TELEBUILD_SESSION_ROOT="+s.Root,
		"TELEBUILD_OUTPUT_FILE="+s.OutputFile,
	)
	return environ
}

// process is a running build tool with all of its standard streams piped.
type process struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
}

// Start spawns the build tool. Failures are reported as ErrSpawn.
// The read ends of stdout and stderr are owned by the caller after Start returns.
func (l *Launcher) Start(s *Session) (*process, error) {
	cmd := exec.Command(l.Bin, l.Args(s)...)
	cmd.Env = l.Environ(s)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("build.Launcher: %w", errors.Join(ErrSpawn, err))
	}

	// os.Pipe is used instead of cmd.StdoutPipe so Wait doesn't close
	// the read end while the log router may still be reading it.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("build.Launcher: %w", errors.Join(ErrSpawn, err))
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, fmt.Errorf("build.Launcher: %w", errors.Join(ErrSpawn, err))
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err = cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("build.Launcher: %w", errors.Join(ErrSpawn, err))
	}
	closeAll(stdoutW, stderrW)

	// The build tool runs unattended, so it gets an empty stdin.
	_ = stdin.Close()

	return &process{cmd: cmd, stdout: stdoutR, stderr: stderrR}, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
