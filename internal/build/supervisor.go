package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

type unitResult struct {
	waited bool
	err    error
}

// supervise races draining stdout and waiting for the process against ctx.
//
// If the drain and the wait finish first, it returns the process state.
// If ctx is done first, it kills the process, abandons the drain, reaps
// the process and returns a CanceledError. If the drain fails, it kills and
// reaps the process and returns the drain error.
func (p *process) supervise(ctx context.Context, drain func(*os.File) error) (*os.ProcessState, error) {
	unit := make(chan unitResult, 1)
	go func() {
		if err := drain(p.stdout); err != nil {
			unit <- unitResult{err: err}
			return
		}
		unit <- unitResult{waited: true, err: p.cmd.Wait()}
	}()

	select {
	case r := <-unit:
		if !r.waited {
			p.terminate()
			return p.cmd.ProcessState, r.err
		}
		p.closeStreams()
		if r.err != nil {
			if exitErr := (*exec.ExitError)(nil); errors.As(r.err, &exitErr) {
				return p.cmd.ProcessState, nil
			}
			return p.cmd.ProcessState, fmt.Errorf("supervise: %w", errors.Join(ErrIO, r.err))
		}
		return p.cmd.ProcessState, nil
	case <-ctx.Done():
		_ = p.cmd.Process.Kill()
		_ = p.stdout.Close()
		if r := <-unit; !r.waited {
			_ = p.cmd.Wait()
		}
		p.closeStreams()
		return p.cmd.ProcessState, &CanceledError{ProcessState: p.cmd.ProcessState}
	}
}

// terminate kills the process and reaps it.
func (p *process) terminate() {
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
	p.closeStreams()
}

// closeStreams closes stdout. Stderr is closed by its reader.
func (p *process) closeStreams() {
	_ = p.stdout.Close()
}
