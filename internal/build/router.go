package build

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// LogRouter copies the build tool's output line by line
// to the console and to the log file according to its behaviour.
type LogRouter struct {
	Behaviour LogBehaviour // required
	Console   io.Writer    // required if Behaviour echoes
	File      io.Writer    // required if Behaviour persists
}

// Route reads src until end of stream.
// Each line is written to the console before the file, so both keep the order of src.
// A failed file write is reported as ErrIO; console write failures are ignored.
func (r *LogRouter) Route(src io.Reader) error {
	br := bufio.NewReader(src)
	for {
		line, readErr := br.ReadString('\n')
		if len(line) > 0 {
			if r.Behaviour.Echoes() {
				_, _ = io.WriteString(r.Console, line)
			}
			if r.Behaviour.Persists() {
				if _, err := io.WriteString(r.File, line); err != nil {
					return fmt.Errorf("build.LogRouter: %w", errors.Join(ErrIO, err))
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("build.LogRouter: %w", readErr)
		}
	}
}
