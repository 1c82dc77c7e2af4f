package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/kballard/go-shellquote"
)

// Outcome is how a launched command ended.
type Outcome struct {
	ExitCode int
	// Err is set when the command could not be started or waited on.
	Err error
}

// OK reports a clean zero exit.
func (o Outcome) OK() bool {
	return o.Err == nil && o.ExitCode == 0
}

// Launcher runs rendered commands in the background.
type Launcher interface {
	// Launch starts command and returns without waiting for it. done, if
	// non-nil, is called exactly once from another goroutine when the
	// command finishes. An error means nothing was started and done will
	// not be called.
	Launch(command string, done func(Outcome)) error
}

// ExecLauncher starts commands as child processes.
//
// The command line is split into an argument vector with POSIX shell
// quoting rules and executed directly; no shell is involved, so pipes,
// redirection, variable expansion and a trailing '&' are not interpreted.
// Single quotes, such as those around an expanded %v, group words as a
// shell would.
type ExecLauncher struct {
	Stdout io.Writer
	Stderr io.Writer

	wg sync.WaitGroup
}

// NewExecLauncher creates a launcher whose children share this process's
// stdout and stderr.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Launch implements Launcher.
func (l *ExecLauncher) Launch(command string, done func(Outcome)) error {
	argv, err := shellquote.Split(command)
	if err != nil {
		return fmt.Errorf("split command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return errors.New("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		out := Outcome{}
		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				out.ExitCode = exitErr.ExitCode()
			} else {
				out.ExitCode = -1
				out.Err = err
			}
		}
		if done != nil {
			done(out)
		}
	}()
	return nil
}

// Wait blocks until every launched command has exited or ctx is done.
// Commands are never killed.
func (l *ExecLauncher) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
