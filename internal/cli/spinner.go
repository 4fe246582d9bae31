package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Spinner shows an animated indicator on a TTY while a stage runs. On other
// writers it prints the message once.
type Spinner struct {
	out       io.Writer
	message   string
	frames    []string
	showDelay time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
	started time.Time
}

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner returns a stopped spinner writing to out.
func NewSpinner(out io.Writer, message string) *Spinner {
	return &Spinner{
		out:       out,
		message:   message,
		frames:    frames,
		showDelay: 200 * time.Millisecond,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SetMessage replaces the message while running.
func (s *Spinner) SetMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

// Start begins the animation. Calling it twice has no effect.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.started = time.Now()

	if f, ok := s.out.(*os.File); !ok || !isTerminal(f) {
		fmt.Fprintf(s.out, "  %s\n", s.message)
		close(s.done)
		return
	}
	s.running = true
	go s.animate()
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	<-s.done
}

// Fail stops the spinner and prints msg as an error.
func (s *Spinner) Fail(msg string) {
	s.Stop()
	fmt.Fprintf(s.out, "\r\033[K  %s\n", Error(msg))
}

func (s *Spinner) animate() {
	defer close(s.done)

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	shown := false
	for i := 0; ; i++ {
		select {
		case <-s.stop:
			if shown {
				fmt.Fprint(s.out, "\r\033[K")
			}
			return
		case <-ticker.C:
			s.mu.Lock()
			elapsed := time.Since(s.started)
			msg := s.message
			s.mu.Unlock()

			if elapsed < s.showDelay {
				continue
			}
			shown = true

			suffix := ""
			if elapsed >= 3*time.Second {
				suffix = " " + Muted(fmt.Sprintf("(%.1fs)", elapsed.Seconds()))
			}
			fmt.Fprintf(s.out, "\r\033[K  %s %s%s", Info(s.frames[i%len(s.frames)]), msg, suffix)
		}
	}
}

// Step runs fn behind a spinner and reports the outcome. Cancellation is
// reported as such and returned to the caller.
func Step(ctx context.Context, out io.Writer, message string, fn func(ctx context.Context) error) error {
	s := NewSpinner(out, message)
	s.Start()
	err := fn(ctx)
	switch {
	case ctx.Err() != nil:
		s.Fail("Cancelled.")
		return ctx.Err()
	case err != nil:
		s.Fail(err.Error())
		return err
	}
	s.Stop()
	return nil
}
