package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/mattn/go-isatty"
)

// Spinner animates a status line on a terminal while a blocking call runs.
// Writers that are not terminals get no animation.
type Spinner struct {
	out    io.Writer
	style  spinner.Spinner
	msg    string
	active bool

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// NewSpinner returns a spinner writing to stderr.
func NewSpinner(msg string) *Spinner {
	return newSpinner(os.Stderr, msg, isTerminal(os.Stderr))
}

func newSpinner(out io.Writer, msg string, active bool) *Spinner {
	return &Spinner{
		out:    out,
		style:  spinner.MiniDot,
		msg:    msg,
		active: active,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start begins the animation.
func (s *Spinner) Start() *Spinner {
	if !s.active {
		close(s.done)
		return s
	}
	go func() {
		defer close(s.done)
		tick := time.NewTicker(s.style.FPS)
		defer tick.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.out, "\r%s %s", StyleChain.Render(s.style.Frames[i%len(s.style.Frames)]), s.msg)
			select {
			case <-s.stop:
				fmt.Fprintf(s.out, "\r\033[K")
				return
			case <-tick.C:
			}
		}
	}()
	return s
}

// Stop clears the line and waits for the animation to end. It is safe to
// call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
