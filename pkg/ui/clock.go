package ui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/bintree/pkg/interact"
)

// timerFiredMsg carries an interaction timer callback into the event loop.
type timerFiredMsg struct{ fire func() }

// teaClock is an interact.Clock whose callbacks run inside Update instead of
// on the runtime timer goroutine, so the engine, the layout and the view are
// only ever touched from the event loop.
type teaClock struct {
	fired chan timerFiredMsg
	done  chan struct{}
	once  sync.Once
}

func newTeaClock() *teaClock {
	return &teaClock{
		fired: make(chan timerFiredMsg, 16),
		done:  make(chan struct{}),
	}
}

// AfterFunc implements interact.Clock.
func (c *teaClock) AfterFunc(d time.Duration, f func()) interact.Timer {
	return time.AfterFunc(d, func() {
		select {
		case c.fired <- timerFiredMsg{fire: f}:
		case <-c.done:
		}
	})
}

// wait returns a command that delivers the next fired timer.
func (c *teaClock) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-c.fired:
			return msg
		case <-c.done:
			return nil
		}
	}
}

func (c *teaClock) stop() {
	c.once.Do(func() { close(c.done) })
}
