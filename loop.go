package main

import (
	tea "github.com/charmbracelet/bubbletea"
)

// dispatchMsg runs a closure on the bubbletea event loop
type dispatchMsg func()

// programLoop runs transport callbacks inside Update so controller state
// is only ever touched by the UI goroutine
type programLoop struct {
	p *tea.Program
}

func (l *programLoop) attach(p *tea.Program) {
	l.p = p
}

// Post must not be called from Update itself: Send blocks until the
// event loop reads the message
func (l *programLoop) Post(fn func()) {
	if l.p == nil {
		return
	}
	l.p.Send(dispatchMsg(fn))
}

func (l *programLoop) Async(work func() error, then func(error)) {
	go func() {
		err := work()
		l.Post(func() { then(err) })
	}()
}
