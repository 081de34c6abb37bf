package ike

import (
	"vpnsim/internal/task_manager"
)

var _ task_manager.Task = &task{}

// task chains negotiation steps for a worker. The status channel is
// buffered so nothing blocks when the caller never asks for the outcome.
type task struct {
	status chan int
	cb     []func(*task) int
}

func newTask() *task {
	return &task{
		status: make(chan int, 1),
		cb:     make([]func(*task) int, 0),
	}
}

func (t *task) Run() int {
	s := task_manager.Success
	for _, f := range t.cb {
		s = f(t)
		if s != task_manager.Success {
			break
		}
	}
	return s
}

func (t *task) GetStatus() int {
	return <-t.status
}

func (t *task) SetStatus(s int) {
	select {
	case t.status <- s:
	default:
	}
}

func (t *task) PushFunc(f func(*task) int) {
	t.cb = append(t.cb, f)
}
