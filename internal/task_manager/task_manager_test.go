package task_manager_test

import (
	"testing"

	"vpnsim/internal/task_manager"

	"github.com/stretchr/testify/assert"
)

type testTask struct {
	status chan int
	cb     []func() int
}

func newTestTask() *testTask {
	return &testTask{status: make(chan int, 1)}
}

func (t *testTask) Run() int {
	s := task_manager.Success
	for _, f := range t.cb {
		s = f()
		if s != task_manager.Success {
			break
		}
	}
	return s
}

func (t *testTask) GetStatus() int { return <-t.status }

func (t *testTask) SetStatus(s int) {
	select {
	case t.status <- s:
	default:
	}
}

func (t *testTask) PushFunc(f func() int) {
	t.cb = append(t.cb, f)
}

func TestTaskChainRunsInOrder(t *testing.T) {
	tm := new(task_manager.TaskManager)
	tm.Init(10, 2)
	tm.Run()

	var order []int
	task := newTestTask()
	task.PushFunc(func() int { order = append(order, 1); return task_manager.Success })
	task.PushFunc(func() int { order = append(order, 2); return task_manager.Success })
	tm.NewTask(task)

	assert.Equal(t, task_manager.Success, task.GetStatus())
	assert.Equal(t, []int{1, 2}, order)
}

func TestTaskChainStopsOnFailure(t *testing.T) {
	tm := new(task_manager.TaskManager)
	tm.Init(10, 2)
	tm.Run()

	ran := false
	task := newTestTask()
	task.PushFunc(func() int { return task_manager.Failed })
	task.PushFunc(func() int { ran = true; return task_manager.Success })
	tm.NewTask(task)

	assert.Equal(t, task_manager.Failed, task.GetStatus())
	assert.False(t, ran)
}
