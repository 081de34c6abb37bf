package vpnsim_exclusive

import (
	"errors"

	"vpnsim/internal/config"
	"vpnsim/internal/context"
	"vpnsim/internal/logger"
	"vpnsim/internal/task_manager"
)

type VPNSimCommon struct {
	Log *logger.VPNSimLog
	Ctx *context.VPNSimContext
	TM  *task_manager.TaskManager
}

func (e *VPNSimCommon) InitLog(logPath string) error {
	if e.Log != nil {
		return errors.New("Log exists.")
	}
	e.Log = new(logger.VPNSimLog)
	if err := e.Log.Init(logPath); err != nil {
		return err
	}
	return nil
}

func (e *VPNSimCommon) InitCtx(c *config.Config) error {
	if e.Ctx != nil {
		return errors.New("Ctx exists.")
	}
	e.Ctx = new(context.VPNSimContext)
	if err := e.Ctx.Init(c); err != nil {
		return err
	}
	return nil
}

func (e *VPNSimCommon) InitTaskManager(queueLen, workerNumber int) error {
	if e.TM != nil {
		return errors.New("TM exists.")
	}
	e.TM = new(task_manager.TaskManager)
	e.TM.Init(queueLen, workerNumber)
	e.TM.Run()
	return nil
}
