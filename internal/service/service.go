package service

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"vpnsim/internal/config"
	"vpnsim/internal/context"
	"vpnsim/internal/ike"
	"vpnsim/internal/ike/security"
	"vpnsim/internal/ike/types"
	"vpnsim/internal/projenv"
	"vpnsim/internal/vpnsim_exclusive"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

func Start(configPath string) error {
	sim := new(VPNSim)
	if err := sim.init(configPath); err != nil {
		return err
	}
	if err := sim.start(); err != nil {
		return err
	}
	sim.bringUpTunnels()
	sim.signalHandler()
	return nil
}

type VPNSim struct {
	c          *config.Config
	configPath string
	vpnsim_exclusive.VPNSimCommon
	// Log
	log *logrus.Entry
	// Services
	engine *ike.Engine
}

func (e *VPNSim) init(configPath string) error {
	// Initialize - config
	var conf string
	if configPath != "" {
		conf = configPath
	} else {
		conf = projenv.DefaultConfigFile
	}
	e.configPath = conf
	e.c = new(config.Config)
	if err := e.c.ReadConfigFile(conf); err != nil {
		return err
	}
	if !e.c.CheckConfigVersion() {
		return fmt.Errorf("Config version should be %s", config.VPNSIM_EXPECTED_CONFIG_VERSION)
	}
	return nil
}

func (e *VPNSim) start() error {
	if e.c == nil {
		return errors.New("Configuration not initialized.")
	}
	// Initialize - logger, context
	// context
	if err := e.InitCtx(e.c); err != nil {
		return err
	}

	// logger
	if err := e.InitLog(e.Ctx.Log.LogPath); err != nil {
		return err
	}

	// Set VPNSim log as specified in context
	e.Log.SetLogLevel(e.Ctx.Log.DebugLevel)
	e.Log.SetReportCaller(e.Ctx.Log.ReportCaller)
	e.log = e.Log.WithFields(logrus.Fields{"component": "VPNSim", "category": "Service"})

	// Task Manager
	if err := e.InitTaskManager(100, 20); err != nil {
		return err
	}

	// Execute services
	e.engine = ike.NewEngine(e.VPNSimCommon, clockwork.NewRealClock(),
		security.NewRand(time.Now().UnixNano()))
	e.engine.Start()

	return nil
}

// bringUpTunnels starts one negotiation per configured tunnel. The
// negotiations run on the task manager's workers; progress shows up in the
// engine's event log.
func (e *VPNSim) bringUpTunnels() {
	for _, t := range e.Ctx.Tunnels {
		proposal, ok := types.Proposals[t.Proposal]
		if !ok {
			e.log.Warnf("Tunnel %s: unknown proposal %q, falling back to balanced", t.Name, t.Proposal)
			proposal = types.Proposals["balanced"]
		}
		sa, err := e.engine.InitiateNegotiation(t.Name, t.LocalIP, t.RemoteIP, proposal, t.PreSharedKey)
		if err != nil {
			e.log.Errorf("Tunnel %s: start negotiation failed: %+v", t.Name, err)
			continue
		}
		e.log.Infof("Tunnel %s: negotiation started on SA %s", t.Name, sa.ID)
	}
}

func (e *VPNSim) signalHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		unix.SIGHUP,
		unix.SIGINT,
		unix.SIGQUIT,
		unix.SIGTERM)

	for {
		sig := <-sigChan
		switch sig {
		case unix.SIGHUP:
			e.reload()
		case unix.SIGINT, unix.SIGQUIT, unix.SIGTERM:
			e.stop()
		}
	}
}

func (e *VPNSim) stop() {
	// Tear down every SA, then stop the engine
	for _, sa := range e.engine.GetAllSAs() {
		if err := e.engine.DeleteSA(sa.ID, sa.TunnelID); err != nil {
			e.log.Errorf("Delete SA %s failed: %+v", sa.ID, err)
		}
	}
	e.engine.Stop()
	// Remove pid file
	if err := os.Remove(projenv.PidFile); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	os.Exit(0)
}

// reload re-reads the config file and swaps the VPN profile in place.
// Running SAs keep their negotiated parameters; new values apply to
// subsequent negotiations, rekeys and probes. Tunnel entries are not
// re-driven on reload.
func (e *VPNSim) reload() {
	c := new(config.Config)
	if err := c.ReadConfigFile(e.configPath); err != nil {
		e.log.Errorf("Reload: read config failed: %+v", err)
		return
	}
	if !c.CheckConfigVersion() {
		e.log.Errorf("Reload: config version should be %s", config.VPNSIM_EXPECTED_CONFIG_VERSION)
		return
	}
	fresh := new(context.VPNSimContext)
	if err := fresh.Init(c); err != nil {
		e.log.Errorf("Reload: config not valid: %+v", err)
		return
	}
	e.engine.UpdateConfig(fresh.GetConfig())
	e.log.Infoln("Config reloaded")
}
