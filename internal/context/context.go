package context

import (
	"errors"
	"net"

	"github.com/sirupsen/logrus"

	"vpnsim/internal/config"
	"vpnsim/internal/projenv"
)

func (c *VPNSimContext) Init(conf *config.Config) error {
	if conf.Log != nil {
		c.Log = new(Log)
		// Log path
		if len(conf.Log.LogPath) != 0 {
			c.Log.LogPath = conf.Log.LogPath
		} else {
			c.Log.LogPath = projenv.DefaultLogFile
		}
		// Debug level
		if l, err := logrus.ParseLevel(conf.Log.DebugLevel); err != nil {
			c.Log.DebugLevel = logrus.InfoLevel
		} else {
			c.Log.DebugLevel = l
		}
		// Report caller
		c.Log.ReportCaller = conf.Log.ReportCaller
	} else {
		c.Log = &Log{
			LogPath:      projenv.DefaultLogFile,
			DebugLevel:   logrus.InfoLevel,
			ReportCaller: false,
		}
	}

	cfg := DefaultVPNConfig()
	cfg.LogLevel = c.Log.DebugLevel.String()

	if conf.Configuration != nil {
		cc := conf.Configuration
		if cc.IKE != nil {
			switch cc.IKE.Version {
			case "":
			case "ikev1", "ikev2":
				cfg.IKEVersion = cc.IKE.Version
			default:
				return errors.New("Config \"IKE\" Version must be ikev1 or ikev2")
			}
			switch cc.IKE.Mode {
			case "":
			case "main", "aggressive":
				cfg.IKEMode = cc.IKE.Mode
			default:
				return errors.New("Config \"IKE\" Mode must be main or aggressive")
			}
			if cc.IKE.LifetimeSeconds < 0 {
				return errors.New("Config \"IKE\" LifetimeSeconds is not valid")
			} else if cc.IKE.LifetimeSeconds > 0 {
				cfg.IKELifetime = cc.IKE.LifetimeSeconds
			}
		}
		if cc.IPSec != nil {
			switch cc.IPSec.Protocol {
			case "":
			case "esp", "ah":
				cfg.IPSecProtocol = cc.IPSec.Protocol
			default:
				return errors.New("Config \"IPSec\" Protocol must be esp or ah")
			}
			switch cc.IPSec.Mode {
			case "":
			case "tunnel", "transport":
				cfg.IPSecMode = cc.IPSec.Mode
			default:
				return errors.New("Config \"IPSec\" Mode must be tunnel or transport")
			}
			if cc.IPSec.LifetimeSeconds < 0 {
				return errors.New("Config \"IPSec\" LifetimeSeconds is not valid")
			} else if cc.IPSec.LifetimeSeconds > 0 {
				cfg.IPSecLifetime = cc.IPSec.LifetimeSeconds
			}
		}
		if cc.PFS != nil {
			cfg.PFSEnabled = cc.PFS.Enable
			if cc.PFS.Group != 0 {
				cfg.PFSGroup = cc.PFS.Group
			}
		}
		if cc.DPD != nil {
			cfg.DPDEnabled = cc.DPD.Enable
			if cc.DPD.IntervalSeconds < 0 {
				return errors.New("Config \"DPD\" IntervalSeconds is not valid")
			} else if cc.DPD.IntervalSeconds > 0 {
				cfg.DPDInterval = cc.DPD.IntervalSeconds
			}
		}
		cfg.NATTEnabled = cc.NATTraversal
		if cc.AntiReplay != nil {
			cfg.AntiReplayEnabled = cc.AntiReplay.Enable
			if cc.AntiReplay.WindowSize != 0 {
				cfg.AntiReplayWindow = cc.AntiReplay.WindowSize
			}
		}
		if cc.Delay != nil {
			if cc.Delay.MinMilliseconds < 0 || cc.Delay.MaxMilliseconds < cc.Delay.MinMilliseconds {
				return errors.New("Config \"Delay\" bounds are not valid")
			}
			cfg.DelayMinMs = cc.Delay.MinMilliseconds
			cfg.DelayMaxMs = cc.Delay.MaxMilliseconds
		}
		cfg.LogIKEMessages = cc.LogIKEMessages
		cfg.LogESPPackets = cc.LogESPPackets

		for _, t := range cc.Tunnels {
			if net.ParseIP(t.LocalIP) == nil {
				return errors.New("Config \"Tunnels\" LocalIP is not valid")
			}
			if net.ParseIP(t.RemoteIP) == nil {
				return errors.New("Config \"Tunnels\" RemoteIP is not valid")
			}
			if len(t.PreSharedKey) == 0 {
				return errors.New("Config \"Tunnels\" PreSharedKey must not be empty")
			}
			c.Tunnels = append(c.Tunnels, t)
		}
	}

	c.UpdateConfig(cfg)

	return nil
}
