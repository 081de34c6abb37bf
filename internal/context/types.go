package context

import (
	"sync"

	"github.com/sirupsen/logrus"

	"vpnsim/internal/config"
)

type VPNSimContext struct {
	// Configs
	Log     *Log
	Tunnels []config.Tunnel

	cfgMtx sync.RWMutex
	cfg    VPNConfig
}

type Log struct {
	LogPath      string
	DebugLevel   logrus.Level
	ReportCaller bool
}

// VPNConfig is the applied VPN profile. It is replaced atomically through
// UpdateConfig and read through GetConfig.
type VPNConfig struct {
	IKEVersion  string
	IKEMode     string
	IKELifetime int

	IPSecProtocol string
	IPSecMode     string
	IPSecLifetime int

	PFSEnabled bool
	PFSGroup   uint16

	DPDEnabled  bool
	DPDInterval int

	NATTEnabled bool

	AntiReplayEnabled bool
	AntiReplayWindow  uint32

	DelayMinMs int
	DelayMaxMs int

	LogLevel       string
	LogIKEMessages bool
	LogESPPackets  bool
}

// DefaultVPNConfig mirrors a common site-to-site profile.
func DefaultVPNConfig() VPNConfig {
	return VPNConfig{
		IKEVersion:        "ikev2",
		IKEMode:           "main",
		IKELifetime:       86400,
		IPSecProtocol:     "esp",
		IPSecMode:         "tunnel",
		IPSecLifetime:     3600,
		PFSEnabled:        true,
		PFSGroup:          14,
		DPDEnabled:        true,
		DPDInterval:       30,
		NATTEnabled:       false,
		AntiReplayEnabled: true,
		AntiReplayWindow:  64,
		DelayMinMs:        100,
		DelayMaxMs:        300,
		LogLevel:          "info",
		LogIKEMessages:    true,
		LogESPPackets:     false,
	}
}

func (c *VPNSimContext) GetConfig() VPNConfig {
	c.cfgMtx.RLock()
	defer c.cfgMtx.RUnlock()
	return c.cfg
}

func (c *VPNSimContext) UpdateConfig(cfg VPNConfig) {
	c.cfgMtx.Lock()
	defer c.cfgMtx.Unlock()
	c.cfg = cfg
}
