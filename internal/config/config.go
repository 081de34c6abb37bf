/*
 * VPNSim Configuration Factory
 */

package config

import (
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

const (
	VPNSIM_EXPECTED_CONFIG_VERSION = "1.0.0"
)

type Config struct {
	Info          *Info          `yaml:"Info"`
	Configuration *Configuration `yaml:"Configuration"`
	Log           *Log           `yaml:"Log"`
}

type Info struct {
	Version     string `yaml:"Version,omitempty"`
	Description string `yaml:"Description,omitempty"`
}

type Configuration struct {
	IKE            *IKEProfile   `yaml:"IKE"`
	IPSec          *IPSecProfile `yaml:"IPSec"`
	PFS            *PFS          `yaml:"PFS"`
	DPD            *DPD          `yaml:"DPD"`
	NATTraversal   bool          `yaml:"NATTraversal"`
	AntiReplay     *AntiReplay   `yaml:"AntiReplay"`
	Delay          *Delay        `yaml:"Delay"`
	LogIKEMessages bool          `yaml:"LogIKEMessages"`
	LogESPPackets  bool          `yaml:"LogESPPackets"`
	Tunnels        []Tunnel      `yaml:"Tunnels"`
}

type IKEProfile struct {
	Version         string `yaml:"Version"`
	Mode            string `yaml:"Mode"`
	LifetimeSeconds int    `yaml:"LifetimeSeconds"`
}

type IPSecProfile struct {
	Protocol        string `yaml:"Protocol"`
	Mode            string `yaml:"Mode"`
	LifetimeSeconds int    `yaml:"LifetimeSeconds"`
}

type PFS struct {
	Enable bool   `yaml:"Enable"`
	Group  uint16 `yaml:"Group"`
}

type DPD struct {
	Enable          bool `yaml:"Enable"`
	IntervalSeconds int  `yaml:"IntervalSeconds"`
}

type AntiReplay struct {
	Enable     bool   `yaml:"Enable"`
	WindowSize uint32 `yaml:"WindowSize"`
}

// Delay bounds the artificial latency between a sent exchange request and
// its synthesized peer response.
type Delay struct {
	MinMilliseconds int `yaml:"MinMilliseconds"`
	MaxMilliseconds int `yaml:"MaxMilliseconds"`
}

// Tunnel is a negotiation the service drives at startup.
type Tunnel struct {
	Name         string `yaml:"Name"`
	LocalIP      string `yaml:"LocalIP"`
	RemoteIP     string `yaml:"RemoteIP"`
	Proposal     string `yaml:"Proposal"`
	PreSharedKey string `yaml:"PreSharedKey"`
}

type Log struct {
	LogPath      string `yaml:"LogPath"`
	DebugLevel   string `yaml:"DebugLevel"`
	ReportCaller bool   `yaml:"ReportCaller"`
}

func (c *Config) ReadConfigFile(path string) error {
	if content, err := ioutil.ReadFile(path); err != nil {
		return err
	} else {
		if err = yaml.Unmarshal(content, c); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) CheckConfigVersion() bool {
	return c.getVersion() == VPNSIM_EXPECTED_CONFIG_VERSION
}

func (c *Config) getVersion() string {
	if c.Info != nil && c.Info.Version != "" {
		return c.Info.Version
	}
	return ""
}
