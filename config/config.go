package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MaxFrameSize is the largest frame read from the device, packet information included.
	MaxFrameSize = 1504
	// MSL is the maximum segment lifetime used to derive the default TIME-WAIT duration.
	MSL = 30 * time.Second
)

type Config struct {
	Interface                string        `yaml:"interface"`
	LocalAddress             string        `yaml:"local_address"`
	Netmask                  string        `yaml:"netmask"`
	ReceiveWindowSize        uint16        `yaml:"receive_window_size"`
	MSS                      uint16        `yaml:"mss"`
	InitialRetransmitTimeout time.Duration `yaml:"initial_retransmit_timeout"`
	MaxRetransmits           int           `yaml:"max_retransmits"`
	TimeWaitDuration         time.Duration `yaml:"time_wait_duration"`
	UserTimeout              time.Duration `yaml:"user_timeout"`
	TickInterval             time.Duration `yaml:"tick_interval"`
	PacketInfo               bool          `yaml:"packet_info"`
	Ports                    []int         `yaml:"ports"`
	Debug                    bool          `yaml:"debug"`
}

func Default() *Config {
	return &Config{
		Interface:                "tun0",
		LocalAddress:             "10.0.0.1",
		Netmask:                  "255.255.255.0",
		ReceiveWindowSize:        1024,
		MSS:                      1460,
		InitialRetransmitTimeout: time.Second,
		MaxRetransmits:           5,
		TimeWaitDuration:         2 * MSL,
		UserTimeout:              time.Minute,
		TickInterval:             100 * time.Millisecond,
		PacketInfo:               true,
	}
}

// ReadConfig loads a YAML file on top of the defaults.
// Keys missing from the file keep their default value.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("interface name is empty")
	}
	if _, err := c.Address(); err != nil {
		return err
	}
	if _, err := c.Mask(); err != nil {
		return err
	}
	if c.ReceiveWindowSize == 0 {
		return fmt.Errorf("receive_window_size must be positive")
	}
	if c.MSS == 0 {
		return fmt.Errorf("mss must be positive")
	}
	if c.InitialRetransmitTimeout <= 0 {
		return fmt.Errorf("initial_retransmit_timeout must be positive")
	}
	if c.MaxRetransmits < 0 {
		return fmt.Errorf("max_retransmits must not be negative")
	}
	if c.TimeWaitDuration <= 0 {
		return fmt.Errorf("time_wait_duration must be positive")
	}
	if c.UserTimeout <= 0 {
		return fmt.Errorf("user_timeout must be positive")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	for _, p := range c.Ports {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid port %d", p)
		}
	}
	return nil
}

// Address returns the local IPv4 address as a 4 byte array.
func (c *Config) Address() ([4]byte, error) {
	return parseIPv4("local_address", c.LocalAddress)
}

// Mask returns the netmask as a 4 byte array.
func (c *Config) Mask() ([4]byte, error) {
	return parseIPv4("netmask", c.Netmask)
}

func parseIPv4(key, s string) ([4]byte, error) {
	var addr [4]byte
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return addr, fmt.Errorf("%s: invalid ipv4 address %q", key, s)
	}
	copy(addr[:], ip)
	return addr, nil
}
