package cmd

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/config"
	"github.com/terassyi/tuntcp/interfaces"
	"github.com/terassyi/tuntcp/proto/ipv4"
	"github.com/terassyi/tuntcp/proto/port"
	"github.com/terassyi/tuntcp/proto/tcp"
)

type ServeCommand struct {
	Iface   string
	Config  string
	Addr    string
	Netmask string
	Port    int
	Handler string
	Debug   bool
}

func (*ServeCommand) Name() string {
	return "serve"
}

func (*ServeCommand) Synopsis() string {
	return "accept tcp connections on a tun device"
}

func (*ServeCommand) Usage() string {
	return `tuntcp serve [-config <file>] [-i <interface name>] [-addr <address>] [-port <port>] [-handler echo|discard]
	open a tun device and accept tcp connections on it
`
}

func (s *ServeCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.Iface, "i", "", "interface")
	f.StringVar(&s.Config, "config", "", "config file path")
	f.StringVar(&s.Addr, "addr", "", "local ipv4 address")
	f.StringVar(&s.Netmask, "netmask", "", "netmask of the local address")
	f.IntVar(&s.Port, "port", 0, "binding port")
	f.StringVar(&s.Handler, "handler", "echo", "application handler (echo, discard)")
	f.BoolVar(&s.Debug, "debug", false, "output debug message")
}

func (s *ServeCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logrus.WithFields(logrus.Fields{
		"command": "serve",
	})
	cfg, err := s.config()
	if err != nil {
		log.Error(err)
		return subcommands.ExitUsageError
	}
	handler, err := newHandler(s.Handler)
	if err != nil {
		log.Error(err)
		return subcommands.ExitUsageError
	}
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
		log.Debug("debug flag is set")
	}

	addr, err := cfg.Address()
	if err != nil {
		log.Error(err)
		return subcommands.ExitUsageError
	}
	mask, err := cfg.Mask()
	if err != nil {
		log.Error(err)
		return subcommands.ExitUsageError
	}
	iface, err := interfaces.New(cfg.Interface, "tun", cfg.PacketInfo)
	if err != nil {
		log.Errorf("failed to open %s: %v", cfg.Interface, err)
		return subcommands.ExitFailure
	}
	defer iface.Close()
	if err := interfaces.Configure(iface.Name(), addr, mask); err != nil {
		log.Errorf("failed to configure %s: %v", iface.Name(), err)
		return subcommands.ExitFailure
	}

	ports, err := port.New()
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	for _, p := range cfg.Ports {
		if err := ports.Bind(p); err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
	}

	tcpProtocol := tcp.New(optionsFrom(cfg), ports, handler, cfg.Debug)
	ip := ipv4.New(iface, addr, tcpProtocol, cfg.PacketInfo, cfg.TickInterval, cfg.Debug)
	ip.Show()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.WithFields(logrus.Fields{"ports": ports.Ports()}).Info("start to serve")
	if err := ip.Run(ctx); err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	log.Info("stopped")
	return subcommands.ExitSuccess
}

// config loads the config file, if any, and applies the flags on top.
func (s *ServeCommand) config() (*config.Config, error) {
	cfg := config.Default()
	if s.Config != "" {
		var err error
		cfg, err = config.ReadConfig(s.Config)
		if err != nil {
			return nil, err
		}
	}
	if s.Iface != "" {
		cfg.Interface = s.Iface
	}
	if s.Addr != "" {
		cfg.LocalAddress = s.Addr
	}
	if s.Netmask != "" {
		cfg.Netmask = s.Netmask
	}
	if s.Port != 0 {
		cfg.Ports = append(cfg.Ports, s.Port)
	}
	if s.Debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func optionsFrom(cfg *config.Config) tcp.Options {
	opts := tcp.DefaultOptions()
	opts.ReceiveWindow = cfg.ReceiveWindowSize
	opts.MSS = cfg.MSS
	opts.InitialRTO = cfg.InitialRetransmitTimeout
	opts.MaxRetransmits = cfg.MaxRetransmits
	opts.TimeWait = cfg.TimeWaitDuration
	opts.UserTimeout = cfg.UserTimeout
	return opts
}
