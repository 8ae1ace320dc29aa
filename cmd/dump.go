package cmd

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/config"
	"github.com/terassyi/tuntcp/ids"
	"github.com/terassyi/tuntcp/interfaces"
)

type DumpCommand struct {
	Iface      string
	Addr       string
	Netmask    string
	PacketInfo bool
}

func (d *DumpCommand) Name() string {
	return "dump"
}

func (d *DumpCommand) Synopsis() string {
	return "dump"
}

func (d *DumpCommand) Usage() string {
	return `tuntcp dump -i <interface name> [-addr <address>]:
	dump packets received by the interface
`
}

func (d *DumpCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.Iface, "i", "tun0", "interface")
	f.StringVar(&d.Addr, "addr", "", "assign this ipv4 address to the interface")
	f.StringVar(&d.Netmask, "netmask", "255.255.255.0", "netmask of the address")
	f.BoolVar(&d.PacketInfo, "pi", true, "frames carry packet information")
}

func (d *DumpCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logrus.WithFields(logrus.Fields{
		"command": "dump",
	})
	iface, err := interfaces.New(d.Iface, "tun", d.PacketInfo)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	defer iface.Close()
	if d.Addr != "" {
		cfg := config.Default()
		cfg.Interface = iface.Name()
		cfg.LocalAddress = d.Addr
		cfg.Netmask = d.Netmask
		if err := cfg.Validate(); err != nil {
			log.Error(err)
			return subcommands.ExitUsageError
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
		if err := interfaces.Configure(iface.Name(), addr, mask); err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	i := ids.New(d.PacketInfo)
	buf := make([]byte, config.MaxFrameSize)
	log.WithField("interface", iface.Name()).Info("start to recv")
	for ctx.Err() == nil {
		ready, err := iface.Poll(100 * time.Millisecond)
		if err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
		if !ready {
			continue
		}
		n, err := iface.Recv(buf)
		if err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
		if err := i.Recv(buf[:n]); err != nil {
			log.Warn(err)
		}
	}
	return subcommands.ExitSuccess
}
