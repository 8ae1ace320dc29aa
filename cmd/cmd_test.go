package cmd

import (
	"context"
	"flag"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/require"
	"github.com/terassyi/tuntcp/config"
)

func TestNewHandler(t *testing.T) {
	for _, name := range []string{"echo", "discard"} {
		h, err := newHandler(name)
		require.NoError(t, err)
		require.NotNil(t, h)
	}
	_, err := newHandler("chargen")
	require.Error(t, err)
}

func TestServeConfigFlags(t *testing.T) {
	s := &ServeCommand{
		Iface: "tun7",
		Addr:  "192.168.10.1",
		Port:  8080,
		Debug: true,
	}
	cfg, err := s.config()
	require.NoError(t, err)
	require.Equal(t, "tun7", cfg.Interface)
	require.Equal(t, "192.168.10.1", cfg.LocalAddress)
	require.Equal(t, []int{8080}, cfg.Ports)
	require.True(t, cfg.Debug)

	s.Addr = "not-an-address"
	_, err = s.config()
	require.Error(t, err)
}

func TestOptionsFrom(t *testing.T) {
	cfg := config.Default()
	cfg.ReceiveWindowSize = 2048
	cfg.TimeWaitDuration = time.Second
	opts := optionsFrom(cfg)
	require.Equal(t, uint16(2048), opts.ReceiveWindow)
	require.Equal(t, uint16(1460), opts.MSS)
	require.Equal(t, time.Second, opts.TimeWait)
	require.Equal(t, 5, opts.MaxRetransmits)
	require.Nil(t, opts.ISS)
}

func TestServeRejectsBadAddressBeforeOpening(t *testing.T) {
	for _, s := range []*ServeCommand{
		{Iface: "tun9", Addr: "10.0.0.1", Netmask: "255.255.0", Handler: "echo"},
		{Iface: "tun9", Addr: "10.0.0.256", Handler: "echo"},
		{Iface: "tun9", Handler: "chargen"},
	} {
		status := s.Execute(context.Background(), flag.NewFlagSet("serve", flag.ContinueOnError))
		require.Equal(t, subcommands.ExitUsageError, status)
	}
}
