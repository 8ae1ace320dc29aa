package tcp

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/terassyi/tuntcp/logger"
	"github.com/terassyi/tuntcp/packet"
	"github.com/terassyi/tuntcp/proto/port"
)

func echo(c *Conn) {
	buf := make([]byte, 1024)
	for {
		n, err := c.Read(buf)
		if err == io.EOF {
			c.Close()
			return
		}
		if err != nil || n == 0 {
			return
		}
		c.Write(buf[:n])
	}
}

func newTestTcp(t *testing.T, handler Handler, ports ...int) *Tcp {
	t.Helper()
	table, err := port.New()
	require.NoError(t, err)
	for _, p := range ports {
		require.NoError(t, table.Bind(p))
	}
	return New(testOptions(), table, handler, false)
}

func TestTcpHandshake(t *testing.T) {
	tcp := newTestTcp(t, nil, 80)

	out := tcp.HandleSegment(inbound(packet.SYN, peerISS, 0, ""), epoch)
	require.Len(t, out, 1)
	require.Equal(t, packet.SYN|packet.ACK, out[0].Flags)
	require.Equal(t, uint32(peerISS+1), out[0].Ack)
	state, ok := tcp.State(testKey)
	require.True(t, ok)
	require.Equal(t, SYN_RECVD, state)

	out = tcp.HandleSegment(inbound(packet.ACK, peerISS+1, testISS+1, ""), epoch)
	require.Empty(t, out)
	state, _ = tcp.State(testKey)
	require.Equal(t, ESTABLISHED, state)

	conn, ok := tcp.Conn(testKey)
	require.True(t, ok)
	require.Equal(t, "10.0.0.1:80", conn.LocalAddr())
	require.Equal(t, "1.2.3.4:9000", conn.RemoteAddr())
}

func TestTcpUnboundPort(t *testing.T) {
	tcp := newTestTcp(t, nil, 8080)

	out := tcp.HandleSegment(inbound(packet.SYN, peerISS, 0, ""), epoch)
	require.Len(t, out, 1)
	rst := out[0]
	require.Equal(t, packet.RST|packet.ACK, rst.Flags)
	require.Equal(t, uint32(0), rst.Seq)
	require.Equal(t, uint32(peerISS+1), rst.Ack)
	require.Equal(t, localEndpoint.Addr, rst.Src)
	require.Equal(t, peerEndpoint.Addr, rst.Dst)
	require.Equal(t, 0, tcp.Len())
}

func TestTcpNoConnection(t *testing.T) {
	tcp := newTestTcp(t, nil, 80)

	for _, flags := range []packet.ControlFlag{
		packet.ACK | packet.PSH,
		packet.ACK,
		packet.FIN | packet.ACK,
		packet.RST,
	} {
		payload := ""
		if flags.Psh() {
			payload = "data"
		}
		out := tcp.HandleSegment(inbound(flags, peerISS, 77, payload), epoch)
		require.Empty(t, out, flags.String())
		require.Equal(t, 0, tcp.Len(), flags.String())
	}
}

func TestTcpUnboundPortNonSyn(t *testing.T) {
	tcp := newTestTcp(t, nil, 8080)

	require.Empty(t, tcp.HandleSegment(inbound(packet.ACK, peerISS, 77, ""), epoch))
	require.Empty(t, tcp.HandleSegment(inbound(packet.RST, peerISS, 0, ""), epoch))

	// a SYN|ACK is still refused, with <SEQ=SEG.ACK><CTL=RST>
	out := tcp.HandleSegment(inbound(packet.SYN|packet.ACK, peerISS, 77, ""), epoch)
	require.Len(t, out, 1)
	require.Equal(t, packet.RST, out[0].Flags)
	require.Equal(t, uint32(77), out[0].Seq)
	require.Equal(t, 0, tcp.Len())
}

func TestTcpDropsFailedListen(t *testing.T) {
	tcp := newTestTcp(t, nil)

	require.Empty(t, tcp.HandleSegment(inbound(packet.SYN|packet.ACK, peerISS, 1, ""), epoch))
	require.Equal(t, 0, tcp.Len())
}

func TestTcpEcho(t *testing.T) {
	tcp := newTestTcp(t, HandlerFunc(echo))
	tcp.HandleSegment(inbound(packet.SYN, peerISS, 0, ""), epoch)
	tcp.HandleSegment(inbound(packet.ACK, peerISS+1, testISS+1, ""), epoch)

	out := tcp.HandleSegment(inbound(packet.ACK|packet.PSH, peerISS+1, testISS+1, "hello"), epoch)
	require.Len(t, out, 1, "the data segment carries the acknowledgment")
	require.Equal(t, packet.ACK|packet.PSH, out[0].Flags)
	require.Equal(t, []byte("hello"), out[0].Payload)
	require.Equal(t, uint32(testISS+1), out[0].Seq)
	require.Equal(t, uint32(peerISS+6), out[0].Ack)
	require.Equal(t, uint16(1024), out[0].Window)

	// the peer closes, the echo handler closes too
	out = tcp.HandleSegment(inbound(packet.FIN|packet.ACK, peerISS+6, testISS+6, ""), epoch)
	require.Len(t, out, 1, "the FIN carries the acknowledgment")
	require.Equal(t, packet.FIN|packet.ACK, out[0].Flags)
	require.Equal(t, uint32(testISS+6), out[0].Seq)
	require.Equal(t, uint32(peerISS+7), out[0].Ack)
	state, _ := tcp.State(testKey)
	require.Equal(t, LAST_ACK, state)

	require.Empty(t, tcp.HandleSegment(inbound(packet.ACK, peerISS+7, testISS+7, ""), epoch))
	_, ok := tcp.State(testKey)
	require.False(t, ok)
}

func TestTcpReset(t *testing.T) {
	tcp := newTestTcp(t, nil)
	tcp.HandleSegment(inbound(packet.SYN, peerISS, 0, ""), epoch)
	tcp.HandleSegment(inbound(packet.ACK, peerISS+1, testISS+1, ""), epoch)
	require.Equal(t, 1, tcp.Len())

	require.Empty(t, tcp.HandleSegment(inbound(packet.RST, peerISS+1, 0, ""), epoch))
	require.Equal(t, 0, tcp.Len())
}

func TestTcpTickExpiresTimeWait(t *testing.T) {
	closer := HandlerFunc(func(c *Conn) { c.Close() })
	tcp := newTestTcp(t, closer)
	tcp.HandleSegment(inbound(packet.SYN, peerISS, 0, ""), epoch)

	out := tcp.HandleSegment(inbound(packet.ACK, peerISS+1, testISS+1, ""), epoch)
	require.Len(t, out, 1)
	require.Equal(t, packet.FIN|packet.ACK, out[0].Flags)

	tcp.HandleSegment(inbound(packet.FIN|packet.ACK, peerISS+1, testISS+2, ""), epoch)
	state, _ := tcp.State(testKey)
	require.Equal(t, TIME_WAIT, state)

	require.Empty(t, tcp.Tick(epoch.Add(time.Second)))
	require.Equal(t, 1, tcp.Len())
	tcp.Tick(epoch.Add(time.Minute))
	require.Equal(t, 0, tcp.Len())
}

func TestTableRange(t *testing.T) {
	table := NewTable()
	for _, p := range []uint16{3, 1, 2} {
		key := testKey
		key.Remote.Port = p
		cb, err := newControlBlock(key, testOptions(), logger.Discard())
		require.NoError(t, err)
		table.Insert(cb)
	}
	require.Equal(t, 3, table.Len())

	var ports []uint16
	table.Range(func(cb *controlBlock) bool {
		ports = append(ports, cb.key.Remote.Port)
		table.Delete(cb.key)
		return true
	})
	require.Equal(t, []uint16{1, 2, 3}, ports)
	require.Equal(t, 0, table.Len())
}
