package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/minecraftim/go-oscar/lib/flap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeDialer hands out the client end of a net.Pipe and keeps the server end.
func pipeDialer(t *testing.T) (DialFunc, <-chan net.Conn) {
	t.Helper()
	servers := make(chan net.Conn, 1)
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		cli, srv := net.Pipe()
		t.Cleanup(func() { srv.Close() })
		servers <- srv
		return cli, nil
	}
	return dial, servers
}

func writeFrame(t *testing.T, c net.Conn, cmd flap.Command, seq uint16) {
	t.Helper()
	payload, err := flap.Marshal(cmd)
	require.NoError(t, err)
	frame, err := flap.EncodeFrame(cmd.Channel(), seq, payload)
	require.NoError(t, err)
	_, err = c.Write(frame)
	require.NoError(t, err)
}

func waitDone(t *testing.T, c *ClientConn) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not reach a terminal state")
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) listen(ev StateEvent) {
	r.mu.Lock()
	r.states = append(r.states, ev.New)
	r.mu.Unlock()
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateNotConnected, StateConnecting))
	assert.True(t, CanTransition(StateConnecting, StateConnected))
	assert.True(t, CanTransition(StateConnected, StateDisconnected))
	assert.True(t, CanTransition(StateConnected, StateFailed))
	assert.False(t, CanTransition(StateDisconnected, StateConnecting))
	assert.False(t, CanTransition(StateFailed, StateConnected))
	assert.False(t, CanTransition(StateNotConnected, StateConnected))
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateConnected.Terminal())
	assert.Equal(t, "CONNECTED", StateConnected.String())
}

func TestClientConn_ServerCloseDisconnects(t *testing.T) {
	dial, servers := pipeDialer(t)
	c := New(Config{Host: "bos.example", Port: 5190, Dial: dial})
	rec := &stateRecorder{}
	c.AddStateListener(rec.listen)

	keepalives := make(chan struct{}, 1)
	c.AddStateListener(func(ev StateEvent) {
		if ev.New == StateConnected {
			ev.Conn.Flap().AddPacketListener(func(pe flap.PacketEvent) error {
				if _, ok := pe.Command.(*flap.KeepaliveCmd); ok {
					keepalives <- struct{}{}
				}
				return nil
			})
		}
	})

	require.NoError(t, c.Connect(context.Background()))
	srv := <-servers
	assert.Equal(t, StateConnected, c.State())

	writeFrame(t, srv, &flap.KeepaliveCmd{}, 1)
	select {
	case <-keepalives:
	case <-time.After(2 * time.Second):
		t.Fatal("keepalive not delivered")
	}

	writeFrame(t, srv, flap.NewCloseCmd(flap.CloseCodeOtherLogin, ""), 2)
	require.NoError(t, srv.Close())
	waitDone(t, c)
	c.Wait()

	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, []State{StateConnecting, StateConnected, StateDisconnected}, rec.get())
	var ce *CloseError
	require.True(t, errors.As(c.Reason(), &ce))
	assert.Equal(t, flap.CloseCodeOtherLogin, ce.Code)
}

func TestClientConn_BadParityFails(t *testing.T) {
	dial, servers := pipeDialer(t)
	c := New(Config{Host: "bos.example", Port: 5190, Dial: dial})
	require.NoError(t, c.Connect(context.Background()))
	srv := <-servers

	go srv.Write([]byte{0x00, 0x02, 0x00, 0x01, 0x00, 0x00})
	waitDone(t, c)
	c.Wait()

	assert.Equal(t, StateFailed, c.State())
	assert.True(t, IsBadParity(c.Reason()))
}

func TestClientConn_DialErrorFails(t *testing.T) {
	boom := errors.New("refused")
	c := New(Config{Host: "login.example", Port: 5190, Dial: func(context.Context, string, string) (net.Conn, error) {
		return nil, boom
	}})
	err := c.Connect(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, c.State())
	assert.ErrorIs(t, c.Reason(), boom)
}

func TestClientConn_SendFlapReachesServer(t *testing.T) {
	dial, servers := pipeDialer(t)
	c := New(Config{Host: "bos.example", Port: 5190, Dial: dial})
	require.NoError(t, c.Connect(context.Background()))
	srv := <-servers

	got := make(chan flap.Packet, 1)
	go func() {
		pkt, err := flap.ReadPacket(srv)
		if err == nil {
			got <- pkt
		}
	}()
	require.NoError(t, c.SendFlap(flap.NewCookieLoginCmd([]byte{1, 2, 3})))

	select {
	case pkt := <-got:
		assert.Equal(t, flap.ChannelLogin, pkt.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not received")
	}

	c.Disconnect()
	waitDone(t, c)
	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.SendFlap(&flap.KeepaliveCmd{}), ErrNotConnected)
}

func TestClientConn_NotConnected(t *testing.T) {
	c := New(Config{Host: "bos.example", Port: 5190})
	assert.ErrorIs(t, c.SendFlap(&flap.KeepaliveCmd{}), ErrNotConnected)
	assert.Nil(t, c.Snac())

	c.Disconnect()
	waitDone(t, c)
	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrInvalidTransition)
}

func TestClientConn_Addr(t *testing.T) {
	c := New(Config{Host: "login.oscar.aol.com", Port: 5190})
	assert.Equal(t, "login.oscar.aol.com:5190", c.Addr())
}
