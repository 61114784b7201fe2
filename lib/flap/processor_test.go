package flap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/minecraftim/go-oscar/lib/common/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rw struct {
	io.Reader
	io.Writer
}

func frames(t *testing.T, pkts ...Packet) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, p := range pkts {
		require.NoError(t, WritePacket(&buf, p))
	}
	return buf.Bytes()
}

func TestProcessor_SendAssignsSequence(t *testing.T) {
	var out bytes.Buffer
	p := NewProcessor(rw{Reader: &bytes.Buffer{}, Writer: &out}, WithSeqStart(0xffff))

	require.NoError(t, p.Send(&KeepaliveCmd{}))
	require.NoError(t, p.Send(NewCloseCmd(1, "")))

	r := bytes.NewReader(out.Bytes())
	first, err := ReadPacket(r)
	require.NoError(t, err)
	second, err := ReadPacket(r)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xffff), first.Seq)
	assert.Equal(t, ChannelKeepalive, first.Channel)
	assert.Equal(t, uint16(0), second.Seq)
	assert.Equal(t, ChannelClose, second.Channel)
}

func TestProcessor_OversizedPayloadDroppedConnectionKept(t *testing.T) {
	var out bytes.Buffer
	var events []ErrorEvent
	p := NewProcessor(rw{Reader: &bytes.Buffer{}, Writer: &out},
		WithErrorHandler(func(ev ErrorEvent) { events = append(events, ev) }))

	err := p.Send(&GenericCmd{Chan: ChannelSnac, Data: data.Wrap(make([]byte, MaxDataLen+1))})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPayloadTooLarge))
	require.Len(t, events, 1)
	assert.Equal(t, ErrorTypeEncode, events[0].Type)
	assert.Equal(t, 0, out.Len())

	require.NoError(t, p.Send(&KeepaliveCmd{}))
	pkt, err := ReadPacket(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), pkt.Seq, "dropped packet must not consume a sequence number")
}

func TestProcessor_VetoableStopsDelivery(t *testing.T) {
	in := frames(t,
		Packet{Channel: ChannelKeepalive, Seq: 1},
		Packet{Channel: ChannelError, Seq: 2, Data: data.Wrap([]byte{9})},
	)
	p := NewProcessor(rw{Reader: bytes.NewReader(in), Writer: io.Discard})

	var order []string
	p.AddVetoableListener(func(ev PacketEvent) (VetoResult, error) {
		order = append(order, "veto")
		if ev.Packet.Channel == ChannelKeepalive {
			return Stop, nil
		}
		return Continue, nil
	})
	p.AddPacketListener(func(ev PacketEvent) error {
		_, ok := ev.Command.(*ErrorCmd)
		assert.True(t, ok)
		order = append(order, "normal")
		return nil
	})

	require.NoError(t, p.ReadLoop(context.Background()))
	assert.Equal(t, []string{"veto", "veto", "normal"}, order)
}

func TestProcessor_ListenerFailuresReportedAndContinue(t *testing.T) {
	in := frames(t, Packet{Channel: ChannelKeepalive}, Packet{Channel: ChannelKeepalive})
	var errs []ErrorEvent
	p := NewProcessor(rw{Reader: bytes.NewReader(in), Writer: io.Discard},
		WithErrorHandler(func(ev ErrorEvent) { errs = append(errs, ev) }))

	calls := 0
	p.AddPacketListener(func(PacketEvent) error { panic("boom") })
	p.AddPacketListener(func(PacketEvent) error { return errors.New("listener failed") })
	p.AddPacketListener(func(PacketEvent) error { calls++; return nil })

	require.NoError(t, p.ReadLoop(context.Background()))
	assert.Equal(t, 2, calls)
	require.Len(t, errs, 4)
	for _, ev := range errs {
		assert.Equal(t, ErrorTypeListener, ev.Type)
		require.NotNil(t, ev.Packet)
	}
}

func TestProcessor_RemoveListener(t *testing.T) {
	in := frames(t, Packet{Channel: ChannelKeepalive})
	p := NewProcessor(rw{Reader: bytes.NewReader(in), Writer: io.Discard})
	calls := 0
	h := p.AddPacketListener(func(PacketEvent) error { calls++; return nil })
	p.RemoveListener(h)
	require.NoError(t, p.ReadLoop(context.Background()))
	assert.Equal(t, 0, calls)
}

func TestProcessor_BadParityIsFatal(t *testing.T) {
	in := append(frames(t, Packet{Channel: ChannelKeepalive}), 0x00, 0x2a, 0x05, 0, 0, 0, 0)
	var errs []ErrorEvent
	p := NewProcessor(rw{Reader: bytes.NewReader(in), Writer: io.Discard},
		WithErrorHandler(func(ev ErrorEvent) { errs = append(errs, ev) }))
	delivered := 0
	p.AddPacketListener(func(PacketEvent) error { delivered++; return nil })

	err := p.ReadLoop(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadParity))
	assert.Equal(t, 1, delivered)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrorTypeRead, errs[0].Type)
}

func TestProcessor_MidFrameCloseIsDisconnect(t *testing.T) {
	in := frames(t, Packet{Channel: ChannelSnac, Data: data.Wrap(make([]byte, 20))})
	p := NewProcessor(rw{Reader: bytes.NewReader(in[:15]), Writer: io.Discard})
	delivered := 0
	p.AddPacketListener(func(PacketEvent) error { delivered++; return nil })
	assert.NoError(t, p.ReadLoop(context.Background()))
	assert.Equal(t, 0, delivered)
}

type resetReader struct {
	r io.Reader
}

func (rr resetReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}
	}
	return n, err
}

func TestProcessor_ResetIsDisconnect(t *testing.T) {
	in := frames(t, Packet{Channel: ChannelClose})
	var errs []ErrorEvent
	p := NewProcessor(rw{Reader: resetReader{bytes.NewReader(in)}, Writer: io.Discard},
		WithErrorHandler(func(ev ErrorEvent) { errs = append(errs, ev) }))
	var got []Command
	p.AddPacketListener(func(ev PacketEvent) error { got = append(got, ev.Command); return nil })

	assert.NoError(t, p.ReadLoop(context.Background()))
	require.Len(t, got, 1)
	assert.IsType(t, &CloseCmd{}, got[0])
	assert.Empty(t, errs)
}

func TestIsDisconnect(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want bool
	}{
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"closed", net.ErrClosed, true},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, true},
		{"broken pipe", os.NewSyscallError("write", syscall.EPIPE), true},
		{"parity", ErrBadParity, false},
		{"other", errors.New("boom"), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDisconnect(tc.err))
		})
	}
}

func TestProcessor_PeerCloseWithUnreadDataIsDisconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		_ = WritePacket(nc, Packet{Channel: ChannelClose, Seq: 1})
		// Let the client's bytes arrive unread so the close resets.
		time.Sleep(50 * time.Millisecond)
		nc.Close()
	}()

	nc, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer nc.Close()
	p := NewProcessor(nc)
	require.NoError(t, p.Send(&KeepaliveCmd{}))
	require.NoError(t, p.Send(&KeepaliveCmd{}))

	done := make(chan error, 1)
	go func() { done <- p.ReadLoop(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not end after peer close")
	}
}

func TestProcessor_ContextCancelClosesConn(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	p := NewProcessor(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.ReadLoop(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop after cancel")
	}
}

func TestProcessor_ConcurrentSendsDoNotInterleave(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	p := NewProcessor(client)

	const senders = 8
	const perSender = 25
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(i)}, 100+i)
			for j := 0; j < perSender; j++ {
				assert.NoError(t, p.Send(&GenericCmd{Chan: ChannelSnac, Data: data.Wrap(payload)}))
			}
		}(i)
	}

	seen := make(map[uint16]bool)
	for n := 0; n < senders*perSender; n++ {
		pkt, err := ReadPacket(server)
		require.NoError(t, err)
		first := pkt.Data.At(0)
		assert.Equal(t, 100+int(first), pkt.Data.Len())
		for i := 0; i < pkt.Data.Len(); i++ {
			if pkt.Data.At(i) != first {
				t.Fatalf("frame %d mixes bytes from two senders", n)
			}
		}
		assert.False(t, seen[pkt.Seq])
		seen[pkt.Seq] = true
		assert.Equal(t, uint16(n), pkt.Seq)
	}
	wg.Wait()
}
