package router

import (
	"errors"
	"sync"
	"testing"

	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/chat"
	"github.com/minecraftim/go-oscar/lib/snaccmd/conn"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/minecraftim/go-oscar/lib/snaccmd/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []snac.Command
	reqs []*snac.Request
	err  error
}

func (f *fakeSender) SendRequest(req *snac.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, req.Command)
	f.reqs = append(f.reqs, req)
	return nil
}

func (f *fakeSender) request(i int) *snac.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[i]
}

func (f *fakeSender) commands() []snac.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]snac.Command(nil), f.sent...)
}

func TestManager_TwoRequestsFlushFIFOOnce(t *testing.T) {
	bos := &fakeSender{}
	m := New(bos)

	first := &search.ByEmail{Email: "a@example.com"}
	second := &search.ByEmail{Email: "b@example.com"}
	require.NoError(t, m.Send(snac.NewRequest(first)))
	require.NoError(t, m.Send(snac.NewRequest(second)))

	assert.Equal(t, Pending, m.State(snaccmd.FamilySearch))
	assert.Equal(t, 2, m.Queued(snaccmd.FamilySearch))

	// Only one service request, on the primary connection.
	sent := bos.commands()
	require.Len(t, sent, 1)
	sr, ok := sent[0].(*conn.ServiceRequest)
	require.True(t, ok)
	assert.Equal(t, snaccmd.FamilySearch, sr.Service)

	svc := &fakeSender{}
	require.NoError(t, m.ServiceReady([]uint16{snaccmd.FamilyConn, snaccmd.FamilySearch}, svc))
	assert.Equal(t, []snac.Command{first, second}, svc.commands())
	assert.Equal(t, Bound, m.State(snaccmd.FamilySearch))
	assert.Zero(t, m.Queued(snaccmd.FamilySearch))

	// A second ready notice does not resend.
	require.NoError(t, m.ServiceReady([]uint16{snaccmd.FamilySearch}, svc))
	assert.Len(t, svc.commands(), 2)
	assert.Len(t, bos.commands(), 1)
}

func TestManager_BoundFamilySendsDirectly(t *testing.T) {
	bos := &fakeSender{}
	m := New(bos)
	require.NoError(t, m.ServiceReady([]uint16{snaccmd.FamilyIcbm}, bos))

	cmd, err := icbm.NewSendIm("friend", "hi")
	require.NoError(t, err)
	require.NoError(t, m.Send(snac.NewRequest(cmd)))
	assert.Equal(t, []snac.Command{cmd}, bos.commands())
}

func TestManager_NoPrimary(t *testing.T) {
	m := New(nil)
	err := m.Send(snac.NewRequest(&search.ByEmail{Email: "x"}))
	assert.ErrorIs(t, err, ErrNoPrimary)
	assert.Equal(t, Unbound, m.State(snaccmd.FamilySearch))
}

func TestManager_ServiceRequestFailureLeavesUnbound(t *testing.T) {
	boom := errors.New("write failed")
	m := New(&fakeSender{err: boom})
	err := m.Send(snac.NewRequest(&search.ByEmail{Email: "x"}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Unbound, m.State(snaccmd.FamilySearch))
}

func emails(cmds []snac.Command) []string {
	var out []string
	for _, c := range cmds {
		if se, ok := c.(*search.ByEmail); ok {
			out = append(out, se.Email)
		}
	}
	return out
}

func TestManager_ServiceErrorKeepsQueueAndRequestsAgain(t *testing.T) {
	bos := &fakeSender{}
	m := New(bos)
	require.NoError(t, m.Send(snac.NewRequest(&search.ByEmail{Email: "one"})))
	require.NoError(t, m.Send(snac.NewRequest(&search.ByEmail{Email: "two"})))

	sr := bos.request(0)
	require.NotNil(t, sr.OnResponse)
	sr.OnResponse(snac.ResponseEvent{Request: sr, Command: snaccmd.NewSnacError(snaccmd.FamilyConn, 0x0006)})

	assert.Equal(t, Unbound, m.State(snaccmd.FamilySearch))
	assert.Equal(t, 2, m.Queued(snaccmd.FamilySearch))

	// The next send asks for the service again behind the held requests.
	require.NoError(t, m.Send(snac.NewRequest(&search.ByEmail{Email: "three"})))
	assert.Equal(t, Pending, m.State(snaccmd.FamilySearch))
	sent := bos.commands()
	require.Len(t, sent, 2)
	assert.IsType(t, &conn.ServiceRequest{}, sent[1])

	svc := &fakeSender{}
	require.NoError(t, m.ServiceReady([]uint16{snaccmd.FamilySearch}, svc))
	assert.Equal(t, []string{"one", "two", "three"}, emails(svc.commands()))
	assert.Zero(t, m.Queued(snaccmd.FamilySearch))
}

func TestManager_ServiceTimeoutAndRetry(t *testing.T) {
	bos := &fakeSender{}
	m := New(bos)
	require.NoError(t, m.Send(snac.NewRequest(&search.ByEmail{Email: "one"})))

	sr := bos.request(0)
	require.NotNil(t, sr.OnTimeout)
	sr.OnTimeout(sr)
	assert.Equal(t, Unbound, m.State(snaccmd.FamilySearch))
	assert.Equal(t, 1, m.Queued(snaccmd.FamilySearch))

	require.NoError(t, m.Retry(snaccmd.FamilySearch))
	assert.Equal(t, Pending, m.State(snaccmd.FamilySearch))
	assert.Len(t, bos.commands(), 2)

	// Retry on a pending family sends nothing more.
	require.NoError(t, m.Retry(snaccmd.FamilySearch))
	assert.Len(t, bos.commands(), 2)
}

func TestManager_RetryFailureKeepsQueue(t *testing.T) {
	bos := &fakeSender{}
	m := New(bos)
	require.NoError(t, m.Send(snac.NewRequest(&search.ByEmail{Email: "one"})))
	m.ServiceFailed(snaccmd.FamilySearch, errors.New("dial failed"))

	boom := errors.New("write failed")
	bos.mu.Lock()
	bos.err = boom
	bos.mu.Unlock()
	assert.ErrorIs(t, m.Send(snac.NewRequest(&search.ByEmail{Email: "two"})), boom)
	assert.Equal(t, Unbound, m.State(snaccmd.FamilySearch))
	// The held request survives; the rejected one was the caller's.
	assert.Equal(t, 1, m.Queued(snaccmd.FamilySearch))
}

func TestManager_ServiceFailedIgnoresBoundFamily(t *testing.T) {
	svc := &fakeSender{}
	m := New(&fakeSender{})
	require.NoError(t, m.ServiceReady([]uint16{snaccmd.FamilySearch}, svc))
	m.ServiceFailed(snaccmd.FamilySearch, errors.New("late"))
	assert.Equal(t, Bound, m.State(snaccmd.FamilySearch))
}

func TestManager_ServiceHandlerGetsAnswer(t *testing.T) {
	bos := &fakeSender{}
	m := New(bos)
	var gotFamily uint16
	var gotCmd snac.Command
	m.SetServiceHandler(func(family uint16, ev snac.ResponseEvent) {
		gotFamily, gotCmd = family, ev.Command
	})
	require.NoError(t, m.Send(snac.NewRequest(&search.ByEmail{Email: "one"})))

	redirect := &conn.ServiceRedirect{Service: snaccmd.FamilySearch, Server: "svc:5190"}
	sr := bos.request(0)
	sr.OnResponse(snac.ResponseEvent{Request: sr, Command: redirect})
	assert.Equal(t, snaccmd.FamilySearch, gotFamily)
	assert.Same(t, redirect, gotCmd)
	assert.Equal(t, Pending, m.State(snaccmd.FamilySearch))
}

func chatMessage() (*chat.SendMsg, error) {
	msg, err := chat.NewMessage("hello room", "en")
	if err != nil {
		return nil, err
	}
	return chat.NewSendMsg(msg), nil
}

func TestManager_ChatNeedsRoom(t *testing.T) {
	m := New(&fakeSender{})
	msg, err := chatMessage()
	require.NoError(t, err)
	assert.ErrorIs(t, m.Send(snac.NewRequest(msg)), ErrChatFamily)
}

func TestManager_Unbind(t *testing.T) {
	bos := &fakeSender{}
	svc := &fakeSender{}
	m := New(bos)
	require.NoError(t, m.ServiceReady([]uint16{snaccmd.FamilyIcbm}, bos))
	require.NoError(t, m.ServiceReady([]uint16{snaccmd.FamilySearch}, svc))

	assert.Equal(t, []uint16{snaccmd.FamilySearch}, m.Unbind(svc))
	assert.Equal(t, Unbound, m.State(snaccmd.FamilySearch))
	assert.Equal(t, Bound, m.State(snaccmd.FamilyIcbm))

	m.Unbind(bos)
	assert.ErrorIs(t, m.Send(snac.NewRequest(&search.ByEmail{Email: "x"})), ErrNoPrimary)
}

func TestManager_ConcurrentSendsKeepPerCallerOrder(t *testing.T) {
	bos := &fakeSender{}
	m := New(bos)
	const n = 50

	var wg sync.WaitGroup
	wg.Add(2)
	for _, prefix := range []string{"a", "b"} {
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				_ = m.Send(snac.NewRequest(&search.ByEmail{Email: prefix + string(rune('0'+i%10))}))
			}
		}()
	}
	wg.Wait()

	svc := &fakeSender{}
	require.NoError(t, m.ServiceReady([]uint16{snaccmd.FamilySearch}, svc))
	got := svc.commands()
	require.Len(t, got, 2*n)

	var a, b []string
	for _, c := range got {
		email := c.(*search.ByEmail).Email
		if email[0] == 'a' {
			a = append(a, email)
		} else {
			b = append(b, email)
		}
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, "a"+string(rune('0'+i%10)), a[i])
		assert.Equal(t, "b"+string(rune('0'+i%10)), b[i])
	}
}

func TestFamilyState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "FamilyState(9)", FamilyState(9).String())
}
