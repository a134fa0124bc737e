package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/meeting-service/internal/relay"
	"github.com/cwrk-planet/meeting-service/internal/relay/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeConn записывает все принятые кадры.
type fakeConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
	done   chan struct{}
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, done: make(chan struct{})}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.full {
		return false
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return true
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (c *fakeConn) received(t *testing.T) []message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]message, 0, len(c.frames))
	for _, f := range c.frames {
		var m message
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func presence(t *testing.T, m message) string {
	t.Helper()
	var p relay.PresencePayload
	require.NoError(t, json.Unmarshal(m.Payload, &p))
	return p.ParticipantID
}

func frame(typ string, payload any) []byte {
	b, err := json.Marshal(map[string]any{"type": typ, "payload": payload})
	if err != nil {
		panic(err)
	}
	return b
}

func joinFrame(pid, mid string) []byte {
	return frame(relay.TypeJoin, map[string]string{"participantId": pid, "meetingId": mid})
}

type harness struct {
	engine *relay.Engine
	store  *mocks.MockStore
}

func newHarness(t *testing.T) *harness {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	return &harness{engine: relay.NewEngine(relay.NewRegistry(), st), store: st}
}

func (h *harness) open(t *testing.T, id string) (*fakeConn, *relay.Session) {
	t.Helper()
	c := newFakeConn(id)
	s, err := h.engine.Open(c)
	require.NoError(t, err)
	return c, s
}

func TestEngine_JoinAnnouncesToOthersOnly(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	c1, s1 := h.open(t, "c1")
	c2, s2 := h.open(t, "c2")

	s1.Handle(ctx, joinFrame("P1", "abc123"))
	req.Empty(c1.received(t), "joiner must not be told about itself")

	s2.Handle(ctx, joinFrame("P2", "abc123"))
	got := c1.received(t)
	req.Len(got, 1)
	req.Equal(relay.TypeParticipantJoined, got[0].Type)
	req.Equal("P2", presence(t, got[0]))
	req.Empty(c2.received(t))
	req.Equal(2, h.engine.Connections())
	req.True(s2.Joined())
	req.Equal("P2", s2.ParticipantID())
}

func TestEngine_CloseAnnouncesDeparture(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	c1, s1 := h.open(t, "c1")
	_, s2 := h.open(t, "c2")
	other, s3 := h.open(t, "c3")

	s1.Handle(ctx, joinFrame("P1", "abc123"))
	s2.Handle(ctx, joinFrame("P2", "abc123"))
	s3.Handle(ctx, joinFrame("P3", "xyz789"))
	c1.reset()

	h.store.EXPECT().RemoveParticipant(gomock.Any(), "P2").Return(nil).Times(1)
	s2.Close(ctx)
	s2.Close(ctx)

	got := c1.received(t)
	req.Len(got, 1)
	req.Equal(relay.TypeParticipantLeft, got[0].Type)
	req.Equal("P2", presence(t, got[0]))
	req.Empty(other.received(t), "other meetings must not see the departure")
	req.Equal(2, h.engine.Connections())
}

func TestEngine_CloseUnjoined(t *testing.T) {
	h := newHarness(t)
	_, s := h.open(t, "c1")

	// store не должен вызываться: gomock упадёт на неожиданном вызове
	s.Close(context.Background())
	require.Zero(t, h.engine.Connections())
}

func TestEngine_StoreErrorStillAnnounces(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	c1, s1 := h.open(t, "c1")
	_, s2 := h.open(t, "c2")
	s1.Handle(ctx, joinFrame("P1", "abc123"))
	s2.Handle(ctx, joinFrame("P2", "abc123"))

	h.store.EXPECT().RemoveParticipant(gomock.Any(), "P2").Return(errors.New("boom"))
	s2.Close(ctx)

	got := c1.received(t)
	req.Len(got, 1)
	req.Equal(relay.TypeParticipantLeft, got[0].Type)
}

func TestEngine_PresenceExactlyOnce(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	const n = 20
	conns := make([]*fakeConn, n)
	sessions := make([]*relay.Session, n)
	for i := range n {
		conns[i], sessions[i] = h.open(t, fmt.Sprintf("c%d", i))
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i].Handle(ctx, joinFrame(fmt.Sprintf("P%d", i), "abc123"))
		}(i)
	}
	wg.Wait()

	// каждая пара участников видит друг друга ровно один раз:
	// тот, кто вошёл раньше, получает joined о том, кто позже.
	seen := make(map[string]map[string]int, n)
	for i, c := range conns {
		me := fmt.Sprintf("P%d", i)
		seen[me] = make(map[string]int)
		for _, m := range c.received(t) {
			req.Equal(relay.TypeParticipantJoined, m.Type)
			seen[me][presence(t, m)]++
		}
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			a, b := fmt.Sprintf("P%d", i), fmt.Sprintf("P%d", j)
			req.Equal(1, seen[a][b]+seen[b][a], "pair %s/%s", a, b)
		}
	}
}

func TestEngine_SignalForwarding(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	c1, s1 := h.open(t, "c1")
	c2, s2 := h.open(t, "c2")
	s1.Handle(ctx, joinFrame("P1", "abc123"))
	s2.Handle(ctx, joinFrame("P2", "abc123"))
	c1.reset()

	s1.Handle(ctx, []byte(`{"type":"webrtc_signal","payload":{"to":"P2","from":"P1","signal":{"sdp":"v=0 <a&b>","type":"offer"}}}`))

	got := c2.received(t)
	req.Len(got, 1)
	req.Equal(relay.TypeSignal, got[0].Type)
	req.JSONEq(`{"from":"P1","signal":{"sdp":"v=0 <a&b>","type":"offer"}}`, string(got[0].Payload))

	var fields map[string]json.RawMessage
	req.NoError(json.Unmarshal(got[0].Payload, &fields))
	req.NotContains(fields, "to")
	req.Empty(c1.received(t))
}

func TestEngine_SignalUnknownTargetDropped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	c1, s1 := h.open(t, "c1")
	c2, s2 := h.open(t, "c2")
	s1.Handle(ctx, joinFrame("P1", "abc123"))
	s2.Handle(ctx, joinFrame("P2", "abc123"))
	c1.reset()

	s1.Handle(ctx, frame(relay.TypeSignal, map[string]any{"to": "ghost", "from": "P1", "signal": "x"}))
	s1.Handle(ctx, frame(relay.TypeSignal, map[string]any{"from": "P1", "signal": "x"}))

	req.Empty(c1.received(t))
	req.Empty(c2.received(t))
}

func TestEngine_ChatScopedToMeeting(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	c1, s1 := h.open(t, "c1")
	c2, s2 := h.open(t, "c2")
	c3, s3 := h.open(t, "c3")
	s1.Handle(ctx, joinFrame("P1", "abc123"))
	s2.Handle(ctx, joinFrame("P2", "abc123"))
	s3.Handle(ctx, joinFrame("P3", "xyz789"))
	c1.reset()
	c2.reset()

	s1.Handle(ctx, frame(relay.TypeChat, map[string]any{
		"meetingId": "abc123",
		"from":      map[string]string{"id": "P1", "name": "Ann"},
		"message":   "hi",
	}))

	for _, c := range []*fakeConn{c1, c2} {
		got := c.received(t)
		req.Len(got, 1, "conn %s", c.id)
		req.Equal(relay.TypeChat, got[0].Type)
		req.JSONEq(`{"from":{"id":"P1","name":"Ann"},"message":"hi"}`, string(got[0].Payload))
	}
	req.Empty(c3.received(t))
}

func TestEngine_UnjoinedSenderStillRelays(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	c1, s1 := h.open(t, "c1")
	c2, s2 := h.open(t, "c2")
	s1.Handle(ctx, joinFrame("P1", "abc123"))

	s2.Handle(ctx, frame(relay.TypeSignal, map[string]any{"to": "P1", "from": "x", "signal": "y"}))
	s2.Handle(ctx, frame(relay.TypeChat, map[string]any{"meetingId": "abc123", "from": "x", "message": "hello"}))

	got := c1.received(t)
	req.Len(got, 2)
	req.Equal(relay.TypeSignal, got[0].Type)
	req.JSONEq(`{"from":"x","signal":"y"}`, string(got[0].Payload))
	req.Equal(relay.TypeChat, got[1].Type)
	req.JSONEq(`{"from":"x","message":"hello"}`, string(got[1].Payload))

	// отправитель не в реестре, своё сообщение не получает
	req.Empty(c2.received(t))
	req.False(s2.Joined())
}

func TestEngine_MalformedFramesKeepSessionUsable(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	c1, s1 := h.open(t, "c1")
	_, s2 := h.open(t, "c2")
	s1.Handle(ctx, joinFrame("P1", "abc123"))

	for _, f := range []string{
		`not json`,
		`{}`,
		`{"type":"dance","payload":{}}`,
		`{"type":"join","payload":"oops"}`,
		`{"type":"join","payload":{"participantId":"P2"}}`,
	} {
		s2.Handle(ctx, []byte(f))
	}
	req.False(s2.Joined())
	req.Empty(c1.received(t))

	s2.Handle(ctx, joinFrame("P2", "abc123"))
	req.True(s2.Joined())
	req.Len(c1.received(t), 1)
}

func TestEngine_RejoinFromNewConn(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	peer, sp := h.open(t, "peer")
	old, sOld := h.open(t, "old")
	fresh, sNew := h.open(t, "fresh")
	sp.Handle(ctx, joinFrame("P1", "abc123"))
	sOld.Handle(ctx, joinFrame("P2", "abc123"))
	peer.reset()

	sNew.Handle(ctx, joinFrame("P2", "abc123"))
	req.True(old.isClosed())

	got := peer.received(t)
	req.Len(got, 2)
	req.Equal(relay.TypeParticipantLeft, got[0].Type)
	req.Equal(relay.TypeParticipantJoined, got[1].Type)
	req.Equal("P2", presence(t, got[1]))
	peer.reset()

	// закрытие старого соединения ничего не снимает
	sOld.Close(ctx)
	req.Empty(peer.received(t))

	sp.Handle(ctx, frame(relay.TypeSignal, map[string]any{"to": "P2", "from": "P1", "signal": "s"}))
	req.Len(fresh.received(t), 1)
}

func TestEngine_RejoinSameConnIsNoop(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	peer, sp := h.open(t, "peer")
	c, s := h.open(t, "c")
	sp.Handle(ctx, joinFrame("P1", "abc123"))
	s.Handle(ctx, joinFrame("P2", "abc123"))
	peer.reset()

	s.Handle(ctx, joinFrame("P2", "abc123"))
	s.Handle(ctx, joinFrame("P9", "abc123"))

	req.Empty(peer.received(t))
	req.False(c.isClosed())
	req.Equal("P2", s.ParticipantID())
}

func TestEngine_FullQueueDoesNotBlockOthers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	slow, s1 := h.open(t, "slow")
	fast, s2 := h.open(t, "fast")
	_, s3 := h.open(t, "sender")
	s1.Handle(ctx, joinFrame("P1", "abc123"))
	s2.Handle(ctx, joinFrame("P2", "abc123"))
	s3.Handle(ctx, joinFrame("P3", "abc123"))
	slow.reset()
	fast.reset()

	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	s3.Handle(ctx, frame(relay.TypeChat, map[string]any{"meetingId": "abc123", "from": "P3", "message": "hello"}))

	req.Empty(slow.received(t))
	req.Len(fast.received(t), 1)
}

func TestEngine_Shutdown(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	h.store.EXPECT().RemoveParticipant(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	conns := make([]*fakeConn, 3)
	for i := range conns {
		c, s := h.open(t, fmt.Sprintf("c%d", i))
		conns[i] = c
		if i < 2 {
			s.Handle(ctx, joinFrame(fmt.Sprintf("P%d", i), "abc123"))
		}
		// цикл чтения: закрытие транспорта завершает сессию
		go func() {
			<-c.done
			s.Close(ctx)
		}()
	}

	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req.NoError(h.engine.Shutdown(sctx))

	for _, c := range conns {
		req.True(c.isClosed())
	}
	req.Zero(h.engine.Connections())

	_, err := h.engine.Open(newFakeConn("late"))
	req.ErrorIs(err, relay.ErrClosed)
}

func TestEngine_ShutdownHonoursContext(t *testing.T) {
	h := newHarness(t)
	_, _ = h.open(t, "stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, h.engine.Shutdown(ctx), context.DeadlineExceeded)
}

func TestEngine_ShutdownClosesEveryConn(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := relay.NewEngine(relay.NewRegistry(), mocks.NewMockStore(ctrl))

	conn := mocks.NewMockConn(ctrl)
	conn.EXPECT().ID().Return("m1").AnyTimes()

	var sess *relay.Session
	conn.EXPECT().Close().DoAndReturn(func() error {
		sess.Close(context.Background())
		return nil
	}).Times(1)

	sess, err := eng.Open(conn)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, eng.Shutdown(ctx))
}
