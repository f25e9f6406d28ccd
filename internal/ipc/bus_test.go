package ipc

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeLinks(t *testing.T, a, b *Bus) {
	t.Helper()
	arPipe, bwPipe := io.Pipe()
	brPipe, awPipe := io.Pipe()

	a.Attach("b", awPipe, awPipe, arPipe)
	b.Attach("a", bwPipe, bwPipe, brPipe)
}

func TestBus_BroadcastDeliversToRegisteredHandler(t *testing.T) {
	a := New(nil)
	b := New(nil)
	pipeLinks(t, a, b)

	received := make(chan Envelope, 1)
	b.On(KindHeartbeat, func(env Envelope) { received <- env })

	err := a.Broadcast(Envelope{ID: "1", Kind: KindHeartbeat, Payload: json.RawMessage(`{"n":1}`)})
	require.NoError(t, err)

	select {
	case env := <-received:
		assert.Equal(t, KindHeartbeat, env.Kind)
		assert.Equal(t, "a", env.From)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestBus_SendToUnknownLinkReturnsError(t *testing.T) {
	a := New(nil)
	err := a.SendTo("ghost", Envelope{ID: "1", Kind: KindHeartbeat})
	assert.ErrorIs(t, err, ErrUnknownLink)
}

func TestBus_SendRandomWithNoLinksReturnsError(t *testing.T) {
	a := New(nil)
	err := a.SendRandom(Envelope{ID: "1", Kind: KindHeartbeat})
	assert.ErrorIs(t, err, ErrNoLinks)
}

func TestBus_RequestReceivesReply(t *testing.T) {
	a := New(nil)
	b := New(nil)
	pipeLinks(t, a, b)

	b.On(KindRPCRequest, func(env Envelope) {
		_ = b.SendTo(env.From, Envelope{ID: env.ID, Kind: KindRPCReply, Payload: json.RawMessage(`{"ok":true}`)})
	})

	reply, err := a.Request(context.Background(), "b", json.RawMessage(`{"q":1}`), time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(reply.Payload))
}

func TestBus_RequestTimesOutWithoutReply(t *testing.T) {
	a := New(nil)
	b := New(nil)
	pipeLinks(t, a, b)

	_, err := a.Request(context.Background(), "b", nil, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrRPCTimeout)
}

func TestLink_SendRejectsOversizeEnvelope(t *testing.T) {
	r, w := io.Pipe()
	defer r.Close()
	link := newLink("x", w, w, 16)

	go func() {
		buf := make([]byte, 64)
		_, _ = r.Read(buf)
	}()

	err := link.Send(Envelope{ID: "1", Kind: KindHeartbeat, Payload: json.RawMessage(`{"padding":"this is far too long"}`)})
	assert.ErrorIs(t, err, ErrOversize)
}
