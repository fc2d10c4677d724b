package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		if !ok {
			return Message{}, false
		}
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg, true
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for hub")
		return Message{}, false
	}
}

func TestNotifyAccountReachesOnlyThatAccount(t *testing.T) {
	hub := startHub(t)
	a1 := NewClient(hub, nil, "acc-1")
	a2 := NewClient(hub, nil, "acc-1")
	b := NewClient(hub, nil, "acc-2")
	hub.Register(a1)
	hub.Register(a2)
	hub.Register(b)

	hub.NotifyAccount("acc-1", ActionProfileUpdated, map[string]string{"firstName": "Ada"})

	for _, c := range []*Client{a1, a2} {
		msg, ok := receive(t, c)
		require.True(t, ok)
		assert.Equal(t, ActionProfileUpdated, msg.Action)
		assert.Equal(t, map[string]interface{}{"firstName": "Ada"}, msg.Payload)
	}
	assert.Empty(t, b.Send)
	assert.Eventually(t, func() bool { return hub.ConnectedClients() == 3 }, time.Second, 10*time.Millisecond)
}

func TestSessionRevokedDisconnectsAfterDelivery(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil, "acc-1")
	hub.Register(c)

	hub.NotifyAccount("acc-1", ActionSessionRevoked, nil)

	msg, ok := receive(t, c)
	require.True(t, ok)
	assert.Equal(t, ActionSessionRevoked, msg.Action)

	_, ok = receive(t, c)
	assert.False(t, ok, "send channel is closed after revocation")
	assert.Eventually(t, func() bool { return hub.ConnectedClients() == 0 }, time.Second, 10*time.Millisecond)

	hub.Unregister(c)
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil, "acc-1")
	hub.Register(c)
	hub.Unregister(c)

	_, ok := receive(t, c)
	assert.False(t, ok)

	hub.NotifyAccount("acc-1", ActionProfileUpdated, nil)
}

func TestStoppedHubDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := NewClient(hub, nil, "acc-1")
	hub.Register(c)
	cancel()
	<-stopped

	_, ok := receive(t, c)
	assert.False(t, ok)

	hub.Register(NewClient(hub, nil, "acc-2"))
	hub.Unregister(c)
	for i := 0; i < notifyBuffer+1; i++ {
		hub.NotifyAccount("acc-1", ActionProfileUpdated, nil)
	}
}

func TestNewErrorMessage(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal(NewErrorMessage("nope"), &msg))
	assert.Equal(t, ActionError, msg.Action)
	assert.Equal(t, map[string]interface{}{"message": "nope"}, msg.Payload)
}
