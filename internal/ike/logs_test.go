package ike_test

import (
	"fmt"
	"testing"

	"vpnsim/internal/ike"
	"vpnsim/internal/ike/message"
	"vpnsim/internal/ike/types"

	"github.com/stretchr/testify/assert"
)

func TestMessageLogBounded(t *testing.T) {
	l := ike.NewMessageLog(3)
	for i := 1; i <= 5; i++ {
		l.Append(&message.IKEMessage{ID: uint64(i)})
	}

	assert.Equal(t, 3, l.Len())
	all := l.All()
	// Oldest entries dropped first
	assert.Equal(t, uint64(3), all[0].ID)
	assert.Equal(t, uint64(5), all[2].ID)
}

func TestMessageLogRecentAndFilter(t *testing.T) {
	l := ike.NewMessageLog(10)
	for i := 1; i <= 4; i++ {
		l.Append(&message.IKEMessage{ID: uint64(i), InitiatorSPI: fmt.Sprintf("spi-%d", i%2)})
	}

	recent := l.Recent(2)
	assert.Len(t, recent, 2)
	assert.Equal(t, uint64(3), recent[0].ID)
	assert.Equal(t, uint64(4), recent[1].ID)

	// Recent beyond length returns everything
	assert.Len(t, l.Recent(100), 4)

	odd := l.Filter(func(m *message.IKEMessage) bool { return m.InitiatorSPI == "spi-1" })
	assert.Len(t, odd, 2)

	l.Clear()
	assert.Zero(t, l.Len())
}

func TestEventLogBounded(t *testing.T) {
	l := ike.NewEventLog(2)
	for i := 1; i <= 4; i++ {
		l.Append(&types.VPNEvent{ID: uint64(i), TunnelID: "site-a"})
	}

	assert.Equal(t, 2, l.Len())
	all := l.All()
	assert.Equal(t, uint64(3), all[0].ID)
	assert.Equal(t, uint64(4), all[1].ID)

	byTunnel := l.Filter(func(e *types.VPNEvent) bool { return e.TunnelID == "site-a" })
	assert.Len(t, byTunnel, 2)
}
