package ike_test

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vpnsim/internal/context"
	"vpnsim/internal/ike"
	"vpnsim/internal/ike/message"
	"vpnsim/internal/ike/security"
	"vpnsim/internal/ike/types"
	"vpnsim/internal/vpnsim_exclusive"

	"bitbucket.org/free5gc-team/fsm"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine builds an engine on a fake clock with zero artificial
// delay, so negotiations complete as fast as the workers can run them and
// timers fire only on Advance.
func newTestEngine(t *testing.T) (*ike.Engine, clockwork.FakeClock) {
	t.Helper()
	var c vpnsim_exclusive.VPNSimCommon
	require.NoError(t, c.InitLog(filepath.Join(t.TempDir(), "vpnsim.log")))
	c.Ctx = new(context.VPNSimContext)
	cfg := context.DefaultVPNConfig()
	cfg.DelayMinMs = 0
	cfg.DelayMaxMs = 0
	c.Ctx.UpdateConfig(cfg)
	require.NoError(t, c.InitTaskManager(100, 4))

	fc := clockwork.NewFakeClock()
	e := ike.NewEngine(c, fc, security.NewRand(7))
	e.Start()
	return e, fc
}

func establish(t *testing.T, e *ike.Engine, tunnelID string) *security.IKESA {
	t.Helper()
	sa, err := e.InitiateNegotiation(tunnelID, "192.0.2.1", "198.51.100.1",
		types.Proposals["balanced"], "secret")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return sa.State.Is(types.State_ESTABLISHED)
	}, 2*time.Second, 5*time.Millisecond)
	return sa
}

func hasEvent(e *ike.Engine, typ types.EventType) bool {
	for _, evt := range e.GetEvents("") {
		if evt.Type == typ {
			return true
		}
	}
	return false
}

func TestNegotiationEstablishes(t *testing.T) {
	e, _ := newTestEngine(t)
	sa := establish(t, e, "site-a")

	assert.True(t, sa.Keys.Complete())
	assert.Len(t, sa.ResponderSPI, 16)
	assert.Equal(t, "balanced", sa.Proposal.Name)
	assert.Len(t, sa.ChildSAIDs, 2)
	for _, childID := range sa.ChildSAIDs {
		assert.NotNil(t, e.GetChildSA(childID))
	}

	msgs := e.GetMessages(sa.ID)
	require.Len(t, msgs, 4)
	// Two exchanges, each a request/response pair sharing a message id
	assert.Equal(t, types.IKE_SA_INIT, msgs[0].ExchangeType)
	assert.Equal(t, types.IKE_SA_INIT, msgs[1].ExchangeType)
	assert.Equal(t, types.IKE_AUTH, msgs[2].ExchangeType)
	assert.Equal(t, types.IKE_AUTH, msgs[3].ExchangeType)
	assert.Equal(t, uint32(0), msgs[0].MessageID)
	assert.Equal(t, uint32(0), msgs[1].MessageID)
	assert.Equal(t, uint32(1), msgs[2].MessageID)
	assert.Equal(t, uint32(1), msgs[3].MessageID)
	assert.True(t, msgs[0].IsRequest)
	assert.False(t, msgs[1].IsRequest)

	assert.True(t, hasEvent(e, types.Event_NegotiationStarted))
	assert.True(t, hasEvent(e, types.Event_IKESAEstablished))
	assert.True(t, hasEvent(e, types.Event_ChildSAEstablished))

	s := e.Statistics()
	assert.Equal(t, uint64(1), s.NegotiationsStarted)
	assert.Equal(t, uint64(1), s.NegotiationsCompleted)
	assert.Equal(t, 1, s.ActiveSACount)
	assert.Equal(t, uint64(4), s.MessagesExchanged)
}

func TestInitiateNegotiationValidation(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.InitiateNegotiation("site-a", "192.0.2.1", "198.51.100.1", nil, "secret")
	assert.True(t, errors.Is(err, ike.ErrPreconditionFailed))

	_, err = e.InitiateNegotiation("site-a", "192.0.2.1", "198.51.100.1",
		&types.IKEProposal{Encryption: "aes-256-cbc"}, "secret")
	assert.True(t, errors.Is(err, ike.ErrPreconditionFailed))

	_, err = e.InitiateNegotiation("site-a", "192.0.2.1", "198.51.100.1",
		types.Proposals["balanced"], "")
	assert.True(t, errors.Is(err, ike.ErrPreconditionFailed))

	e.Stop()
	_, err = e.InitiateNegotiation("site-a", "192.0.2.1", "198.51.100.1",
		types.Proposals["balanced"], "secret")
	assert.True(t, errors.Is(err, ike.ErrNotRunning))
}

func TestDeleteSA(t *testing.T) {
	e, fc := newTestEngine(t)
	sa := establish(t, e, "site-a")
	childID := sa.ChildSAIDs[0]

	require.NoError(t, e.DeleteSA(sa.ID, "site-a"))
	assert.Nil(t, e.GetSA(sa.ID))
	assert.Nil(t, e.GetChildSA(childID))
	assert.True(t, hasEvent(e, types.Event_TunnelDown))

	// Messages stay queryable by SPI for audit; the delete adds one
	msgs := e.GetMessagesBySPI(sa.InitiatorSPI)
	require.Len(t, msgs, 5)
	last := msgs[4]
	assert.Equal(t, types.INFORMATIONAL, last.ExchangeType)
	assert.Equal(t, uint32(2), last.MessageID)

	// Unknown ids are a no-op
	assert.NoError(t, e.DeleteSA("ikesa-999", "site-a"))

	// Cancelled timers never fire against the deleted SA
	fc.Advance(time.Hour)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, e.GetMessagesBySPI(sa.InitiatorSPI), 5)
}

func TestFailNegotiation(t *testing.T) {
	e, _ := newTestEngine(t)
	sa := establish(t, e, "site-a")

	require.NoError(t, e.FailNegotiation(sa.ID, "simulated peer reboot"))
	assert.Nil(t, e.GetSA(sa.ID))
	assert.True(t, hasEvent(e, types.Event_NegotiationFailed))
	assert.Equal(t, uint64(1), e.Statistics().NegotiationsFailed)

	err := e.FailNegotiation("ikesa-999", "nope")
	assert.True(t, errors.Is(err, ike.ErrPreconditionFailed))
}

func TestInitiateRekey(t *testing.T) {
	e, _ := newTestEngine(t)
	sa := establish(t, e, "site-a")
	keysBefore := sa.Keys
	expiresBefore := sa.ExpiresAt

	require.NoError(t, e.InitiateRekey(sa.ID, "site-a"))
	require.Eventually(t, func() bool {
		return e.Statistics().RekeyOperations == 1 && sa.State.Is(types.State_ESTABLISHED)
	}, 2*time.Second, 5*time.Millisecond)

	assert.NotEqual(t, keysBefore, sa.Keys)
	assert.True(t, sa.ExpiresAt.After(expiresBefore) || sa.ExpiresAt.Equal(expiresBefore))
	assert.True(t, hasEvent(e, types.Event_RekeyInitiated))
	assert.True(t, hasEvent(e, types.Event_RekeyCompleted))

	msgs := e.GetMessages(sa.ID)
	require.Len(t, msgs, 6)
	assert.Equal(t, types.CREATE_CHILD_SA, msgs[4].ExchangeType)
	assert.Equal(t, types.CREATE_CHILD_SA, msgs[5].ExchangeType)
	assert.Equal(t, uint32(2), msgs[4].MessageID)
	assert.Equal(t, uint32(2), msgs[5].MessageID)

	err := e.InitiateRekey("ikesa-999", "site-a")
	assert.True(t, errors.Is(err, ike.ErrPreconditionFailed))
}

func countEvents(e *ike.Engine, typ types.EventType) int {
	n := 0
	for _, evt := range e.GetEvents("") {
		if evt.Type == typ {
			n++
		}
	}
	return n
}

func TestDPDCycle(t *testing.T) {
	e, fc := newTestEngine(t)
	cfg := e.GetConfig()
	cfg.DPDInterval = 1
	e.UpdateConfig(cfg)
	sa := establish(t, e, "site-a")

	// Both the DPD ticker and the rekey one-shot wait on the fake clock
	for i := 1; i <= 3; i++ {
		fc.BlockUntil(2)
		fc.Advance(time.Second)
		want := i
		require.Eventually(t, func() bool {
			return countEvents(e, types.Event_DPDSent) >= want &&
				countEvents(e, types.Event_DPDReceived) >= want
		}, 2*time.Second, 5*time.Millisecond)
	}

	probes := 0
	for _, m := range e.GetMessagesBySPI(sa.InitiatorSPI) {
		if m.ExchangeType == types.INFORMATIONAL {
			probes++
		}
	}
	assert.GreaterOrEqual(t, probes, 6) // 3 request/response pairs
}

// Deleting an SA while its negotiation is parked on the simulated network
// delay must win: the delayed continuation observes the SA gone and records
// nothing further.
func TestDeleteMidNegotiation(t *testing.T) {
	e, fc := newTestEngine(t)
	cfg := e.GetConfig()
	cfg.DelayMinMs = 100
	cfg.DelayMaxMs = 100
	e.UpdateConfig(cfg)

	sa, err := e.InitiateNegotiation("site-a", "192.0.2.1", "198.51.100.1",
		types.Proposals["balanced"], "secret")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return sa.State.Is(types.State_SA_INIT_SENT)
	}, 2*time.Second, 5*time.Millisecond)
	// No peer response yet
	assert.Empty(t, sa.ResponderSPI)
	// Worker is now sleeping on the fake clock
	fc.BlockUntil(1)

	require.NoError(t, e.DeleteSA(sa.ID, "site-a"))
	assert.Nil(t, e.GetSA(sa.ID))
	before := len(e.GetMessagesBySPI(sa.InitiatorSPI))

	fc.Advance(time.Second)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, e.GetMessagesBySPI(sa.InitiatorSPI), before)
	assert.Nil(t, e.GetSA(sa.ID))
}

func TestStopKeepsSAs(t *testing.T) {
	e, _ := newTestEngine(t)
	sa := establish(t, e, "site-a")

	e.Stop()
	// SAs survive a stop, commands do not
	assert.NotNil(t, e.GetSA(sa.ID))
	assert.True(t, errors.Is(e.InitiateRekey(sa.ID, "site-a"), ike.ErrNotRunning))
	assert.True(t, errors.Is(e.DeleteSA(sa.ID, "site-a"), ike.ErrNotRunning))
}

func TestDestroy(t *testing.T) {
	e, _ := newTestEngine(t)
	establish(t, e, "site-a")

	e.Destroy()
	assert.Empty(t, e.GetAllSAs())
	assert.Empty(t, e.GetMessages(""))
	assert.Empty(t, e.GetEvents(""))
	s := e.Statistics()
	assert.Zero(t, s.NegotiationsStarted)
	assert.Zero(t, s.MessagesExchanged)
}

func TestQueries(t *testing.T) {
	e, _ := newTestEngine(t)
	saA := establish(t, e, "site-a")
	saB := establish(t, e, "site-b")

	assert.NotEqual(t, saA.InitiatorSPI, saB.InitiatorSPI)
	assert.Len(t, e.GetActiveSAs(), 2)

	assert.Equal(t, saA, e.GetSABySPI(saA.InitiatorSPI, ""))
	assert.Equal(t, saA, e.GetSABySPI(saA.InitiatorSPI, saA.ResponderSPI))
	assert.Nil(t, e.GetSABySPI(saA.InitiatorSPI, saB.ResponderSPI))

	assert.Len(t, e.GetMessages(saA.ID), 4)
	assert.Len(t, e.GetMessages(""), 8)
	assert.Nil(t, e.GetMessages("ikesa-999"))

	assert.Len(t, e.GetEvents("site-a"), 3)
	assert.Len(t, e.GetRecentMessages(2), 2)
	assert.Len(t, e.GetRecentEvents(1), 1)
}

func TestUpdateConfig(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := e.GetConfig()
	cfg.DPDInterval = 5
	cfg.LogIKEMessages = false
	e.UpdateConfig(cfg)

	got := e.GetConfig()
	assert.Equal(t, 5, got.DPDInterval)
	assert.False(t, got.LogIKEMessages)
}

type recordingObserver struct {
	mtx      sync.Mutex
	messages int
	states   []fsm.StateType
	events   int
	complete int
	rekeys   int
	deleted  []string
}

func (o *recordingObserver) OnMessage(*message.IKEMessage) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.messages++
}

func (o *recordingObserver) OnStateChange(saID string, state fsm.StateType) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.states = append(o.states, state)
}

func (o *recordingObserver) OnEvent(*types.VPNEvent) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.events++
}

func (o *recordingObserver) OnNegotiationComplete(*security.IKESA) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.complete++
}

func (o *recordingObserver) OnRekeyComplete(*security.IKESA) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.rekeys++
}

func (o *recordingObserver) OnSADeleted(saID string) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.deleted = append(o.deleted, saID)
}

func (o *recordingObserver) snapshot() recordingObserver {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return recordingObserver{
		messages: o.messages,
		states:   append([]fsm.StateType(nil), o.states...),
		events:   o.events,
		complete: o.complete,
		rekeys:   o.rekeys,
		deleted:  append([]string(nil), o.deleted...),
	}
}

func TestObserverNotifications(t *testing.T) {
	e, _ := newTestEngine(t)
	obs := new(recordingObserver)
	e.Attach(obs)

	sa := establish(t, e, "site-a")
	got := obs.snapshot()
	assert.Equal(t, 4, got.messages)
	assert.Equal(t, 1, got.complete)
	assert.Contains(t, got.states, types.State_ESTABLISHED)
	assert.GreaterOrEqual(t, got.events, 3)

	require.NoError(t, e.DeleteSA(sa.ID, "site-a"))
	got = obs.snapshot()
	assert.Equal(t, []string{sa.ID}, got.deleted)

	e.Detach(obs)
	establish(t, e, "site-b")
	assert.Equal(t, []string{sa.ID}, obs.snapshot().deleted)
}
