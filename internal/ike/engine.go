package ike

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/free5gc-team/fsm"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"vpnsim/internal/context"
	"vpnsim/internal/ike/message"
	"vpnsim/internal/ike/security"
	"vpnsim/internal/ike/types"
	"vpnsim/internal/vpnsim_exclusive"
)

var (
	// ErrNotRunning rejects commands on a stopped or destroyed engine.
	ErrNotRunning = errors.New("IKE engine is not running")
	// ErrPreconditionFailed reports structural misuse (rekey of a
	// non-established SA, unknown SA id, incomplete proposal).
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Statistics is a point-in-time snapshot of engine activity.
type Statistics struct {
	NegotiationsStarted   uint64
	NegotiationsCompleted uint64
	NegotiationsFailed    uint64
	MessagesExchanged     uint64
	RekeyOperations       uint64
	ActiveSACount         int
	TotalSACount          int
	MessageLogSize        int
	EventLogSize          int
}

// Engine drives IKE SAs through their state machine: negotiation, rekey,
// dead peer detection and deletion. All SA mutation happens under one
// lock; the artificial network delays are the only suspension points, and
// every continuation re-checks the SA before acting.
type Engine struct {
	vpnsim_exclusive.VPNSimCommon
	log   *logrus.Entry
	clock clockwork.Clock
	rnd   security.Rand
	sched *Scheduler

	mu      sync.Mutex
	running bool
	store   *saStore
	msgLog  *MessageLog
	evtLog  *EventLog

	saSeq  uint64
	msgSeq uint64
	evtSeq uint64

	negotiationsStarted   uint64
	negotiationsCompleted uint64
	negotiationsFailed    uint64
	messagesExchanged     uint64
	rekeyOperations       uint64

	obsMtx    sync.RWMutex
	observers []Observer
}

func NewEngine(c vpnsim_exclusive.VPNSimCommon, clock clockwork.Clock, rnd security.Rand) *Engine {
	e := &Engine{
		VPNSimCommon: c,
		clock:        clock,
		rnd:          rnd,
		sched:        NewScheduler(clock),
		store:        newSAStore(),
		msgLog:       NewMessageLog(MessageLogCap),
		evtLog:       NewEventLog(EventLogCap),
	}
	e.log = e.Log.WithFields(logrus.Fields{"component": "VPNSim", "category": "IKE"})
	return e
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
}

// Stop cancels every outstanding timer without deleting SAs; established
// tunnels stay in memory but inert.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	e.sched.CancelAll()
}

// Destroy stops the engine and empties every store and log, for a full
// reset between simulation sessions.
func (e *Engine) Destroy() {
	e.Stop()
	e.mu.Lock()
	e.store = newSAStore()
	e.msgLog.Clear()
	e.evtLog.Clear()
	e.negotiationsStarted = 0
	e.negotiationsCompleted = 0
	e.negotiationsFailed = 0
	e.messagesExchanged = 0
	e.rekeyOperations = 0
	e.mu.Unlock()
	e.obsMtx.Lock()
	e.observers = nil
	e.obsMtx.Unlock()
}

// InitiateNegotiation registers a fresh SA and drives it asynchronously
// through IKE_SA_INIT and IKE_AUTH. The handle is returned before the
// negotiation completes; track progress by state or through an Observer.
func (e *Engine) InitiateNegotiation(tunnelID, localIP, remoteIP string,
	proposal *types.IKEProposal, presharedKey string) (*security.IKESA, error) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil, ErrNotRunning
	}
	if proposal == nil || proposal.Encryption == "" || proposal.PRF == "" ||
		proposal.DHGroup == 0 || proposal.AuthMethod == "" || proposal.LifetimeSeconds <= 0 {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: proposal not fully populated", ErrPreconditionFailed)
	}
	if presharedKey == "" {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: pre-shared key must not be empty", ErrPreconditionFailed)
	}

	cfg := e.Ctx.GetConfig()
	e.saSeq++
	sa := security.NewIKESA(e.rnd, fmt.Sprintf("ikesa-%d", e.saSeq), tunnelID,
		cfg.IKEVersion, localIP, remoteIP, e.clock.Now())
	for e.store.spiInUse(sa.InitiatorSPI) {
		sa.InitiatorSPI = security.SPI(e.rnd)
	}
	e.store.sas[sa.ID] = sa

	n := &negotiation{
		e:        e,
		sa:       sa,
		tunnelID: tunnelID,
		proposal: proposal,
		psk:      presharedKey,
	}
	e.store.negs[sa.ID] = n

	e.negotiationsStarted++
	if err := e.transition(sa, EventInitiate); err != nil {
		e.store.remove(sa.ID)
		e.mu.Unlock()
		return nil, err
	}
	e.recordEvent(types.Event_NegotiationStarted, tunnelID,
		fmt.Sprintf("IKE negotiation started with %s (%s proposal)", remoteIP, proposal.Name),
		map[string]interface{}{"sa": sa.ID, "initiatorSPI": sa.InitiatorSPI})
	e.mu.Unlock()

	t := newTask()
	t.PushFunc(n.ikeSAInit)
	t.PushFunc(n.ikeAuth)
	t.PushFunc(n.complete)
	e.TM.NewTask(t)

	return sa, nil
}

// InitiateRekey renegotiates keys on an established SA via
// CREATE_CHILD_SA. Calling it in any other state is a safe no-op that
// reports ErrPreconditionFailed.
func (e *Engine) InitiateRekey(saID, tunnelID string) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	sa, ok := e.store.sas[saID]
	if !ok || !sa.State.Is(types.State_ESTABLISHED) {
		e.mu.Unlock()
		return fmt.Errorf("%w: SA %s is not established", ErrPreconditionFailed, saID)
	}
	e.mu.Unlock()

	r := &rekeyOp{e: e, saID: saID, tunnelID: tunnelID}
	t := newTask()
	t.PushFunc(r.request)
	t.PushFunc(r.complete)
	e.TM.NewTask(t)

	return nil
}

// DeleteSA tears an SA down from any non-terminal state. Timers are
// cancelled atomically with the removal. Unknown ids are a no-op.
func (e *Engine) DeleteSA(saID, tunnelID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	sa, ok := e.store.sas[saID]
	if !ok {
		return nil
	}

	if err := e.transition(sa, EventDelete); err != nil {
		return err
	}

	msg := e.newMessage(sa, types.INFORMATIONAL, true, sa.NextMessageID(), types.Direction_Sent)
	msg.Payloads.BuildDelete("ike", sa.InitiatorSPI)
	e.recordMessage(sa, msg)

	e.sched.Cancel(dpdKey(saID))
	e.sched.Cancel(rekeyKey(saID))
	e.store.remove(saID)

	e.recordEvent(types.Event_TunnelDown, tunnelID,
		fmt.Sprintf("IKE SA %s deleted, tunnel down", saID),
		map[string]interface{}{"sa": saID})
	e.notifySADeleted(saID)
	return nil
}

// FailNegotiation is the explicit failure-injection hook: it moves an SA
// to the terminal failed state and cleans it up.
func (e *Engine) FailNegotiation(saID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	sa, ok := e.store.sas[saID]
	if !ok {
		return fmt.Errorf("%w: unknown SA %s", ErrPreconditionFailed, saID)
	}
	e.failLocked(sa, reason)
	return nil
}

// failLocked moves an SA to failed and removes it. Caller holds the lock.
func (e *Engine) failLocked(sa *security.IKESA, reason string) {
	if err := e.transition(sa, EventFail); err != nil {
		return
	}
	e.sched.Cancel(dpdKey(sa.ID))
	e.sched.Cancel(rekeyKey(sa.ID))
	e.store.remove(sa.ID)
	e.negotiationsFailed++
	e.recordEvent(types.Event_NegotiationFailed, sa.TunnelID,
		fmt.Sprintf("IKE negotiation failed: %s", reason),
		map[string]interface{}{"sa": sa.ID, "reason": reason})
	e.notifySADeleted(sa.ID)
}

// Read accessors

func (e *Engine) GetSA(saID string) *security.IKESA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.sas[saID]
}

func (e *Engine) GetAllSAs() []*security.IKESA {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*security.IKESA, 0, len(e.store.sas))
	for _, sa := range e.store.sas {
		out = append(out, sa)
	}
	return out
}

func (e *Engine) GetActiveSAs() []*security.IKESA {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*security.IKESA
	for _, sa := range e.store.sas {
		if sa.State.Is(types.State_ESTABLISHED) {
			out = append(out, sa)
		}
	}
	return out
}

// GetSABySPI looks an SA up by its initiator SPI; an empty responder SPI
// matches any.
func (e *Engine) GetSABySPI(initiatorSPI, responderSPI string) *security.IKESA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.bySPI(initiatorSPI, responderSPI)
}

func (e *Engine) GetChildSA(childID string) *security.ChildSA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.children[childID]
}

// GetMessages returns all logged messages, or only those of a live SA.
func (e *Engine) GetMessages(saID string) []*message.IKEMessage {
	if saID == "" {
		return e.msgLog.All()
	}
	e.mu.Lock()
	sa, ok := e.store.sas[saID]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	spi := sa.InitiatorSPI
	return e.msgLog.Filter(func(m *message.IKEMessage) bool {
		return m.InitiatorSPI == spi
	})
}

// GetMessagesBySPI filters by initiator SPI, which stays valid for audit
// even after the SA is gone.
func (e *Engine) GetMessagesBySPI(initiatorSPI string) []*message.IKEMessage {
	return e.msgLog.Filter(func(m *message.IKEMessage) bool {
		return m.InitiatorSPI == initiatorSPI
	})
}

func (e *Engine) GetRecentMessages(n int) []*message.IKEMessage {
	return e.msgLog.Recent(n)
}

func (e *Engine) GetEvents(tunnelID string) []*types.VPNEvent {
	if tunnelID == "" {
		return e.evtLog.All()
	}
	return e.evtLog.Filter(func(evt *types.VPNEvent) bool {
		return evt.TunnelID == tunnelID
	})
}

func (e *Engine) GetRecentEvents(n int) []*types.VPNEvent {
	return e.evtLog.Recent(n)
}

func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Statistics{
		NegotiationsStarted:   e.negotiationsStarted,
		NegotiationsCompleted: e.negotiationsCompleted,
		NegotiationsFailed:    e.negotiationsFailed,
		MessagesExchanged:     e.messagesExchanged,
		RekeyOperations:       e.rekeyOperations,
		TotalSACount:          len(e.store.sas),
		MessageLogSize:        e.msgLog.Len(),
		EventLogSize:          e.evtLog.Len(),
	}
	for _, sa := range e.store.sas {
		if sa.State.Is(types.State_ESTABLISHED) {
			s.ActiveSACount++
		}
	}
	return s
}

func (e *Engine) GetConfig() context.VPNConfig {
	return e.Ctx.GetConfig()
}

func (e *Engine) UpdateConfig(cfg context.VPNConfig) {
	e.Ctx.UpdateConfig(cfg)
}

// Internal helpers. Callers hold the engine lock unless noted.

func dpdKey(saID string) string   { return "dpd-" + saID }
func rekeyKey(saID string) string { return "rekey-" + saID }

func (e *Engine) newMessage(sa *security.IKESA, exchange types.ExchangeType,
	request bool, messageID uint32, direction types.Direction) *message.IKEMessage {
	m := &message.IKEMessage{
		Version:   sa.Version,
		Direction: direction,
	}
	m.BuildIKEHeader(sa.InitiatorSPI, sa.ResponderSPI, exchange, request, messageID)
	if direction == types.Direction_Sent {
		m.SourceIP = sa.LocalIP
		m.DestinationIP = sa.RemoteIP
	} else {
		m.SourceIP = sa.RemoteIP
		m.DestinationIP = sa.LocalIP
	}
	return m
}

func (e *Engine) recordMessage(sa *security.IKESA, m *message.IKEMessage) {
	e.msgSeq++
	m.ID = e.msgSeq
	m.Timestamp = e.clock.Now()
	e.msgLog.Append(m)
	e.messagesExchanged++
	sa.CountMessage(m.Direction, m.SimulatedSize())
	if e.Ctx.GetConfig().LogIKEMessages {
		e.log.Debugf("%s %s message %d on SA %s", m.Direction, m.ExchangeType, m.MessageID, sa.ID)
	}
	e.notifyMessage(m)
}

func (e *Engine) recordEvent(t types.EventType, tunnelID, msg string, detail map[string]interface{}) {
	e.evtSeq++
	evt := &types.VPNEvent{
		ID:        e.evtSeq,
		Timestamp: e.clock.Now(),
		Type:      t,
		TunnelID:  tunnelID,
		Message:   msg,
		Detail:    detail,
		Severity:  types.SeverityOf(t),
	}
	e.evtLog.Append(evt)
	switch evt.Severity {
	case types.Severity_Error:
		e.log.Errorf("[%s] %s", tunnelID, msg)
	case types.Severity_Warning:
		e.log.Warnf("[%s] %s", tunnelID, msg)
	default:
		e.log.Infof("[%s] %s", tunnelID, msg)
	}
	e.notifyEvent(evt)
}

// delay sleeps the configured artificial network latency. Not called with
// the lock held; this is the engine's only suspension point.
func (e *Engine) delay() {
	cfg := e.Ctx.GetConfig()
	if cfg.DelayMaxMs <= 0 {
		return
	}
	d := cfg.DelayMinMs
	if cfg.DelayMaxMs > cfg.DelayMinMs {
		d += e.rnd.Intn(cfg.DelayMaxMs - cfg.DelayMinMs + 1)
	}
	e.clock.Sleep(time.Duration(d) * time.Millisecond)
}

// guard re-acquires the lock after a suspension point and validates that
// the SA is still registered, in the expected state, and the engine still
// running. Anything else means a competing operation (deletion, stop) won
// and the continuation must become a no-op. The caller unlocks on true.
func (e *Engine) guard(saID string, expected fsm.StateType) (*security.IKESA, bool) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil, false
	}
	sa, ok := e.store.sas[saID]
	if !ok || !sa.State.Is(expected) {
		e.mu.Unlock()
		return nil, false
	}
	return sa, true
}
