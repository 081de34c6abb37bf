package ike

import (
	"bitbucket.org/free5gc-team/fsm"

	"vpnsim/internal/ike/security"
	"vpnsim/internal/ike/types"
)

// State machine events
const (
	EventInitiate   fsm.EventType = "Initiate"
	EventRespond    fsm.EventType = "Respond"
	EventSAInitSend fsm.EventType = "SAInitSend"
	EventSAInitRecv fsm.EventType = "SAInitRecv"
	EventAuthSend   fsm.EventType = "AuthSend"
	EventAuthRecv   fsm.EventType = "AuthRecv"
	EventEstablish  fsm.EventType = "Establish"
	EventRekeyStart fsm.EventType = "RekeyStart"
	EventRekeyDone  fsm.EventType = "RekeyDone"
	EventDelete     fsm.EventType = "Delete"
	EventFail       fsm.EventType = "Fail"
)

var nonTerminalStates = []fsm.StateType{
	types.State_IDLE,
	types.State_INITIATING,
	types.State_RESPONDING,
	types.State_SA_INIT_SENT,
	types.State_SA_INIT_RECEIVED,
	types.State_AUTH_SENT,
	types.State_AUTH_RECEIVED,
	types.State_ESTABLISHED,
	types.State_REKEYING,
}

// ikeFSM is the shared transition table. Per-SA position lives in the
// SA's fsm.State; SendEvent rejects anything not listed here, which is
// what keeps transitions strictly forward.
var ikeFSM *fsm.FSM

func init() {
	transitions := fsm.Transitions{
		{Event: EventInitiate, From: types.State_IDLE, To: types.State_INITIATING},
		{Event: EventRespond, From: types.State_IDLE, To: types.State_RESPONDING},
		{Event: EventSAInitSend, From: types.State_INITIATING, To: types.State_SA_INIT_SENT},
		{Event: EventSAInitRecv, From: types.State_SA_INIT_SENT, To: types.State_SA_INIT_RECEIVED},
		{Event: EventSAInitRecv, From: types.State_RESPONDING, To: types.State_SA_INIT_RECEIVED},
		{Event: EventAuthSend, From: types.State_SA_INIT_RECEIVED, To: types.State_AUTH_SENT},
		{Event: EventAuthRecv, From: types.State_AUTH_SENT, To: types.State_AUTH_RECEIVED},
		{Event: EventEstablish, From: types.State_AUTH_RECEIVED, To: types.State_ESTABLISHED},
		{Event: EventRekeyStart, From: types.State_ESTABLISHED, To: types.State_REKEYING},
		{Event: EventRekeyDone, From: types.State_REKEYING, To: types.State_ESTABLISHED},
	}
	for _, s := range nonTerminalStates {
		transitions = append(transitions,
			fsm.Transition{Event: EventDelete, From: s, To: types.State_DELETING},
			fsm.Transition{Event: EventFail, From: s, To: types.State_FAILED},
		)
	}

	var err error
	ikeFSM, err = fsm.NewFSM(transitions, fsm.Callbacks{})
	if err != nil {
		panic(err)
	}
}

// saStore owns the authoritative SA map plus the in-flight negotiation
// contexts (which carry the PSK and are dropped on establishment) and the
// child SAs. Callers hold the engine lock.
type saStore struct {
	sas      map[string]*security.IKESA
	negs     map[string]*negotiation
	children map[string]*security.ChildSA
}

func newSAStore() *saStore {
	return &saStore{
		sas:      make(map[string]*security.IKESA),
		negs:     make(map[string]*negotiation),
		children: make(map[string]*security.ChildSA),
	}
}

func (s *saStore) bySPI(initiatorSPI, responderSPI string) *security.IKESA {
	for _, sa := range s.sas {
		if sa.InitiatorSPI != initiatorSPI {
			continue
		}
		if responderSPI != "" && sa.ResponderSPI != responderSPI {
			continue
		}
		return sa
	}
	return nil
}

func (s *saStore) spiInUse(spi string) bool {
	for _, sa := range s.sas {
		if sa.InitiatorSPI == spi || sa.ResponderSPI == spi {
			return true
		}
	}
	return false
}

// remove drops an SA together with its negotiation context and children.
func (s *saStore) remove(saID string) {
	if sa, ok := s.sas[saID]; ok {
		for _, childID := range sa.ChildSAIDs {
			delete(s.children, childID)
		}
	}
	delete(s.negs, saID)
	delete(s.sas, saID)
}

// transition is the single choke point for SA state changes. It stamps
// LastActivity and notifies observers; invalid events surface as errors
// and leave the state untouched.
func (e *Engine) transition(sa *security.IKESA, event fsm.EventType) error {
	if err := ikeFSM.SendEvent(sa.State, event, nil); err != nil {
		return err
	}
	sa.LastActivity = e.clock.Now()
	newState := sa.State.Current()
	e.log.Debugf("SA %s -> %s (%s)", sa.ID, newState, event)
	e.notifyStateChange(sa.ID, newState)
	return nil
}
