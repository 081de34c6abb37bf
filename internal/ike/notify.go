package ike

import (
	"bitbucket.org/free5gc-team/fsm"

	"vpnsim/internal/ike/message"
	"vpnsim/internal/ike/security"
	"vpnsim/internal/ike/types"
)

// Observer is the typed notification contract for external consumers
// (visualization, IDS). Callbacks run synchronously on the engine's
// execution path and must not call back into the engine.
type Observer interface {
	OnMessage(msg *message.IKEMessage)
	OnStateChange(saID string, state fsm.StateType)
	OnEvent(evt *types.VPNEvent)
	OnNegotiationComplete(sa *security.IKESA)
	OnRekeyComplete(sa *security.IKESA)
	OnSADeleted(saID string)
}

func (e *Engine) Attach(o Observer) {
	e.obsMtx.Lock()
	defer e.obsMtx.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Engine) Detach(o Observer) {
	e.obsMtx.Lock()
	defer e.obsMtx.Unlock()
	for i, cur := range e.observers {
		if cur == o {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

func (e *Engine) snapshotObservers() []Observer {
	e.obsMtx.RLock()
	defer e.obsMtx.RUnlock()
	out := make([]Observer, len(e.observers))
	copy(out, e.observers)
	return out
}

func (e *Engine) notifyMessage(m *message.IKEMessage) {
	for _, o := range e.snapshotObservers() {
		o.OnMessage(m)
	}
}

func (e *Engine) notifyStateChange(saID string, state fsm.StateType) {
	for _, o := range e.snapshotObservers() {
		o.OnStateChange(saID, state)
	}
}

func (e *Engine) notifyEvent(evt *types.VPNEvent) {
	for _, o := range e.snapshotObservers() {
		o.OnEvent(evt)
	}
}

func (e *Engine) notifyNegotiationComplete(sa *security.IKESA) {
	for _, o := range e.snapshotObservers() {
		o.OnNegotiationComplete(sa)
	}
}

func (e *Engine) notifyRekeyComplete(sa *security.IKESA) {
	for _, o := range e.snapshotObservers() {
		o.OnRekeyComplete(sa)
	}
}

func (e *Engine) notifySADeleted(saID string) {
	for _, o := range e.snapshotObservers() {
		o.OnSADeleted(saID)
	}
}
