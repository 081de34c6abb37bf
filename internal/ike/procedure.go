package ike

import (
	"fmt"
	"time"

	"vpnsim/internal/ike/message"
	"vpnsim/internal/ike/security"
	"vpnsim/internal/ike/types"
	"vpnsim/internal/task_manager"
)

// negotiation is the in-flight context of one initiator-side negotiation.
// It carries the pre-shared key and is dropped from the store the moment
// the SA establishes.
type negotiation struct {
	e        *Engine
	sa       *security.IKESA
	tunnelID string
	proposal *types.IKEProposal
	psk      string

	childSPI string
	msgID    uint32
}

// IKE_SA_INIT: build SA/KE/NONCE, "send", then after the artificial delay
// synthesize the peer response carrying a fresh responder SPI, and derive
// the session keys.
func (n *negotiation) ikeSAInit(t *task) int {
	e := n.e

	sa, ok := e.guard(n.sa.ID, types.State_INITIATING)
	if !ok {
		return task_manager.Failed
	}
	n.msgID = sa.NextMessageID()

	// Build IKE_SA_INIT request
	req := e.newMessage(sa, types.IKE_SA_INIT, true, n.msgID, types.Direction_Sent)
	req.Payloads.BuildSecurityAssociation(n.proposal)
	req.Payloads.BuildKeyExchange(n.proposal.DHGroup,
		security.Hex(e.rnd, types.DHGroupBitLength(n.proposal.DHGroup)))
	req.Payloads.BuildNonce(security.Nonce(e.rnd))
	e.recordMessage(sa, req)

	if err := e.transition(sa, EventSAInitSend); err != nil {
		e.mu.Unlock()
		return task_manager.Failed
	}
	e.mu.Unlock()

	e.delay()

	sa, ok = e.guard(n.sa.ID, types.State_SA_INIT_SENT)
	if !ok {
		return task_manager.Failed
	}

	// Synthesize peer response
	rspi := security.SPI(e.rnd)
	for rspi == sa.InitiatorSPI || e.store.spiInUse(rspi) {
		rspi = security.SPI(e.rnd)
	}
	sa.ResponderSPI = rspi

	res := e.newMessage(sa, types.IKE_SA_INIT, false, n.msgID, types.Direction_Received)
	res.Payloads.BuildSecurityAssociation(n.proposal)
	res.Payloads.BuildKeyExchange(n.proposal.DHGroup,
		security.Hex(e.rnd, types.DHGroupBitLength(n.proposal.DHGroup)))
	res.Payloads.BuildNonce(security.Nonce(e.rnd))
	e.recordMessage(sa, res)

	if err := e.transition(sa, EventSAInitRecv); err != nil {
		e.mu.Unlock()
		return task_manager.Failed
	}

	// Simulated DH completed on both sides; derive SK_* material
	sa.DeriveKeys(e.rnd, n.proposal)
	e.mu.Unlock()

	return task_manager.Success
}

// IKE_AUTH: identities, AUTH digests, the first child (ESP) SA proposal
// and full-range traffic selectors, all inside an SK container.
func (n *negotiation) ikeAuth(t *task) int {
	e := n.e

	sa, ok := e.guard(n.sa.ID, types.State_SA_INIT_RECEIVED)
	if !ok {
		return task_manager.Failed
	}
	n.msgID = sa.NextMessageID()
	n.childSPI = security.ChildSPI(e.rnd)

	cfg := e.Ctx.GetConfig()
	esp := types.ESPFromIKE(n.proposal, cfg.IPSecLifetime)

	// Build encrypted payload container
	var inner message.IKEPayloadContainer
	inner.BuildIdentificationInitiator("ipv4", sa.LocalIP)
	inner.BuildAuthentication(n.proposal.AuthMethod, security.Hex(e.rnd, 160))
	inner.BuildChildSecurityAssociation(esp, n.childSPI)
	inner.BuildTrafficSelectorInitiator(security.FullRangeSelector())
	inner.BuildTrafficSelectorResponder(security.FullRangeSelector())

	req := e.newMessage(sa, types.IKE_AUTH, true, n.msgID, types.Direction_Sent)
	req.Payloads.BuildEncrypted(inner)
	e.recordMessage(sa, req)

	if err := e.transition(sa, EventAuthSend); err != nil {
		e.mu.Unlock()
		return task_manager.Failed
	}
	e.mu.Unlock()

	e.delay()

	sa, ok = e.guard(n.sa.ID, types.State_AUTH_SENT)
	if !ok {
		return task_manager.Failed
	}

	// Synthesize peer AUTH response with its identity and accepted child SA
	var resInner message.IKEPayloadContainer
	resInner.BuildIdentificationResponder("ipv4", sa.RemoteIP)
	resInner.BuildAuthentication(n.proposal.AuthMethod, security.Hex(e.rnd, 160))
	resInner.BuildChildSecurityAssociation(esp, security.ChildSPI(e.rnd))
	resInner.BuildTrafficSelectorInitiator(security.FullRangeSelector())
	resInner.BuildTrafficSelectorResponder(security.FullRangeSelector())

	res := e.newMessage(sa, types.IKE_AUTH, false, n.msgID, types.Direction_Received)
	res.Payloads.BuildEncrypted(resInner)
	e.recordMessage(sa, res)

	if err := e.transition(sa, EventAuthRecv); err != nil {
		e.mu.Unlock()
		return task_manager.Failed
	}
	e.mu.Unlock()

	return task_manager.Success
}

// complete finalizes the SA: store the proposal, register the child SA
// pair, start DPD and rekey timers, drop the negotiation context.
func (n *negotiation) complete(t *task) int {
	e := n.e

	sa, ok := e.guard(n.sa.ID, types.State_AUTH_RECEIVED)
	if !ok {
		return task_manager.Failed
	}

	cfg := e.Ctx.GetConfig()
	now := e.clock.Now()

	sa.Proposal = n.proposal
	sa.ExpiresAt = now.Add(time.Duration(n.proposal.LifetimeSeconds) * time.Second)

	// Child (ESP/AH) SA pair
	esp := types.ESPFromIKE(n.proposal, cfg.IPSecLifetime)
	var window uint32
	if cfg.AntiReplayEnabled {
		window = cfg.AntiReplayWindow
	}
	inbound := security.NewChildSA(e.rnd, sa, types.ChildDirection_Inbound,
		cfg.IPSecProtocol, cfg.IPSecMode, esp, window, now)
	inbound.SPI = n.childSPI
	outbound := security.NewChildSA(e.rnd, sa, types.ChildDirection_Outbound,
		cfg.IPSecProtocol, cfg.IPSecMode, esp, window, now)
	e.store.children[inbound.ID] = inbound
	e.store.children[outbound.ID] = outbound
	sa.ChildSAIDs = append(sa.ChildSAIDs, inbound.ID, outbound.ID)

	if err := e.transition(sa, EventEstablish); err != nil {
		e.mu.Unlock()
		return task_manager.Failed
	}

	// The context holds the PSK; it must not outlive the negotiation.
	delete(e.store.negs, sa.ID)

	e.negotiationsCompleted++
	e.recordEvent(types.Event_ChildSAEstablished, n.tunnelID,
		fmt.Sprintf("%s child SA pair installed (SPI %s/%s)", cfg.IPSecProtocol, inbound.SPI, outbound.SPI),
		map[string]interface{}{"sa": sa.ID, "inbound": inbound.SPI, "outbound": outbound.SPI})
	e.recordEvent(types.Event_IKESAEstablished, n.tunnelID,
		fmt.Sprintf("IKE SA established with %s (%s)", sa.RemoteIP, n.proposal.Name),
		map[string]interface{}{
			"sa":           sa.ID,
			"initiatorSPI": sa.InitiatorSPI,
			"responderSPI": sa.ResponderSPI,
		})

	e.startTimersLocked(sa, n.tunnelID)
	e.notifyNegotiationComplete(sa)
	e.mu.Unlock()

	return task_manager.Success
}

// startTimersLocked arms the DPD interval timer and the one-shot rekey
// timer at 90% of the current proposal lifetime.
func (e *Engine) startTimersLocked(sa *security.IKESA, tunnelID string) {
	cfg := e.Ctx.GetConfig()
	saID := sa.ID
	if cfg.DPDEnabled && cfg.DPDInterval > 0 {
		e.sched.Every(dpdKey(saID), time.Duration(cfg.DPDInterval)*time.Second, func() {
			e.dpdProbe(saID, tunnelID)
		})
	}
	rekeyAfter := time.Duration(sa.Proposal.LifetimeSeconds) * time.Second * 9 / 10
	e.sched.After(rekeyKey(saID), rekeyAfter, func() {
		_ = e.InitiateRekey(saID, tunnelID)
	})
}

// rekeyOp drives one CREATE_CHILD_SA rekey exchange.
type rekeyOp struct {
	e        *Engine
	saID     string
	tunnelID string
	msgID    uint32
}

func (r *rekeyOp) request(t *task) int {
	e := r.e

	sa, ok := e.guard(r.saID, types.State_ESTABLISHED)
	if !ok {
		return task_manager.Failed
	}
	if err := e.transition(sa, EventRekeyStart); err != nil {
		e.mu.Unlock()
		return task_manager.Failed
	}
	r.msgID = sa.NextMessageID()

	cfg := e.Ctx.GetConfig()
	group := sa.Proposal.DHGroup
	if cfg.PFSEnabled && cfg.PFSGroup != 0 {
		group = cfg.PFSGroup
	}

	req := e.newMessage(sa, types.CREATE_CHILD_SA, true, r.msgID, types.Direction_Sent)
	req.Payloads.BuildSecurityAssociation(sa.Proposal)
	req.Payloads.BuildNonce(security.Nonce(e.rnd))
	req.Payloads.BuildKeyExchange(group, security.Hex(e.rnd, types.DHGroupBitLength(group)))
	e.recordMessage(sa, req)

	e.recordEvent(types.Event_RekeyInitiated, r.tunnelID,
		fmt.Sprintf("Rekey initiated on IKE SA %s", sa.ID),
		map[string]interface{}{"sa": sa.ID})
	e.mu.Unlock()

	return task_manager.Success
}

func (r *rekeyOp) complete(t *task) int {
	e := r.e

	e.delay()

	sa, ok := e.guard(r.saID, types.State_REKEYING)
	if !ok {
		return task_manager.Failed
	}

	cfg := e.Ctx.GetConfig()
	group := sa.Proposal.DHGroup
	if cfg.PFSEnabled && cfg.PFSGroup != 0 {
		group = cfg.PFSGroup
	}

	// Synthesize peer acceptance
	res := e.newMessage(sa, types.CREATE_CHILD_SA, false, r.msgID, types.Direction_Received)
	res.Payloads.BuildSecurityAssociation(sa.Proposal)
	res.Payloads.BuildNonce(security.Nonce(e.rnd))
	res.Payloads.BuildKeyExchange(group, security.Hex(e.rnd, types.DHGroupBitLength(group)))
	e.recordMessage(sa, res)

	// Fresh SK_* material, extended lifetime
	sa.DeriveKeys(e.rnd, sa.Proposal)
	sa.ExpiresAt = e.clock.Now().Add(time.Duration(sa.Proposal.LifetimeSeconds) * time.Second)

	if err := e.transition(sa, EventRekeyDone); err != nil {
		e.mu.Unlock()
		return task_manager.Failed
	}
	e.rekeyOperations++

	// Reschedule with the current lifetime, which may have changed.
	saID, tunnelID := r.saID, r.tunnelID
	rekeyAfter := time.Duration(sa.Proposal.LifetimeSeconds) * time.Second * 9 / 10
	e.sched.After(rekeyKey(saID), rekeyAfter, func() {
		_ = e.InitiateRekey(saID, tunnelID)
	})

	e.recordEvent(types.Event_RekeyCompleted, r.tunnelID,
		fmt.Sprintf("Rekey completed on IKE SA %s", sa.ID),
		map[string]interface{}{"sa": sa.ID, "expiresAt": sa.ExpiresAt})
	e.notifyRekeyComplete(sa)
	e.mu.Unlock()

	return task_manager.Success
}

// dpdProbe runs on each DPD timer fire. If the SA has left established by
// the time the fire is delivered, the timer self-cancels instead of acting
// on stale state.
func (e *Engine) dpdProbe(saID, tunnelID string) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	sa, ok := e.store.sas[saID]
	if !ok || !sa.State.Is(types.State_ESTABLISHED) {
		e.mu.Unlock()
		e.sched.Cancel(dpdKey(saID))
		return
	}

	msgID := sa.NextMessageID()
	req := e.newMessage(sa, types.INFORMATIONAL, true, msgID, types.Direction_Sent)
	e.recordMessage(sa, req)
	e.recordEvent(types.Event_DPDSent, tunnelID,
		fmt.Sprintf("DPD probe sent on IKE SA %s", sa.ID),
		map[string]interface{}{"sa": sa.ID})
	e.mu.Unlock()

	e.delay()

	sa, ok = e.guard(saID, types.State_ESTABLISHED)
	if !ok {
		return
	}
	res := e.newMessage(sa, types.INFORMATIONAL, false, msgID, types.Direction_Received)
	e.recordMessage(sa, res)
	e.recordEvent(types.Event_DPDReceived, tunnelID,
		fmt.Sprintf("DPD response received on IKE SA %s", sa.ID),
		map[string]interface{}{"sa": sa.ID})
	e.mu.Unlock()
}
