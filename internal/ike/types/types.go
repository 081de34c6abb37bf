package types

import (
	"strings"
	"time"

	"bitbucket.org/free5gc-team/fsm"
)

// IKE exchange types
type ExchangeType string

const (
	IKE_SA_INIT     ExchangeType = "IKE_SA_INIT"
	IKE_AUTH        ExchangeType = "IKE_AUTH"
	CREATE_CHILD_SA ExchangeType = "CREATE_CHILD_SA"
	INFORMATIONAL   ExchangeType = "INFORMATIONAL"
)

// IKE payload types
type PayloadType string

const (
	TypeSA   PayloadType = "SA"
	TypeKE   PayloadType = "KE"
	TypeIDi  PayloadType = "IDi"
	TypeIDr  PayloadType = "IDr"
	TypeAUTH PayloadType = "AUTH"
	TypeNiNr PayloadType = "NONCE"
	TypeSK   PayloadType = "SK"
	TypeTSi  PayloadType = "TSi"
	TypeTSr  PayloadType = "TSr"
	TypeD    PayloadType = "D"
	TypeN    PayloadType = "N"
	TypeV    PayloadType = "V"
	TypeCP   PayloadType = "CP"
)

// IKE SA states. Transitions are strictly forward except
// established <-> rekeying; any non-terminal state may fail.
// deleting and failed are terminal.
const (
	State_IDLE             fsm.StateType = "idle"
	State_INITIATING       fsm.StateType = "initiating"
	State_RESPONDING       fsm.StateType = "responding"
	State_SA_INIT_SENT     fsm.StateType = "sa_init_sent"
	State_SA_INIT_RECEIVED fsm.StateType = "sa_init_received"
	State_AUTH_SENT        fsm.StateType = "auth_sent"
	State_AUTH_RECEIVED    fsm.StateType = "auth_received"
	State_ESTABLISHED      fsm.StateType = "established"
	State_REKEYING         fsm.StateType = "rekeying"
	State_DELETING         fsm.StateType = "deleting"
	State_FAILED           fsm.StateType = "failed"
)

// Roles
type Role string

const (
	Role_Initiator Role = "initiator"
	Role_Responder Role = "responder"
)

// Message directions
type Direction string

const (
	Direction_Sent     Direction = "sent"
	Direction_Received Direction = "received"
)

// Child SA directions
const (
	ChildDirection_Inbound  = "inbound"
	ChildDirection_Outbound = "outbound"
)

// Diffie-Hellman group simulated key bit lengths. Only the length is
// modeled; no modular arithmetic happens anywhere in this repository.
var dhGroupBits = map[uint16]int{
	1:  768,
	2:  1024,
	5:  1536,
	14: 2048,
	15: 3072,
	16: 4096,
	17: 6144,
	18: 8192,
	19: 256,
	20: 384,
	21: 521,
}

func DHGroupBitLength(group uint16) int {
	if bits, ok := dhGroupBits[group]; ok {
		return bits
	}
	return 1024
}

// KeyBitLength maps a negotiated encryption algorithm name to the derived
// key size: 256-bit for "...256..." ciphers, 128-bit otherwise.
func KeyBitLength(encryption string) int {
	if strings.Contains(encryption, "256") {
		return 256
	}
	return 128
}

// VPN event types
type EventType string

const (
	Event_NegotiationStarted  EventType = "negotiation_started"
	Event_IKESAEstablished    EventType = "ike_sa_established"
	Event_ChildSAEstablished  EventType = "child_sa_established"
	Event_RekeyInitiated      EventType = "rekey_initiated"
	Event_RekeyCompleted      EventType = "rekey_completed"
	Event_DPDSent             EventType = "dpd_sent"
	Event_DPDReceived         EventType = "dpd_received"
	Event_TunnelDown          EventType = "tunnel_down"
	Event_NegotiationFailed   EventType = "negotiation_failed"
	Event_AuthFailed          EventType = "auth_failed"
	Event_ReplayDetected      EventType = "replay_detected"
)

type Severity string

const (
	Severity_Info    Severity = "info"
	Severity_Warning Severity = "warning"
	Severity_Error   Severity = "error"
)

// SeverityOf classifies an event type. Classification lives here, once,
// so call sites never pick severities themselves.
func SeverityOf(t EventType) Severity {
	switch t {
	case Event_NegotiationFailed, Event_AuthFailed, Event_ReplayDetected:
		return Severity_Error
	case Event_TunnelDown:
		return Severity_Warning
	default:
		return Severity_Info
	}
}

// VPNEvent is an immutable narrative record kept in the bounded event log.
type VPNEvent struct {
	ID        uint64
	Timestamp time.Time
	Type      EventType
	TunnelID  string
	Message   string
	Detail    map[string]interface{}
	Severity  Severity
}
