package security

import (
	"fmt"
	"time"

	"bitbucket.org/free5gc-team/fsm"

	"vpnsim/internal/ike/types"
)

// SessionKeys holds the seven SK_* placeholders derived once the simulated
// DH and auth phases complete. All empty until then.
type SessionKeys struct {
	SKd  string
	SKai string
	SKar string
	SKei string
	SKer string
	SKpi string
	SKpr string
}

func (k *SessionKeys) Complete() bool {
	return k.SKd != "" && k.SKai != "" && k.SKar != "" &&
		k.SKei != "" && k.SKer != "" && k.SKpi != "" && k.SKpr != ""
}

// IKESA is the principal entity. It is owned by the engine's SA store and
// mutated only under the engine lock, state changes only through the
// store's transition function.
type IKESA struct {
	ID           string
	TunnelID     string
	Version      string
	Role         types.Role
	InitiatorSPI string
	ResponderSPI string
	LocalIP      string
	RemoteIP     string
	State        *fsm.State
	Proposal     *types.IKEProposal
	Keys         SessionKeys

	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time

	ChildSAIDs []string

	PacketsOut uint64
	PacketsIn  uint64
	BytesOut   uint64
	BytesIn    uint64

	nextMessageID uint32
}

func NewIKESA(r Rand, id, tunnelID, version, localIP, remoteIP string, now time.Time) *IKESA {
	return &IKESA{
		ID:           id,
		TunnelID:     tunnelID,
		Version:      version,
		Role:         types.Role_Initiator,
		InitiatorSPI: SPI(r),
		LocalIP:      localIP,
		RemoteIP:     remoteIP,
		State:        fsm.NewState(types.State_IDLE),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// NextMessageID allocates the id shared by a request/response pair.
// Strictly increasing per SA; caller holds the engine lock.
func (sa *IKESA) NextMessageID() uint32 {
	id := sa.nextMessageID
	sa.nextMessageID++
	return id
}

// DeriveKeys fills all SK_* placeholders. The simulated DH shared secret is
// sized to the negotiated group, the session keys to the cipher strength.
func (sa *IKESA) DeriveKeys(r Rand, proposal *types.IKEProposal) {
	// Shared secret exists only to model the derivation input.
	_ = Hex(r, types.DHGroupBitLength(proposal.DHGroup))
	keyBits := types.KeyBitLength(proposal.Encryption)
	sa.Keys = SessionKeys{
		SKd:  Hex(r, keyBits),
		SKai: Hex(r, keyBits),
		SKar: Hex(r, keyBits),
		SKei: Hex(r, keyBits),
		SKer: Hex(r, keyBits),
		SKpi: Hex(r, keyBits),
		SKpr: Hex(r, keyBits),
	}
}

func (sa *IKESA) CountMessage(direction types.Direction, bytes uint64) {
	switch direction {
	case types.Direction_Sent:
		sa.PacketsOut++
		sa.BytesOut += bytes
	case types.Direction_Received:
		sa.PacketsIn++
		sa.BytesIn += bytes
	}
}

// TrafficSelector is a simulated IPSec selector.
type TrafficSelector struct {
	CIDR     string
	Port     uint16
	Protocol uint8
}

// FullRangeSelector matches everything, the selector offered in IKE_AUTH.
func FullRangeSelector() TrafficSelector {
	return TrafficSelector{CIDR: "0.0.0.0/0"}
}

// ChildSA models one direction of an IPSec (ESP/AH) SA under a parent
// IKE SA. Deleting the parent cascades to its children.
type ChildSA struct {
	ID        string
	ParentID  string
	SPI       string
	Protocol  string
	Mode      string
	Direction string
	Proposal  *types.ESPProposal

	EncKey  string
	AuthKey string

	SeqNum       uint64
	ReplayWindow uint32

	TSLocal  TrafficSelector
	TSRemote TrafficSelector

	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time

	Packets      uint64
	Bytes        uint64
	ReplayDrops  uint64
	AuthFailures uint64
}

func NewChildSA(r Rand, parent *IKESA, direction, protocol, mode string,
	proposal *types.ESPProposal, replayWindow uint32, now time.Time) *ChildSA {
	keyBits := types.KeyBitLength(proposal.Encryption)
	c := &ChildSA{
		ID:           fmt.Sprintf("%s-%s", parent.ID, direction),
		ParentID:     parent.ID,
		SPI:          ChildSPI(r),
		Protocol:     protocol,
		Mode:         mode,
		Direction:    direction,
		Proposal:     proposal,
		EncKey:       Hex(r, keyBits),
		AuthKey:      Hex(r, 160),
		ReplayWindow: replayWindow,
		TSLocal:      FullRangeSelector(),
		TSRemote:     FullRangeSelector(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(proposal.LifetimeSeconds) * time.Second),
		LastActivity: now,
	}
	return c
}
