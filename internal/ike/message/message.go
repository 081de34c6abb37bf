package message

import (
	"fmt"
	"time"

	"vpnsim/internal/ike/security"
	"vpnsim/internal/ike/types"
)

// IKEMessage is an immutable record of one exchange leg. Messages exist
// for audit and visualization only; nothing decodes them back.
type IKEMessage struct {
	ID            uint64
	Timestamp     time.Time
	Version       string
	ExchangeType  types.ExchangeType
	InitiatorSPI  string
	ResponderSPI  string
	IsRequest     bool
	MessageID     uint32
	Payloads      IKEPayloadContainer
	Direction     types.Direction
	SourceIP      string
	DestinationIP string
}

func (m *IKEMessage) BuildIKEHeader(initiatorSPI, responderSPI string,
	exchangeType types.ExchangeType, request bool, messageID uint32) {
	m.InitiatorSPI = initiatorSPI
	m.ResponderSPI = responderSPI
	m.ExchangeType = exchangeType
	m.IsRequest = request
	m.MessageID = messageID
}

// SimulatedSize approximates the on-wire size for the SA byte counters.
func (m *IKEMessage) SimulatedSize() uint64 {
	size := uint64(28) // fixed IKE header
	for _, p := range m.Payloads.Flatten() {
		size += 4 + uint64(len(p.Description()))
	}
	return size
}

// IKEPayload is the typed union of payload kinds.
type IKEPayload interface {
	Type() types.PayloadType
	Description() string
}

type IKEPayloadContainer []IKEPayload

func (c *IKEPayloadContainer) Reset() {
	*c = nil
}

// Flatten expands SK containers so audits see inner payloads too.
func (c IKEPayloadContainer) Flatten() []IKEPayload {
	var out []IKEPayload
	for _, p := range c {
		out = append(out, p)
		if sk, ok := p.(*Encrypted); ok {
			out = append(out, sk.Payloads.Flatten()...)
		}
	}
	return out
}

type SecurityAssociation struct {
	IKEProposal *types.IKEProposal
	ESPProposal *types.ESPProposal
	ChildSPI    string
}

func (p *SecurityAssociation) Type() types.PayloadType { return types.TypeSA }
func (p *SecurityAssociation) Description() string {
	if p.IKEProposal != nil {
		return fmt.Sprintf("SA proposal %s (%s/%s/group%d)",
			p.IKEProposal.Name, p.IKEProposal.Encryption, p.IKEProposal.PRF, p.IKEProposal.DHGroup)
	}
	if p.ESPProposal != nil {
		return fmt.Sprintf("ESP proposal (%s/%s) SPI %s",
			p.ESPProposal.Encryption, p.ESPProposal.Integrity, p.ChildSPI)
	}
	return "SA proposal (empty)"
}

type KeyExchange struct {
	DiffieHellmanGroup uint16
	BitLength          int
	PublicValue        string
}

func (p *KeyExchange) Type() types.PayloadType { return types.TypeKE }
func (p *KeyExchange) Description() string {
	return fmt.Sprintf("KE group %d (%d-bit simulated public value)", p.DiffieHellmanGroup, p.BitLength)
}

type Nonce struct {
	NonceData string
}

func (p *Nonce) Type() types.PayloadType { return types.TypeNiNr }
func (p *Nonce) Description() string {
	return fmt.Sprintf("Nonce (%d-bit)", len(p.NonceData)*4)
}

type IdentificationInitiator struct {
	IDType string
	IDData string
}

func (p *IdentificationInitiator) Type() types.PayloadType { return types.TypeIDi }
func (p *IdentificationInitiator) Description() string {
	return fmt.Sprintf("IDi %s %s", p.IDType, p.IDData)
}

type IdentificationResponder struct {
	IDType string
	IDData string
}

func (p *IdentificationResponder) Type() types.PayloadType { return types.TypeIDr }
func (p *IdentificationResponder) Description() string {
	return fmt.Sprintf("IDr %s %s", p.IDType, p.IDData)
}

type Authentication struct {
	Method   string
	AuthData string
}

func (p *Authentication) Type() types.PayloadType { return types.TypeAUTH }
func (p *Authentication) Description() string {
	return fmt.Sprintf("AUTH %s (%d-bit simulated digest)", p.Method, len(p.AuthData)*4)
}

// Encrypted is the SK container; inner payloads are kept in clear since no
// real encryption happens.
type Encrypted struct {
	Payloads IKEPayloadContainer
}

func (p *Encrypted) Type() types.PayloadType { return types.TypeSK }
func (p *Encrypted) Description() string {
	return fmt.Sprintf("SK container (%d payloads)", len(p.Payloads))
}

type TrafficSelectorInitiator struct {
	Selectors []security.TrafficSelector
}

func (p *TrafficSelectorInitiator) Type() types.PayloadType { return types.TypeTSi }
func (p *TrafficSelectorInitiator) Description() string {
	return fmt.Sprintf("TSi %s", selectorString(p.Selectors))
}

type TrafficSelectorResponder struct {
	Selectors []security.TrafficSelector
}

func (p *TrafficSelectorResponder) Type() types.PayloadType { return types.TypeTSr }
func (p *TrafficSelectorResponder) Description() string {
	return fmt.Sprintf("TSr %s", selectorString(p.Selectors))
}

func selectorString(sel []security.TrafficSelector) string {
	if len(sel) == 0 {
		return "(none)"
	}
	s := sel[0].CIDR
	for _, ts := range sel[1:] {
		s += "," + ts.CIDR
	}
	return s
}

type Delete struct {
	Protocol string
	SPIs     []string
}

func (p *Delete) Type() types.PayloadType { return types.TypeD }
func (p *Delete) Description() string {
	return fmt.Sprintf("Delete %s (%d SPI)", p.Protocol, len(p.SPIs))
}

type Notification struct {
	NotifyType string
	Data       string
}

func (p *Notification) Type() types.PayloadType { return types.TypeN }
func (p *Notification) Description() string {
	return fmt.Sprintf("N(%s)", p.NotifyType)
}

type VendorID struct {
	Data string
}

func (p *VendorID) Type() types.PayloadType { return types.TypeV }
func (p *VendorID) Description() string     { return "Vendor ID" }

type Configuration struct {
	CfgType    string
	Attributes map[string]string
}

func (p *Configuration) Type() types.PayloadType { return types.TypeCP }
func (p *Configuration) Description() string {
	return fmt.Sprintf("CP %s (%d attributes)", p.CfgType, len(p.Attributes))
}
