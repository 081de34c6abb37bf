package message

import (
	"vpnsim/internal/ike/security"
	"vpnsim/internal/ike/types"
)

// Builder helpers append a payload and return it for further filling,
// mirroring the usual IKE payload container API.

func (c *IKEPayloadContainer) BuildSecurityAssociation(ike *types.IKEProposal) *SecurityAssociation {
	sa := &SecurityAssociation{IKEProposal: ike}
	*c = append(*c, sa)
	return sa
}

func (c *IKEPayloadContainer) BuildChildSecurityAssociation(esp *types.ESPProposal, childSPI string) *SecurityAssociation {
	sa := &SecurityAssociation{ESPProposal: esp, ChildSPI: childSPI}
	*c = append(*c, sa)
	return sa
}

func (c *IKEPayloadContainer) BuildKeyExchange(group uint16, publicValue string) *KeyExchange {
	ke := &KeyExchange{
		DiffieHellmanGroup: group,
		BitLength:          types.DHGroupBitLength(group),
		PublicValue:        publicValue,
	}
	*c = append(*c, ke)
	return ke
}

func (c *IKEPayloadContainer) BuildNonce(nonce string) *Nonce {
	n := &Nonce{NonceData: nonce}
	*c = append(*c, n)
	return n
}

func (c *IKEPayloadContainer) BuildIdentificationInitiator(idType, idData string) *IdentificationInitiator {
	id := &IdentificationInitiator{IDType: idType, IDData: idData}
	*c = append(*c, id)
	return id
}

func (c *IKEPayloadContainer) BuildIdentificationResponder(idType, idData string) *IdentificationResponder {
	id := &IdentificationResponder{IDType: idType, IDData: idData}
	*c = append(*c, id)
	return id
}

func (c *IKEPayloadContainer) BuildAuthentication(method, authData string) *Authentication {
	a := &Authentication{Method: method, AuthData: authData}
	*c = append(*c, a)
	return a
}

func (c *IKEPayloadContainer) BuildEncrypted(inner IKEPayloadContainer) *Encrypted {
	sk := &Encrypted{Payloads: inner}
	*c = append(*c, sk)
	return sk
}

func (c *IKEPayloadContainer) BuildTrafficSelectorInitiator(sel ...security.TrafficSelector) *TrafficSelectorInitiator {
	ts := &TrafficSelectorInitiator{Selectors: sel}
	*c = append(*c, ts)
	return ts
}

func (c *IKEPayloadContainer) BuildTrafficSelectorResponder(sel ...security.TrafficSelector) *TrafficSelectorResponder {
	ts := &TrafficSelectorResponder{Selectors: sel}
	*c = append(*c, ts)
	return ts
}

func (c *IKEPayloadContainer) BuildDelete(protocol string, spis ...string) *Delete {
	d := &Delete{Protocol: protocol, SPIs: spis}
	*c = append(*c, d)
	return d
}

func (c *IKEPayloadContainer) BuildNotification(notifyType, data string) *Notification {
	n := &Notification{NotifyType: notifyType, Data: data}
	*c = append(*c, n)
	return n
}

func (c *IKEPayloadContainer) BuildVendorID(data string) *VendorID {
	v := &VendorID{Data: data}
	*c = append(*c, v)
	return v
}

func (c *IKEPayloadContainer) BuildConfiguration(cfgType string, attrs map[string]string) *Configuration {
	cp := &Configuration{CfgType: cfgType, Attributes: attrs}
	*c = append(*c, cp)
	return cp
}
