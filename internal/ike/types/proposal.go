package types

// Encryption algorithm names
const (
	String_ENCR_AES_GCM_256 = "aes-256-gcm"
	String_ENCR_AES_CBC_256 = "aes-256-cbc"
	String_ENCR_AES_CBC_128 = "aes-128-cbc"
	String_ENCR_3DES_CBC    = "3des-cbc"
)

// PRF / hash names
const (
	String_PRF_HMAC_SHA2_512 = "hmac-sha2-512"
	String_PRF_HMAC_SHA2_256 = "hmac-sha2-256"
	String_PRF_HMAC_SHA1     = "hmac-sha1"
	String_PRF_HMAC_MD5      = "hmac-md5"
)

// Authentication method names
const (
	String_AUTH_PSK     = "pre-shared-key"
	String_AUTH_RSA_SIG = "rsa-signature"
)

// IKEProposal is a negotiated-algorithm bundle. Never mutated after
// creation; engines hold pointers into the catalog or private copies.
type IKEProposal struct {
	Name            string
	Encryption      string
	PRF             string
	DHGroup         uint16
	AuthMethod      string
	LifetimeSeconds int
}

// ESPProposal is the child SA counterpart.
type ESPProposal struct {
	Encryption      string
	Integrity       string
	LifetimeSeconds int
}

// Proposals is the catalog callers pick from. The combinations are
// realistic pairings, not recommendations.
var Proposals = map[string]*IKEProposal{
	"strong": {
		Name:            "strong",
		Encryption:      String_ENCR_AES_GCM_256,
		PRF:             String_PRF_HMAC_SHA2_512,
		DHGroup:         20,
		AuthMethod:      String_AUTH_PSK,
		LifetimeSeconds: 3600,
	},
	"balanced": {
		Name:            "balanced",
		Encryption:      String_ENCR_AES_CBC_256,
		PRF:             String_PRF_HMAC_SHA2_256,
		DHGroup:         14,
		AuthMethod:      String_AUTH_PSK,
		LifetimeSeconds: 28800,
	},
	"compatible": {
		Name:            "compatible",
		Encryption:      String_ENCR_AES_CBC_128,
		PRF:             String_PRF_HMAC_SHA1,
		DHGroup:         5,
		AuthMethod:      String_AUTH_PSK,
		LifetimeSeconds: 28800,
	},
	"legacy": {
		Name:            "legacy",
		Encryption:      String_ENCR_3DES_CBC,
		PRF:             String_PRF_HMAC_MD5,
		DHGroup:         2,
		AuthMethod:      String_AUTH_PSK,
		LifetimeSeconds: 86400,
	},
}

// ESPFromIKE derives the child SA proposal offered during IKE_AUTH.
func ESPFromIKE(p *IKEProposal, lifetimeSeconds int) *ESPProposal {
	return &ESPProposal{
		Encryption:      p.Encryption,
		Integrity:       p.PRF,
		LifetimeSeconds: lifetimeSeconds,
	}
}
