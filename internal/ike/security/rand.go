package security

import (
	"encoding/hex"
	"math/rand"
	"sync"
)

// Rand is the randomness source behind every simulated SPI, nonce and key.
// Correctness here is about shape (byte length, hex encoding), not entropy,
// so a seeded math/rand source is deliberate: tests inject fixed seeds.
type Rand interface {
	Uint64() uint64
	Intn(n int) int
}

type lockedRand struct {
	mtx sync.Mutex
	r   *rand.Rand
}

func NewRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Uint64() uint64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.r.Uint64()
}

func (l *lockedRand) Intn(n int) int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.r.Intn(n)
}

// Hex returns bitLen bits of simulated material, hex encoded. Bit lengths
// that are not byte multiples (DH group 21 is 521) round up to whole bytes.
func Hex(r Rand, bitLen int) string {
	n := (bitLen + 7) / 8
	b := make([]byte, n)
	for i := 0; i < n; i += 8 {
		v := r.Uint64()
		for j := 0; j < 8 && i+j < n; j++ {
			b[i+j] = byte(v >> (8 * uint(j)))
		}
	}
	return hex.EncodeToString(b)
}

// SPI returns a 64-bit IKE SPI as 16 hex characters.
func SPI(r Rand) string {
	return Hex(r, 64)
}

// ChildSPI returns a 32-bit ESP/AH SPI as 8 hex characters.
func ChildSPI(r Rand) string {
	return Hex(r, 32)
}

// Nonce returns a nonce of the conventional 256-bit simulated size.
func Nonce(r Rand) string {
	return Hex(r, 256)
}
