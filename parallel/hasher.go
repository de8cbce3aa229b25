package parallel

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"sync"
)

const blockLabels = 32

// Hasher computes a sha256 fingerprint of n uint16 labels that may be put
// from many goroutines in any order. Labels are hashed in index order as soon
// as every label of the next 64 byte block is known.
type Hasher struct {
	mut    sync.Mutex
	sha    hash.Hash
	n      int
	ate    int
	filled []uint8
	seen   []uint64
	data   [][2 * blockLabels]byte
}

// NewHasher prepares a hasher for n labels. The shape values are hashed ahead
// of the labels.
func NewHasher(n int, shape ...int) *Hasher {
	blocks := (n + blockLabels - 1) / blockLabels
	h := &Hasher{
		sha:    sha256.New(),
		n:      n,
		filled: make([]uint8, blocks),
		seen:   make([]uint64, (n+63)/64),
		data:   make([][2 * blockLabels]byte, blocks),
	}
	var size [8]byte
	for _, v := range append([]int{n}, shape...) {
		binary.LittleEndian.PutUint64(size[:], uint64(v))
		h.sha.Write(size[:])
	}
	return h
}

func (h *Hasher) blockLen(block int) int {
	if rest := h.n - block*blockLabels; rest < blockLabels {
		return rest
	}
	return blockLabels
}

// MustPut stores label value at position n. It panics when n is out of range
// or was already put.
func (h *Hasher) MustPut(n int, value uint16) {
	if n < 0 || n >= h.n {
		panic("label position out of range")
	}
	h.mut.Lock()
	defer h.mut.Unlock()

	if h.seen[n/64]&(1<<(n%64)) != 0 {
		panic("duplicate label write")
	}
	h.seen[n/64] |= 1 << (n % 64)

	block := n / blockLabels
	binary.LittleEndian.PutUint16(h.data[block][2*(n%blockLabels):], value)
	h.filled[block]++

	for h.ate < len(h.data) && int(h.filled[h.ate]) == h.blockLen(h.ate) {
		h.sha.Write(h.data[h.ate][:2*h.blockLen(h.ate)])
		h.ate++
	}
}

// Sum returns the fingerprint. Labels never put hash as zero.
func (h *Hasher) Sum() (ret [32]byte) {
	h.mut.Lock()
	defer h.mut.Unlock()
	for h.ate < len(h.data) {
		h.sha.Write(h.data[h.ate][:2*h.blockLen(h.ate)])
		h.ate++
	}
	copy(ret[:], h.sha.Sum(nil))
	return
}
