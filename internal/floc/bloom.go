package floc

import "time"

// bloom is a 64-bit two-hash duplicate filter over packet fingerprints,
// reset every BloomReset interval. False positives are tolerated: a
// suppressed retry of a genuinely new packet is the accepted cost of a
// fixed-size filter with no rolling eviction.
type bloom struct {
	vector    uint64
	lastReset time.Time
	now       func() time.Time
}

func newBloom(now func() time.Time) *bloom {
	if now == nil {
		now = time.Now
	}
	return &bloom{lastReset: now(), now: now}
}

// cantorKey computes the Cantor pairing of (pid, (dst, src)) and halves it,
// matching the key derivation the duplicate filter hashes into bit
// positions.
func cantorKey(f fingerprint) uint64 {
	pair := func(a, b uint64) uint64 {
		return (a+b)*(a+b+1)/2 + b
	}
	inner := pair(uint64(f.dest), uint64(f.src))
	return pair(uint64(f.pid), inner) / 2
}

func h1(k uint64) uint64 {
	return (k * 31) % 64
}

func h2(k uint64) uint64 {
	return ((k >> 3) ^ (k * 17)) % 64
}

// maybeReset clears the vector if BloomReset has elapsed since the last
// reset, per the 5-minute time-based window.
func (b *bloom) maybeReset() {
	if b.now().Sub(b.lastReset) >= BloomReset {
		b.vector = 0
		b.lastReset = b.now()
	}
}

// contains reports whether both hash bits for f are set.
func (b *bloom) contains(f fingerprint) bool {
	k := cantorKey(f)
	bit1 := uint64(1) << h1(k)
	bit2 := uint64(1) << h2(k)
	return b.vector&bit1 != 0 && b.vector&bit2 != 0
}

// insert sets both hash bits for f.
func (b *bloom) insert(f fingerprint) {
	k := cantorKey(f)
	b.vector |= uint64(1) << h1(k)
	b.vector |= uint64(1) << h2(k)
}
