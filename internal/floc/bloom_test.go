package floc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBloomInsertThenContains(t *testing.T) {
	b := newBloom(nil)
	fp := fingerprint{pid: 3, dest: 2, src: 1}

	assert.False(t, b.contains(fp))
	b.insert(fp)
	assert.True(t, b.contains(fp))
}

func TestBloomDistinctFingerprintsDoNotCollideInThisCase(t *testing.T) {
	b := newBloom(nil)
	a := fingerprint{pid: 1, dest: 2, src: 3}
	other := fingerprint{pid: 9, dest: 9, src: 9}

	b.insert(a)
	assert.False(t, b.contains(other))
}

func TestBloomResetClearsAfterWindow(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := newBloom(clock)

	fp := fingerprint{pid: 1, dest: 2, src: 3}
	b.insert(fp)
	assert.True(t, b.contains(fp))

	now = now.Add(BloomReset)
	b.maybeReset()
	assert.False(t, b.contains(fp))
}

func TestBloomDoesNotResetBeforeWindowElapses(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := newBloom(clock)

	fp := fingerprint{pid: 1, dest: 2, src: 3}
	b.insert(fp)

	now = now.Add(BloomReset - time.Second)
	b.maybeReset()
	assert.True(t, b.contains(fp))
}

func TestCantorKeyExcludesTTLAndLastHop(t *testing.T) {
	a := fingerprint{pid: 4, dest: 10, src: 20}
	b := fingerprint{pid: 4, dest: 10, src: 20}
	assert.Equal(t, cantorKey(a), cantorKey(b))
}
