package resources_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/engine/resources"
)

func TestTracker_AllOrNothing(t *testing.T) {
	tr := resources.NewTracker(4096, 4)

	res1, ok := tr.TryReserve("gcc@13.2.0", 3000, 2)
	require.True(t, ok)

	// RAM would fit, CPU would not: refused entirely.
	_, ok = tr.TryReserve("glibc@2.39.0", 500, 3)
	assert.False(t, ok)

	// CPU would fit, RAM would not: refused entirely.
	_, ok = tr.TryReserve("binutils@2.42.0", 2000, 1)
	assert.False(t, ok)

	ram, cpu := tr.Outstanding()
	assert.Equal(t, 3000, ram)
	assert.Equal(t, 2, cpu)

	tr.Release(res1)
	ram, cpu = tr.Outstanding()
	assert.Zero(t, ram)
	assert.Zero(t, cpu)
}

func TestTracker_FitsIgnoresCurrentUsage(t *testing.T) {
	tr := resources.NewTracker(4096, 4)

	_, ok := tr.TryReserve("gcc@13.2.0", 4096, 4)
	require.True(t, ok)

	// The ceiling is fully reserved, yet a demand within it still fits.
	assert.True(t, tr.Fits(4096, 4))
	assert.False(t, tr.Fits(4097, 1))
	assert.False(t, tr.Fits(1, 5))
}

func TestTracker_DoubleReleaseIsNoop(t *testing.T) {
	tr := resources.NewTracker(1024, 2)

	res, ok := tr.TryReserve("bash@5.2.0", 512, 1)
	require.True(t, ok)

	tr.Release(res)
	tr.Release(res)
	tr.Release(nil)

	ram, cpu := tr.Outstanding()
	assert.Zero(t, ram)
	assert.Zero(t, cpu)
	assert.Zero(t, tr.Active())
}

func TestTracker_CeilingHoldsUnderConcurrency(t *testing.T) {
	const (
		ramCeiling = 8192
		cpuCeiling = 16
		workers    = 64
	)
	tr := resources.NewTracker(ramCeiling, cpuCeiling)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				res, ok := tr.TryReserve("stress@1.0.0", 1024, 2)
				ram, cpu := tr.Outstanding()
				if ram > ramCeiling || cpu > cpuCeiling {
					t.Errorf("ceiling exceeded: ram=%d cpu=%d", ram, cpu)
				}
				if ok {
					tr.Release(res)
				}
			}
		}()
	}
	wg.Wait()

	ram, cpu := tr.Outstanding()
	assert.Zero(t, ram)
	assert.Zero(t, cpu)
}
