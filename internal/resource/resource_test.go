package resource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBattery(t *testing.T, dir string, capacity, status string) {
	t.Helper()
	bat := filepath.Join(dir, "BAT0")
	require.NoError(t, os.MkdirAll(bat, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bat, "type"), []byte("Battery\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(bat, "capacity"), []byte(capacity+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(bat, "status"), []byte(status+"\n"), 0o644))
}

func TestBatteryHysteresis(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// AC adapter entries are ignored
	ac := filepath.Join(dir, "AC")
	require.NoError(t, os.MkdirAll(ac, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ac, "type"), []byte("Mains\n"), 0o644))

	b := NewBatteryAt(dir, 15, 25, nil)

	writeBattery(t, dir, "50", "Discharging")
	assert.True(t, b.Sufficient(ctx))

	writeBattery(t, dir, "14", "Discharging")
	assert.False(t, b.Sufficient(ctx))

	// Above the minimum but below the resume level stays paused
	writeBattery(t, dir, "20", "Discharging")
	assert.False(t, b.Sufficient(ctx))

	writeBattery(t, dir, "25", "Discharging")
	assert.True(t, b.Sufficient(ctx))

	writeBattery(t, dir, "5", "Charging")
	assert.True(t, b.Sufficient(ctx))

	r := b.Read()
	assert.True(t, r.Present)
	assert.Equal(t, 5, r.Percent)
	assert.True(t, r.Charging)
}

func TestBatteryAbsent(t *testing.T) {
	b := NewBatteryAt(filepath.Join(t.TempDir(), "missing"), 15, 25, nil)
	assert.True(t, b.Sufficient(context.Background()))
	assert.False(t, b.Read().Present)
}

func TestHeap(t *testing.T) {
	ctx := context.Background()
	h := NewHeap(100, nil)

	h.readHeap = func() uint64 { return 50 << 20 }
	assert.True(t, h.Sufficient(ctx))

	h.readHeap = func() uint64 { return 150 << 20 }
	assert.False(t, h.Sufficient(ctx))

	assert.True(t, NewHeap(0, nil).Sufficient(ctx))
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	yes := MonitorFunc(func(context.Context) bool { return true })
	no := MonitorFunc(func(context.Context) bool { return false })

	assert.True(t, All().Sufficient(ctx))
	assert.True(t, All(nil, yes).Sufficient(ctx))
	assert.False(t, All(yes, no).Sufficient(ctx))

	calls := 0
	counting := MonitorFunc(func(context.Context) bool { calls++; return true })
	All(no, counting).Sufficient(ctx)
	assert.Equal(t, 1, calls)
}
