package resource

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultPowerSupplyDir is where Linux exposes batteries
const DefaultPowerSupplyDir = "/sys/class/power_supply"

// Battery pauses admission when the battery is discharging and low. Once
// paused it stays paused until the level reaches the resume threshold, so a
// level hovering at the minimum does not flap.
type Battery struct {
	dir         string
	minPercent  int
	resumeLevel int
	logger      *zap.SugaredLogger

	mu     sync.Mutex
	paused bool
}

// NewBattery creates a monitor over DefaultPowerSupplyDir
func NewBattery(minPercent, resumePercent int, logger *zap.SugaredLogger) *Battery {
	return NewBatteryAt(DefaultPowerSupplyDir, minPercent, resumePercent, logger)
}

// NewBatteryAt creates a monitor reading power supplies under dir
func NewBatteryAt(dir string, minPercent, resumePercent int, logger *zap.SugaredLogger) *Battery {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if resumePercent < minPercent {
		resumePercent = minPercent
	}
	return &Battery{
		dir:         dir,
		minPercent:  minPercent,
		resumeLevel: resumePercent,
		logger:      logger,
	}
}

// Reading is one battery sample
type Reading struct {
	Present  bool
	Percent  int
	Charging bool
}

// Read samples the first battery found. Machines without a battery report
// Present=false.
func (b *Battery) Read() Reading {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return Reading{}
	}
	for _, e := range entries {
		supply := filepath.Join(b.dir, e.Name())
		if readAttr(supply, "type") != "Battery" {
			continue
		}
		percent, err := strconv.Atoi(readAttr(supply, "capacity"))
		if err != nil {
			continue
		}
		status := readAttr(supply, "status")
		return Reading{
			Present:  true,
			Percent:  percent,
			Charging: status == "Charging" || status == "Full",
		}
	}
	return Reading{}
}

func (b *Battery) Sufficient(ctx context.Context) bool {
	if b.minPercent <= 0 {
		return true
	}
	r := b.Read()

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case !r.Present || r.Charging:
		if b.paused {
			b.logger.Infow("on external power, resuming admission")
		}
		b.paused = false
	case b.paused && r.Percent >= b.resumeLevel:
		b.logger.Infow("battery recovered, resuming admission", "percent", r.Percent)
		b.paused = false
	case !b.paused && r.Percent < b.minPercent:
		b.logger.Warnw("battery low, pausing admission", "percent", r.Percent, "min_percent", b.minPercent)
		b.paused = true
	}
	return !b.paused
}

func readAttr(dir, name string) string {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
