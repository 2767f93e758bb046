//go:build linux

package gfx

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// devMSR reads registers through the msr kernel module's per-CPU
// character devices. Requires the msr module and read permission.
type devMSR struct{}

func (devMSR) Read(cpu int, msr int64) (uint64, error) {
	f, err := os.Open(fmt.Sprintf("/dev/cpu/%d/msr", cpu))
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	var buf [8]byte
	n, err := unix.Pread(int(f.Fd()), buf[:], msr)
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, fmt.Errorf("short msr read: %d bytes", n)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func currentCPU() (int, error) {
	cpu, _, err := unix.Getcpu()
	if err != nil {
		return 0, err
	}
	return cpu, nil
}

// NewTracker builds the production tracker: DRM gtidle sysfs with
// permanent fallback to the MSR residency counters.
func NewTracker(logger *slog.Logger) *Tracker {
	return newTracker(newSysfsSource(""), newMSRSource(devMSR{}, currentCPU), logger)
}
