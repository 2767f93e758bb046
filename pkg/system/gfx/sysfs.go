package gfx

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ColinIanKing/intel-lpmd/pkg/types"
)

// defaultDRMRoot is where the kernel exposes per-GT idle residency.
const defaultDRMRoot = "/sys/class/drm"

// sysfsSource reads two monotonically increasing idle-residency
// counters in milliseconds: one for the render engine, one for the
// media engine when present. Which gt directory holds which engine is
// decided once by reading the gt0 name attribute.
type sysfsSource struct {
	root string

	probed  bool
	rc6Path string // render engine idle residency
	mc6Path string // media engine idle residency, may be empty

	prevTime  time.Time
	rc6Prev   uint64
	rc6PrevOK bool
	mc6Prev   uint64
	mc6PrevOK bool
}

func newSysfsSource(root string) *sysfsSource {
	if root == "" {
		root = defaultDRMRoot
	}
	return &sysfsSource{root: root}
}

func (s *sysfsSource) gtIdlePath(gt int) string {
	return filepath.Join(s.root, "card0", "device", "tile0", fmt.Sprintf("gt%d", gt), "gtidle")
}

// probe decides which gt is the render engine. gt0 named "gt0-rc..."
// means gt0 is render and gt1 media; "gt0-mc..." means the roles are
// swapped. Anything else (or unreadable files) is unsupported.
func (s *sysfsSource) probe() error {
	gt0 := filepath.Join(s.gtIdlePath(0), "idle_residency_ms")
	gt1 := filepath.Join(s.gtIdlePath(1), "idle_residency_ms")
	if _, err := os.ReadFile(gt0); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	name, err := os.ReadFile(filepath.Join(s.gtIdlePath(0), "name"))
	if err != nil {
		return fmt.Errorf("%w: read gt0 name: %v", ErrUnsupported, err)
	}

	switch {
	case strings.HasPrefix(string(name), "gt0-rc"):
		s.rc6Path = gt0
		if readable(gt1) {
			s.mc6Path = gt1
		}
	case strings.HasPrefix(string(name), "gt0-mc"):
		if readable(gt1) {
			s.rc6Path = gt1
		}
		s.mc6Path = gt0
	default:
		return fmt.Errorf("%w: unrecognized gt0 name %q", ErrUnsupported, strings.TrimSpace(string(name)))
	}
	return nil
}

func readable(path string) bool {
	_, err := os.ReadFile(path)
	return err == nil
}

func readCounter(path string) (uint64, bool) {
	if path == "" {
		return 0, false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Sample implements Source. The probing call and the first call per
// engine return no reading; utilization needs two generations.
func (s *sysfsSource) Sample(now time.Time) (types.Percent, error) {
	if !s.probed {
		if err := s.probe(); err != nil {
			return types.Unavailable, err
		}
		s.probed = true
		s.prevTime = now
		return types.Unavailable, nil
	}

	elapsedMS := now.Sub(s.prevTime).Milliseconds()
	s.prevTime = now

	rc6, rc6OK := readCounter(s.rc6Path)
	mc6, mc6OK := readCounter(s.mc6Path)
	if !rc6OK && !mc6OK {
		return types.Unavailable, nil
	}

	// utilization = 100% minus the idle-residency share of the window
	gfxUtil, samUtil := int64(-1), int64(-1)
	if rc6OK {
		if s.rc6PrevOK && elapsedMS > 0 {
			gfxUtil = 10000 - int64(deltaU64(rc6, s.rc6Prev))*10000/elapsedMS
		}
		s.rc6Prev, s.rc6PrevOK = rc6, true
	}
	if mc6OK {
		if s.mc6PrevOK && elapsedMS > 0 {
			samUtil = 10000 - int64(deltaU64(mc6, s.mc6Prev))*10000/elapsedMS
		}
		s.mc6Prev, s.mc6PrevOK = mc6, true
	}

	if samUtil > gfxUtil {
		gfxUtil = samUtil
	}
	if gfxUtil < 0 {
		return types.Unavailable, nil
	}
	return types.Percent(gfxUtil), nil
}

func deltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	// counter regressed (driver reload) or prev unset
	return 0
}
