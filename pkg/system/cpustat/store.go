// Package cpustat computes per-CPU and system-wide busy percentages
// from cumulative kernel scheduler counters (/proc/stat layout). Two
// generations of counters are kept so every Sample call yields deltas
// over the last polling window.
package cpustat

import (
	"bufio"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ColinIanKing/intel-lpmd/pkg/types"
)

// Counter positions within a stat row, in the fixed kernel order.
const (
	statUser = iota
	statNice
	statSystem
	statIdle
	statIOWait
	statIRQ
	statSoftIRQ
	statSteal
	statGuest
	statGuestNice
	statMax
)

type row struct {
	valid bool
	stat  [statMax]uint64
}

// Store is the double-buffered counter snapshot store. One slot per
// logical CPU index plus the aggregate "system" slot at index nCPU.
// It is not safe for concurrent use; the whole decision core runs on
// one logical thread.
type Store struct {
	src    Source
	logger *slog.Logger

	nCPU int
	prev []row
	cur  []row
}

// NewStore builds a store for nCPU logical CPUs reading from src.
// A nil logger falls back to slog.Default().
func NewStore(src Source, nCPU int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if nCPU < 1 {
		nCPU = 1
	}
	return &Store{
		src:    src,
		logger: logger,
		nCPU:   nCPU,
		prev:   make([]row, nCPU+1),
		cur:    make([]row, nCPU+1),
	}
}

// Sample reads the counter source fully, rotates the generations and
// returns the system-wide and worst-core busy percentages in basis
// points. busyCPU is the maximum across valid per-CPU rows, not the
// average: a single saturated core is what overload detection cares
// about. The very first sample reflects cumulative usage since boot;
// callers treat it as a warm-up round.
func (s *Store) Sample() (busySys, busyCPU types.Percent, err error) {
	rc, err := s.src.Open()
	if err != nil {
		return types.Unavailable, types.Unavailable, fmt.Errorf("cpustat: open source: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()

	s.prev, s.cur = s.cur, s.prev
	sysIdx := s.nCPU
	for i := range s.cur {
		// Start from the previous generation so a field that fails to
		// parse this round retains its last-seen value instead of
		// collapsing to zero.
		s.cur[i].stat = s.prev[i].stat
		s.cur[i].valid = false
	}

	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "cpu") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		var slot int
		if fields[0] == "cpu" {
			slot = sysIdx
		} else {
			cpu, err := strconv.Atoi(fields[0][len("cpu"):])
			if err != nil {
				continue
			}
			if cpu < 0 || cpu >= s.nCPU {
				s.logger.Debug("cpu index out of range", "cpu", cpu, "ncpu", s.nCPU)
				continue
			}
			slot = cpu
		}

		r := &s.cur[slot]
		r.valid = true
		for idx := 0; idx < statMax && idx+1 < len(fields); idx++ {
			v, err := strconv.ParseUint(fields[idx+1], 10, 64)
			if err != nil {
				s.logger.Debug("failed to parse counter, defer update to next snapshot",
					"field", fields[idx+1], "row", fields[0])
				continue
			}
			r.stat[idx] = v
		}
	}
	if err := sc.Err(); err != nil {
		return types.Unavailable, types.Unavailable, fmt.Errorf("cpustat: read source: %w", err)
	}

	if !s.cur[sysIdx].valid {
		return types.Unavailable, types.Unavailable, ErrNoAggregate
	}
	busySys = busyPct(&s.cur[sysIdx], &s.prev[sysIdx])

	busyCPU = 0
	for i := 0; i < s.nCPU; i++ {
		if !s.cur[i].valid {
			continue
		}
		if v := busyPct(&s.cur[i], &s.prev[i]); v > busyCPU {
			busyCPU = v
		}
	}
	return busySys, busyCPU, nil
}

// busyPct returns the busy share of the counter deltas between two
// generations, in basis points. Idle and iowait are the only counters
// treated as not-busy, aligning with the "top" utility. A zero (or
// regressed) total resolves to 0% rather than dividing by zero.
func busyPct(cur, prev *row) types.Percent {
	var busy, total uint64
	for idx := statUser; idx < statMax; idx++ {
		d := deltaU64(cur.stat[idx], prev.stat[idx])
		total += d
		if idx != statIdle && idx != statIOWait {
			busy += d
		}
	}
	if total == 0 {
		return 0
	}
	return types.Percent(busy * 10000 / total)
}
