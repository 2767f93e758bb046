package cpustat

func deltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	// counter regressed (source restarted) or prev unset
	return 0
}
