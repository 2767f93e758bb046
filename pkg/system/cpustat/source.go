package cpustat

import "io"

// Source yields the full counter text for one sampling round: one
// whitespace-delimited line per CPU plus one aggregate line, counters
// in the fixed order user, nice, system, idle, iowait, irq, softirq,
// steal, guest, guest_nice. Isolating the text behind an interface
// keeps the busy% math independent of the kernel file layout and lets
// tests feed canned rounds.
type Source interface {
	Open() (io.ReadCloser, error)
}
