package cpustat

import "errors"

var (
	// ErrNoAggregate indicates the counter source had no aggregate
	// "cpu" line this round.
	ErrNoAggregate = errors.New("cpustat: no aggregate cpu line")
)
