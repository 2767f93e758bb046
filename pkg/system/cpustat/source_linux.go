//go:build linux

package cpustat

import (
	"io"
	"os"
)

const pathProcStat = "/proc/stat"

// procStatSource reads /proc/stat in full on every round.
type procStatSource struct {
	path string
}

// NewProcStatSource returns the kernel /proc/stat counter source.
func NewProcStatSource() Source {
	return &procStatSource{path: pathProcStat}
}

func (p *procStatSource) Open() (io.ReadCloser, error) {
	return os.Open(p.path)
}
