package device

import "code.hybscloud.com/atomix"

// Stats is a point-in-time snapshot of device counters.
type Stats struct {
	Opens        uint64 `json:"opens"`
	Closes       uint64 `json:"closes"`
	Reads        uint64 `json:"reads"`
	Writes       uint64 `json:"writes"`
	Controls     uint64 `json:"controls"`
	BytesRead    uint64 `json:"bytes_read"`
	BytesWritten uint64 `json:"bytes_written"`
	Truncations  uint64 `json:"truncations"`
	Errors       uint64 `json:"errors"`
}

type counters struct {
	opens        atomix.Uint64
	closes       atomix.Uint64
	reads        atomix.Uint64
	writes       atomix.Uint64
	controls     atomix.Uint64
	bytesRead    atomix.Uint64
	bytesWritten atomix.Uint64
	truncations  atomix.Uint64
	errors       atomix.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Opens:        c.opens.Load(),
		Closes:       c.closes.Load(),
		Reads:        c.reads.Load(),
		Writes:       c.writes.Load(),
		Controls:     c.controls.Load(),
		BytesRead:    c.bytesRead.Load(),
		BytesWritten: c.bytesWritten.Load(),
		Truncations:  c.truncations.Load(),
		Errors:       c.errors.Load(),
	}
}
