package dht

// Status is the outcome of a read. Exactly one value is returned per call.
type Status uint8

const (
	// Success means the outputs were written.
	Success Status = 0
	// ChecksumError means a full frame arrived but the checksum byte did not match.
	ChecksumError Status = 1 << 0
	// MissedEdge is reserved; no read currently reports it.
	MissedEdge Status = 1 << 1
	// Timeout means an expected edge did not arrive within its window.
	Timeout Status = 1 << 2
	// BadParameter means the caller passed an out of range argument.
	BadParameter Status = 1 << 3
	// AllLow means the frame decoded to five zero bytes, which happens when
	// the line is held low and would otherwise pass the checksum.
	AllLow Status = 1 << 4
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case ChecksumError:
		return "checksum error"
	case MissedEdge:
		return "missed edge"
	case Timeout:
		return "timeout"
	case BadParameter:
		return "bad parameter"
	case AllLow:
		return "all low"
	}
	return "unknown status"
}

// Error implements error so a Status can travel through error returns and be
// matched with errors.Is.
func (s Status) Error() string {
	return "dht: " + s.String()
}

// Err returns nil for Success and the status itself otherwise.
func (s Status) Err() error {
	if s == Success {
		return nil
	}
	return s
}
