package stream

// DefaultChunkSize is the window size used by callers that do not choose one.
const DefaultChunkSize = 1024

// Config describes a Buffer. Fields that do not apply to the selected Mode
// must be left at zero.
type Config struct {
	Mode Mode

	// ChunkSize is the target window length. Required unless Mode is Raw.
	ChunkSize int

	// OverlapSize is the number of trailing bytes a window shares with the
	// next one (Overlapped only). Must be in [0, ChunkSize).
	OverlapSize int

	// WindowStep is an alternative way to express the overlap: the distance
	// between the starts of consecutive windows (Overlapped only). When set,
	// OverlapSize is derived as ChunkSize - WindowStep.
	WindowStep int

	// MaxCumulativeSize caps a Cumulative buffer (0 = unbounded). The oldest
	// bytes are evicted once the cap is exceeded.
	MaxCumulativeSize int
}

// normalize validates c and resolves WindowStep into OverlapSize.
func (c Config) normalize() (Config, error) {
	if c.OverlapSize < 0 {
		return c, invalidConfig("overlap size %d is negative", c.OverlapSize)
	}
	if c.WindowStep < 0 {
		return c, invalidConfig("window step %d is negative", c.WindowStep)
	}
	if c.MaxCumulativeSize < 0 {
		return c, invalidConfig("max cumulative size %d is negative", c.MaxCumulativeSize)
	}

	switch c.Mode {
	case Raw:
		if c.OverlapSize != 0 || c.WindowStep != 0 || c.MaxCumulativeSize != 0 {
			return c, invalidConfig("raw mode takes no chunking options")
		}
		return c, nil
	case Disjoint, Overlapped, Cumulative:
	default:
		return c, invalidConfig("unknown mode %d", int(c.Mode))
	}

	if c.ChunkSize <= 0 {
		return c, invalidConfig("chunk size must be positive in %s mode, got %d", c.Mode, c.ChunkSize)
	}

	if c.Mode != Overlapped && (c.OverlapSize != 0 || c.WindowStep != 0) {
		return c, invalidConfig("overlap applies only to overlapped mode, not %s", c.Mode)
	}
	if c.Mode != Cumulative && c.MaxCumulativeSize != 0 {
		return c, invalidConfig("max cumulative size applies only to cumulative mode, not %s", c.Mode)
	}

	if c.Mode == Overlapped {
		if c.WindowStep != 0 {
			if c.WindowStep > c.ChunkSize {
				return c, invalidConfig("window step %d exceeds chunk size %d", c.WindowStep, c.ChunkSize)
			}
			overlap := c.ChunkSize - c.WindowStep
			if c.OverlapSize != 0 && c.OverlapSize != overlap {
				return c, invalidConfig("overlap size %d disagrees with window step %d", c.OverlapSize, c.WindowStep)
			}
			c.OverlapSize = overlap
		}
		if c.OverlapSize >= c.ChunkSize {
			return c, invalidConfig("overlap size %d must be smaller than chunk size %d", c.OverlapSize, c.ChunkSize)
		}
	}

	if c.Mode == Cumulative && c.MaxCumulativeSize != 0 && c.MaxCumulativeSize < c.ChunkSize {
		return c, invalidConfig("max cumulative size %d is smaller than chunk size %d", c.MaxCumulativeSize, c.ChunkSize)
	}

	return c, nil
}
