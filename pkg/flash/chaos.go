package flash

// Chaos wraps a Device and injects deterministic failures, for exercising
// the media engine's failure handling without real hardware: a thin
// Device-shaped wrapper the test configures with a failure predicate.
type Chaos struct {
	Device

	// FailProgram, if set, is called before each Program; a true result
	// makes Program report failure without mutating the block.
	FailProgram func(peb, offset int, data []byte) bool

	// FailErase, if set, is called before each Erase; a true result makes
	// Erase report failure without erasing the block.
	FailErase func(peb int) bool
}

// NewChaos wraps dev with no active fault injection; set FailProgram/
// FailErase to start injecting.
func NewChaos(dev Device) *Chaos {
	return &Chaos{Device: dev}
}

func (c *Chaos) Program(peb int, offset int, data []byte) bool {
	if c.FailProgram != nil && c.FailProgram(peb, offset, data) {
		return false
	}
	return c.Device.Program(peb, offset, data)
}

func (c *Chaos) Erase(peb int) bool {
	if c.FailErase != nil && c.FailErase(peb) {
		return false
	}
	return c.Device.Erase(peb)
}

// PowerCut wraps a Memory device and simulates a power loss that truncates
// the N-th Program call after only the first truncateAfter bytes of its
// write line(s) have reached the block. Subsequent calls behave normally.
//
// Tests call PowerCut.Arm, then drive the engine, then build a fresh
// Engine over the same *Memory to observe Mount's recovery - e.g. a reset
// between the last data-page program and the slot program.
type PowerCut struct {
	*Memory

	armed         bool
	atCall        int
	truncateAfter int
	calls         int
}

// NewPowerCut wraps mem with power-cut injection disarmed.
func NewPowerCut(mem *Memory) *PowerCut {
	return &PowerCut{Memory: mem}
}

// Arm schedules a power cut on the atCall-th Program invocation (1-based),
// truncating it to truncateAfter bytes actually written before the
// simulated cut.
func (p *PowerCut) Arm(atCall, truncateAfter int) {
	p.armed = true
	p.atCall = atCall
	p.truncateAfter = truncateAfter
	p.calls = 0
}

func (p *PowerCut) Program(peb int, offset int, data []byte) bool {
	p.calls++
	if p.armed && p.calls == p.atCall {
		p.armed = false
		cut := p.truncateAfter
		if cut > len(data) {
			cut = len(data)
		}
		// Whole write lines before the cut are programmed as given. The
		// line holding the cut is programmed through Memory.Program as
		// well, but with only its first cut-lineCut bytes taken from
		// data and the rest left at their current contents, which
		// approximates a program interrupted mid-line.
		lineCut := (cut / WriteLine) * WriteLine
		if lineCut > 0 {
			p.Memory.Program(peb, offset, data[:lineCut])
		}
		if cut > lineCut {
			partial := make([]byte, WriteLine)
			block := p.Memory.Address(peb)
			copy(partial, block[offset+lineCut:offset+lineCut+WriteLine])
			for i := 0; i < cut-lineCut; i++ {
				partial[i] &= data[lineCut+i]
			}
			p.Memory.Program(peb, offset+lineCut, partial)
		}
		return false
	}
	return p.Memory.Program(peb, offset, data)
}
