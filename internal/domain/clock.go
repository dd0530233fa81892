package domain

import "github.com/jonboulle/clockwork"

// clock stamps RenderResult.RenderedAt.
var clock = clockwork.NewRealClock()

// SetClock fixes the render timestamp source; tests use a fake clock so
// RenderedAt is deterministic. nil restores wall-clock time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
}
