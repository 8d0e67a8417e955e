package fsys

import "time"

// now is the single place the engine reads the wall clock, so tests can
// see where timestamps come from without faking the global clock.
func now() time.Time {
	return time.Now()
}
