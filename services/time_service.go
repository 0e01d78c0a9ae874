package services

import "time"

// Now returns the current time in UTC. It is the default clock for
// message timestamps.
func Now() time.Time {
	return time.Now().UTC()
}
