package postgresadapter

import "time"

// SystemClock implements ports.Clock with wall-clock UTC time for grant
// timestamps.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
