package membership

import "time"

// SetNow freezes the service clock at now & returns a func restoring it.
func SetNow(now time.Time) (reset func()) {
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = time.Now }
}
