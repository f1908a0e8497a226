package models

import "time"

// ActiveSession is one append-only login record. The "current" session of a
// user is derived as the record with the latest timestamp, never stored
// separately.
type ActiveSession struct {
	ID        string
	Username  string
	IPAddress string
	Timestamp time.Time
}
