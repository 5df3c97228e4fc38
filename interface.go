package httplog

//go:generate mockgen -destination=mocks/rotatorr.go -package=mocks golift.io/httplog Rotatorr

import "time"

// Rotatorr decides which file a line received at a given time belongs in.
// A new file is opened every time the returned name differs from the last one.
// *pathtmpl.Template satisfies this interface; wrap it to add your own logic.
type Rotatorr interface {
	// Filename is called once for every line read. It must be cheap.
	Filename(now time.Time) (fileName string, err error)
}
