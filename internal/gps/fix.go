package gps

// Fix represents the latest combined GPS fix.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "06/12/25"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void), from RMC
	Quality    string  `json:"quality"`     // GGA fix quality, "0" = invalid
	Satellites int64   `json:"satellites"`
}

// Valid reports whether the position can be used for a PATH record. A fix
// is valid once RMC reports "A" and GGA, if seen, does not report "0".
func (f Fix) Valid() bool {
	if f.Validity != "A" {
		return false
	}
	return f.Quality != "0"
}
