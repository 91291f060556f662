package geo

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// PositionSample is one reading from a position feed. Speed and Heading are
// nil when the source does not report them.
type PositionSample struct {
	Point
	Speed     *float64 `json:"speed,omitempty"`   // m/s
	Heading   *float64 `json:"heading,omitempty"` // degrees
	Accuracy  float64  `json:"accuracy"`          // meters
	Timestamp int64    `json:"timestamp"`         // milliseconds
}
