package domain

// MapView is the render projection sent to the frontend after every command.
type MapView struct {
	Floors         []FloorSummary `json:"floors"`
	CurrentFloor   string         `json:"currentFloor"`
	Floor          *Floor         `json:"floor"`
	Lines          []LineView     `json:"lines"`
	Mode           string         `json:"mode"`
	SelectedMarker string         `json:"selectedMarker"`
	Pending        *Position      `json:"pending"`
	CanDeleteFloor bool           `json:"canDeleteFloor"`
	Version        int64          `json:"version"`
	Detached       bool           `json:"detached"` // edits are not being saved
}

// FloorSummary is one entry of the floor selector.
type FloorSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Markers     int    `json:"markers"`
	Connections int    `json:"connections"`
	HasImage    bool   `json:"hasImage"`
}

// LineView is a connection resolved to drawable geometry, in percent units.
type LineView struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	Left         float64 `json:"left"`
	Top          float64 `json:"top"`
	Length       float64 `json:"length"`
	AngleDegrees float64 `json:"angleDegrees"`
}

// Notice is an informational message for the toast area.
type Notice struct {
	Level   string `json:"level"` // success | info | warning | error
	Message string `json:"message"`
}
