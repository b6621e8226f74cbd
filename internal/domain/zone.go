package domain

// Zone is a geographic area used for assignment matching.
type Zone struct {
	ID        string
	Name      string
	CenterLat *float64
	CenterLon *float64
	Meta      map[string]any
}

// Category classifies incidents.
type Category struct {
	ID          string
	Name        string
	Description string
}
