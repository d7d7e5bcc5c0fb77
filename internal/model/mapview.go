package model

// MapDefaults configures the map center used when a listing has no usable
// coordinates.
type MapDefaults struct {
	Lat   float64
	Lng   float64
	Zoom  int
	Label string
}

// DefaultMap centers on Mumbai.
var DefaultMap = MapDefaults{
	Lat:   19.0760,
	Lng:   72.8777,
	Zoom:  13,
	Label: "Default Marker in Mumbai",
}

// MapView is the payload handed to the client-side map widget.
type MapView struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Zoom     int     `json:"zoom"`
	Label    string  `json:"label"`
	Fallback bool    `json:"fallback"`
}

// NewMapView centers the map on the listing's coordinates, or on the
// defaults when the listing is nil or has no geometry.
func NewMapView(l *Listing, d MapDefaults) MapView {
	zoom := d.Zoom
	if zoom <= 0 {
		zoom = DefaultMap.Zoom
	}
	if l == nil || l.Geometry == nil {
		return MapView{Lat: d.Lat, Lng: d.Lng, Zoom: zoom, Label: d.Label, Fallback: true}
	}
	return MapView{
		Lat:   l.Geometry.Lat(),
		Lng:   l.Geometry.Lng(),
		Zoom:  zoom,
		Label: l.Location,
	}
}
