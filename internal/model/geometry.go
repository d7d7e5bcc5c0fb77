package model

// PointType is the GeoJSON geometry type for a single position.
const PointType = "Point"

// Point is a GeoJSON Point. Coordinates are ordered [longitude, latitude].
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint builds a Point from a longitude and latitude.
func NewPoint(lng, lat float64) *Point {
	return &Point{Type: PointType, Coordinates: [2]float64{lng, lat}}
}

// Lng returns the longitude.
func (p *Point) Lng() float64 { return p.Coordinates[0] }

// Lat returns the latitude.
func (p *Point) Lat() float64 { return p.Coordinates[1] }

// Feature is a GeoJSON Feature with a Point geometry.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   *Point         `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection is a GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection converts listings into GeoJSON features. Listings
// without geometry are skipped.
func NewFeatureCollection(listings []Listing) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
	for _, l := range listings {
		if l.Geometry == nil {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: l.Geometry,
			Properties: map[string]any{
				"id":       l.ID,
				"title":    l.Title,
				"price":    l.Price,
				"location": l.Location,
			},
		})
	}
	return fc
}
