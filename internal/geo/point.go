// Package geo converts listing geometry to and from PostGIS EWKB.
package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/listings/internal/model"
)

// SRID is WGS 84, the reference system GeoJSON coordinates use.
const SRID = 4326

// EncodePoint converts a Point to little-endian EWKB with SRID 4326.
// Returns nil, nil for a nil point.
func EncodePoint(p *model.Point) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	g := geom.NewPointFlat(geom.XY, []float64{p.Lng(), p.Lat()}).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode point")
	}
	return data, nil
}

// DecodePoint parses EWKB produced by ST_AsEWKB. Empty input yields nil.
func DecodePoint(data []byte) (*model.Point, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode point")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("geo: expected point, got %T", g)
	}
	return model.NewPoint(pt.X(), pt.Y()), nil
}
