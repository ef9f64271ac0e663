package projection

import (
	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// WebMercatorSRS is the proj4 definition the renderer assigns to its map.
const WebMercatorSRS = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs +over"

var toWebMercator = wgs84.LonLat().To(wgs84.WebMercator())

// ToWebMercator converts a lon/lat point to EPSG:3857 metres.
func ToWebMercator(ll orb.Point) orb.Point {
	x, y, _ := toWebMercator(ll.Lon(), ll.Lat(), 0)
	return orb.Point{x, y}
}

// BoundToWebMercator projects both corners of a lon/lat bound.
func BoundToWebMercator(b orb.Bound) orb.Bound {
	return orb.Bound{
		Min: ToWebMercator(b.Min),
		Max: ToWebMercator(b.Max),
	}
}
