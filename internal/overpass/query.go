package overpass

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Search limits.
const (
	DefaultRadiusMeters = 1000
	MaxRadiusMeters     = 5000
	metersPerDegreeLat  = 111320.0
	earthRadiusMeters   = 6371000.0
)

// scoredAmenities are the amenity values treated as scoreable businesses.
var scoredAmenities = []string{"cafe", "restaurant", "fast_food", "pharmacy", "marketplace", "fuel"}

// Area is a circular search area.
type Area struct {
	Center *geom.Point
	Radius float64
}

// NewArea validates the coordinates and radius. A non-positive radius uses
// the default; radii above the maximum are clamped.
func NewArea(lat, lon, radiusMeters float64) (Area, error) {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return Area{}, eris.Errorf("overpass: latitude %v out of range", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return Area{}, eris.Errorf("overpass: longitude %v out of range", lon)
	}
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) {
		radiusMeters = DefaultRadiusMeters
	}
	radiusMeters = math.Min(radiusMeters, MaxRadiusMeters)
	return Area{
		Center: geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326),
		Radius: radiusMeters,
	}, nil
}

// Lat returns the center latitude.
func (a Area) Lat() float64 { return a.Center.Y() }

// Lon returns the center longitude.
func (a Area) Lon() float64 { return a.Center.X() }

// Bounds returns the bounding box of the search circle.
func (a Area) Bounds() *geom.Bounds {
	dLat := a.Radius / metersPerDegreeLat
	dLon := a.Radius / (metersPerDegreeLat * math.Max(math.Cos(a.Lat()*math.Pi/180), 1e-6))
	return geom.NewBounds(geom.XY).Set(
		a.Lon()-dLon, a.Lat()-dLat,
		a.Lon()+dLon, a.Lat()+dLat,
	)
}

// ShopQuery returns an Overpass QL query for shop and scoreable amenity
// nodes inside the area.
func (a Area) ShopQuery() string {
	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", a.Radius, a.Lat(), a.Lon())
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	fmt.Fprintf(&b, "  node[\"shop\"][\"name\"]%s;\n", around)
	fmt.Fprintf(&b, "  node[\"amenity\"~\"^(%s)$\"][\"name\"]%s;\n", strings.Join(scoredAmenities, "|"), around)
	b.WriteString(");\nout body;\n")
	return b.String()
}

// DistanceMeters returns the great-circle distance from the area center.
func (a Area) DistanceMeters(p *geom.Point) float64 {
	return haversineMeters(a.Lat(), a.Lon(), p.Y(), p.X())
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
