package overpass

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Response is the decoded subset of an Overpass JSON response.
type Response struct {
	Remark   string    `json:"remark,omitempty"`
	Elements []Element `json:"elements"`
}

// Element is one OSM element.
type Element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags,omitempty"`
}

// ParseResponse decodes a raw Overpass JSON body.
func ParseResponse(raw []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, eris.Wrap(err, "overpass: decode response")
	}
	return &r, nil
}

// Key returns the OSM identifier, e.g. "node/123".
func (e Element) Key() string {
	return fmt.Sprintf("%s/%d", e.Type, e.ID)
}

// Name returns the element's name tag.
func (e Element) Name() string {
	return e.Tags["name"]
}

// PostalCode returns the element's addr:postcode tag.
func (e Element) PostalCode() string {
	return e.Tags["addr:postcode"]
}

// Category returns the shop or amenity tag as "shop=..." or "amenity=...".
func (e Element) Category() string {
	if v := e.Tags["shop"]; v != "" {
		return "shop=" + v
	}
	if v := e.Tags["amenity"]; v != "" {
		return "amenity=" + v
	}
	return ""
}

// Point returns the element location.
func (e Element) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{e.Lon, e.Lat}).SetSRID(4326)
}
