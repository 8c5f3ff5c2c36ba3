package navigation

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/util"
)

var ErrInvalidDestinationParams = errors.New("invalid destination params")

const (
	DefaultDestinationLat         = 38.5
	DefaultDestinationLon         = -120.2
	DefaultDestinationName        = "Innovation Hub"
	DefaultDestinationDescription = "This is an advanced innovation and research hub where tech and science meet."
	DefaultDestinationImage       = "https://via.placeholder.com/100"
)

type Destination struct {
	Coordinate  geo.Coordinate `json:"coordinate"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ImageRef    string         `json:"image"`
}

// DefaultDestination is the fallback used when the caller's coordinates can't be parsed.
func DefaultDestination() Destination {
	return Destination{
		Coordinate:  geo.NewCoordinate(DefaultDestinationLat, DefaultDestinationLon),
		Name:        DefaultDestinationName,
		Description: DefaultDestinationDescription,
		ImageRef:    DefaultDestinationImage,
	}
}

// CoordinateParam is a latitude or longitude as sent by the caller: a JSON number,
// a numeric string, or absent.
type CoordinateParam struct {
	raw string
	set bool
}

func StringParam(v string) CoordinateParam {
	return CoordinateParam{raw: v, set: true}
}

func FloatParam(v float64) CoordinateParam {
	return CoordinateParam{raw: strconv.FormatFloat(v, 'f', -1, 64), set: true}
}

func (p CoordinateParam) IsSet() bool {
	return p.set
}

func (p CoordinateParam) Raw() string {
	return p.raw
}

func (p CoordinateParam) Float() (float64, error) {
	if !p.set {
		return 0, errors.New("missing")
	}
	return util.StringToFloat64(p.raw)
}

// UnmarshalJSON never fails: values of the wrong type are kept raw and rejected
// later by Float, so a bad coordinate leads to the fallback destination instead of
// a decode error.
func (p *CoordinateParam) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*p = CoordinateParam{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = StringParam(s)
		return nil
	}
	*p = CoordinateParam{raw: string(b), set: true}
	return nil
}

func (p CoordinateParam) MarshalJSON() ([]byte, error) {
	if !p.set {
		return []byte("null"), nil
	}
	if v, err := p.Float(); err == nil {
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	}
	return json.Marshal(p.raw)
}

// Params are the destination parameters handed over by the screen that opened the map.
type Params struct {
	Latitude    CoordinateParam `json:"latitude"`
	Longitude   CoordinateParam `json:"longitude"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ImageRef    string          `json:"image"`
}

// ResolveDestination. build the destination from params. text fields left empty
// take their value from defaults one by one. if either coordinate is missing,
// unparsable or out of range the whole defaults destination is returned together
// with an ErrInvalidDestinationParams error; the destination is usable either way.
func ResolveDestination(params Params, defaults Destination) (Destination, error) {
	lat, latErr := params.Latitude.Float()
	lon, lonErr := params.Longitude.Float()

	switch {
	case latErr != nil:
		return defaults, util.WrapErrorf(latErr, ErrInvalidDestinationParams,
			"destination latitude %q", params.Latitude.Raw())
	case lonErr != nil:
		return defaults, util.WrapErrorf(lonErr, ErrInvalidDestinationParams,
			"destination longitude %q", params.Longitude.Raw())
	}

	coord := geo.NewCoordinate(lat, lon)
	if !coord.Valid() {
		return defaults, util.WrapErrorf(nil, ErrInvalidDestinationParams,
			"destination (%f,%f) out of range", lat, lon)
	}

	return Destination{
		Coordinate:  coord,
		Name:        orDefault(params.Name, defaults.Name),
		Description: orDefault(params.Description, defaults.Description),
		ImageRef:    orDefault(params.ImageRef, defaults.ImageRef),
	}, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
