package polyline

import (
	"github.com/lintang-b-s/campusnav/pkg/geo"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 1024

// CachedDecoder memoises Decode per geometry string. sessions share one decoder,
// so a geometry every client routes along is decoded once. returned routes are
// copies; callers may keep them.
type CachedDecoder struct {
	cache *lru.Cache[string, []geo.Coordinate]
}

func NewCachedDecoder(size int) (*CachedDecoder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []geo.Coordinate](size)
	if err != nil {
		return nil, err
	}
	return &CachedDecoder{cache: cache}, nil
}

func (d *CachedDecoder) Decode(encoded string) ([]geo.Coordinate, error) {
	if route, ok := d.cache.Get(encoded); ok {
		return copyRoute(route), nil
	}

	route, err := Decode(encoded)
	if err != nil {
		// malformed geometries are not cached
		return nil, err
	}
	d.cache.Add(encoded, route)
	return copyRoute(route), nil
}

func (d *CachedDecoder) Len() int {
	return d.cache.Len()
}

func copyRoute(route []geo.Coordinate) []geo.Coordinate {
	cp := make([]geo.Coordinate, len(route))
	copy(cp, route)
	return cp
}
