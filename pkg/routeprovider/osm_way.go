package routeprovider

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/polyline"
	"github.com/lintang-b-s/campusnav/pkg/util"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
)

// OSMWay serves the geometry of one named OpenStreetMap way, e.g. the main walkway
// of a campus. the way is oriented so that it ends at the end nearest the
// destination.
type OSMWay struct {
	log  *zap.Logger
	name string
	path []geo.Coordinate
}

// LoadOSMWay scan mapFile (.osm, .osm.bz2 or .osm.pbf) for the way tagged name=wayName.
// when several ways share the name the one with the most nodes wins.
func LoadOSMWay(ctx context.Context, mapFile, wayName string, log *zap.Logger) (*OSMWay, error) {
	if strings.TrimSpace(wayName) == "" {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "osm way name is empty")
	}

	log.Info("scanning openstreetmap ways...", zap.String("file", mapFile), zap.String("way", wayName))

	var nodeIDs []osm.NodeID
	err := scanFile(ctx, mapFile, func(o osm.Object) bool {
		way, ok := o.(*osm.Way)
		if !ok || way.Tags.Find("name") != wayName {
			return true
		}
		if len(way.Nodes) > len(nodeIDs) {
			nodeIDs = way.Nodes.NodeIDs()
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(nodeIDs) < 2 {
		return nil, util.WrapErrorf(nil, ErrNoGeometry, "no way named %q with at least two nodes in %s", wayName, mapFile)
	}

	wanted := make(map[osm.NodeID]geo.Coordinate, len(nodeIDs))
	for _, id := range nodeIDs {
		wanted[id] = geo.Coordinate{}
	}
	found := 0
	err = scanFile(ctx, mapFile, func(o osm.Object) bool {
		node, ok := o.(*osm.Node)
		if !ok {
			return true
		}
		if _, ok := wanted[node.ID]; ok {
			wanted[node.ID] = geo.NewCoordinate(node.Lat, node.Lon)
			found++
		}
		return found < len(wanted)
	})
	if err != nil {
		return nil, err
	}
	if found < len(wanted) {
		return nil, util.WrapErrorf(nil, ErrNoGeometry, "way %q references %d nodes missing from %s",
			wayName, len(wanted)-found, mapFile)
	}

	path := make([]geo.Coordinate, len(nodeIDs))
	for i, id := range nodeIDs {
		path[i] = wanted[id]
	}

	log.Info("openstreetmap way loaded.", zap.String("way", wayName), zap.Int("nodes", len(path)),
		zap.Float64("length_km", geo.PathLength(path)))

	return &OSMWay{log: log, name: wayName, path: path}, nil
}

func (w *OSMWay) Name() string {
	return w.name
}

func (w *OSMWay) Path() []geo.Coordinate {
	return slices.Clone(w.path)
}

func (w *OSMWay) RouteGeometry(ctx context.Context, origin, destination geo.Coordinate) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := w.Path()
	first, last := path[0], path[len(path)-1]
	if geo.HaversineDistance(first, destination) < geo.HaversineDistance(last, destination) {
		slices.Reverse(path)
	}
	return polyline.Encode(path), nil
}

// scanFile. run fn over every object in mapFile until fn returns false.
func scanFile(ctx context.Context, mapFile string, fn func(o osm.Object) bool) error {
	f, err := os.Open(mapFile)
	if err != nil {
		return util.WrapErrorf(err, util.ErrNotFound, "open osm file %s", mapFile)
	}
	defer f.Close()

	scanner, closeFn, err := newScanner(ctx, mapFile, f)
	if err != nil {
		return err
	}
	defer closeFn()

	for scanner.Scan() {
		if !fn(scanner.Object()) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return util.WrapErrorf(err, util.ErrBadParamInput, "scan osm file %s", mapFile)
	}
	return nil
}

func newScanner(ctx context.Context, mapFile string, r io.Reader) (osm.Scanner, func(), error) {
	switch {
	case strings.HasSuffix(mapFile, ".pbf"):
		scanner := osmpbf.New(ctx, r, 1)
		return scanner, func() { scanner.Close() }, nil
	case strings.HasSuffix(mapFile, ".bz2"):
		bz, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, nil, util.WrapErrorf(err, util.ErrBadParamInput, "open bzip2 stream %s", mapFile)
		}
		scanner := osmxml.New(ctx, bz)
		return scanner, func() {
			scanner.Close()
			bz.Close()
		}, nil
	case strings.HasSuffix(mapFile, ".osm"), strings.HasSuffix(mapFile, ".xml"):
		scanner := osmxml.New(ctx, r)
		return scanner, func() { scanner.Close() }, nil
	default:
		return nil, nil, util.WrapErrorf(nil, util.ErrBadParamInput, "unsupported osm file %s", mapFile)
	}
}

func (w *OSMWay) String() string {
	return fmt.Sprintf("osm way %q (%d nodes)", w.name, len(w.path))
}
