// Package geo computes great-circle distances and radius queries over
// store records carrying a location.lat / location.lng field.
package geo

import (
	"math"
	"sort"
	"time"

	"github.com/bazarhq/bazar/internal/metrics"
	"github.com/bazarhq/bazar/internal/store"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Point is a reference coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Distance returns the great-circle distance in kilometers between two
// coordinates using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Query filters records from one or more collections by distance from ref,
// keeping those within radiusKm. Each kept record is annotated with a
// "distance" field and the result is sorted ascending by it; ties keep
// their original relative order. Records without both location.lat and
// location.lng are skipped.
func Query(ref Point, radiusKm float64, collections ...[]store.Record) []store.Record {
	start := time.Now()

	nearby := []store.Record{}
	for _, records := range collections {
		for _, rec := range records {
			lat, lng, ok := recordCoords(rec)
			if !ok {
				continue
			}

			d := Distance(ref.Lat, ref.Lng, lat, lng)
			if d <= radiusKm {
				rec["distance"] = d
				nearby = append(nearby, rec)
			}
		}
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		di, _ := nearby[i]["distance"].(float64)
		dj, _ := nearby[j]["distance"].(float64)
		return di < dj
	})

	metrics.GeoQueryDuration.Observe(time.Since(start).Seconds())
	metrics.GeoQueryResultsCount.Observe(float64(len(nearby)))
	return nearby
}

// recordCoords extracts location.lat and location.lng from a record.
func recordCoords(rec store.Record) (lat, lng float64, ok bool) {
	loc, ok := rec["location"].(map[string]any)
	if !ok {
		return 0, 0, false
	}

	lat, latOK := asFloat(loc["lat"])
	lng, lngOK := asFloat(loc["lng"])
	if !latOK || !lngOK {
		return 0, 0, false
	}

	return lat, lng, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
