package expand

import (
	"lakeload/internal/flatten"
	"lakeload/pkg/records"
)

// Feature expands one seismic feed entry into a flat record.
//
// GeoJSON-shaped entries contribute their properties sub-object plus
// longitude/latitude/depth pulled from geometry coordinates; the coordinate
// triple tolerates being a native array or the same array JSON-encoded as a
// string. Flat feed entries (the national feed has no geometry) are flattened
// as-is.
//
// Duplicate features across a run are NOT deduplicated here; the content
// identifier injected on every record is the downstream dedupe signal.
func Feature(doc map[string]any, ctx Context, emit Emit) error {
	r := records.New(len(doc) + 4)

	if id := stringOf(doc["id"]); id != "" {
		r.Set("id", id)
	}

	if props, ok := doc["properties"].(map[string]any); ok {
		flatten.FlattenInto(r, props, "")
	} else {
		// No properties block: take the entry's own fields, geometry aside.
		rest := make(map[string]any, len(doc))
		for k, v := range doc {
			if k == "geometry" || k == "id" {
				continue
			}
			rest[k] = v
		}
		flatten.FlattenInto(r, rest, "")
	}

	if geom, ok := doc["geometry"].(map[string]any); ok {
		setCoordinates(r, geom["coordinates"], ctx)
	}

	return emit(finish(ctx, r))
}

// Features expands a whole feed (already unwrapped to its entry list).
func Features(docs []map[string]any, ctx Context, emit Emit) error {
	for _, doc := range docs {
		if err := Feature(doc, ctx, emit); err != nil {
			return err
		}
	}
	return nil
}

// setCoordinates resolves a [lon, lat, depth] triple onto the record.
func setCoordinates(r *records.Record, raw any, ctx Context) {
	coords, ok := CoerceArray(raw)
	if !ok || len(coords) < 2 {
		ctx.degrade("seismic: geometry coordinates missing or unparsable")
		return
	}

	if lon, ok := toFloat(coords[0]); ok {
		r.Set("longitude", lon)
	}
	if lat, ok := toFloat(coords[1]); ok {
		r.Set("latitude", lat)
	}
	if len(coords) >= 3 {
		if depth, ok := toFloat(coords[2]); ok {
			r.Set("depth", depth)
		}
	}
}
