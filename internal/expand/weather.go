package expand

import (
	"fmt"
	"sort"

	"lakeload/internal/flatten"
	"lakeload/pkg/records"
)

// Weather unzips an hourly forecast document into one record per time step.
//
// The document is expected to carry a nested "hourly" block with parallel
// "time" and "temperature_2m" arrays (native or JSON-encoded strings). Each
// index pairs time[i] with temperature_2m[i]; top-level scalar fields
// (coordinates, timezone, units) are carried onto every record.
//
// When the block is missing, the arrays are unparsable, or their lengths
// differ, Weather emits exactly one record containing the flattened document
// instead. That degrade path is reported, never an error.
func Weather(doc map[string]any, ctx Context, emit Emit) error {
	hourly, ok := doc["hourly"].(map[string]any)
	if !ok {
		ctx.degrade("weather: no hourly block")
		return emit(finish(ctx, flatten.Flatten(doc)))
	}

	times, okT := CoerceArray(hourly["time"])
	temps, okV := CoerceArray(hourly["temperature_2m"])
	if !okT || !okV || len(times) != len(temps) {
		ctx.degrade(fmt.Sprintf("weather: unpaired hourly arrays (time ok=%v, temperature ok=%v)", okT, okV))
		return emit(finish(ctx, flatten.Flatten(doc)))
	}

	carried := topLevelScalars(doc)

	for i := range times {
		r := records.New(2 + len(carried))
		r.Set("time", times[i])
		r.Set("temperature_2m", temps[i])
		for _, kv := range carried {
			r.Set(kv.key, kv.val)
		}
		if err := emit(finish(ctx, r)); err != nil {
			return err
		}
	}
	return nil
}

type scalarField struct {
	key string
	val any
}

func topLevelScalars(doc map[string]any) []scalarField {
	keys := make([]string, 0, len(doc))
	for k, v := range doc {
		if isScalar(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]scalarField, 0, len(keys))
	for _, k := range keys {
		out = append(out, scalarField{key: k, val: doc[k]})
	}
	return out
}
