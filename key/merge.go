package key

import "reflect"

// MergePartial implements the `rowUpdateMode = partial` merge from
// spec.md §4.3.3 step 2: the fields present in patch are written onto
// a copy of base, leaving base's other fields untouched. For
// map[string]any-shaped rows this is a literal key-wise merge; for
// struct rows it copies every non-zero field of patch onto a copy of
// base (a struct row has no notion of "field not present" the way a
// partial JSON object does, so a field's zero value is treated as
// "unset" for merge purposes). Any other shape is treated as fully
// replacing base, same as rowUpdateMode = full.
func MergePartial[T any](base, patch T) T {
	if bm, ok := any(base).(map[string]any); ok {
		if pm, ok := any(patch).(map[string]any); ok {
			merged := make(map[string]any, len(bm)+len(pm))
			for k, v := range bm {
				merged[k] = v
			}
			for k, v := range pm {
				merged[k] = v
			}
			return any(merged).(T)
		}
	}

	bv := reflect.ValueOf(base)
	pv := reflect.ValueOf(patch)
	if bv.Kind() != reflect.Struct || pv.Kind() != reflect.Struct || bv.Type() != pv.Type() {
		return patch
	}

	out := reflect.New(bv.Type()).Elem()
	out.Set(bv)
	for i := 0; i < pv.NumField(); i++ {
		f := pv.Field(i)
		if !f.IsZero() && out.Field(i).CanSet() {
			out.Field(i).Set(f)
		}
	}
	return out.Interface().(T)
}
