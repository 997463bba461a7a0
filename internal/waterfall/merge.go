package waterfall

// defaultWeight applies when a step does not specify one.
const defaultWeight = 1.0

// overrideThreshold is the weight above which a later provider may replace
// an already-populated field.
const overrideThreshold = 0.5

// Merge folds a step's result into the accumulated data. A field is
// overwritten only if it was previously absent/empty, or the step's weight
// exceeds 0.5 so higher-confidence late providers can override earlier
// lower-confidence values.
func Merge(existing, incoming map[string]any, weight float64) map[string]any {
	if weight <= 0 {
		weight = defaultWeight
	}
	if existing == nil {
		existing = make(map[string]any, len(incoming))
	}

	for field, value := range incoming {
		if isEmpty(value) {
			continue
		}
		if isEmpty(existing[field]) || weight > overrideThreshold {
			existing[field] = value
		}
	}
	return existing
}

// FieldCompleteness is the default quality function: the percentage of
// populated fields over all fields present on the merged object.
func FieldCompleteness(data map[string]any) float64 {
	if len(data) == 0 {
		return 0
	}
	filled := 0
	for _, v := range data {
		if !isEmpty(v) {
			filled++
		}
	}
	return float64(filled) / float64(len(data)) * 100
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	default:
		return false
	}
}
