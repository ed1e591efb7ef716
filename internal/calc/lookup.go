package calc

import (
	"canlaw/internal/slot"
	"canlaw/pkg/domain"
)

// evaluateLookup maps the key slot's value through the table. Any value
// without a canonical scalar form (missing, null, lists, records) falls to
// the default, as does a scalar absent from the mapping.
func evaluateLookup(table slot.LookupTable, inputs map[slot.Key]domain.Value) (domain.Value, error) {
	key, ok := inputs[table.KeySlot].Canonical()
	if !ok {
		return table.Default, nil
	}
	if mapped, ok := table.Mapping[key]; ok {
		return mapped, nil
	}
	return table.Default, nil
}
