package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"canlaw/contracts/slotconfig"
	"canlaw/internal/slot"
	slotstore "canlaw/internal/slot/store"
)

// seedRegistry loads slot definitions from a JSON file holding an array of
// slot configuration records and writes them into the registry. Invalid
// records abort the load so a bad seed file never half-populates the store.
func seedRegistry(ctx context.Context, registry slotstore.Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var records []slotconfig.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	for i := range records {
		s, err := slot.FromRecord(&records[i])
		if err != nil {
			return fmt.Errorf("seed record %q: %w", records[i].Key, err)
		}
		if err := registry.PutSlot(ctx, s); err != nil {
			return fmt.Errorf("store slot %q: %w", records[i].Key, err)
		}
	}
	return nil
}
