package offsetstore

import (
	"encoding/json"
	"fmt"
	"os"

	"multiview-sync/internal/syncengine"
)

// LoadStatic reads published offset records from a JSON array at path and
// builds the role offset table for season. An empty path yields an empty table.
func LoadStatic(path string, season int) (syncengine.StaticOffsets, error) {
	if path == "" {
		return syncengine.StaticOffsets{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read static offsets: %w", err)
	}

	var records []syncengine.OffsetRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode static offsets %s: %w", path, err)
	}
	return syncengine.BuildStaticOffsets(records, season), nil
}
