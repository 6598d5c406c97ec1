package assetstore

import (
	"database/sql"
	"encoding/json"
	"time"

	"aimatrix/internal/job"
)

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		id         int64
		jobID      string
		sceneID    sql.NullString
		kind       string
		path       string
		metadata   sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&id, &jobID, &sceneID, &kind, &path, &metadata, &createdRaw); err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:      id,
		JobID:   jobID,
		SceneID: sceneID.String,
		Kind:    job.PortType(kind),
		Path:    path,
	}
	if metadata.Valid && metadata.String != "" {
		asset.Metadata = json.RawMessage(metadata.String)
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		asset.CreatedAt = ts
	}
	return asset, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
