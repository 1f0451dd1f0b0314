package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

// GetLatestReadings returns the most recent sample for every sensor of
// the given device identifier.
func (db *Database) GetLatestReadings(ctx context.Context, identifier string) (model.Readings, error) {
	const query = `
	SELECT DISTINCT ON (slug) id, time_stamp, unit_of_measurement, value, identifier, slug
	FROM reading
	WHERE identifier = $1
	ORDER BY slug, time_stamp DESC;
	`

	rows, err := db.conn.Query(ctx, query, identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings model.Readings
	for rows.Next() {
		var reading model.Reading
		if err := rows.Scan(&reading.Id, &reading.TimeStamp, &reading.Unit, &reading.Value, &reading.Identifier, &reading.Slug); err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return readings, nil
		}
		return nil, err
	}

	return readings, nil
}
