package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/framecraft/mockupbackend/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// ListStuckProcessing returns the ids of analyses that entered processing
// before the cutoff and never reached a terminal status. These are jobs
// whose worker was killed past the hard timeout; the reclaimer forces them
// to manual so no record is ever left in processing forever.
func ListStuckProcessing(db *sql.DB, cutoff time.Time) ([]string, error) {
	queryBuilder := psql.Select("id").
		From(models.WallAnalysis{}.TableName()).
		Where(sq.Eq{"status": models.AnalysisStatusProcessing}).
		Where(sq.Lt{"started_at": cutoff})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build stuck-processing query: %w", err)
	}
	return queryIDs(db, sqlStr, args)
}

// ListExpired returns the ids of analyses created before the cutoff,
// regardless of terminal status. Used by the retention sweeper.
func ListExpired(db *sql.DB, cutoff time.Time) ([]string, error) {
	queryBuilder := psql.Select("id").
		From(models.WallAnalysis{}.TableName()).
		Where(sq.Lt{"created_at": cutoff}).
		OrderBy("created_at ASC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build expired-analyses query: %w", err)
	}
	return queryIDs(db, sqlStr, args)
}

func queryIDs(db *sql.DB, sqlStr string, args []interface{}) ([]string, error) {
	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("maintenance query failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan analysis id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
