package analytics

import (
	"fmt"
	"strings"
	"time"
)

// telemetry rows land in this table, one row per asset record,
// with the record body as a JSON column named "payload".
const tableName = "asset_records"

// BuildCountQuery renders the counting query for CountRecords.
//
// A row matches when its payload carries every given feature attribute as a
// JSON member. The asset type is bound as the named parameter @asset_type_id;
// attribute names are interpolated into JSON paths with single quotes doubled.
func BuildCountQuery(project string, dataset string, attributes []string) string {
	predicates := make([]string, 0, len(attributes))
	for _, a := range attributes {
		predicates = append(
			predicates,
			fmt.Sprintf(`JSON_QUERY(payload, '$."%s"') IS NOT NULL`, escapePathMember(a)),
		)
	}

	return fmt.Sprintf(
		"SELECT COUNT(*) FROM `%s.%s.%s` WHERE asset_type_id = @asset_type_id AND %s",
		project, dataset, tableName,
		strings.Join(predicates, " AND "),
	)
}

// BuildPurgeQuery renders the deletion query for Purge.
// The asset type is bound as the named parameter @asset_type_id.
func BuildPurgeQuery(project string, dataset string, olderThan time.Duration) string {
	return fmt.Sprintf(
		"DELETE FROM `%s.%s.%s` WHERE asset_type_id = @asset_type_id"+
			" AND ingested_at < TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL %d MINUTE)",
		project, dataset, tableName,
		int(olderThan/time.Minute),
	)
}

// escapePathMember makes an attribute name safe both as a SQL string literal
// (single quotes doubled) and as a quoted JSON path member (double quotes and
// backslashes escaped).
func escapePathMember(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "'", "''")
}
