package services

import "database/sql"

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
