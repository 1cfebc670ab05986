package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// LogFields flattens err into structured log fields: the typed code, every
// link of the chain (including joined errors) and, when a postgres driver
// error is inside, its SQLSTATE and constraint details. Empty values are
// omitted.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error_chain": chain(err)}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}
	for k, v := range postgresFields(err) {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

func chain(err error) []string {
	var links []string
	var walk func(error)
	walk = func(e error) {
		for e != nil {
			links = append(links, fmt.Sprintf("%T: %v", e, e))
			if joined, ok := e.(interface{ Unwrap() []error }); ok {
				for _, inner := range joined.Unwrap() {
					walk(inner)
				}
				return
			}
			e = stdErrors.Unwrap(e)
		}
	}
	walk(err)
	return links
}

// postgresFields reads the pgx error behind gorm's postgres dialector.
func postgresFields(err error) map[string]string {
	pgErr := (*pgconn.PgError)(nil)
	if !stdErrors.As(err, &pgErr) {
		return nil
	}
	return map[string]string{
		"pg_code":       pgErr.Code,
		"pg_constraint": pgErr.ConstraintName,
		"pg_table":      pgErr.TableName,
		"pg_column":     pgErr.ColumnName,
		"pg_detail":     pgErr.Detail,
		"pg_message":    pgErr.Message,
	}
}
