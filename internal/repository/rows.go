package repository

// pgxRows is a minimal interface to allow scanning from pgx rows and simplify testing.
type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
