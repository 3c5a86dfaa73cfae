package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Queryable is the union of the sqlx DB and Tx methods that the stores rely
// on, allowing store methods to be used both inside and outside of a
// transaction.
type Queryable interface {
	Exec(query string, args ...any) (sql.Result, error)
	Get(dest any, query string, args ...any) error
	Select(dest any, query string, args ...any) error
	NamedExec(query string, arg any) (sql.Result, error)
	Rebind(query string) string
}

// JsonColumn is a scannable container for a JSON/JSONB column (typically the
// result of a JSONB_AGG in a joined query) which is decoded into T.
type JsonColumn[T any] struct {
	val *T
}

func (col *JsonColumn[T]) Scan(src any) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		col.val = new(T)
		return json.Unmarshal(data, col.val)
	case string:
		col.val = new(T)
		return json.Unmarshal([]byte(data), col.val)
	}

	return fmt.Errorf("unsupported source type %T for JsonColumn", src)
}

func (col JsonColumn[T]) Value() (driver.Value, error) {
	if col.val == nil {
		return nil, nil
	}

	return json.Marshal(*col.val)
}

// Get returns the decoded value, or a zero value if the column was NULL.
func (col *JsonColumn[T]) Get() *T {
	if col.val == nil {
		return new(T)
	}

	return col.val
}
