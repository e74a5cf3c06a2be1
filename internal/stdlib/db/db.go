// Package db is the FFI/native-call collaborator named in SPEC_FULL.md
// §3 "internal/stdlib/db": a `db` built-in module exposing `connect(driver,
// dsn)`, returning a connection object whose `query`/`exec`/`close` are
// dispatched through the getattr bound-method protocol (spec §4.4) rather
// than as free functions, the same shape user-defined `type` blocks get.
// Grounded on the teacher's internal/database/database.go (driver-name
// switch, generic []interface{} row scanning, DBConnection bookkeeping),
// rewritten against this tree's object.Type/Slots dispatch and
// object.NativeFn calling convention instead of the teacher's Value/error
// pair.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	// The driver set SPEC_FULL.md settles on: the teacher's four blank
	// imports minus modernc.org/sqlite, dropped as a redundant second
	// pure-Go SQLite binding layered under mattn/go-sqlite3's cgo driver
	// (see DESIGN.md).
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"kvm/internal/object"
	"kvm/internal/vmerr"
)

// ConnType is the type of values connect() returns. It embeds ObjectType
// so its getattr/setattr fall back to the standard bound-method dispatch
// (object.go's objectGetAttr) once Methods is populated below.
var ConnType = object.NewType("db_connection", object.ObjectType)

type Conn struct {
	object.Header
	driver   string
	dsn      string
	db       *sql.DB
	mu       sync.Mutex
	closed   bool
	lastUsed time.Time
}

func newConn(driver, dsn string, sqlDB *sql.DB) *Conn {
	return &Conn{Header: object.NewHeader(ConnType), driver: driver, dsn: dsn, db: sqlDB, lastUsed: time.Now()}
}

// driverFor maps the script-facing database-type name to the Go sql
// driver name registered by one of this file's blank imports.
func driverFor(dbType string) (string, bool) {
	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		return "sqlite3", true
	case "postgres", "postgresql":
		return "postgres", true
	case "mysql":
		return "mysql", true
	case "sqlserver", "mssql":
		return "sqlserver", true
	default:
		return "", false
	}
}

func connect(driver, dsn string) (*Conn, object.Object) {
	driverName, ok := driverFor(driver)
	if !ok {
		return nil, object.NewException(vmerr.ValError, fmt.Sprintf("unsupported database driver: %s", driver))
	}
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return newConn(driver, dsn, sqlDB), nil
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastUsed = time.Now()
	c.mu.Unlock()
}

func (c *Conn) checkOpen() object.Object {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return object.NewException(vmerr.ValError, "operation on a closed database connection")
	}
	return nil
}

// query implements the "query" bound method: query(sql, *params) -> list
// of row dicts.
func (c *Conn) query(args []object.Object) (object.Object, object.Object) {
	if exc := c.checkOpen(); exc != nil {
		return nil, exc
	}
	if len(args) < 1 {
		return nil, object.NewException(vmerr.ArgError, "query() takes at least 1 argument")
	}
	queryStr, exc := strArg(args[0], "query")
	if exc != nil {
		return nil, exc
	}
	goArgs, exc := toGoArgs(args[1:])
	if exc != nil {
		return nil, exc
	}
	rows, err := c.db.Query(queryStr, goArgs...)
	if err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}

	out := make([]object.Object, 0)
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, object.NewException(vmerr.OSError, err.Error())
		}
		d := object.NewDict()
		for i, col := range cols {
			d.Set(object.NewStr(col), fromGoValue(vals[i]))
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	c.touch()
	return object.NewList(out), nil
}

// exec implements the "exec" bound method: exec(sql, *params) -> rows
// affected, for INSERT/UPDATE/DELETE/DDL statements.
func (c *Conn) exec(args []object.Object) (object.Object, object.Object) {
	if exc := c.checkOpen(); exc != nil {
		return nil, exc
	}
	if len(args) < 1 {
		return nil, object.NewException(vmerr.ArgError, "exec() takes at least 1 argument")
	}
	queryStr, exc := strArg(args[0], "exec")
	if exc != nil {
		return nil, exc
	}
	goArgs, exc := toGoArgs(args[1:])
	if exc != nil {
		return nil, exc
	}
	res, err := c.db.Exec(queryStr, goArgs...)
	if err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	c.touch()
	n, err := res.RowsAffected()
	if err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	return object.NewInt(n), nil
}

// close implements the "close" bound method.
func (c *Conn) close(args []object.Object) (object.Object, object.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return object.NoneVal, nil
	}
	c.closed = true
	if err := c.db.Close(); err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	return object.NoneVal, nil
}

func init() {
	ConnType.Methods = map[string]object.Object{
		"query": object.NewNative("query", boundMethod(func(c *Conn, args []object.Object) (object.Object, object.Object) {
			return c.query(args)
		})),
		"exec": object.NewNative("exec", boundMethod(func(c *Conn, args []object.Object) (object.Object, object.Object) {
			return c.exec(args)
		})),
		"close": object.NewNative("close", boundMethod(func(c *Conn, args []object.Object) (object.Object, object.Object) {
			return c.close(args)
		})),
	}
}

// boundMethod adapts a (*Conn, args) method into the NativeFn shape
// objectGetAttr's bound-method partial calls: args[0] is the receiver
// (pre-bound by the getattr partial), the rest are the call's own args.
func boundMethod(fn func(*Conn, []object.Object) (object.Object, object.Object)) object.NativeFn {
	return func(args []object.Object) (object.Object, object.Object) {
		if len(args) < 1 {
			return nil, object.NewException(vmerr.InternalError, "db method called with no receiver")
		}
		c, ok := args[0].(*Conn)
		if !ok {
			return nil, object.NewException(vmerr.TypeError, "db method called on a non-connection value")
		}
		return fn(c, args[1:])
	}
}

func strArg(o object.Object, fn string) (string, object.Object) {
	s, ok := o.(*object.Str)
	if !ok {
		return "", object.NewException(vmerr.TypeError, fn+"() argument must be a string")
	}
	return s.Value(), nil
}

func toGoArgs(args []object.Object) ([]interface{}, object.Object) {
	out := make([]interface{}, len(args))
	for i, a := range args {
		v, exc := toGoValue(a)
		if exc != nil {
			return nil, exc
		}
		out[i] = v
	}
	return out, nil
}

func toGoValue(o object.Object) (interface{}, object.Object) {
	switch v := o.(type) {
	case *object.None:
		return nil, nil
	case *object.Bool:
		return v.Val, nil
	case *object.Int:
		return v.Val.String(), nil
	case *object.Float:
		return v.Val, nil
	case *object.Str:
		return v.Value(), nil
	case *object.Bytes:
		return v.Value(), nil
	default:
		s, exc := object.StrOf(o)
		if exc != nil {
			return nil, exc
		}
		return s, nil
	}
}

func fromGoValue(v interface{}) object.Object {
	switch val := v.(type) {
	case nil:
		return object.NoneVal
	case []byte:
		return object.NewStr(string(val))
	case string:
		return object.NewStr(val)
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case bool:
		return object.NewBool(val)
	case time.Time:
		return object.NewStr(val.Format(time.RFC3339))
	default:
		return object.NewStr(fmt.Sprintf("%v", val))
	}
}

// Escape applies conservative SQL-literal escaping for callers building
// query strings by hand; the query()/exec() placeholder-parameter path
// above remains the preferred, injection-safe route.
func Escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString("''")
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
