// Package dbconfig reads and writes databases.json, the list of database
// connections an agent backs up.
package dbconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/portabase/cli/cmd/portabase/cli/jsonutil"
	"github.com/portabase/cli/cmd/portabase/cli/paths"
)

// Database types understood by the agent.
const (
	TypePostgres = "postgresql"
	TypeMySQL    = "mysql"
	TypeMariaDB  = "mariadb"
	TypeMongoDB  = "mongodb"
)

// fileMode lets the agent container, which runs as another user, rewrite
// the file.
const fileMode os.FileMode = 0o666

// ErrNoSuchDatabase is returned by Remove for an out-of-range index.
var ErrNoSuchDatabase = errors.New("no such database")

// Database is one connection entry. Entries read from disk remember their
// original JSON: keys this package does not know, and values it had to
// coerce (a port written as "5432"), are written back unchanged.
type Database struct {
	Name        string
	Database    string
	Type        string
	Username    string
	Password    string
	Port        int
	Host        string
	GeneratedID string

	raw  map[string]json.RawMessage
	seen map[string]any
	// opaque is an entry that is not a JSON object.
	opaque json.RawMessage
}

// fieldKeys is the order known keys are written in.
var fieldKeys = []string{"name", "database", "type", "username", "password", "port", "host", "generatedId"}

// legacyIDKey is how older agent scaffolds spelled generatedId.
const legacyIDKey = "generated_id"

func (d *Database) fields() map[string]any {
	return map[string]any{
		"name":        d.Name,
		"database":    d.Database,
		"type":        d.Type,
		"username":    d.Username,
		"password":    d.Password,
		"port":        d.Port,
		"host":        d.Host,
		"generatedId": d.GeneratedID,
	}
}

func (d *Database) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*d = Database{opaque: slices.Clone(data)}
		return nil //nolint:nilerr // kept verbatim
	}
	*d = Database{
		Name:        looseString(raw["name"]),
		Database:    looseString(raw["database"]),
		Type:        looseString(raw["type"]),
		Username:    looseString(raw["username"]),
		Password:    looseString(raw["password"]),
		Port:        loosePort(raw["port"]),
		Host:        looseString(raw["host"]),
		GeneratedID: looseString(raw["generatedId"]),
		raw:         raw,
	}
	if d.GeneratedID == "" {
		d.GeneratedID = looseString(raw[legacyIDKey])
	}
	d.seen = d.fields()
	return nil
}

func (d Database) MarshalJSON() ([]byte, error) {
	if d.opaque != nil {
		return d.opaque, nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, value json.RawMessage) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
	}

	current := d.fields()
	for _, key := range fieldKeys {
		value := current[key]
		original, present := d.raw[key]
		switch {
		case present && d.seen[key] == value:
			write(key, original)
		case !present && d.seen[key] == value && d.raw != nil:
			// Absent on disk (or stored under the legacy id key): leave it so.
		case key == "database" && value == "":
		default:
			b, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}
			write(key, b)
		}
	}

	rest := slices.Sorted(maps.Keys(d.raw))
	for _, key := range rest {
		if !slices.Contains(fieldKeys, key) {
			write(key, d.raw[key])
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// looseString reads a JSON string, or the literal text of a number or bool.
func looseString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" || strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return ""
	}
	return text
}

// loosePort accepts 5432, 5432.0 and "5432". Anything else is 0.
func loosePort(raw json.RawMessage) int {
	if raw == nil {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	n, err := strconv.Atoi(strings.TrimSpace(looseString(raw)))
	if err != nil {
		return 0
	}
	return n
}

// Label is how a database is offered in pickers: "name (type)".
func (d Database) Label() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Type)
}

// ShortID abbreviates GeneratedID for tables.
func (d Database) ShortID() string {
	if len(d.GeneratedID) <= 8 {
		return d.GeneratedID
	}
	return d.GeneratedID[:8] + "..."
}

// File is the on-disk document. Top-level keys other than "databases"
// are kept as read.
type File struct {
	Databases []Database

	rest map[string]json.RawMessage
}

func (f *File) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	var dbs []Database
	if raw, ok := doc["databases"]; ok {
		if err := json.Unmarshal(raw, &dbs); err != nil {
			return fmt.Errorf("databases: %w", err)
		}
	}
	delete(doc, "databases")
	*f = File{Databases: dbs, rest: doc}
	return nil
}

func (f File) MarshalJSON() ([]byte, error) {
	dbs := f.Databases
	if dbs == nil {
		dbs = []Database{}
	}
	list, err := json.Marshal(dbs)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]json.RawMessage, len(f.rest)+1)
	maps.Copy(doc, f.rest)
	doc["databases"] = list
	return json.Marshal(doc)
}

// DefaultPort is the conventional port of a database type.
func DefaultPort(dbType string) int {
	switch dbType {
	case TypePostgres:
		return 5432
	case TypeMongoDB:
		return 27017
	default:
		return 3306
	}
}

// Path returns the databases.json path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, paths.DatabasesFileName)
}

// Load reads dir/databases.json. A missing file, or one that is not valid
// JSON, yields an empty list so a damaged file never blocks adding a
// database. Entries with unexpected value types still load.
func Load(dir string) *File {
	data, err := os.ReadFile(Path(dir)) //nolint:gosec // path is inside the user's stack directory
	if err != nil {
		return &File{Databases: []Database{}}
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return &File{Databases: []Database{}}
	}
	if f.Databases == nil {
		f.Databases = []Database{}
	}
	return &f
}

// Save writes f to dir/databases.json.
func Save(dir string, f *File) error {
	if err := jsonutil.WriteFileAtomic(Path(dir), f, fileMode); err != nil {
		return fmt.Errorf("saving %s: %w", paths.DatabasesFileName, err)
	}
	return nil
}

// Init creates an empty databases.json unless one exists.
func Init(dir string) error {
	if _, err := os.Stat(Path(dir)); err == nil {
		return nil
	}
	return Save(dir, &File{})
}

// Add appends db, assigning a GeneratedID when it has none, and returns
// the stored entry.
func Add(dir string, db Database) (Database, error) {
	if db.GeneratedID == "" {
		db.GeneratedID = uuid.NewString()
	}
	f := Load(dir)
	f.Databases = append(f.Databases, db)
	if err := Save(dir, f); err != nil {
		return Database{}, err
	}
	return db, nil
}

// Remove deletes the entry at index and returns it.
func Remove(dir string, index int) (Database, error) {
	f := Load(dir)
	if index < 0 || index >= len(f.Databases) {
		return Database{}, fmt.Errorf("%w at index %d", ErrNoSuchDatabase, index)
	}
	removed := f.Databases[index]
	f.Databases = append(f.Databases[:index], f.Databases[index+1:]...)
	if err := Save(dir, f); err != nil {
		return Database{}, err
	}
	return removed, nil
}
