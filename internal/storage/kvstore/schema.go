// ABOUTME: Versioned collection schema and the migration steps that build it
// ABOUTME: Only steps newer than the stored version run on open
package kvstore

// Index declares a secondary index over one record field.
type Index struct {
	Name   string `json:"name"`
	Field  string `json:"field"`
	Unique bool   `json:"unique,omitempty"`
}

// Collection declares a named set of records with a key field.
type Collection struct {
	Name          string  `json:"name"`
	KeyPath       string  `json:"key_path"`
	AutoIncrement bool    `json:"auto_increment,omitempty"`
	Indexes       []Index `json:"indexes,omitempty"`
}

func (c Collection) index(name string) (Index, bool) {
	for _, idx := range c.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// Migration is one additive schema step.
type Migration struct {
	Version int
	Name    string
	Apply   func(tx *Tx) error
}

// Collection names used by the storage manager.
const (
	CollectionMeta    = "meta"
	CollectionImages  = "images"
	CollectionBackups = "backups"
)

// DefaultMigrations is the schema history of the toolbox store.
var DefaultMigrations = []Migration{
	{
		Version: 1,
		Name:    "create meta and images",
		Apply: func(tx *Tx) error {
			if err := tx.CreateCollection(Collection{Name: CollectionMeta, KeyPath: "key"}); err != nil {
				return err
			}
			return tx.CreateCollection(Collection{Name: CollectionImages, KeyPath: "name"})
		},
	},
	{
		Version: 2,
		Name:    "create backups",
		Apply: func(tx *Tx) error {
			return tx.CreateCollection(Collection{
				Name:          CollectionBackups,
				KeyPath:       "id",
				AutoIncrement: true,
				Indexes:       []Index{{Name: "created_at", Field: "created_at"}},
			})
		},
	},
	{
		Version: 3,
		Name:    "index images by updated_at",
		Apply: func(tx *Tx) error {
			return tx.CreateIndex(CollectionImages, Index{Name: "updated_at", Field: "updated_at"})
		},
	},
}

// SchemaVersion is the version reached by DefaultMigrations.
func SchemaVersion() int {
	return latestVersion(DefaultMigrations)
}

func latestVersion(migrations []Migration) int {
	v := 0
	for _, m := range migrations {
		if m.Version > v {
			v = m.Version
		}
	}
	return v
}
