package database

import (
	"embed"
	"sort"
)

//go:embed sql/schema/*.sql
var schemaFS embed.FS

// SchemaFiles returns the embedded schema file names in apply order.
func SchemaFiles() []string {
	entries, err := schemaFS.ReadDir("sql/schema")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// SchemaSQL returns the contents of one embedded schema file.
func SchemaSQL(name string) (string, error) {
	data, err := schemaFS.ReadFile("sql/schema/" + name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
