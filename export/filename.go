package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/stixgraph/stixgraph/connector"
	"github.com/stixgraph/stixgraph/observable"
	"github.com/stixgraph/stixgraph/store"
)

// formatExtensions maps export mime types to file extensions.
var formatExtensions = map[string]string{
	"application/json":      "json",
	"application/xml":       "xml",
	"application/pdf":       "pdf",
	"text/csv":              "csv",
	"text/plain":            "txt",
	"application/stix+json": "json",
}

// extensionFor returns the file extension of an export format, defaulting
// to "bin" for unknown mime types.
func extensionFor(format string) string {
	if ext, ok := formatExtensions[format]; ok {
		return ext
	}
	return "bin"
}

// GenerateExportFileName synthesizes the destination file name of one
// export task. The name encodes the creation instant, the bounding marking
// (when any), the producing connector, the export type, and the exported
// entity, so a directory of exports reads chronologically and every file
// is traceable to what produced it.
//
// Shape: <ts>Z[_<marking>]_(<connector>)[_<exportType>]_<scope>_<name>.<ext>
func GenerateExportFileName(format string, conn *connector.Connector, entity *store.Entity, scope, exportType string, marking *store.Entity) string {
	parts := []string{time.Now().UTC().Format("20060102T150405") + "Z"}

	if marking != nil {
		if definition, ok := marking.Attr("definition"); ok {
			parts = append(parts, definition)
		}
	}
	parts = append(parts, fmt.Sprintf("(%s)", conn.Name))
	if exportType != "" {
		parts = append(parts, exportType)
	}

	entityScope := "all"
	entityName := scope
	if entity != nil {
		entityScope = entity.EntityType
		if value, ok := observable.ResolveValue(entity); ok {
			entityName = value
		}
	}
	parts = append(parts, entityScope, entityName)

	return strings.Join(parts, "_") + "." + extensionFor(format)
}
