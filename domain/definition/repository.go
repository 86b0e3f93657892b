package definition

import (
	"caseflow/bizerror"
)

// ActiveLoader holds the process-wide definition graph. It is assigned
// once at startup, before the HTTP server starts, and is read-only
// afterwards.
var ActiveLoader *Loader

var FindDefinitionFunc = FindDefinition

func FindDefinition(name string) (*Definition, error) {
	if ActiveLoader == nil {
		return nil, &bizerror.ErrEntityNotFound{EntityType: "definition", Key: name}
	}
	d, found := ActiveLoader.Definitions[name]
	if !found {
		return nil, &bizerror.ErrEntityNotFound{EntityType: "definition", Key: name}
	}
	return d, nil
}
