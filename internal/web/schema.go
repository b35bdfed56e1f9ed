package web

import (
	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed rotate.schema.json
var rotateSchemaJSON string

var rotateSchema = jsonschema.MustCompileString("rotate.schema.json", rotateSchemaJSON)
