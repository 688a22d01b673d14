// Package openapi embeds the published API definition.
package openapi

import _ "embed"

//go:embed swagger.yaml
var Swagger []byte
