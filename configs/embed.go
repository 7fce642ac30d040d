package configs

import _ "embed"

// Views is the built-in list view registry.
//
//go:embed views.yaml
var Views []byte
