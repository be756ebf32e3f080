package data

import _ "embed"

// Built-in data used when no path is configured.
var (
	//go:embed defaults/effects.yaml
	defaultEffects []byte

	//go:embed defaults/attributes.yaml
	defaultAttributes []byte

	//go:embed defaults/scenario.yaml
	defaultScenario []byte
)
