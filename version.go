package shutter

import _ "embed"

// Version is the release of the bridge, read from the VERSION file.
//
//go:embed VERSION
var Version string
