// Package scripts embeds the Risor extraction scripts shipped with strata.
package scripts

import "embed"

// FS holds extract/*.risor. Paths are relative to this directory, e.g.
// "extract/cpp.risor".
//
//go:embed extract/*.risor
var FS embed.FS
