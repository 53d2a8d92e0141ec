// Package hawkeye embeds the web UI served by the hawkeye binary.
package hawkeye

import "embed"

// Version is the release version shown at startup
const Version = "0.3.0"

//go:embed web/templates
var WebFS embed.FS
