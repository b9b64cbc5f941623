package embed

import "errors"

var errNoLoaderConfigured = errors.New("embed: no model loader configured")
