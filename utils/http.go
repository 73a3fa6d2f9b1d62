// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by the sync workers calling the profile service.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
