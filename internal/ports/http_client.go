package ports

import "net/http"

// HTTPClient abstracts HTTP operations so the liveness probe can run
// against a fake transport in tests. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
