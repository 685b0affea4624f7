package extbuilder

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
)

func newGetRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "Invalid URL %s", url)
	}

	req.Header.Set("User-Agent", "jelbuild")
	return req, nil
}
