package render

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/leeforge/imagevise/media/request"
)

// extractToken reads q and sig according to the token mode. Malformed
// requests end in a bailout.
func (e *Engine) extractToken(r *http.Request) (q, sig string, err error) {
	if e.tokenMode == TokenModeQuery {
		return tokenFromQuery(r)
	}
	return tokenFromPath(r)
}

// tokenFromPath takes the last two path components. Any query string is
// refused.
func tokenFromPath(r *http.Request) (q, sig string, err error) {
	if r.URL.RawQuery != "" {
		return "", "", bail(http.StatusBadRequest, "Query strings are not supported")
	}

	parts := strings.Split(strings.TrimRight(r.URL.Path, "/"), "/")
	if n := len(parts); n >= 2 {
		q, sig = parts[n-2], parts[n-1]
	} else if n == 1 {
		sig = parts[0]
	}
	if q == "" && sig == "" {
		return "", "", bail(http.StatusBadRequest, "Need 2 usable path components")
	}
	return q, sig, nil
}

func tokenFromQuery(r *http.Request) (q, sig string, err error) {
	values := r.URL.Query()

	var unexpected []string
	params := make(map[string]string, 2)
	for key := range values {
		switch key {
		case "q", "sig":
			params[key] = values.Get(key)
		default:
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return "", "", bail(http.StatusBadRequest, fmt.Sprintf("Unexpected query parameters: %s", strings.Join(unexpected, ", ")))
	}

	q, sig, err = request.ParamsFrom(params)
	if err != nil {
		return "", "", bail(http.StatusBadRequest, err.Error())
	}
	return q, sig, nil
}
