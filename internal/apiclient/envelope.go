package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"boutique/backoffice/internal/apperr"
)

// maxPages bounds how many "next" links a list call follows.
const maxPages = 50

// ListEnvelope is a list response in either shape the backend emits: a bare
// JSON array, or a paginated object carrying "results". Anything else is a
// decode error rather than an empty list.
type ListEnvelope[T any] struct {
	Paginated bool
	Count     int
	Next      string
	Items     []T
}

func (e *ListEnvelope[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty list body")
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*e = ListEnvelope[T]{Items: items, Count: len(items)}
		return nil
	case '{':
		var page struct {
			Count   *int             `json:"count"`
			Next    *string          `json:"next"`
			Results *json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return err
		}
		if page.Results == nil {
			return fmt.Errorf("object list body has no results field")
		}
		results := bytes.TrimSpace(*page.Results)
		if len(results) == 0 || results[0] != '[' {
			return fmt.Errorf("results field is not an array")
		}
		var items []T
		if err := json.Unmarshal(results, &items); err != nil {
			return err
		}
		out := ListEnvelope[T]{Paginated: true, Items: items, Count: len(items)}
		if page.Count != nil {
			out.Count = *page.Count
		}
		if page.Next != nil {
			out.Next = *page.Next
		}
		*e = out
		return nil
	default:
		return fmt.Errorf("list body is neither an array nor a results object")
	}
}

// listAll fetches path and follows pagination links.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	req := request{method: http.MethodGet, path: path, query: query}
	var all []T
	for page := 0; page < maxPages; page++ {
		var env ListEnvelope[T]
		if err := c.doJSON(ctx, req, &env); err != nil {
			return nil, asMalformed(err)
		}
		all = append(all, env.Items...)
		if env.Next == "" || query.Get("limit") != "" {
			return all, nil
		}
		next, err := c.sameOrigin(env.Next)
		if err != nil {
			return nil, err
		}
		req = request{method: http.MethodGet, path: path, absoluteURL: next}
	}
	c.logger.WithField("path", path).Warn("stopped following pagination links")
	return all, nil
}

// sameOrigin resolves a pagination link against the base URL and refuses
// links to another scheme or host, which would receive the bearer token.
func (c *Client) sameOrigin(link string) (string, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u, err := base.Parse(link)
	if err != nil {
		return "", &apperr.ServerError{Detail: "malformed pagination link", Err: err}
	}
	if u.Scheme != base.Scheme || u.Host != base.Host {
		return "", &apperr.ServerError{Detail: fmt.Sprintf("pagination link leaves %s: %s", base.Host, u.Redacted())}
	}
	return u.String(), nil
}

// asMalformed keeps typed errors and converts raw decode failures.
func asMalformed(err error) error {
	switch err.(type) {
	case *apperr.ServerError, *apperr.NetworkError, *apperr.SessionExpiredError:
		return err
	}
	return &apperr.ServerError{Detail: "malformed list response", Err: err}
}
