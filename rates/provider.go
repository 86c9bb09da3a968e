package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/PaesslerAG/jsonpath"
)

// DefaultURL is the public quote endpoint, rates per USD.
const DefaultURL = "https://api.exchangerate-api.com/v4/latest/USD"

// DefaultPath selects the code->rate object in the DefaultURL payload.
const DefaultPath = "$.rates"

// HTTPProvider fetches a JSON quote document and extracts the rate object
// with a JSONPath expression.
type HTTPProvider struct {
	Client *http.Client
	URL    string
	Path   string
}

// NewHTTPProvider returns a provider for url and path, using the defaults for
// empty values.
func NewHTTPProvider(url, path string) *HTTPProvider {
	if url == "" {
		url = DefaultURL
	}
	if path == "" {
		path = DefaultPath
	}
	return &HTTPProvider{Client: new(http.Client), URL: url, Path: path}
}

// Fetch implements Provider.
func (p *HTTPProvider) Fetch(ctx context.Context) (Table, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	var jobj any
	if err := jwget(ctx, client, p.URL, &jobj); err != nil {
		return nil, fmt.Errorf("error retrieving rates: %w", err)
	}
	jval, err := jsonpath.Get(p.Path, jobj)
	if err != nil {
		return nil, fmt.Errorf("error parsing rates: %q %w", p.Path, err)
	}
	// jsonpath may wrap a single match in a list.
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	jmap, ok := jval.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("error parsing rates: %q is not an object: %T", p.Path, jval)
	}
	t := make(Table, len(jmap))
	for code, v := range jmap {
		r, ok := v.(float64)
		if !ok || r <= 0 {
			continue
		}
		t[code] = r
	}
	if len(t) == 0 {
		return nil, ErrEmptyTable
	}
	if _, ok := t["USD"]; !ok {
		t["USD"] = 1
	}
	return t, nil
}

// jwget performs an HTTP GET request to the given address and unmarshals the
// JSON response body into data.
func jwget(ctx context.Context, client *http.Client, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), data)
}
