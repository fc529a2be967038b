package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/invopop/jsonschema"
	"github.com/yuin/goldmark"

	"github.com/arclane/conduit/pkg/tool"
)

// WebFetch retrieves a URL and extracts its readable content, grounded on
// pkg/tools/web_request.go, reworked to extract article text via
// go-readability instead of returning raw HTML so the model sees prose
// instead of markup noise.
type WebFetch struct {
	Client  *http.Client
	Timeout time.Duration
}

const defaultFetchTimeout = 15 * time.Second

func (WebFetch) Definition() tool.Def {
	return tool.Def{
		Name:        "web_fetch",
		Description: "Fetch a URL and return its main readable content as plain text.",
		InputSchema: &jsonschema.Schema{Required: []string{"url"}},
	}
}

func (w WebFetch) Execute(ctx context.Context, ectx tool.ExecContext, args map[string]any) (string, error) {
	raw, _ := args["url"].(string)
	if raw == "" {
		return "", fmt.Errorf("web_fetch: url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("web_fetch: invalid url %q", raw)
	}

	timeout := w.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, raw, nil)
	if err != nil {
		return "", fmt.Errorf("web_fetch: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web_fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("web_fetch: %s returned %d", raw, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		return "", fmt.Errorf("web_fetch: extract content: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("web_fetch: no readable content found at %s", raw)
	}
	return text, nil
}

// RenderMarkdownReport writes a title and the named sections, in the
// given order, as a markdown document and converts it to HTML with
// goldmark; names in order that are missing from sections are skipped.
func RenderMarkdownReport(title string, sections map[string]string, order []string) (string, error) {
	var src strings.Builder
	fmt.Fprintf(&src, "# %s\n\n", title)
	for _, name := range order {
		body, ok := sections[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&src, "## %s\n\n%s\n\n", name, body)
	}

	md := goldmark.New()
	var rendered strings.Builder
	if err := md.Convert([]byte(src.String()), &rendered); err != nil {
		return "", fmt.Errorf("render markdown report: %w", err)
	}
	return rendered.String(), nil
}
