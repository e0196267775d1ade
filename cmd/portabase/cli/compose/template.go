package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/portabase/cli/cmd/portabase/cli/logging"
)

// TemplateBaseURL hosts the versioned compose templates.
const TemplateBaseURL = "https://portabase-cli.s3.fr-par.scw.cloud/templates/v1"

// Template file names.
const (
	AgentTemplate     = "agent.yml"
	DashboardTemplate = "dashboard.yml"
)

const (
	templateTimeout    = 10 * time.Second
	templateMaxElapsed = 30 * time.Second
	maxTemplateBytes   = 1 << 20
)

// ErrTemplateFetch wraps every failure to download a template.
var ErrTemplateFetch = errors.New("error fetching template")

// Fetcher downloads compose templates, retrying transient failures.
type Fetcher struct {
	BaseURL    string
	HTTPClient *http.Client

	// NewBackOff returns a fresh policy per fetch.
	NewBackOff func() backoff.BackOff
}

// NewFetcher returns a fetcher for the published templates.
func NewFetcher() *Fetcher {
	return &Fetcher{
		BaseURL:    TemplateBaseURL,
		HTTPClient: &http.Client{Timeout: templateTimeout},
		NewBackOff: newTemplateBackoff,
	}
}

func newTemplateBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = templateMaxElapsed
	return bo
}

// URL returns where name is downloaded from.
func (f *Fetcher) URL(name string) string {
	return strings.TrimSuffix(f.BaseURL, "/") + "/" + name
}

// Fetch returns the body of the template called name. Server errors and
// network failures are retried; client errors are not.
func (f *Fetcher) Fetch(ctx context.Context, name string) (string, error) {
	ctx = logging.WithComponent(ctx, "template")
	url := f.URL(name)

	bo := f.NewBackOff
	if bo == nil {
		bo = newTemplateBackoff
	}

	attempts := 0
	var body string
	err := backoff.Retry(func() error {
		attempts++
		b, err := f.get(ctx, url)
		if err != nil {
			var status *statusError
			if errors.As(err, &status) && status.code < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			logging.Debug(ctx, "template fetch failed, retrying",
				slog.String("url", url), slog.Int("attempt", attempts), slog.String("error", err.Error()))
			return err
		}
		body = b
		return nil
	}, backoff.WithContext(bo(), ctx))
	if err != nil {
		return "", fmt.Errorf("%w from %s: %w", ErrTemplateFetch, url, err)
	}
	return body, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%d %s", e.code, http.StatusText(e.code))
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "portabase-cli")

	client := f.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: templateTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err //nolint:wrapcheck // wrapped by Fetch
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTemplateBytes))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(data), nil
}
