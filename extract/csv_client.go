package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/opsdata/etl-scripts/config"
	"github.com/opsdata/etl-scripts/frame"
)

// CSVClient downloads CSV files over HTTP, retrying transient failures.
type CSVClient struct {
	HTTPClient *retryablehttp.Client
	Logger     *slog.Logger
}

func NewCSVClient(config *config.Config, logger *slog.Logger) *CSVClient {
	client := &CSVClient{
		HTTPClient: retryablehttp.NewClient(),
		Logger:     logger,
	}

	client.HTTPClient.RetryWaitMin = config.Extract.Backoff.RetryWaitMin
	client.HTTPClient.RetryWaitMax = config.Extract.Backoff.RetryWaitMax
	client.HTTPClient.RetryMax = config.Extract.Backoff.RetryMax
	client.HTTPClient.Logger = logger

	return client
}

// FetchCSV downloads url and parses the body as CSV with a header row.
func (c *CSVClient) FetchCSV(ctx context.Context, url, description string) (*frame.Frame, error) {
	body, err := c.FetchData(ctx, url, description)
	if err != nil {
		return nil, err
	}

	f, err := frame.FromCSVBytes(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the `%s` file: %w", description, err)
	}
	c.Logger.Info(fmt.Sprintf("Downloaded %d rows of %s", f.Len(), description))
	return f, nil
}

// FetchData handles the common logic of making the HTTP request and checking the response status
func (c *CSVClient) FetchData(ctx context.Context, url, description string) ([]byte, error) {
	body, resp, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the `%s` file: %w", description, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch the `%s` file, status: %s, body: %s", description, resp.Status, string(body))
	}

	return body, nil
}

// get fetches the URL and returns the body and response
func (c *CSVClient) get(ctx context.Context, url string) (body []byte, resp *http.Response, err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err = c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return body, resp, nil
}
