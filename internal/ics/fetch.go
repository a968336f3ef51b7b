package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"agendacal/internal/config"
	"agendacal/internal/event"
	appLog "agendacal/internal/log"
	"agendacal/internal/window"
)

// Client fetches ICS subscription sources and turns their VEVENTs into
// the raw records the pipeline consumes, expanding recurrences within
// the requested window. It satisfies the fetch.Fetcher contract.
type Client struct {
	http *http.Client
}

// NewClient creates a new ICS Client.
func NewClient() *Client {
	return &Client{
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Events fetches and expands one ICS source for the given window.
func (c *Client) Events(ctx context.Context, src *config.SourceConfig, r window.Range) ([]event.Raw, error) {
	body, err := c.fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseICS(src, body)
	if err != nil {
		return nil, err
	}

	result, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: r.Start.Location(),
		RangeStart:      r.Start,
		RangeEnd:        r.End,
	})
	if err != nil {
		return nil, err
	}

	records := make([]event.Raw, 0, len(result.Occurrences))
	for _, occ := range result.Occurrences {
		records = append(records, occ.Record())
	}
	return records, nil
}

// fetch retrieves the raw ICS body for a source.
func (c *Client) fetch(ctx context.Context, src *config.SourceConfig) ([]byte, error) {
	if src.ICSURL == "" {
		return nil, errors.New("ics: source URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.ICSURL, nil)
	if err != nil {
		return nil, err
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.ICSURL))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics %q: %w", src.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ics %q: %s", src.ID, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ics %q: %w", src.ID, err)
	}

	appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.ICSURL), "bytes", len(body))
	return body, nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
// Subscription URLs routinely embed access tokens in path or query.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	// Find scheme separator.
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	// Find next slash after host.
	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}

	host := u[:j]
	return host + redactedSuffix
}
