package quora

import (
	"context"
	"net/url"
)

// FetchAll drives the pagination loop for one resource: call, append the
// data page, follow paging.next until no cursor remains. Client failures
// (exhausted retries, application errors) end the loop and return the
// records accumulated so far; per-resource failures are logged here and
// never propagate. After the first page the query params are cleared, as
// the cursor URL is self-contained.
func (c *Client) FetchAll(ctx context.Context, rawURL string, params url.Values) []RawRecord {
	var records []RawRecord
	for {
		env, err := c.Get(ctx, rawURL, params)
		if err != nil {
			logEarlyEnd(rawURL, err)
			return records
		}

		records = append(records, env.Data...)

		if env.Paging.Next == "" {
			return records
		}
		rawURL = env.Paging.Next
		params = nil
	}
}
