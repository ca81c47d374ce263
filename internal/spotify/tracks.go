package spotify

import (
	"context"

	"github.com/zmb3/spotify/v2"
)

// searchLimit matches the number of results the search UI renders.
const searchLimit = 10

// Search looks up tracks matching query.
// Returns an empty slice (not nil) when nothing matches.
func (c *Client) Search(ctx context.Context, accessToken, query string) ([]Track, error) {
	cl := c.begin(accessToken)

	result, err := cl.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(searchLimit))
	if err != nil {
		return nil, cl.fail("search", err)
	}

	if result.Tracks == nil || result.Tracks.Tracks == nil {
		return []Track{}, nil
	}
	return result.Tracks.Tracks, nil
}
