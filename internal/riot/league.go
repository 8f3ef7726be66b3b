package riot

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const soloQueue = "RANKED_SOLO_5x5"

// GetLeagueEntries fetches one page of a paged tier/division listing.
// An empty slice means the listing is exhausted.
func (c *Client) GetLeagueEntries(ctx context.Context, tier, division string, page int) ([]LeagueEntry, error) {
	tier = strings.ToUpper(tier)
	if IsApexTier(tier) {
		return nil, fmt.Errorf("tier %s has no paged listing: %w", tier, ErrConfiguration)
	}
	if division == "" {
		return nil, fmt.Errorf("tier %s requires a division: %w", tier, ErrConfiguration)
	}
	if page < 1 {
		page = 1
	}

	u := fmt.Sprintf("%s/lol/league/v4/entries/%s/%s/%s?page=%s",
		c.platformURL, soloQueue, url.PathEscape(tier), url.PathEscape(division), strconv.Itoa(page))

	var entries []LeagueEntry
	if err := c.getJSON(ctx, u, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetApexLeague fetches the full master/grandmaster/challenger roster
func (c *Client) GetApexLeague(ctx context.Context, tier string) (*LeagueList, error) {
	path, ok := apexLeaguePaths[strings.ToUpper(tier)]
	if !ok {
		return nil, fmt.Errorf("tier %s is not an apex tier: %w", tier, ErrConfiguration)
	}

	u := fmt.Sprintf("%s/lol/league/v4/%s/by-queue/%s", c.platformURL, path, soloQueue)

	var league LeagueList
	if err := c.getJSON(ctx, u, &league); err != nil {
		return nil, err
	}
	return &league, nil
}
