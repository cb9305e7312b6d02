// Package mapapi is a thin client for the account/map HTTP API the relay
// coexists with. Responses are opaque lookup results; none of them become
// relay state.
package mapapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// MapSummary is the slice of a map record the relay cares about.
type MapSummary struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Color   string          `json:"color"`
	Config  json.RawMessage `json:"config"`
	OwnerPs string          `json:"-"`
}

// MapID renders the numeric id the way the wire protocol expects it.
func (m MapSummary) MapID() string { return strconv.FormatInt(m.ID, 10) }

type Client struct {
	base  string
	httpc *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base:  baseURL,
		httpc: &http.Client{Timeout: timeout},
	}
}

// OwnMap fetches the caller's own map config.
func (c *Client) OwnMap(ctx context.Context, token string) (MapSummary, error) {
	var out MapSummary
	if err := c.get(ctx, c.base+"/user/map", token, &out); err != nil {
		return MapSummary{}, err
	}
	return out, nil
}

type byPseudoResponse struct {
	Map   MapSummary `json:"map"`
	Owner struct {
		Pseudo string `json:"pseudo"`
		XP     int64  `json:"xp"`
	} `json:"owner"`
}

// MapByPseudo fetches another player's map by their pseudonym.
func (c *Client) MapByPseudo(ctx context.Context, token, pseudo string) (MapSummary, error) {
	var out byPseudoResponse
	endpoint := c.base + "/map/by-pseudo/" + url.PathEscape(pseudo)
	if err := c.get(ctx, endpoint, token, &out); err != nil {
		return MapSummary{}, err
	}
	m := out.Map
	m.OwnerPs = out.Owner.Pseudo
	return m, nil
}

func (c *Client) get(ctx context.Context, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The API reports failures as {"error": "..."}.
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("map api: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("map api: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
