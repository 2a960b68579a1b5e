// Package spacetrack implements the upstream TLE catalog provider named in
// spec §6: a username/password-authenticated HTTP client returning
// newline-separated TLE triples. Adapted from the STPOST/query-string
// conventions in other_examples' deorbit-satfetch satfetch.go, generalized
// from its CSV-only SATCAT fetch to the tle_latest/gp capability pair spec.md
// requires.
package spacetrack

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultLoginURL = "https://www.space-track.org/ajaxauth/login"
const defaultAPIRoot = "https://www.space-track.org/basicspacedata"

// Client fetches TLE snapshots from Space-Track-compatible upstreams.
type Client struct {
	user, pass string
	loginURL   string
	apiRoot    string
	httpClient *http.Client
}

// New builds a client from the given credentials. An empty user or pass
// yields a client whose calls always fail fast with ErrNoCredentials; the
// catalog service checks HasCredentials first, skips the refresh, and keeps
// its previous snapshot.
func New(user, pass string) *Client {
	return &Client{
		user:     user,
		pass:     pass,
		loginURL: defaultLoginURL,
		apiRoot:  defaultAPIRoot,
		httpClient: &http.Client{},
	}
}

// ErrNoCredentials is returned when SPACETRACK_USER/SPACETRACK_PASS are unset.
var ErrNoCredentials = fmt.Errorf("spacetrack: no credentials configured")

func (c *Client) HasCredentials() bool {
	return c.user != "" && c.pass != ""
}

// post authenticates and issues one query, mirroring satfetch.go's STPOST.
func (c *Client) post(ctx context.Context, query string) ([]byte, error) {
	if !c.HasCredentials() {
		return nil, ErrNoCredentials
	}
	form := url.Values{
		"identity": {c.user},
		"password": {c.pass},
		"query":    {c.apiRoot + query},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spacetrack: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spacetrack: upstream returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// TLELatest returns the latest TLE of up to limit objects, ordered by line 1
// (catalog number ascending), as a newline-separated name/line1/line2 stream
// (spec §6).
func (c *Client) TLELatest(ctx context.Context, limit int) (string, error) {
	q := fmt.Sprintf("/query/class/tle_latest/ORDINAL/1/orderby/TLE_LINE1 ASC/limit/%d/format/3le", limit)
	body, err := c.post(ctx, q)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GP returns the freshest TLE for one NORAD object.
func (c *Client) GP(ctx context.Context, noradID int) (string, error) {
	q := fmt.Sprintf("/query/class/gp/NORAD_CAT_ID/%d/orderby/EPOCH desc/limit/1/format/3le", noradID)
	body, err := c.post(ctx, q)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
