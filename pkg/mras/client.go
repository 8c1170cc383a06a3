// Package mras implements the media-relay client of spec.md §4.3: it
// asks the MRAS service for short-lived credentials and a list of
// media relays, then resolves each relay's hostname via the host's
// async DNS capability.
package mras

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ocsphone/mediacall/pkg/backend"
)

// Location is the "intranet" or "internet" hint the request carries,
// depending on whether the signed-in session is on the corporate
// network or remote (§4.3).
type Location string

const (
	LocationIntranet Location = "intranet"
	LocationInternet Location = "internet"
)

// xmlRequest is the wire shape of the MRAS request body.
type xmlRequest struct {
	XMLName   xml.Name `xml:"request"`
	RequestID string   `xml:"requestID,attr"`
	From      string   `xml:"from,attr"`
	Location  string   `xml:"location,attr"`
}

type xmlRelay struct {
	HostName string `xml:"hostName,attr"`
	UDPPort  int    `xml:"udpPort,attr"`
	TCPPort  int    `xml:"tcpPort,attr"`
}

type xmlCredentials struct {
	Username string `xml:"username,attr"`
	Password string `xml:"password,attr"`
	Duration int    `xml:"duration,attr"`
}

type xmlResponse struct {
	XMLName       xml.Name       `xml:"response"`
	ReasonPhrase  string         `xml:"reasonPhrase,attr"`
	Credentials   xmlCredentials `xml:"credentials"`
	MediaRelayList struct {
		Relays []xmlRelay `xml:"mediaRelay"`
	} `xml:"mediaRelayList"`
}

// Credentials are the short-lived MRAS username/password, with the
// bookkeeping needed for the §9 open-question (a) re-request policy.
type Credentials struct {
	Username string
	Password string
	IssuedAt time.Time
	Duration time.Duration
}

// NeedsRefresh decides the re-request policy left open by spec.md §9:
// refresh once less than 10% of the advertised duration remains.
func (c Credentials) NeedsRefresh(now time.Time) bool {
	if c.Duration <= 0 {
		return true
	}
	elapsed := now.Sub(c.IssuedAt)
	remaining := c.Duration - elapsed
	return remaining < c.Duration/10
}

// Relay is a media relay entry before DNS resolution; Hostname is
// replaced by the resolved IP in place once resolution completes
// (§4.3), or left empty on failure so downstream code skips it.
type Relay struct {
	Hostname string
	UDPPort  int
	TCPPort  int
	pending  backend.Handle
}

// Client issues MRAS credential requests and maintains the resolved
// relay list for a signed-in session.
type Client struct {
	MRASURI    string
	SelfURI    string
	HTTPClient *http.Client
	Resolver   backend.Resolver

	Credentials Credentials
	Relays      []Relay
}

// New builds a Client for the given MRAS endpoint and self URI.
func New(mrasURI, selfURI string, resolver backend.Resolver) *Client {
	return &Client{
		MRASURI:    mrasURI,
		SelfURI:    selfURI,
		HTTPClient: http.DefaultClient,
		Resolver:   resolver,
	}
}

// RequestCredentials posts the MRAS request and, on success, stores
// the returned credentials and begins async resolution of every
// relay's hostname (§4.3).
func (c *Client) RequestCredentials(ctx context.Context, loc Location) error {
	body, err := xml.Marshal(xmlRequest{
		RequestID: uuid.NewString(),
		From:      c.SelfURI,
		Location:  string(loc),
	})
	if err != nil {
		return fmt.Errorf("mras: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.MRASURI, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mras: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("mras: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("mras: request rejected: HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mras: read response: %w", err)
	}

	var parsed xmlResponse
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("mras: decode response: %w", err)
	}
	if parsed.ReasonPhrase != "OK" {
		return fmt.Errorf("mras: server declined: %s", parsed.ReasonPhrase)
	}

	c.Credentials = Credentials{
		Username: parsed.Credentials.Username,
		Password: parsed.Credentials.Password,
		IssuedAt: time.Now(),
		Duration: time.Duration(parsed.Credentials.Duration) * time.Second,
	}

	c.Relays = make([]Relay, len(parsed.MediaRelayList.Relays))
	for i, r := range parsed.MediaRelayList.Relays {
		c.Relays[i] = Relay{Hostname: r.HostName, UDPPort: r.UDPPort, TCPPort: r.TCPPort}
	}
	c.resolveRelays(ctx)

	return nil
}

// resolveRelays kicks off an async A-query per relay; on success the
// hostname field is replaced in place by the resolved IP, on failure
// it is cleared so the relay is skipped downstream (§4.3).
func (c *Client) resolveRelays(ctx context.Context) {
	for i := range c.Relays {
		i := i
		hostname := c.Relays[i].Hostname
		c.Relays[i].pending = c.Resolver.ResolveA(ctx, hostname, func(ip string, err error) {
			if err != nil {
				c.Relays[i].Hostname = ""
				return
			}
			c.Relays[i].Hostname = ip
		})
	}
}

// Free cancels any pending DNS queries and clears the relay list
// (spec.md §5: "pending queries are cancelled on relay-list free").
func (c *Client) Free() {
	for _, r := range c.Relays {
		if r.pending != nil {
			r.pending.Cancel()
		}
	}
	c.Relays = nil
}

// AsBackendRelays converts the resolved relay list into the shape
// MediaBackend.TranslateMediaRelays expects, skipping relays whose
// hostname failed to resolve.
func (c *Client) AsBackendRelays() []backend.MediaRelay {
	out := make([]backend.MediaRelay, 0, len(c.Relays))
	for _, r := range c.Relays {
		if r.Hostname == "" {
			continue
		}
		out = append(out, backend.MediaRelay{HostOrIP: r.Hostname, UDPPort: r.UDPPort, TCPPort: r.TCPPort})
	}
	return out
}
