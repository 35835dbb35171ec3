package bidstorm

import (
	"bytes"
	"context"
	"encoding/json"
	"flashbid/internal/store"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client talks to the bid server's REST API.
type Client struct {
	baseURL string
	hc      *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

// Reply is one server answer to POST /bid.
type Reply struct {
	Status       int
	Message      string
	CurrentPrice float64
	Version      int64
}

func (c *Client) Reset(ctx context.Context, name string, floor *float64) (*store.AuctionItem, error) {
	body := map[string]any{}
	if name != "" {
		body["name"] = name
	}
	if floor != nil {
		body["floorPrice"] = *floor
	}

	var item store.AuctionItem
	status, err := c.do(ctx, http.MethodPost, "/reset", body, &item)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("reset: unexpected status %d", status)
	}
	return &item, nil
}

func (c *Client) Item(ctx context.Context, itemID string) (*store.AuctionItem, error) {
	var item store.AuctionItem
	status, err := c.do(ctx, http.MethodGet, "/items/"+itemID, nil, &item)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("item %s: unexpected status %d", itemID, status)
	}
	return &item, nil
}

func (c *Client) Bid(ctx context.Context, itemID, bidder string, amount float64) (*Reply, error) {
	var raw struct {
		Message      string  `json:"message"`
		Error        string  `json:"error"`
		CurrentPrice float64 `json:"currentPrice"`
		Version      int64   `json:"version"`
	}
	status, err := c.do(ctx, http.MethodPost, "/bid", map[string]any{
		"itemId": itemID,
		"amount": amount,
		"bidder": bidder,
	}, &raw)
	if err != nil {
		return nil, err
	}

	msg := raw.Message
	if msg == "" {
		msg = raw.Error
	}
	return &Reply{Status: status, Message: msg, CurrentPrice: raw.CurrentPrice, Version: raw.Version}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
