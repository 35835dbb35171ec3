// Package bidstorm fires a burst of concurrent bids at a running server and
// reports every verdict. It reproduces the lost-update race the server's
// version check exists to stop.
package bidstorm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Shot is one bidder's bid in the burst.
type Shot struct {
	Bidder string
	Amount float64
}

// ParseShot reads "bidder=amount".
func ParseShot(s string) (Shot, error) {
	name, amt, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return Shot{}, fmt.Errorf("bid %q: want bidder=amount", s)
	}
	f, err := strconv.ParseFloat(amt, 64)
	if err != nil || f <= 0 {
		return Shot{}, fmt.Errorf("bid %q: amount must be a positive number", s)
	}
	return Shot{Bidder: name, Amount: f}, nil
}

// Verdict is the final answer for one shot.
type Verdict struct {
	Shot
	Reply    Reply
	Attempts int
}

// Summary counts verdicts by HTTP status.
type Summary struct {
	Accepted int
	TooLow   int
	NotFound int
	Conflict int
	Other    int
}

func (s Summary) String() string {
	return fmt.Sprintf("accepted=%d too_low=%d conflict=%d not_found=%d other=%d",
		s.Accepted, s.TooLow, s.Conflict, s.NotFound, s.Other)
}

// Storm fires every shot at itemID concurrently. A 409 is resubmitted as a
// fresh request up to retries more times; the server re-validates each one
// against the newest price.
func Storm(ctx context.Context, c *Client, itemID string, shots []Shot, retries int) ([]Verdict, Summary, error) {
	verdicts := make([]Verdict, len(shots))
	g, gctx := errgroup.WithContext(ctx)

	// release all shots at once
	var start sync.WaitGroup
	start.Add(1)
	for i, shot := range shots {
		g.Go(func() error {
			start.Wait()
			v := Verdict{Shot: shot}
			for v.Attempts <= retries {
				v.Attempts++
				reply, err := c.Bid(gctx, itemID, shot.Bidder, shot.Amount)
				if err != nil {
					return err
				}
				v.Reply = *reply
				if reply.Status != http.StatusConflict {
					break
				}
			}
			verdicts[i] = v
			return nil
		})
	}
	start.Done()

	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}
	return verdicts, summarize(verdicts), nil
}

func summarize(vs []Verdict) Summary {
	var s Summary
	for _, v := range vs {
		switch v.Reply.Status {
		case http.StatusOK:
			s.Accepted++
		case http.StatusBadRequest:
			s.TooLow++
		case http.StatusNotFound:
			s.NotFound++
		case http.StatusConflict:
			s.Conflict++
		default:
			s.Other++
		}
	}
	return s
}

// sortByBidder keeps output stable across runs.
func sortByBidder(vs []Verdict) {
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].Bidder < vs[j].Bidder })
}
