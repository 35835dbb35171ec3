package bidstorm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// Options holds the flags of the bidstorm command.
type Options struct {
	URL     string
	Bids    []string
	Repeat  int
	Retries int
	ItemID  string
	Name    string
	Floor   float64
	Timeout time.Duration
}

// NewCommand creates the bidstorm root command.
func NewCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "bidstorm",
		Short: "Fire concurrent bids at a flashbid server",
		Long: `Reset the auction, then fire every bid at the same instant and print
each verdict. With no flags it reproduces the classic race: alice bids 550 and
bob bids 505 against a 500 floor; exactly one is accepted.

Example:
  bidstorm --bid alice=550 --bid bob=505 --retries 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "http://localhost:3002", "server base URL")
	cmd.Flags().StringSliceVar(&opts.Bids, "bid", []string{"alice=550", "bob=505"}, "bidder=amount, repeatable")
	cmd.Flags().IntVar(&opts.Repeat, "repeat", 1, "fire each bid this many times")
	cmd.Flags().IntVar(&opts.Retries, "retries", 0, "resubmit a conflicting bid up to N times")
	cmd.Flags().StringVar(&opts.ItemID, "item", "", "bid on this item instead of resetting")
	cmd.Flags().StringVar(&opts.Name, "name", "", "item name for the reset (server default if empty)")
	cmd.Flags().Float64Var(&opts.Floor, "floor", 0, "floor price for the reset (server default if unset)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "overall deadline")

	return cmd
}

func run(cmd *cobra.Command, opts *Options) error {
	if opts.Repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1")
	}
	if opts.Retries < 0 {
		return fmt.Errorf("--retries must not be negative")
	}

	var shots []Shot
	for _, b := range opts.Bids {
		shot, err := ParseShot(b)
		if err != nil {
			return err
		}
		for range opts.Repeat {
			shots = append(shots, shot)
		}
	}
	if len(shots) == 0 {
		return fmt.Errorf("no bids given")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()
	c := NewClient(opts.URL, &http.Client{Timeout: opts.Timeout})
	out := cmd.OutOrStdout()

	itemID := opts.ItemID
	if itemID == "" {
		var floor *float64
		if cmd.Flags().Changed("floor") {
			floor = &opts.Floor
		}
		item, err := c.Reset(ctx, opts.Name, floor)
		if err != nil {
			return err
		}
		itemID = item.ID
		fmt.Fprintf(out, "reset: %s %q at %g (version %d)\n", item.ID, item.Name, item.CurrentPrice, item.Version)
	}

	verdicts, sum, err := Storm(ctx, c, itemID, shots, opts.Retries)
	if err != nil {
		return err
	}
	sortByBidder(verdicts)
	for _, v := range verdicts {
		fmt.Fprintf(out, "%-10s %8g -> %d %s (attempts %d)\n",
			v.Bidder, v.Amount, v.Reply.Status, v.Reply.Message, v.Attempts)
	}
	fmt.Fprintln(out, sum)

	final, err := c.Item(ctx, itemID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "final: price %g version %d\n", final.CurrentPrice, final.Version)
	return nil
}
