package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rickgao/tradier-stream/internal/api"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/fixed"
)

func quoteCmd(a *app) *cobra.Command {
	var greeks bool

	cmd := &cobra.Command{
		Use:   "quote SYMBOL...",
		Short: "Fetch REST quotes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			decimals := a.cfg.Stream.PriceDecimals
			if decimals == 0 {
				decimals = event.DefaultPriceDecimals
			}
			client := a.client(a.limiter(), nil, decimals)

			quotes, err := client.GetQuotes(cmd.Context(), args, greeks)
			if err != nil {
				return err
			}
			return printQuotes(os.Stdout, quotes, client.Decimals())
		},
	}

	cmd.Flags().BoolVar(&greeks, "greeks", false, "include option greeks")

	return cmd
}

// printQuotes writes quotes as an aligned table.
func printQuotes(w io.Writer, quotes []api.Quote, decimals int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tLAST\tCHANGE\tBID\tASK\tVOLUME")
	for _, q := range quotes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			q.Symbol,
			formatPrice(q.Last, decimals),
			formatPrice(q.Change, decimals),
			formatPrice(q.Bid, decimals),
			formatPrice(q.Ask, decimals),
			q.Volume,
		)
	}
	return tw.Flush()
}

func formatPrice(p fixed.Price, decimals int) string {
	return p.Decimal(decimals).StringFixed(int32(decimals))
}
