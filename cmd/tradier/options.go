package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/tradier-stream/internal/api"
	"github.com/rickgao/tradier-stream/internal/event"
)

func chainCmd(a *app) *cobra.Command {
	var (
		greeks     bool
		descending bool
	)

	cmd := &cobra.Command{
		Use:   "chain SYMBOL EXPIRATION",
		Short: "Fetch an option chain sorted by strike",
		Long: `Fetch every contract of SYMBOL expiring on EXPIRATION (YYYY-MM-DD).
Without EXPIRATION the available expirations are listed instead.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			decimals := a.cfg.Stream.PriceDecimals
			if decimals == 0 {
				decimals = event.DefaultPriceDecimals
			}
			client := a.client(a.limiter(), nil, decimals)

			if len(args) == 1 {
				dates, err := client.GetExpirations(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, d := range dates {
					fmt.Println(d)
				}
				return nil
			}

			chain, err := client.GetOptionChain(cmd.Context(), args[0], args[1], greeks)
			if err != nil {
				return err
			}
			api.SortByStrike(chain, !descending)
			return printChain(os.Stdout, chain, client.Decimals())
		},
	}

	cmd.Flags().BoolVar(&greeks, "greeks", false, "include greeks and implied volatility")
	cmd.Flags().BoolVar(&descending, "desc", false, "sort strikes high to low")

	return cmd
}

// printChain writes contracts as an aligned table. The IV column is empty
// when greeks were not requested.
func printChain(w io.Writer, chain []api.OptionContract, decimals int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tTYPE\tSTRIKE\tBID\tASK\tOI\tIV")
	for _, o := range chain {
		iv := ""
		if o.Greeks != nil {
			iv = fmt.Sprintf("%.4f", o.Greeks.MidIV)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			o.Symbol,
			o.OptionType,
			formatPrice(o.Strike, decimals),
			formatPrice(o.Bid, decimals),
			formatPrice(o.Ask, decimals),
			o.OpenInterest,
			iv,
		)
	}
	return tw.Flush()
}

func dividendsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dividends SYMBOL",
		Short: "Fetch cash dividend history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			client := a.client(a.limiter(), nil, event.DefaultPriceDecimals)

			divs, err := client.GetDividends(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printDividends(os.Stdout, divs)
		},
	}
}

func printDividends(w io.Writer, divs []api.Dividend) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EX-DATE\tPAY-DATE\tAMOUNT\tCURRENCY\tFREQ")
	for _, d := range divs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			formatDate(d.ExDate),
			formatDate(d.PayDate),
			d.Amount.String(),
			d.Currency,
			d.Frequency,
		)
	}
	return tw.Flush()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}
