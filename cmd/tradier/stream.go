package main

import (
	"errors"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rickgao/tradier-stream/internal/connection"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/fixed"
	"github.com/rickgao/tradier-stream/internal/stream"
)

func streamCmd(a *app) *cobra.Command {
	var filters []string

	cmd := &cobra.Command{
		Use:   "stream [symbols...]",
		Short: "Print live market events",
		Long: `Open a streaming session and print one line per event until
interrupted. Symbols default to stream.symbols from the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			symbols := args
			if len(symbols) == 0 {
				symbols = a.cfg.Stream.Symbols
			}
			if len(symbols) == 0 {
				return errors.New("no symbols: pass them as arguments or set stream.symbols")
			}
			if len(filters) > 0 {
				a.cfg.Stream.Filters = filters
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}

			lim := a.limiter()
			tr := a.transport()
			sess := a.session(tr, lim)
			client := a.client(lim, nil, sess.Decimals())

			p := &printer{w: os.Stdout, decimals: sess.Decimals()}

			mgr := connection.NewManager(a.managerConfig(symbols), tr, sess, client, p, nil, a.logger)
			return mgr.Run(cmd.Context())
		},
	}

	cmd.Flags().StringSliceVarP(&filters, "filter", "f", nil, "event types to receive (quote, trade, summary, timesale, tradex)")

	return cmd
}

// printer writes one line per event.
type printer struct {
	w        io.Writer
	decimals int
	buf      []byte
}

func (p *printer) HandleEvent(s *stream.Session, ev *event.Event) {
	p.buf = appendEvent(p.buf[:0], s, ev, p.decimals)
	p.buf = append(p.buf, '\n')
	p.w.Write(p.buf)
}

// appendEvent formats ev as a single line. s resolves borrowed fields and
// may be nil, in which case they are omitted.
func appendEvent(dst []byte, s *stream.Session, ev *event.Event, decimals int) []byte {
	price := func(dst []byte, name string, v fixed.Price) []byte {
		dst = append(dst, ' ')
		dst = append(dst, name...)
		dst = append(dst, '=')
		return fixed.Append(dst, int64(v), decimals)
	}
	integer := func(dst []byte, name string, v int64) []byte {
		dst = append(dst, ' ')
		dst = append(dst, name...)
		dst = append(dst, '=')
		return strconv.AppendInt(dst, v, 10)
	}

	dst = append(dst, ev.Kind.String()...)
	if sym, ok := ev.Symbol(); ok {
		dst = append(dst, ' ')
		dst = sym.AppendTo(dst)
	}

	switch ev.Kind {
	case event.KindQuote:
		q := &ev.Quote
		dst = price(dst, "bid", q.Bid)
		dst = integer(dst, "bidsz", q.BidSize)
		dst = price(dst, "ask", q.Ask)
		dst = integer(dst, "asksz", q.AskSize)
	case event.KindTrade:
		t := &ev.Trade
		dst = price(dst, "price", t.Price)
		dst = integer(dst, "size", t.Size)
		dst = integer(dst, "cvol", t.CumVolume)
		if t.Extended {
			dst = append(dst, " ext"...)
		}
	case event.KindSummary:
		sm := &ev.Summary
		dst = price(dst, "open", sm.Open)
		dst = price(dst, "high", sm.High)
		dst = price(dst, "low", sm.Low)
		dst = price(dst, "prev", sm.PrevClose)
	case event.KindTimesale:
		ts := &ev.Timesale
		dst = price(dst, "last", ts.Last)
		dst = integer(dst, "size", ts.Size)
		dst = integer(dst, "seq", ts.Seq)
		if s != nil {
			if flag, err := s.Bytes(ts.Flag); err == nil && len(flag) > 0 {
				dst = append(dst, " flag="...)
				dst = append(dst, flag...)
			}
		}
	case event.KindUnknown:
		if s != nil {
			if typ, err := s.Bytes(ev.Unknown.Type); err == nil {
				dst = append(dst, " type="...)
				dst = append(dst, typ...)
			}
		}
	case event.KindDecodeError:
		dst = append(dst, ' ')
		dst = append(dst, ev.Err.Error()...)
	}
	return dst
}
