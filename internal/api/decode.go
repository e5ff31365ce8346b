package api

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/rickgao/tradier-stream/internal/fixed"
)

// DecodeQuotes decodes a GET /markets/quotes body. Tradier sends a single
// object for one symbol and an array for several; both yield a slice.
func DecodeQuotes(body []byte, decimals int) ([]Quote, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	quotes, err := rootField(root, "quotes")
	if err != nil {
		return nil, err
	}
	if isNull(quotes) {
		return nil, nil
	}

	var out []Quote
	err = each(quotes.Get("quote"), "quotes.quote", func(r gjson.Result) error {
		q, err := decodeQuote(r, decimals)
		if err != nil {
			return err
		}
		out = append(out, q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeQuote(r gjson.Result, decimals int) (Quote, error) {
	q := Quote{
		Symbol:      r.Get("symbol").Str,
		Description: r.Get("description").Str,
		Exch:        r.Get("exch").Str,
		Type:        r.Get("type").Str,
		BidExch:     r.Get("bidexch").Str,
		AskExch:     r.Get("askexch").Str,
	}
	if q.Symbol == "" {
		return Quote{}, &DecodeError{Field: "quote.symbol", Err: ErrMissingField}
	}

	err := decodePrices(r, "quote", decimals,
		priceRef{"last", &q.Last},
		priceRef{"change", &q.Change},
		priceRef{"open", &q.Open},
		priceRef{"high", &q.High},
		priceRef{"low", &q.Low},
		priceRef{"close", &q.Close},
		priceRef{"prevclose", &q.PrevClose},
		priceRef{"bid", &q.Bid},
		priceRef{"ask", &q.Ask},
	)
	if err != nil {
		return Quote{}, err
	}
	err = decodeInts(r, "quote",
		intRef{"volume", &q.Volume},
		intRef{"bidsize", &q.BidSize},
		intRef{"asksize", &q.AskSize},
		intRef{"trade_date", &q.TradeDate},
		intRef{"bid_date", &q.BidDate},
		intRef{"ask_date", &q.AskDate},
	)
	if err != nil {
		return Quote{}, err
	}
	return q, nil
}

// DecodeOrderAck decodes a POST /accounts/{id}/orders body.
func DecodeOrderAck(body []byte) (*OrderAck, error) {
	var resp struct {
		Order *OrderAck `json:"order"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{Field: "body", Err: err}
	}
	if resp.Order == nil {
		return nil, &DecodeError{Field: "order", Err: ErrMissingField}
	}
	if resp.Order.ID == 0 {
		return nil, &DecodeError{Field: "order.id", Err: ErrMissingField}
	}
	return resp.Order, nil
}

// DecodeOrders decodes a GET /accounts/{id}/orders body. An account without
// orders comes back as the string "null" and yields an empty slice.
func DecodeOrders(body []byte, decimals int) ([]Order, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	orders, err := rootField(root, "orders")
	if err != nil {
		return nil, err
	}
	if isNull(orders) {
		return nil, nil
	}

	var out []Order
	err = each(orders.Get("order"), "orders.order", func(r gjson.Result) error {
		o, err := decodeOrder(r, decimals)
		if err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeOrder(r gjson.Result, decimals int) (Order, error) {
	o := Order{
		ID:           r.Get("id").Int(),
		Type:         r.Get("type").Str,
		Symbol:       r.Get("symbol").Str,
		OptionSymbol: r.Get("option_symbol").Str,
		Side:         r.Get("side").Str,
		Class:        r.Get("class").Str,
		Status:       r.Get("status").Str,
		Duration:     r.Get("duration").Str,
		Tag:          r.Get("tag").Str,
	}
	if o.ID == 0 {
		return Order{}, &DecodeError{Field: "order.id", Err: ErrMissingField}
	}

	err := decodePrices(r, "order", decimals,
		priceRef{"price", &o.Price},
		priceRef{"stop_price", &o.StopPrice},
		priceRef{"avg_fill_price", &o.AvgFillPrice},
		priceRef{"last_fill_price", &o.LastFillPrice},
	)
	if err != nil {
		return Order{}, err
	}
	err = decodeInts(r, "order",
		intRef{"quantity", &o.Quantity},
		intRef{"exec_quantity", &o.ExecQuantity},
		intRef{"remaining_quantity", &o.RemainingQuantity},
	)
	if err != nil {
		return Order{}, err
	}

	if o.CreateDate, err = parseTime(r.Get("create_date").Str, "order.create_date"); err != nil {
		return Order{}, err
	}
	if o.TransactionDate, err = parseTime(r.Get("transaction_date").Str, "order.transaction_date"); err != nil {
		return Order{}, err
	}
	return o, nil
}

// DecodeBalances decodes a GET /accounts/{id}/balances body.
func DecodeBalances(body []byte, decimals int) (*Balances, error) {
	var resp struct {
		Balances *struct {
			AccountNumber      string      `json:"account_number"`
			AccountType        string      `json:"account_type"`
			TotalEquity        json.Number `json:"total_equity"`
			TotalCash          json.Number `json:"total_cash"`
			MarketValue        json.Number `json:"market_value"`
			LongMarketValue    json.Number `json:"long_market_value"`
			ShortMarketValue   json.Number `json:"short_market_value"`
			OpenPL             json.Number `json:"open_pl"`
			ClosePL            json.Number `json:"close_pl"`
			PendingCash        json.Number `json:"pending_cash"`
			UnclearedFunds     json.Number `json:"uncleared_funds"`
			PendingOrdersCount json.Number `json:"pending_orders_count"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{Field: "body", Err: err}
	}
	b := resp.Balances
	if b == nil {
		return nil, &DecodeError{Field: "balances", Err: ErrMissingField}
	}

	out := &Balances{
		AccountNumber: b.AccountNumber,
		AccountType:   b.AccountType,
	}
	fields := []struct {
		name string
		src  json.Number
		dst  *fixed.Price
	}{
		{"total_equity", b.TotalEquity, &out.TotalEquity},
		{"total_cash", b.TotalCash, &out.TotalCash},
		{"market_value", b.MarketValue, &out.MarketValue},
		{"long_market_value", b.LongMarketValue, &out.LongMarketValue},
		{"short_market_value", b.ShortMarketValue, &out.ShortMarketValue},
		{"open_pl", b.OpenPL, &out.OpenPL},
		{"close_pl", b.ClosePL, &out.ClosePL},
		{"pending_cash", b.PendingCash, &out.PendingCash},
		{"uncleared_funds", b.UnclearedFunds, &out.UnclearedFunds},
	}
	for _, f := range fields {
		v, err := jsonNumber(f.src, "balances."+f.name, decimals)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	count, err := numberText(string(b.PendingOrdersCount), "balances.pending_orders_count", 0)
	if err != nil {
		return nil, err
	}
	out.PendingOrdersCount = count
	return out, nil
}

// DecodePositions decodes a GET /accounts/{id}/positions body.
func DecodePositions(body []byte, decimals int) ([]Position, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	positions, err := rootField(root, "positions")
	if err != nil {
		return nil, err
	}
	if isNull(positions) {
		return nil, nil
	}

	var out []Position
	err = each(positions.Get("position"), "positions.position", func(r gjson.Result) error {
		p := Position{
			ID:     r.Get("id").Int(),
			Symbol: r.Get("symbol").Str,
		}
		if p.Symbol == "" {
			return &DecodeError{Field: "position.symbol", Err: ErrMissingField}
		}
		err := decodePrices(r, "position", decimals, priceRef{"cost_basis", &p.CostBasis})
		if err != nil {
			return err
		}
		if err := decodeInts(r, "position", intRef{"quantity", &p.Quantity}); err != nil {
			return err
		}
		if p.DateAcquired, err = parseTime(r.Get("date_acquired").Str, "position.date_acquired"); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeStreamSession decodes a POST /markets/events/session body.
func DecodeStreamSession(body []byte) (*StreamSession, error) {
	var resp struct {
		Stream *StreamSession `json:"stream"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{Field: "body", Err: err}
	}
	if resp.Stream == nil || resp.Stream.SessionID == "" {
		return nil, &DecodeError{Field: "stream.sessionid", Err: ErrMissingField}
	}
	return resp.Stream, nil
}

// DecodeHistory decodes a GET /markets/history body.
func DecodeHistory(body []byte, decimals int) ([]Bar, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	history, err := rootField(root, "history")
	if err != nil {
		return nil, err
	}
	if isNull(history) {
		return nil, nil
	}

	var out []Bar
	err = each(history.Get("day"), "history.day", func(r gjson.Result) error {
		var b Bar
		var err error
		if b.Date, err = parseTime(r.Get("date").Str, "day.date"); err != nil {
			return err
		}
		err = decodePrices(r, "day", decimals,
			priceRef{"open", &b.Open},
			priceRef{"high", &b.High},
			priceRef{"low", &b.Low},
			priceRef{"close", &b.Close},
		)
		if err != nil {
			return err
		}
		if err := decodeInts(r, "day", intRef{"volume", &b.Volume}); err != nil {
			return err
		}
		out = append(out, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeExpirations decodes a GET /markets/options/expirations body into
// dates formatted YYYY-MM-DD.
func DecodeExpirations(body []byte) ([]string, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	exp, err := rootField(root, "expirations")
	if err != nil {
		return nil, err
	}
	if isNull(exp) {
		return nil, nil
	}

	date := exp.Get("date")
	switch {
	case !date.Exists(), isNull(date):
		return nil, nil
	case date.Type == gjson.String:
		return []string{date.Str}, nil
	case date.IsArray():
		var out []string
		for _, d := range date.Array() {
			if d.Type != gjson.String {
				return nil, &DecodeError{Field: "expirations.date", Err: ErrUnexpectedShape}
			}
			out = append(out, d.Str)
		}
		return out, nil
	}
	return nil, &DecodeError{Field: "expirations.date", Err: ErrUnexpectedShape}
}

// DecodeOptionChain decodes a GET /markets/options/chains body. A symbol or
// expiration without contracts comes back as null and yields an empty slice.
func DecodeOptionChain(body []byte, decimals int) ([]OptionContract, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	options, err := rootField(root, "options")
	if err != nil {
		return nil, err
	}
	if isNull(options) {
		return nil, nil
	}

	var out []OptionContract
	err = each(options.Get("option"), "options.option", func(r gjson.Result) error {
		o, err := decodeOption(r, decimals)
		if err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeOption(r gjson.Result, decimals int) (OptionContract, error) {
	q, err := decodeQuote(r, decimals)
	if err != nil {
		return OptionContract{}, err
	}
	o := OptionContract{
		Quote:          q,
		Underlying:     r.Get("underlying").Str,
		RootSymbol:     r.Get("root_symbol").Str,
		OptionType:     r.Get("option_type").Str,
		ExpirationDate: r.Get("expiration_date").Str,
		ExpirationType: r.Get("expiration_type").Str,
	}

	strike := r.Get("strike")
	if !strike.Exists() || isNull(strike) {
		return OptionContract{}, &DecodeError{Field: "option.strike", Err: ErrMissingField}
	}
	if err := decodePrices(r, "option", decimals, priceRef{"strike", &o.Strike}); err != nil {
		return OptionContract{}, err
	}
	err = decodeInts(r, "option",
		intRef{"open_interest", &o.OpenInterest},
		intRef{"contract_size", &o.ContractSize},
	)
	if err != nil {
		return OptionContract{}, err
	}

	if g := r.Get("greeks"); g.IsObject() {
		o.Greeks = &Greeks{
			Delta:  g.Get("delta").Float(),
			Gamma:  g.Get("gamma").Float(),
			Theta:  g.Get("theta").Float(),
			Vega:   g.Get("vega").Float(),
			Rho:    g.Get("rho").Float(),
			Phi:    g.Get("phi").Float(),
			BidIV:  g.Get("bid_iv").Float(),
			MidIV:  g.Get("mid_iv").Float(),
			AskIV:  g.Get("ask_iv").Float(),
			SmvVol: g.Get("smv_vol").Float(),
		}
		if o.Greeks.UpdatedAt, err = parseTime(g.Get("updated_at").Str, "greeks.updated_at"); err != nil {
			return OptionContract{}, err
		}
	}
	return o, nil
}

// DecodeDividends decodes a GET /beta/markets/fundamentals/dividends body:
// an array with one entry per requested symbol, each holding results whose
// tables list cash dividends.
func DecodeDividends(body []byte) ([]Dividend, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	if !root.IsArray() {
		return nil, &DecodeError{Field: "body", Err: ErrUnexpectedShape}
	}

	var out []Dividend
	for _, req := range root.Array() {
		symbol := req.Get("request").Str
		err := each(req.Get("results"), "results", func(res gjson.Result) error {
			return each(res.Get("tables.cash_dividends"), "tables.cash_dividends", func(r gjson.Result) error {
				d, err := decodeDividend(r, symbol)
				if err != nil {
					return err
				}
				out = append(out, d)
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeDividend(r gjson.Result, symbol string) (Dividend, error) {
	d := Dividend{
		Symbol:   symbol,
		Type:     r.Get("dividend_type").Str,
		Currency: r.Get("currency_id").Str,
	}

	switch amount := r.Get("cash_amount"); amount.Type {
	case gjson.Null:
	case gjson.Number, gjson.String:
		text := strings.TrimSpace(amount.Str)
		if amount.Type == gjson.Number {
			text = amount.Raw
		}
		v, err := decimal.NewFromString(text)
		if err != nil {
			return Dividend{}, &DecodeError{Field: "dividend.cash_amount", Err: ErrNotNumber}
		}
		d.Amount = v
	default:
		return Dividend{}, &DecodeError{Field: "dividend.cash_amount", Err: ErrNotNumber}
	}

	if err := decodeInts(r, "dividend", intRef{"frequency", &d.Frequency}); err != nil {
		return Dividend{}, err
	}

	dates := []struct {
		key string
		dst *time.Time
	}{
		{"ex_date", &d.ExDate},
		{"pay_date", &d.PayDate},
		{"record_date", &d.RecordDate},
		{"declaration_date", &d.DeclarationDate},
	}
	for _, f := range dates {
		t, err := parseTime(r.Get(f.key).Str, "dividend."+f.key)
		if err != nil {
			return Dividend{}, err
		}
		*f.dst = t
	}
	return d, nil
}
