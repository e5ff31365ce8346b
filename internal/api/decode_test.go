package api

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/tradier-stream/internal/fixed"
)

func TestDecodeQuotes_SingleAndArray(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		symbols []string
	}{
		{
			name:    "single object",
			body:    `{"quotes":{"quote":{"symbol":"SPY","bid":281.83,"ask":281.85}}}`,
			symbols: []string{"SPY"},
		},
		{
			name:    "array",
			body:    `{"quotes":{"quote":[{"symbol":"SPY","bid":1,"ask":2},{"symbol":"QQQ","bid":3,"ask":4}]}}`,
			symbols: []string{"SPY", "QQQ"},
		},
		{
			name:    "only unmatched symbols",
			body:    `{"quotes":{"unmatched_symbols":{"symbol":"XYZ"}}}`,
			symbols: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quotes, err := DecodeQuotes([]byte(tt.body), 2)
			if err != nil {
				t.Fatalf("DecodeQuotes failed: %v", err)
			}
			if len(quotes) != len(tt.symbols) {
				t.Fatalf("len = %d, want %d", len(quotes), len(tt.symbols))
			}
			for i, sym := range tt.symbols {
				if quotes[i].Symbol != sym {
					t.Errorf("quotes[%d].Symbol = %q, want %q", i, quotes[i].Symbol, sym)
				}
			}
		})
	}
}

func TestDecodeQuotes_NullsAndStrings(t *testing.T) {
	body := `{"quotes":{"quote":{"symbol":"SPY","last":null,"bid":"281.83","ask":281.85,"bidsize":"12","volume":null}}}`
	quotes, err := DecodeQuotes([]byte(body), 2)
	if err != nil {
		t.Fatalf("DecodeQuotes failed: %v", err)
	}
	q := quotes[0]
	if q.Last != 0 || q.Bid != 28183 || q.Ask != 28185 || q.BidSize != 12 || q.Volume != 0 {
		t.Errorf("quote = %+v", q)
	}
}

func TestDecodeQuotes_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		err   error
	}{
		{"malformed", `{"quotes":`, "body", ErrMalformed},
		{"missing root", `{"other":{}}`, "quotes", ErrMissingField},
		{"missing symbol", `{"quotes":{"quote":{"bid":1}}}`, "quote.symbol", ErrMissingField},
		{"excess precision", `{"quotes":{"quote":{"symbol":"SPY","bid":1.234}}}`, "quote.bid", fixed.ErrPrecision},
		{"bad number", `{"quotes":{"quote":{"symbol":"SPY","ask":"n/a"}}}`, "quote.ask", fixed.ErrSyntax},
		{"bool price", `{"quotes":{"quote":{"symbol":"SPY","ask":true}}}`, "quote.ask", ErrNotNumber},
		{"scalar quote", `{"quotes":{"quote":42}}`, "quotes.quote", ErrUnexpectedShape},
		{"array of scalars", `{"quotes":{"quote":[1,2]}}`, "quotes.quote", ErrUnexpectedShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeQuotes([]byte(tt.body), 2)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error = %v, want *DecodeError", err)
			}
			if de.Field != tt.field {
				t.Errorf("Field = %q, want %q", de.Field, tt.field)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestDecodeOrders(t *testing.T) {
	t.Run("null string", func(t *testing.T) {
		orders, err := DecodeOrders([]byte(`{"orders":"null"}`), 2)
		if err != nil || orders != nil {
			t.Errorf("DecodeOrders = (%v, %v), want (nil, nil)", orders, err)
		}
	})

	t.Run("single order", func(t *testing.T) {
		body := `{"orders":{"order":{"id":228175,"type":"limit","symbol":"AAPL","side":"buy","quantity":50.00000000,"status":"expired","duration":"pre","price":22.0,"avg_fill_price":0.00000000,"exec_quantity":0.00000000,"last_fill_price":0.00000000,"last_fill_quantity":0.00000000,"remaining_quantity":0.00000000,"create_date":"2018-06-01T12:02:29.682Z","transaction_date":"2018-06-01T12:30:02.385Z","class":"equity","tag":"ts-1"}}}`
		orders, err := DecodeOrders([]byte(body), 2)
		if err != nil {
			t.Fatalf("DecodeOrders failed: %v", err)
		}
		if len(orders) != 1 {
			t.Fatalf("len = %d, want 1", len(orders))
		}
		o := orders[0]
		if o.ID != 228175 || o.Quantity != 50 || o.Price != 2200 || o.Tag != "ts-1" {
			t.Errorf("order = %+v", o)
		}
		want := time.Date(2018, 6, 1, 12, 2, 29, 682_000_000, time.UTC)
		if !o.CreateDate.Equal(want) {
			t.Errorf("CreateDate = %v, want %v", o.CreateDate, want)
		}
	})

	t.Run("array", func(t *testing.T) {
		body := `{"orders":{"order":[{"id":1,"symbol":"A","quantity":1},{"id":2,"symbol":"B","quantity":2}]}}`
		orders, err := DecodeOrders([]byte(body), 2)
		if err != nil || len(orders) != 2 || orders[1].ID != 2 {
			t.Errorf("DecodeOrders = (%+v, %v)", orders, err)
		}
	})

	t.Run("bad timestamp", func(t *testing.T) {
		body := `{"orders":{"order":{"id":1,"create_date":"yesterday"}}}`
		if _, err := DecodeOrders([]byte(body), 2); !errors.Is(err, ErrBadTimestamp) {
			t.Errorf("error = %v, want ErrBadTimestamp", err)
		}
	})
}

func TestDecodeOrderAck(t *testing.T) {
	ack, err := DecodeOrderAck([]byte(`{"order":{"id":257459,"status":"ok"}}`))
	if err != nil || ack.ID != 257459 {
		t.Errorf("DecodeOrderAck = (%+v, %v)", ack, err)
	}

	if _, err := DecodeOrderAck([]byte(`{"errors":{"error":["bad"]}}`)); !errors.Is(err, ErrMissingField) {
		t.Errorf("missing order error = %v, want ErrMissingField", err)
	}
	if _, err := DecodeOrderAck([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestDecodeBalances(t *testing.T) {
	body := `{"balances":{"option_short_value":0,"total_equity":17798.36,"account_number":"VA00000000","account_type":"margin","close_pl":-4813.21,"current_requirement":2557.00,"equity":0,"long_market_value":5100.50,"market_value":3462.50,"open_pl":2222.36,"pending_orders_count":0,"short_market_value":0,"total_cash":14335.86,"uncleared_funds":0,"pending_cash":0}}`
	b, err := DecodeBalances([]byte(body), 2)
	if err != nil {
		t.Fatalf("DecodeBalances failed: %v", err)
	}
	if b.TotalEquity != 1779836 || b.ClosePL != -481321 || b.LongMarketValue != 510050 {
		t.Errorf("balances = %+v", b)
	}
	if got := b.TotalEquity.Decimal(2); !got.Equal(decimal.RequireFromString("17798.36")) {
		t.Errorf("TotalEquity.Decimal = %s", got)
	}

	if _, err := DecodeBalances([]byte(`{}`), 2); !errors.Is(err, ErrMissingField) {
		t.Errorf("missing balances error = %v, want ErrMissingField", err)
	}
}

func TestDecodePositions(t *testing.T) {
	body := `{"positions":{"position":[{"cost_basis":207.01,"date_acquired":"2018-08-08T14:41:11.405Z","id":130089,"quantity":1.00000000,"symbol":"AAPL"},{"cost_basis":-1500.0,"date_acquired":"2019-01-31T17:05:40.247Z","id":130090,"quantity":-10.00000000,"symbol":"SPY"}]}}`
	pos, err := DecodePositions([]byte(body), 2)
	if err != nil {
		t.Fatalf("DecodePositions failed: %v", err)
	}
	if len(pos) != 2 || pos[1].Quantity != -10 || pos[1].CostBasis != -150000 {
		t.Errorf("positions = %+v", pos)
	}

	empty, err := DecodePositions([]byte(`{"positions":"null"}`), 2)
	if err != nil || empty != nil {
		t.Errorf("null positions = (%v, %v)", empty, err)
	}
}

func TestDecodeStreamSession(t *testing.T) {
	sess, err := DecodeStreamSession([]byte(`{"stream":{"url":"https://stream.tradier.com/v1/markets/events","sessionid":"abc"}}`))
	if err != nil || sess.SessionID != "abc" || sess.URL == "" {
		t.Errorf("DecodeStreamSession = (%+v, %v)", sess, err)
	}
	if _, err := DecodeStreamSession([]byte(`{"stream":{}}`)); !errors.Is(err, ErrMissingField) {
		t.Errorf("empty session error = %v, want ErrMissingField", err)
	}
}

func TestDecodeHistory(t *testing.T) {
	single := `{"history":{"day":{"date":"2019-01-02","open":154.89,"high":158.85,"low":154.23,"close":157.92,"volume":37039737}}}`
	bars, err := DecodeHistory([]byte(single), 2)
	if err != nil || len(bars) != 1 {
		t.Fatalf("DecodeHistory = (%v, %v)", bars, err)
	}
	if bars[0].Open != 15489 || !bars[0].Date.Equal(time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("bar = %+v", bars[0])
	}

	if bars, err := DecodeHistory([]byte(`{"history":null}`), 2); err != nil || bars != nil {
		t.Errorf("null history = (%v, %v)", bars, err)
	}
}

func TestDecodeExpirations(t *testing.T) {
	tests := []struct {
		body string
		want []string
	}{
		{`{"expirations":{"date":["2019-05-17","2019-05-24"]}}`, []string{"2019-05-17", "2019-05-24"}},
		{`{"expirations":{"date":"2019-05-17"}}`, []string{"2019-05-17"}},
		{`{"expirations":null}`, nil},
	}
	for _, tt := range tests {
		got, err := DecodeExpirations([]byte(tt.body))
		if err != nil {
			t.Errorf("DecodeExpirations(%s) error = %v", tt.body, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("DecodeExpirations(%s) = %v, want %v", tt.body, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("DecodeExpirations(%s)[%d] = %q, want %q", tt.body, i, got[i], tt.want[i])
			}
		}
	}

	if _, err := DecodeExpirations([]byte(`{"expirations":{"date":[1]}}`)); !errors.Is(err, ErrUnexpectedShape) {
		t.Errorf("numeric date error = %v, want ErrUnexpectedShape", err)
	}
}

func TestDecodeOptionChain(t *testing.T) {
	body := `{"options":{"option":[
		{"symbol":"VXX190517P00016000","description":"VXX May 17 2019 $16.00 Put","exch":"Z","type":"option","last":null,"bid":0.0,"ask":0.01,"underlying":"VXX","strike":16.0,"open_interest":0,"contract_size":100,"expiration_date":"2019-05-17","expiration_type":"standard","option_type":"put","root_symbol":"VXX",
		 "greeks":{"delta":-0.0000,"gamma":0.0,"theta":-0.0011,"vega":0.0000,"rho":0.0,"phi":0.0,"bid_iv":0.0,"mid_iv":1.23,"ask_iv":1.99,"smv_vol":0.32,"updated_at":"2019-05-13 20:00:08"}},
		{"symbol":"VXX190517C00016000","bid":14.15,"ask":14.6,"underlying":"VXX","strike":16,"open_interest":"12","contract_size":100,"expiration_date":"2019-05-17","option_type":"call","root_symbol":"VXX","greeks":null}
	]}}`

	chain, err := DecodeOptionChain([]byte(body), 2)
	if err != nil {
		t.Fatalf("DecodeOptionChain failed: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("len(chain) = %d, want 2", len(chain))
	}

	put := chain[0]
	if put.Symbol != "VXX190517P00016000" || put.Strike != 1600 || put.Ask != 1 || put.ContractSize != 100 {
		t.Errorf("put = %+v", put)
	}
	if put.OptionType != "put" || put.ExpirationDate != "2019-05-17" || put.Underlying != "VXX" {
		t.Errorf("put descriptors = %+v", put)
	}
	if put.Greeks == nil {
		t.Fatal("put.Greeks = nil, want decoded greeks")
	}
	if put.Greeks.MidIV != 1.23 || put.Greeks.Theta != -0.0011 {
		t.Errorf("put.Greeks = %+v", put.Greeks)
	}
	want := time.Date(2019, 5, 13, 20, 0, 8, 0, time.UTC)
	if !put.Greeks.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", put.Greeks.UpdatedAt, want)
	}

	call := chain[1]
	if call.Greeks != nil {
		t.Errorf("call.Greeks = %+v, want nil", call.Greeks)
	}
	if call.OpenInterest != 12 || call.Bid != 1415 {
		t.Errorf("call = %+v", call)
	}
}

func TestDecodeOptionChain_EmptyAndErrors(t *testing.T) {
	for _, body := range []string{`{"options":null}`, `{"options":"null"}`, `{"options":{"option":null}}`} {
		chain, err := DecodeOptionChain([]byte(body), 2)
		if err != nil {
			t.Errorf("DecodeOptionChain(%s) error = %v", body, err)
		}
		if len(chain) != 0 {
			t.Errorf("DecodeOptionChain(%s) = %v, want empty", body, chain)
		}
	}

	tests := []struct {
		name  string
		body  string
		field string
		err   error
	}{
		{"missing root", `{}`, "options", ErrMissingField},
		{"missing strike", `{"options":{"option":{"symbol":"X","bid":1,"ask":2}}}`, "option.strike", ErrMissingField},
		{"strike too precise", `{"options":{"option":{"symbol":"X","strike":1.005}}}`, "option.strike", fixed.ErrPrecision},
		{"bad greeks time", `{"options":{"option":{"symbol":"X","strike":1,"greeks":{"updated_at":"yesterday"}}}}`, "greeks.updated_at", ErrBadTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOptionChain([]byte(tt.body), 2)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error = %v, want *DecodeError", err)
			}
			if de.Field != tt.field || !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want field %q wrapping %v", err, tt.field, tt.err)
			}
		})
	}
}

func TestSortByStrike(t *testing.T) {
	chain := []OptionContract{
		{Quote: Quote{Symbol: "C150"}, Strike: 15000},
		{Quote: Quote{Symbol: "C140"}, Strike: 14000},
		{Quote: Quote{Symbol: "P150"}, Strike: 15000},
		{Quote: Quote{Symbol: "C160"}, Strike: 16000},
	}
	symbols := func() []string {
		out := make([]string, len(chain))
		for i, o := range chain {
			out[i] = o.Symbol
		}
		return out
	}

	SortByStrike(chain, true)
	if got, want := strings.Join(symbols(), ","), "C140,C150,P150,C160"; got != want {
		t.Errorf("ascending = %s, want %s", got, want)
	}
	SortByStrike(chain, false)
	if got, want := strings.Join(symbols(), ","), "C160,C150,P150,C140"; got != want {
		t.Errorf("descending = %s, want %s", got, want)
	}
}

func TestDecodeDividends(t *testing.T) {
	body := `[{"request":"AAPL","type":"Symbol","results":[
		{"type":"Company","id":"0C00000ADA","tables":{"cash_dividends":null}},
		{"type":"Stock","id":"0P000000GY","tables":{"cash_dividends":[
			{"share_class_id":"0P000000GY","dividend_type":"CD","ex_date":"2019-05-10","cash_amount":0.77,"currency_id":"USD","declaration_date":"2019-04-30","frequency":4,"pay_date":"2019-05-16","record_date":"2019-05-13"},
			{"share_class_id":"0P000000GY","dividend_type":"CD","ex_date":"2019-02-08","cash_amount":"0.7300","currency_id":"USD","frequency":4,"pay_date":"2019-02-14","record_date":"2019-02-11"}
		]}}
	]}]`

	divs, err := DecodeDividends([]byte(body))
	if err != nil {
		t.Fatalf("DecodeDividends failed: %v", err)
	}
	if len(divs) != 2 {
		t.Fatalf("len(divs) = %d, want 2", len(divs))
	}

	d := divs[0]
	if d.Symbol != "AAPL" || d.Type != "CD" || d.Currency != "USD" || d.Frequency != 4 {
		t.Errorf("divs[0] = %+v", d)
	}
	if !d.Amount.Equal(decimal.RequireFromString("0.77")) {
		t.Errorf("Amount = %s, want 0.77", d.Amount)
	}
	if want := time.Date(2019, 5, 10, 0, 0, 0, 0, time.UTC); !d.ExDate.Equal(want) {
		t.Errorf("ExDate = %v, want %v", d.ExDate, want)
	}
	if !divs[1].Amount.Equal(decimal.RequireFromString("0.73")) {
		t.Errorf("divs[1].Amount = %s, want 0.73", divs[1].Amount)
	}
	if !divs[1].DeclarationDate.IsZero() {
		t.Errorf("DeclarationDate = %v, want zero", divs[1].DeclarationDate)
	}

	empty, err := DecodeDividends([]byte(`[{"request":"SPY","results":[]}]`))
	if err != nil || len(empty) != 0 {
		t.Errorf("DecodeDividends(no results) = %v, %v", empty, err)
	}
}

func TestDecodeDividends_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		err   error
	}{
		{"object root", `{"fault":{"faultstring":"x"}}`, "body", ErrUnexpectedShape},
		{"bad amount", `[{"results":[{"tables":{"cash_dividends":{"cash_amount":"lots"}}}]}]`, "dividend.cash_amount", ErrNotNumber},
		{"bad date", `[{"results":[{"tables":{"cash_dividends":{"ex_date":"May 10"}}}]}]`, "dividend.ex_date", ErrBadTimestamp},
		{"results not objects", `[{"results":[1,2]}]`, "results", ErrUnexpectedShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDividends([]byte(tt.body))
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error = %v, want *DecodeError", err)
			}
			if de.Field != tt.field || !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want field %q wrapping %v", err, tt.field, tt.err)
			}
		})
	}
}

func TestDecode_MissingRoot(t *testing.T) {
	fault := `{"fault":{"faultstring":"Invalid Access Token","detail":{"errorcode":"keymanagement.service.invalid_access_token"}}}`
	decoders := map[string]func([]byte) error{
		"orders": func(b []byte) error {
			_, err := DecodeOrders(b, 2)
			return err
		},
		"positions": func(b []byte) error {
			_, err := DecodePositions(b, 2)
			return err
		},
		"history": func(b []byte) error {
			_, err := DecodeHistory(b, 2)
			return err
		},
		"expirations": func(b []byte) error {
			_, err := DecodeExpirations(b)
			return err
		},
		"quotes": func(b []byte) error {
			_, err := DecodeQuotes(b, 2)
			return err
		},
	}
	bodies := []struct {
		name  string
		body  string
		field string
		err   error
	}{
		{"fault", fault, "", ErrMissingField},
		{"empty object", `{}`, "", ErrMissingField},
		{"array", `[]`, "body", ErrUnexpectedShape},
	}

	for root, decode := range decoders {
		for _, tt := range bodies {
			t.Run(root+"/"+tt.name, func(t *testing.T) {
				err := decode([]byte(tt.body))
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Fatalf("error = %v, want *DecodeError", err)
				}
				field := tt.field
				if field == "" {
					field = root
				}
				if de.Field != field {
					t.Errorf("Field = %q, want %q", de.Field, field)
				}
				if !errors.Is(err, tt.err) {
					t.Errorf("error = %v, want %v", err, tt.err)
				}
			})
		}
	}
}

func TestOrderRequest(t *testing.T) {
	req := OrderRequest{
		Class:        "option",
		Symbol:       "SPY",
		OptionSymbol: "SPY190621C00280000",
		Side:         "buy_to_open",
		Quantity:     2,
		Type:         "stop_limit",
		Duration:     "gtc",
		Price:        decimal.RequireFromString("1.25"),
		Stop:         decimal.RequireFromString("1.20"),
		Tag:          "my-tag",
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	form := req.Form()
	checks := map[string]string{
		"class":         "option",
		"option_symbol": "SPY190621C00280000",
		"quantity":      "2",
		"type":          "stop_limit",
		"duration":      "gtc",
		"price":         "1.25",
		"stop":          "1.2",
		"tag":           "my-tag",
	}
	for k, want := range checks {
		if got := form.Get(k); got != want {
			t.Errorf("form[%s] = %q, want %q", k, got, want)
		}
	}

	invalid := []struct {
		req OrderRequest
		err error
	}{
		{OrderRequest{}, ErrMissingSymbol},
		{OrderRequest{Symbol: "SPY"}, ErrInvalidQuantity},
		{OrderRequest{Class: "option", Symbol: "SPY", Quantity: 1}, ErrMissingSymbol},
		{OrderRequest{Symbol: "SPY", Quantity: 1, Type: "stop"}, ErrMissingStop},
		{OrderRequest{Symbol: "SPY", Quantity: 1, Type: "stop_limit", Price: decimal.NewFromInt(1)}, ErrMissingStop},
	}
	for i, tt := range invalid {
		if err := tt.req.Validate(); !errors.Is(err, tt.err) {
			t.Errorf("case %d: Validate() = %v, want %v", i, err, tt.err)
		}
	}

	defaults := OrderRequest{Symbol: "SPY", Side: "sell", Quantity: 1}.Form()
	if defaults.Get("class") != "equity" || defaults.Get("type") != "market" || defaults.Get("duration") != "day" {
		t.Errorf("defaults = %v", defaults)
	}
}
