package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/tradier-stream/internal/fixed"
)

// Quote from GET /markets/quotes
type Quote struct {
	Symbol      string
	Description string
	Exch        string
	Type        string // stock, option, etf, index

	// Prices at the client's scale
	Last      fixed.Price
	Change    fixed.Price
	Open      fixed.Price
	High      fixed.Price
	Low       fixed.Price
	Close     fixed.Price
	PrevClose fixed.Price
	Bid       fixed.Price
	Ask       fixed.Price

	Volume  int64
	BidSize int64
	AskSize int64
	BidExch string
	AskExch string

	// Timestamps (epoch milliseconds)
	TradeDate int64
	BidDate   int64
	AskDate   int64
}

// OrderRequest is the form for POST /accounts/{id}/orders.
type OrderRequest struct {
	Class        string // equity, option
	Symbol       string
	OptionSymbol string // Required for class option
	Side         string // buy, sell, sell_short, buy_to_open, ...
	Quantity     int64
	Type         string // market, limit, stop, stop_limit
	Duration     string // day, gtc, pre, post
	Price        decimal.Decimal
	Stop         decimal.Decimal
	Tag          string
}

// Order request errors
var (
	ErrMissingSymbol   = errors.New("order symbol is required")
	ErrInvalidQuantity = errors.New("order quantity must be positive")
	ErrMissingPrice    = errors.New("limit order requires a price")
	ErrMissingStop     = errors.New("stop order requires a stop price")
)

// Validate checks the fields Tradier requires for the order type.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return ErrMissingSymbol
	}
	if r.Class == "option" && r.OptionSymbol == "" {
		return fmt.Errorf("option order: %w", ErrMissingSymbol)
	}
	if r.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	switch r.Type {
	case "limit":
		if !r.Price.IsPositive() {
			return ErrMissingPrice
		}
	case "stop":
		if !r.Stop.IsPositive() {
			return ErrMissingStop
		}
	case "stop_limit":
		if !r.Price.IsPositive() {
			return ErrMissingPrice
		}
		if !r.Stop.IsPositive() {
			return ErrMissingStop
		}
	}
	return nil
}

// Form encodes the request. Class, type and duration default to equity,
// market and day.
func (r OrderRequest) Form() url.Values {
	form := url.Values{}
	form.Set("class", orDefault(r.Class, "equity"))
	form.Set("symbol", r.Symbol)
	if r.OptionSymbol != "" {
		form.Set("option_symbol", r.OptionSymbol)
	}
	form.Set("side", r.Side)
	form.Set("quantity", strconv.FormatInt(r.Quantity, 10))
	form.Set("type", orDefault(r.Type, "market"))
	form.Set("duration", orDefault(r.Duration, "day"))
	if !r.Price.IsZero() {
		form.Set("price", r.Price.String())
	}
	if !r.Stop.IsZero() {
		form.Set("stop", r.Stop.String())
	}
	if r.Tag != "" {
		form.Set("tag", r.Tag)
	}
	return form
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// OrderAck from POST /accounts/{id}/orders
type OrderAck struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	PartnerID string `json:"partner_id,omitempty"`
}

// Order from GET /accounts/{id}/orders
type Order struct {
	ID           int64
	Type         string
	Symbol       string
	OptionSymbol string
	Side         string
	Class        string
	Status       string
	Duration     string
	Tag          string

	Quantity          int64
	ExecQuantity      int64
	RemainingQuantity int64

	Price         fixed.Price
	StopPrice     fixed.Price
	AvgFillPrice  fixed.Price
	LastFillPrice fixed.Price

	CreateDate      time.Time
	TransactionDate time.Time
}

// Balances from GET /accounts/{id}/balances
type Balances struct {
	AccountNumber      string
	AccountType        string // cash, margin, pdt
	TotalEquity        fixed.Price
	TotalCash          fixed.Price
	MarketValue        fixed.Price
	LongMarketValue    fixed.Price
	ShortMarketValue   fixed.Price
	OpenPL             fixed.Price
	ClosePL            fixed.Price
	PendingCash        fixed.Price
	UnclearedFunds     fixed.Price
	PendingOrdersCount int64
}

// Position from GET /accounts/{id}/positions
type Position struct {
	ID           int64
	Symbol       string
	Quantity     int64 // Negative for short positions
	CostBasis    fixed.Price
	DateAcquired time.Time
}

// StreamSession from POST /markets/events/session
type StreamSession struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionid"`
}

// Interval selects the bar size for GET /markets/history.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Bar is one OHLCV row from GET /markets/history.
type Bar struct {
	Date   time.Time
	Open   fixed.Price
	High   fixed.Price
	Low    fixed.Price
	Close  fixed.Price
	Volume int64
}

// OptionContract from GET /markets/options/chains
type OptionContract struct {
	Quote

	Underlying     string
	RootSymbol     string
	OptionType     string // call, put
	Strike         fixed.Price
	ExpirationDate string // YYYY-MM-DD
	ExpirationType string // standard, weeklys, quarterlys, eom
	OpenInterest   int64
	ContractSize   int64
	Greeks         *Greeks // nil unless requested
}

// Greeks are ratios, not prices, so they stay float64.
type Greeks struct {
	Delta     float64
	Gamma     float64
	Theta     float64
	Vega      float64
	Rho       float64
	Phi       float64
	BidIV     float64
	MidIV     float64
	AskIV     float64
	SmvVol    float64
	UpdatedAt time.Time
}

// Dividend from GET /beta/markets/fundamentals/dividends. Cash amounts
// carry more precision than prices, so they are decimals.
type Dividend struct {
	Symbol          string
	Type            string // CD (cash), SC (special cash), ...
	Amount          decimal.Decimal
	Currency        string
	Frequency       int64 // Payments per year
	ExDate          time.Time
	PayDate         time.Time
	RecordDate      time.Time
	DeclarationDate time.Time
}
