package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/rickgao/tradier-stream/internal/ratelimit"
)

// ErrNoAccount is returned when an account call names no account.
var ErrNoAccount = errors.New("account id is required")

// NewOrderTag returns a unique tag for correlating orders with streamed
// events. Tradier accepts letters, digits and dashes.
func NewOrderTag() string {
	return "ts-" + uuid.NewString()
}

// PlaceOrder submits an order. A missing tag is filled with NewOrderTag.
func (c *Client) PlaceOrder(ctx context.Context, accountID string, req OrderRequest) (*OrderAck, error) {
	if accountID == "" {
		return nil, ErrNoAccount
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if req.Tag == "" {
		req.Tag = NewOrderTag()
	}

	body, err := c.post(ctx, ratelimit.ClassOrders, "/accounts/"+url.PathEscape(accountID)+"/orders", req.Form())
	if err != nil {
		return nil, fmt.Errorf("place order %s: %w", req.Tag, err)
	}

	ack, err := DecodeOrderAck(body)
	if err != nil {
		return nil, fmt.Errorf("place order %s: %w", req.Tag, err)
	}

	c.logger.Info("order placed",
		"id", ack.ID,
		"tag", req.Tag,
		"symbol", req.Symbol,
		"side", req.Side,
		"quantity", req.Quantity,
	)
	return ack, nil
}

// GetOrders fetches the account's orders, including tags.
func (c *Client) GetOrders(ctx context.Context, accountID string) ([]Order, error) {
	if accountID == "" {
		return nil, ErrNoAccount
	}

	query := url.Values{}
	query.Set("includeTags", "true")

	body, err := c.get(ctx, ratelimit.ClassAccount, "/accounts/"+url.PathEscape(accountID)+"/orders", query)
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}

	orders, err := DecodeOrders(body, c.decimals)
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}
	return orders, nil
}

// GetBalances fetches account balances.
func (c *Client) GetBalances(ctx context.Context, accountID string) (*Balances, error) {
	if accountID == "" {
		return nil, ErrNoAccount
	}

	body, err := c.get(ctx, ratelimit.ClassAccount, "/accounts/"+url.PathEscape(accountID)+"/balances", nil)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}

	balances, err := DecodeBalances(body, c.decimals)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	return balances, nil
}

// GetPositions fetches open positions.
func (c *Client) GetPositions(ctx context.Context, accountID string) ([]Position, error) {
	if accountID == "" {
		return nil, ErrNoAccount
	}

	body, err := c.get(ctx, ratelimit.ClassAccount, "/accounts/"+url.PathEscape(accountID)+"/positions", nil)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	positions, err := DecodePositions(body, c.decimals)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	return positions, nil
}
