package gql

import (
	"context"
	"fmt"
)

// PlaceOrder issues the placeOrders mutation for one offer. A populated
// error field in the response is returned as an *OrderError; transport and
// shape problems are returned as other errors.
func (c *Client) PlaceOrder(ctx context.Context, offerID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gql: place order %s: %w", offerID, err)
	}

	var data struct {
		PlaceOrders *struct {
			Error *OrderError `json:"error"`
		} `json:"placeOrders"`
	}
	if err := c.Do(ctx, placeOrderRequest(offerID), &data); err != nil {
		return err
	}
	if data.PlaceOrders == nil {
		return &ProtocolError{Op: "placeOrders", Msg: "response lacks data.placeOrders"}
	}
	if data.PlaceOrders.Error != nil {
		return data.PlaceOrders.Error
	}
	return nil
}
