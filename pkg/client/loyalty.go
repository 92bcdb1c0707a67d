package client

import (
	"context"
	"fmt"

	"freezefit/pkg/model"
)

type LoyaltyClient struct {
	http *HttpClient
}

func (c *LoyaltyClient) Levels(ctx context.Context) ([]model.LoyaltyLevel, error) {
	var levels []model.LoyaltyLevel
	if _, err := c.http.Get(ctx, "/api/v1/loyalty/levels", &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

func (c *LoyaltyClient) Status(ctx context.Context) (*model.LoyaltyStatus, error) {
	var status model.LoyaltyStatus
	if _, err := c.http.Get(ctx, "/api/v1/users/me/loyalty", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *LoyaltyClient) Transactions(ctx context.Context, limit, offset int) ([]*model.LoyaltyTransaction, *Meta, error) {
	var txs []*model.LoyaltyTransaction
	path := fmt.Sprintf("/api/v1/users/me/loyalty/transactions?limit=%d&offset=%d", limit, offset)
	meta, err := c.http.Get(ctx, path, &txs)
	if err != nil {
		return nil, nil, err
	}
	return txs, meta, nil
}

func (c *LoyaltyClient) Redeem(ctx context.Context, points int, reason string) (*model.LoyaltyStatus, error) {
	var status model.LoyaltyStatus
	req := &model.PointsRequest{Points: points, Reason: reason}
	if err := c.http.Post(ctx, "/api/v1/users/me/loyalty/redeem", req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
