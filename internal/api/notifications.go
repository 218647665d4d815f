package api

import (
	"context"
	"net/http"
)

// SendTestNotification 让服务端向当前用户推送一条测试通知，返回送达的连接数
func (c *Client) SendTestNotification(ctx context.Context) (int, error) {
	var out struct {
		Delivered int `json:"delivered"`
	}
	if err := c.gateway.Do(ctx, http.MethodPost, "/notifications/test", nil, &out); err != nil {
		return 0, err
	}
	return out.Delivered, nil
}
