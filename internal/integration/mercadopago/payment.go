package mercadopago

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Dhoini/subscription-service/internal/domain"
)

// GetPayment fetches the authoritative state of a payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*domain.ProviderPayment, error) {
	var out paymentResponse
	if err := c.do(ctx, "get_payment", http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, domain.NewExternalServiceError(serviceName, "get_payment", "response without payment id", http.StatusOK, nil)
	}
	return toDomainPayment(out), nil
}

// GetMerchantOrder fetches a merchant order and the payments it groups.
func (c *Client) GetMerchantOrder(ctx context.Context, orderID string) (*domain.ProviderOrder, error) {
	var out merchantOrderResponse
	if err := c.do(ctx, "get_merchant_order", http.MethodGet, "/merchant_orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, domain.NewExternalServiceError(serviceName, "get_merchant_order", "response without order id", http.StatusOK, nil)
	}
	return toDomainOrder(out), nil
}
