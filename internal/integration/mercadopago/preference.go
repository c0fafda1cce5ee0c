package mercadopago

import (
	"context"
	"net/http"

	"github.com/Dhoini/subscription-service/internal/domain"
)

// BackURLs where the provider sends the buyer after checkout.
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type preferenceItem struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
	UnitPrice  float64 `json:"unit_price"`
}

type preferenceRequest struct {
	Items             []preferenceItem  `json:"items"`
	BackURLs          *BackURLs         `json:"back_urls,omitempty"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	ExternalReference string            `json:"external_reference"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreatePreference creates a checkout preference (the provider's payment intent).
func (c *Client) CreatePreference(ctx context.Context, in domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	body := toPreferenceRequest(in, c.backURLs)

	var out preferenceResponse
	if err := c.do(ctx, "create_preference", http.MethodPost, "/checkout/preferences", body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, domain.NewExternalServiceError(serviceName, "create_preference", "response without preference id", http.StatusOK, nil)
	}

	intent := toDomainIntent(out, c.useSandbox)
	c.log.Debugw("Preference created", "preference_id", intent.ID)
	return intent, nil
}
