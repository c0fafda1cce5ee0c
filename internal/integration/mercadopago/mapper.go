package mercadopago

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Dhoini/subscription-service/internal/domain"
)

// flexID accepts identifiers the API sends either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type paymentResponse struct {
	ID                flexID         `json:"id"`
	Status            string         `json:"status"`
	ExternalReference string         `json:"external_reference"`
	Metadata          map[string]any `json:"metadata"`
	Order             *struct {
		ID   flexID `json:"id"`
		Type string `json:"type"`
	} `json:"order"`
}

type merchantOrderResponse struct {
	ID                flexID `json:"id"`
	PreferenceID      string `json:"preference_id"`
	ExternalReference string `json:"external_reference"`
	Payments          []struct {
		ID     flexID `json:"id"`
		Status string `json:"status"`
	} `json:"payments"`
}

// toPreferenceRequest преобразует доменный запрос в тело запроса Mercado Pago
func toPreferenceRequest(in domain.PaymentIntentRequest, backURLs BackURLs) preferenceRequest {
	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	req := preferenceRequest{
		Items: []preferenceItem{{
			ID:         in.ItemID,
			Title:      in.Title,
			Quantity:   quantity,
			CurrencyID: in.Currency,
			UnitPrice:  in.UnitPrice.InexactFloat64(),
		}},
		NotificationURL:   in.NotificationURL,
		ExternalReference: in.CorrelationToken,
		Metadata:          in.Metadata,
	}
	if backURLs != (BackURLs{}) {
		req.BackURLs = &backURLs
		if backURLs.Success != "" {
			req.AutoReturn = "approved"
		}
	}
	return req
}

func toDomainIntent(out preferenceResponse, sandbox bool) *domain.PaymentIntent {
	redirect := out.InitPoint
	if sandbox && out.SandboxInitPoint != "" {
		redirect = out.SandboxInitPoint
	}
	return &domain.PaymentIntent{ID: out.ID, RedirectURL: redirect}
}

// toDomainPayment isolates the response shape variance: the correlation token
// is read from external_reference first and metadata second, the intent
// reference from metadata only (order ids are merchant orders, not intents).
func toDomainPayment(out paymentResponse) *domain.ProviderPayment {
	p := &domain.ProviderPayment{
		ID:               string(out.ID),
		Status:           domain.ParsePaymentStatus(out.Status),
		CorrelationToken: strings.TrimSpace(out.ExternalReference),
		IntentRef:        metadataString(out.Metadata, "preference_id"),
	}
	if p.CorrelationToken == "" {
		p.CorrelationToken = metadataString(out.Metadata, "correlation_token")
	}
	if out.Order != nil && (out.Order.Type == "" || out.Order.Type == "mercadopago") {
		p.OrderRef = string(out.Order.ID)
	}
	return p
}

func toDomainOrder(out merchantOrderResponse) *domain.ProviderOrder {
	order := &domain.ProviderOrder{
		ID:               string(out.ID),
		IntentRef:        out.PreferenceID,
		CorrelationToken: strings.TrimSpace(out.ExternalReference),
		PaymentIDs:       make([]string, 0, len(out.Payments)),
	}
	for _, p := range out.Payments {
		if p.ID != "" {
			order.PaymentIDs = append(order.PaymentIDs, string(p.ID))
		}
	}
	return order
}

func metadataString(md map[string]any, key string) string {
	if md == nil {
		return ""
	}
	switch v := md[key].(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return ""
	}
}
