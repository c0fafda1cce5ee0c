package kafka

import "github.com/Dhoini/subscription-service/internal/domain"

// Topics lists every topic the service publishes to. Each event type has its own topic.
func Topics() []string {
	return []string{
		string(domain.EventCheckoutCreated),
		string(domain.EventSubscriptionActivated),
		string(domain.EventSubscriptionCanceled),
	}
}
