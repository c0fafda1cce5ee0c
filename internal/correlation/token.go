// Package correlation encodes the (user, plan) pair carried through the
// payment provider as the payment's external reference.
package correlation

import (
	"fmt"
	"strings"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/google/uuid"
)

// delimiter is legal in neither a UUID nor a plan tag.
const delimiter = ":"

// Encode builds the opaque token for a user and plan.
func Encode(userID uuid.UUID, plan domain.Plan) string {
	return userID.String() + delimiter + string(plan)
}

// Decode splits a token back into its user and plan. Only the shape is
// checked here; the plan tag is validated by the caller.
func Decode(token string) (uuid.UUID, domain.Plan, error) {
	parts := strings.Split(strings.TrimSpace(token), delimiter)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return uuid.Nil, "", fmt.Errorf("%w: %q", domain.ErrMalformedToken, token)
	}

	userID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: user id: %v", domain.ErrMalformedToken, err)
	}
	return userID, domain.Plan(parts[1]), nil
}
