package repository

import "github.com/Dhoini/subscription-service/internal/domain"

var (
	// ErrNotFound запись не найдена
	ErrNotFound = domain.ErrNotFound

	// ErrDuplicate дубликат записи (e.g. a payment already bound to a record)
	ErrDuplicate = domain.ErrDuplicate
)
