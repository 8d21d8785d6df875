package repository

import (
	"fmt"

	"smart-notes-server/internal/apperr"
)

func storeError(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", apperr.ErrStoreIO, op, err)
}
