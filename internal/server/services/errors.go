package services

import (
	"fmt"

	"github.com/dmitrijs2005/guardshare/internal/common"
)

// invalid wraps common.ErrorValidation with a message safe to show clients.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, fmt.Sprintf(format, args...))
}
