package merchant

import "errors"

var (
	ErrMerchantNotFound = errors.New("merchant not found")
	ErrMerchantInactive = errors.New("merchant is not active")
)
