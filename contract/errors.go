package contract

import "errors"

// Failure taxonomy of the registry. Operations wrap these with fmt.Errorf and
// %w so callers and tests can match them with errors.Is. All failures are
// synchronous and local; a failed operation leaves no trace on the ledger.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrAlreadyRegistered = errors.New("participant already registered")
	ErrNotRegistered     = errors.New("recipient is not a registered participant")
	ErrNotFound          = errors.New("certificate does not exist")
	ErrAlreadyRevoked    = errors.New("certificate already revoked")
	ErrNonTransferable   = errors.New("certificates are non-transferable")
	ErrUnauthorized      = errors.New("unauthorized")
)
