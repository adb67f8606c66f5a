package chain

import (
	"errors"
	"fmt"
)

// MetaMaskInstallURL is where users without a wallet provider are sent.
const MetaMaskInstallURL = "https://metamask.io/download.html"

var (
	// ErrProviderMissing is returned when no wallet provider is reachable.
	ErrProviderMissing = errors.New("wallet provider not found")

	// ErrUserRejected is returned when the user declines a wallet prompt.
	ErrUserRejected = errors.New("request rejected by user")

	// ErrUnrecognizedChain is returned by a provider that does not know the
	// requested chain. It triggers an add-chain request.
	ErrUnrecognizedChain = errors.New("chain not recognized by wallet")

	// ErrWrongNetwork is returned when the session cannot be moved to the
	// expected chain.
	ErrWrongNetwork = errors.New("wallet is connected to the wrong network")

	// ErrNotConnected is returned when an operation needs a connected session.
	ErrNotConnected = errors.New("wallet not connected")

	// ErrConfirmationTimeout is returned when a broadcast transaction was not
	// mined within the confirmation window. The transaction may still land.
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation")

	// ErrReverted marks a contract call that was mined but reverted.
	ErrReverted = errors.New("transaction reverted")
)

// ValidationError reports bad local input. It is produced before any
// network interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ContractCallError wraps a failed vault read or write with the method name.
type ContractCallError struct {
	Method string
	Err    error
}

func (e *ContractCallError) Error() string {
	return fmt.Sprintf("contract call %s failed: %v", e.Method, e.Err)
}

func (e *ContractCallError) Unwrap() error {
	return e.Err
}

// ProviderMissingError carries the page the user should be sent to.
type ProviderMissingError struct {
	InstallURL string
	Err        error
}

func (e *ProviderMissingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v (install one from %s): %v", ErrProviderMissing, e.InstallURL, e.Err)
	}
	return fmt.Sprintf("%v (install one from %s)", ErrProviderMissing, e.InstallURL)
}

func (e *ProviderMissingError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProviderMissing}
	}
	return []error{ErrProviderMissing, e.Err}
}

// Describe turns a typed failure into the message shown to a user.
// Unknown errors fall through with their own text.
func Describe(err error) string {
	var ve *ValidationError
	var ce *ContractCallError
	var pm *ProviderMissingError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Reason
	case errors.As(err, &pm):
		return "No wallet provider detected. Install MetaMask from " + pm.InstallURL
	case errors.Is(err, ErrProviderMissing):
		return "No wallet provider detected. Install MetaMask from " + MetaMaskInstallURL
	case errors.Is(err, ErrUserRejected):
		return "The request was rejected in the wallet"
	case errors.Is(err, ErrWrongNetwork):
		return "The wallet could not be switched to the required network"
	case errors.Is(err, ErrNotConnected):
		return "Connect a wallet first"
	case errors.Is(err, ErrConfirmationTimeout):
		return "The transaction was sent but not confirmed in time; its outcome is unknown"
	case errors.As(err, &ce):
		return fmt.Sprintf("Vault call %s failed: %v", ce.Method, ce.Err)
	default:
		return err.Error()
	}
}
