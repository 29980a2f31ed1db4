// Package types provides common type definitions for the portfolio tracker.
package types

// WalletType categorizes how a tracked address is held
type WalletType string

const (
	// WalletHot represents an address controlled by a hot (online) wallet
	WalletHot WalletType = "hot"
	// WalletCold represents an address controlled by a cold (offline) wallet
	WalletCold WalletType = "cold"
	// WalletSmart represents a smart-contract wallet
	WalletSmart WalletType = "smart"
)

// WalletTypes lists every supported wallet type
var WalletTypes = []WalletType{WalletHot, WalletCold, WalletSmart}

// Valid reports whether the wallet type is one of the supported values
func (w WalletType) Valid() bool {
	switch w {
	case WalletHot, WalletCold, WalletSmart:
		return true
	}
	return false
}

// ValidatorStatus represents the lifecycle state of a staking validator
type ValidatorStatus string

const (
	// ValidatorActive represents a validator that is attesting
	ValidatorActive ValidatorStatus = "active"
	// ValidatorPending represents a validator waiting for activation
	ValidatorPending ValidatorStatus = "pending"
	// ValidatorExited represents a validator that has left the active set
	ValidatorExited ValidatorStatus = "exited"
)

// JobStatus represents the state of a snapshot collection job group
type JobStatus string

const (
	// JobPending represents a job group that has not finished yet
	JobPending JobStatus = "pending"
	// JobComplete represents a job group whose tasks all finished
	JobComplete JobStatus = "complete"
)

// CollectionErrorType categorizes snapshot collection failures
type CollectionErrorType string

const (
	// ErrorAssets represents a token balance fetch failure
	ErrorAssets CollectionErrorType = "assets"
	// ErrorStaking represents a staking data fetch failure
	ErrorStaking CollectionErrorType = "staking"
	// ErrorProtocols represents a DeFi protocol fetch failure
	ErrorProtocols CollectionErrorType = "protocols"
	// ErrorPrices represents a price fetch failure
	ErrorPrices CollectionErrorType = "prices"
)

// ReportingCurrency is the common currency every valuation is converted into
const ReportingCurrency = "EUR"

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Common service error codes
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeUsernameTaken    = "USERNAME_TAKEN"
	CodePasswordMismatch = "PASSWORD_MISMATCH"
	CodeInviteRequired   = "INVITE_CODE_REQUIRED"
	CodeInviteInvalid    = "INVITE_CODE_INVALID"
	CodeBadCredentials   = "INVALID_CREDENTIALS"
	CodeDuplicateAddress = "ADDRESS_ALREADY_REGISTERED"
	CodeDuplicateAccount = "ACCOUNT_NAME_TAKEN"
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeUnauthorized     = "UNAUTHORIZED"
)

// ValidationError builds a field-attached validation ServiceError
func ValidationError(field, message string) *ServiceError {
	return &ServiceError{
		Code:    CodeValidation,
		Message: message,
		Details: map[string]interface{}{"field": field},
	}
}
