package service

import "errors"

// Категории ошибок. Хендлеры отображают их в HTTP-статусы.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrExpired          = errors.New("expired")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrUpstream         = errors.New("upstream failure")
)

// Error — доменная ошибка с сообщением для пользователя.
type Error struct {
	Kind    error
	Message string
	// Retryable — клиент может повторить запрос позже.
	Retryable bool
	// Err — исходная причина (не показывается пользователю).
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap позволяет errors.Is находить и категорию, и причину.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func upstreamError(message string, cause error) *Error {
	return &Error{Kind: ErrUpstream, Message: message, Retryable: true, Err: cause}
}

// Предопределённые ошибки.
var (
	ErrEmailTaken       = newError(ErrConflict, "Email already registered")
	ErrUsernameTaken    = newError(ErrConflict, "Username already taken")
	ErrBadCredentials   = newError(ErrUnauthorized, "Invalid email or password")
	ErrWrongPassword    = newError(ErrUnauthorized, "Current password is incorrect")
	ErrPasswordTooShort = newError(ErrValidation, "Password must be at least 6 characters")
	ErrUserNotFound     = newError(ErrNotFound, "User not found")

	ErrPresetNotFound    = newError(ErrNotFound, "Preset not found")
	ErrPresetUnavailable = newError(ErrNotFound, "Preset not found or unavailable")
	ErrInvalidCategory   = newError(ErrValidation, "Unknown category")

	ErrNoBuyerIdentity  = newError(ErrValidation, "Email or phone required for guest checkout")
	ErrMissingCallback  = newError(ErrValidation, "Order id, payment id and signature are required")
	ErrInvalidSignature = newError(ErrSignatureInvalid, "Invalid payment signature")

	ErrInvalidToken   = newError(ErrNotFound, "Invalid download token")
	ErrLinkExpired    = newError(ErrExpired, "Download link has expired")
	ErrDownloadsLimit = newError(ErrQuotaExceeded, "Maximum downloads reached. Please contact support.")

	ErrLookupIdentity = newError(ErrValidation, "Email or phone required")
)
