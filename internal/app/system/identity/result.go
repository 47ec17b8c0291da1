// internal/app/system/identity/result.go
package identity

import "errors"

// Result is what every mutating operation hands back to the presentation
// layer: whether it worked and the message to show.
type Result struct {
	OK      bool
	Message string
}

func Success(msg string) Result { return Result{OK: true, Message: msg} }
func Failure(msg string) Result { return Result{OK: false, Message: msg} }

// User-facing messages.
const (
	MsgGeneric              = "Something went wrong. Please try again."
	MsgInvalidCredential    = "Invalid email or password."
	MsgUserNotFound         = "No account found with that email."
	MsgEmailInUse           = "That email is already registered."
	MsgWrongPassword        = "Current password is incorrect."
	MsgNewPasswordTooShort  = "New password must be at least 6 characters."
	MsgPasswordTooShort     = "Password must be at least 6 characters."
	MsgSamePassword         = "New password cannot be the same as your current password."
	MsgMissingCurrent       = "Please enter your current password."
	MsgRecentLoginPassword  = "For security, please log in again."
	MsgRecentLoginDelete    = "Security Check: Please Log Out and Log In again to delete your account."
	MsgCreateUserFailed     = "Failed to create user account."
	MsgUserRemoved          = "User removed from list"
	MsgMissingEmail         = "Please enter your email address."
	MsgMissingLoginFields   = "Please enter your email and password."
	MsgMissingRegisterField = "Please fill in all fields."
	MsgResetInvalid         = "This reset link is invalid or has expired."
)

// Humanize maps a backend error to the text shown to the user.
func Humanize(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredential):
		return MsgInvalidCredential
	case errors.Is(err, ErrUserNotFound):
		return MsgUserNotFound
	case errors.Is(err, ErrEmailInUse):
		return MsgEmailInUse
	case errors.Is(err, ErrWrongPassword):
		return MsgWrongPassword
	case errors.Is(err, ErrWeakPassword):
		return MsgNewPasswordTooShort
	case errors.Is(err, ErrSamePassword):
		return MsgSamePassword
	case errors.Is(err, ErrMissingCurrentPassword):
		return MsgMissingCurrent
	case errors.Is(err, ErrRequiresRecentLogin):
		return MsgRecentLoginPassword
	case errors.Is(err, ErrResetTokenInvalid):
		return MsgResetInvalid
	}
	return MsgGeneric
}
