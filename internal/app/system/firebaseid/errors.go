package firebaseid

import (
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toolkitCodes maps Identity Toolkit error messages to identity errors. The
// message may carry a suffix ("WEAK_PASSWORD : Password should be ...").
var toolkitCodes = map[string]error{
	"EMAIL_NOT_FOUND":                identity.ErrUserNotFound,
	"USER_NOT_FOUND":                 identity.ErrUserNotFound,
	"INVALID_PASSWORD":               identity.ErrWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":      identity.ErrInvalidCredential,
	"INVALID_EMAIL":                  identity.ErrInvalidCredential,
	"USER_DISABLED":                  identity.ErrInvalidCredential,
	"EMAIL_EXISTS":                   identity.ErrEmailInUse,
	"WEAK_PASSWORD":                  identity.ErrWeakPassword,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": identity.ErrRequiresRecentLogin,
	"TOKEN_EXPIRED":                  identity.ErrRequiresRecentLogin,
}

// toolkitError translates an Identity Toolkit failure.
func toolkitError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		code := gerr.Message
		if i := strings.IndexAny(code, " :"); i > 0 {
			code = code[:i]
		}
		if mapped, ok := toolkitCodes[code]; ok {
			return fmt.Errorf("%w: %s", mapped, gerr.Message)
		}
	}
	return err
}

// adminError translates a Firebase Admin SDK auth failure.
func adminError(err error) error {
	switch {
	case err == nil:
		return nil
	case auth.IsEmailAlreadyExists(err):
		return fmt.Errorf("%w: %v", identity.ErrEmailInUse, err)
	case auth.IsUserNotFound(err):
		return fmt.Errorf("%w: %v", identity.ErrUserNotFound, err)
	}
	return err
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
