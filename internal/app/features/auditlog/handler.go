// internal/app/features/auditlog/handler.go
package auditlog

import (
	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/store/audit"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"go.uber.org/zap"
)

type Handler struct {
	Store    *audit.Store
	Identity *identity.Service
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
}

// NewHandler constructs an Audit Log feature handler. Identity is used only
// to show usernames next to uids and may be nil.
func NewHandler(store *audit.Store, svc *identity.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:    store,
		Identity: svc,
		Log:      logger,
		ErrLog:   errLog,
	}
}
