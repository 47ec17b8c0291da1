// internal/app/features/systemusers/handler.go
package systemusers

import (
	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/auditlog"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"go.uber.org/zap"
)

// User-facing messages specific to this feature.
const (
	MsgConfirmRemove  = "Are you sure you want to remove this user? They will still exist in Auth unless deleted there."
	MsgSelfRoleChange = "You can't change your own role. Ask another admin to make that change."
	MsgSelfRemove     = "You can't remove yourself from the list."
)

type Handler struct {
	Identity *identity.Service
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	Audit    *auditlog.Logger
}

// NewHandler constructs a System Users feature handler bound to the
// identity service and logger.
func NewHandler(svc *identity.Service, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Identity: svc,
		Log:      logger,
		ErrLog:   errLog,
		Audit:    audit,
	}
}
