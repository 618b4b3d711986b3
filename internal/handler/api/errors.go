package api

import (
	"errors"
	"net/http"

	models "CreditLens/internal/domain/models"
	xhttp "CreditLens/pkg/http"
)

// mapDomainError translates domain errors into transport errors so handlers
// return stable codes instead of leaking internals.
func mapDomainError(err error) error {
	var verr *models.ValidationError
	var serr *models.SchemaMismatchError
	var terr *models.TrainingError

	switch {
	case errors.Is(err, models.ErrIssuerNotFound):
		return xhttp.NotFoundError("issuer has no persisted score").WithError(err)
	case errors.Is(err, models.ErrModelNotFound):
		return xhttp.NotFoundError("model version not found").WithError(err)
	case errors.Is(err, models.ErrNoActiveModel):
		return xhttp.NewAppError("ERR_NO_ACTIVE_MODEL", "", "no active model version", http.StatusServiceUnavailable).WithError(err)
	case errors.Is(err, models.ErrPromotionConflict):
		return xhttp.NewAppError("ERR_PROMOTION_CONFLICT", "", "another promotion is in flight, retry", http.StatusConflict).WithError(err)
	case errors.As(err, &verr):
		return xhttp.NewAppError("ERR_VALIDATION", verr.Field, verr.Error(), http.StatusBadRequest).WithError(err)
	case errors.As(err, &serr):
		return xhttp.NewAppError("ERR_SCHEMA_MISMATCH", "", serr.Error(), http.StatusConflict).WithError(err)
	case errors.As(err, &terr):
		return xhttp.NewAppError("ERR_TRAINING", "", terr.Error(), http.StatusUnprocessableEntity).WithError(err)
	default:
		return err
	}
}
