package model

import (
	"errors"
	"fmt"
)

// Error kinds. Workflows wrap causes with one of these so callers can branch
// with errors.Is while the cause stays available for logging.
var (
	ErrValidation        = errors.New("validation failed")
	ErrTransfer          = errors.New("transfer failed")
	ErrPersistence       = errors.New("persistence failed")
	ErrSubscription      = errors.New("subscription failed")
	ErrNotFound          = errors.New("record not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrInFlight          = errors.New("request already in flight")
)

// Specific validation failures. Both match ErrValidation as well.
var (
	ErrNotPDF      = fmt.Errorf("%w: only pdf files are accepted", ErrValidation)
	ErrBadQuantity = fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	ErrTooLarge    = fmt.Errorf("%w: file exceeds the size limit", ErrValidation)
)

// WrapError preserves the kind with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// User-facing messages.
const (
	MsgUploadDone        = "Subida completada."
	MsgMissingFields     = "Completa producto y adjunta al menos un PDF."
	MsgOnlyPDF           = "Solo se aceptan PDF."
	MsgBadQuantity       = "La cantidad debe ser al menos 1."
	MsgTooLarge          = "El archivo supera el tamaño máximo permitido."
	MsgUploadFailed      = "Error al subir. Revisa los registros del servidor."
	MsgStatusFailed      = "No se pudo actualizar el estado."
	MsgStatusStale       = "El estado cambió mientras tanto. Recarga la lista."
	MsgBusy              = "Ya hay una acción en curso para esta subida."
	MsgNotFound          = "La subida no existe."
	MsgReadDenied        = "Sin permisos para leer 'subidas'. Revisa los permisos de la base de datos."
	MsgSubscriptionError = "Se perdió la conexión con la lista de subidas."
	MsgLinkCopied        = "Link copiado al portapapeles"
)

// UserMessage converts any workflow error into the short string shown in the
// page. Causes are never included.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrNotPDF):
		return MsgOnlyPDF
	case IsKind(err, ErrBadQuantity):
		return MsgBadQuantity
	case IsKind(err, ErrTooLarge):
		return MsgTooLarge
	case IsKind(err, ErrValidation):
		return MsgMissingFields
	case IsKind(err, ErrPermissionDenied):
		return MsgReadDenied
	case IsKind(err, ErrSubscription):
		return MsgSubscriptionError
	case IsKind(err, ErrInFlight):
		return MsgBusy
	case IsKind(err, ErrIllegalTransition):
		return MsgStatusStale
	case IsKind(err, ErrNotFound):
		return MsgNotFound
	case IsKind(err, ErrTransfer):
		return MsgUploadFailed
	}
	return MsgStatusFailed
}

// UploadMessage is UserMessage for the upload form, where any failure other
// than validation or a busy session reads as a failed upload.
func UploadMessage(err error) string {
	if err == nil {
		return MsgUploadDone
	}
	if IsKind(err, ErrValidation) || IsKind(err, ErrInFlight) {
		return UserMessage(err)
	}
	return MsgUploadFailed
}
