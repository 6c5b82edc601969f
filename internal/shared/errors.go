package shared

import "errors"

var (
	// ErrAuditDuplicate indicates the audit event id was already recorded.
	ErrAuditDuplicate = errors.New("audit event already recorded")
	// ErrAuditInvalid indicates a malformed audit event.
	ErrAuditInvalid = errors.New("audit event requires action, customer and format")
)
