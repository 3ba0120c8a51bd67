package diag

import (
	"go.uber.org/zap"
)

// Warning is one non-fatal diagnostic.
type Warning struct {
	Reason  Reason
	Subject string
	Detail  string
}

// Reporter is the diagnostic channel for one generation run.
// Warnings are logged and kept so callers can inspect them afterwards.
type Reporter struct {
	logger   *zap.Logger
	warnings []Warning
}

// NewReporter creates a reporter. A nil logger discards output.
func NewReporter(logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{logger: logger}
}

// Warn records a recoverable oddity.
func (r *Reporter) Warn(reason Reason, subject, detail string) {
	r.warnings = append(r.warnings, Warning{Reason: reason, Subject: subject, Detail: detail})
	r.logger.Warn(detail,
		zap.String("reason", string(reason)),
		zap.String("subject", subject))
}

// Error logs a fatal diagnostic and hands it back for returning.
func (r *Reporter) Error(err *Error) *Error {
	r.logger.Error(err.Detail,
		zap.String("kind", string(err.Kind)),
		zap.String("reason", string(err.Reason)),
		zap.String("subject", err.Subject),
		zap.Strings("notes", err.Notes))
	return err
}

// Warnings returns the warnings reported so far.
func (r *Reporter) Warnings() []Warning {
	return append([]Warning(nil), r.warnings...)
}

// HasWarning reports whether a warning with the given reason was seen.
func (r *Reporter) HasWarning(reason Reason) bool {
	for _, w := range r.warnings {
		if w.Reason == reason {
			return true
		}
	}
	return false
}
