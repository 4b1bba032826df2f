// Package errors implements classified error handling for femtostream.
//
// Errors are classified as transient (may be retried), invalid (bad
// input or configuration), or fatal (stop the run). Components wrap
// errors with context using the Wrap* helpers:
//
//	if err := reg.H1D(path, axis); err != nil {
//	    return errors.WrapInvalid(err, "EventHisto", "Init", "book zvtx")
//	}
//
// Callers dispatch on classification with IsTransient, IsInvalid and
// IsFatal rather than matching error strings.
package errors
