package aasym

import (
	"errors"
	"fmt"
)

// ErrICE marks an internal compiler error: a broken contract between the
// affine passes and their collaborators. It is never a user error.
var ErrICE = errors.New("internal compiler error")

// ICE aborts the running pass. The panic value wraps ErrICE and is turned
// back into an error by RecoverICE at the pass entry.
func ICE(format string, args ...any) {
	panic(fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrICE))
}

// RecoverICE converts an ICE panic into *errp, prefixed with pass.
// Any other panic is re-raised.
func RecoverICE(pass string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if err, ok := r.(error); ok && errors.Is(err, ErrICE) {
		*errp = fmt.Errorf("%s: %w", pass, err)
		return
	}
	panic(r)
}
