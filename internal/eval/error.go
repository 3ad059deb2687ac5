package eval

import "fmt"

// Code identifies the kind of evaluation failure.
type Code int

// Stable codes - do not change values.
const (
	CodeAffine      Code = 1001 // EV1001: affine variable or operation in a regular program
	CodeBadInput    Code = 1002 // EV1002: input value of the wrong size or unknown name
	CodeStepLimit   Code = 1003 // EV1003: step limit exceeded
	CodeUnsupported Code = 1004 // EV1004: operation without a regular meaning
	CodeBadTexture  Code = 1005 // EV1005: texture without texels
)

// String returns the code as "EV1001".
func (c Code) String() string {
	return fmt.Sprintf("EV%d", c)
}

// Error is an evaluation failure located at a statement when one applies.
type Error struct {
	Code    Code
	Message string
	Node    string // node name, empty when not at a statement
	Stmt    string // formatted statement
}

func (e *Error) Error() string {
	switch {
	case e.Stmt == "":
		return fmt.Sprintf("eval %s: %s", e.Code, e.Message)
	case e.Node == "":
		return fmt.Sprintf("eval %s: %s: %s", e.Code, e.Message, e.Stmt)
	}
	return fmt.Sprintf("eval %s: %s: %s (in %s)", e.Code, e.Message, e.Stmt, e.Node)
}
