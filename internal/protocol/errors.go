package protocol

import "errors"

// ErrMalformedMessage means the line is not a JSON object with a string
// "operacao" field. The stream can no longer be trusted after it.
var ErrMalformedMessage = errors.New("malformed message")

// InfoInvalidSession answers every request whose session cannot be
// resolved, whether the token is missing, malformed or unknown.
const InfoInvalidSession = "Token de sessão inválido."

// Violation is a well-formed request that breaks the protocol rules. It is
// answered with an error envelope and the connection stays open.
type Violation struct {
	Operation string
	Info      string
}

func (v *Violation) Error() string {
	return "protocol violation (" + v.Operation + "): " + v.Info
}

func violation(operation, info string) *Violation {
	return &Violation{Operation: operation, Info: info}
}
