package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"pix-server/internal/models"
)

const (
	maxNameLength   = 120
	minSecretLength = 6
	maxSecretLength = 120
)

var (
	cpfPattern = regexp.MustCompile(`^\d{3}\.\d{3}\.\d{3}-\d{2}$`)
	maxAmount  = decimal.NewFromInt(1_000_000_000_000)
)

// Request is a message that passed the protocol check, with every field
// the operation needs already typed.
type Request struct {
	Operation string

	CPF       string
	Name      string
	Secret    string
	Token     string
	TargetCPF string
	Amount    decimal.Decimal
	From      time.Time
	To        time.Time
	Patch     models.AccountPatch

	ReportedOperation string
	ReportedInfo      string
}

// RequiresSession reports whether the operation needs a resolved session.
func (r Request) RequiresSession() bool {
	switch r.Operation {
	case OpLogout, OpReadAccount, OpUpdateAccount, OpDeleteAccount,
		OpDeposit, OpCreateTransfer, OpReadTransfers:
		return true
	}
	return false
}

// ValidateHandshake checks the first message of a connection. A rejection
// echoes the operation the client actually sent.
func ValidateHandshake(msg Message) (Request, error) {
	if msg.Operation != OpConnect {
		echo := msg.Operation
		if echo == "" {
			echo = OpConnect
		}
		return Request{}, violation(echo, "Protocolo violado: a primeira operação deve ser 'conectar'.")
	}
	return Request{Operation: OpConnect}, nil
}

// Validate runs the protocol check on a decoded message.
func Validate(msg Message) (Request, error) {
	if !IsKnown(msg.Operation) {
		return Request{}, violation(OpUnknown, "Operação não reconhecida.")
	}

	v := fieldReader{msg: msg}
	req := Request{Operation: msg.Operation}

	switch msg.Operation {
	case OpConnect:
	case OpCreateAccount:
		req.CPF = v.cpf("cpf")
		req.Name = v.name("nome")
		req.Secret = v.secret("senha")
	case OpLogin:
		req.CPF = v.cpf("cpf")
		req.Secret = v.verbatim("senha")
	case OpLogout, OpReadAccount, OpDeleteAccount:
		req.Token = v.token("token")
	case OpUpdateAccount:
		req.Token = v.token("token")
		req.Patch = v.patch("usuario")
	case OpDeposit:
		req.Token = v.token("token")
		req.Amount = v.amount("valor_enviado")
	case OpCreateTransfer:
		req.Token = v.token("token")
		req.TargetCPF = v.cpf("cpf_destino")
		req.Amount = v.amount("valor")
	case OpReadTransfers:
		req.Token = v.token("token")
		req.From = v.timestamp("data_inicial")
		req.To = v.timestamp("data_final")
	case OpReportError:
		req.ReportedOperation = v.str("operacao_enviada")
		req.ReportedInfo = v.text("info")
	}

	if v.err != nil {
		return Request{}, v.err
	}
	return req, nil
}

// fieldReader accumulates the first violation so the per-operation checks
// read linearly.
type fieldReader struct {
	msg Message
	err *Violation
}

func (r *fieldReader) fail(format string, args ...any) {
	if r.err != nil {
		return
	}
	info := format
	if len(args) > 0 {
		info = fmt.Sprintf(format, args...)
	}
	r.err = violation(r.msg.Operation, info)
}

func (r *fieldReader) rawString(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	raw, ok := r.msg.raw(key)
	if !ok {
		r.fail("O campo '%s' é obrigatório.", key)
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		r.fail("O campo '%s' deve ser uma string.", key)
		return "", false
	}
	return value, true
}

// str reads a required non-blank string.
func (r *fieldReader) str(key string) string {
	value, ok := r.rawString(key)
	if !ok {
		return ""
	}
	value = strings.TrimSpace(value)
	if value == "" {
		r.fail("O campo '%s' não pode ser vazio.", key)
	}
	return value
}

// token reads a session token. Every failure carries the same text as an
// unknown token.
func (r *fieldReader) token(key string) string {
	if r.err != nil {
		return ""
	}
	raw, ok := r.msg.raw(key)
	var value string
	if ok && json.Unmarshal(raw, &value) == nil {
		value = strings.TrimSpace(value)
		if value != "" {
			return value
		}
	}
	r.err = violation(r.msg.Operation, InfoInvalidSession)
	return ""
}

// verbatim reads a required non-empty string without trimming it.
func (r *fieldReader) verbatim(key string) string {
	value, ok := r.rawString(key)
	if ok && value == "" {
		r.fail("O campo '%s' não pode ser vazio.", key)
	}
	return value
}

// text reads a required string that may be empty.
func (r *fieldReader) text(key string) string {
	value, _ := r.rawString(key)
	return value
}

func (r *fieldReader) cpf(key string) string {
	value := r.str(key)
	if r.err == nil && !cpfPattern.MatchString(value) {
		r.fail("O campo '%s' deve estar no formato 000.000.000-00.", key)
	}
	return value
}

func (r *fieldReader) name(key string) string {
	value := r.str(key)
	if r.err == nil && utf8.RuneCountInString(value) > maxNameLength {
		r.fail("O campo '%s' deve ter no máximo %d caracteres.", key, maxNameLength)
	}
	return value
}

func (r *fieldReader) secret(key string) string {
	value, ok := r.rawString(key)
	if !ok {
		return ""
	}
	n := utf8.RuneCountInString(value)
	if n < minSecretLength || n > maxSecretLength {
		r.fail("O campo '%s' deve ter entre %d e %d caracteres.", key, minSecretLength, maxSecretLength)
	}
	return value
}

func (r *fieldReader) amount(key string) decimal.Decimal {
	if r.err != nil {
		return decimal.Zero
	}
	raw, ok := r.msg.raw(key)
	if !ok {
		r.fail("O campo '%s' é obrigatório.", key)
		return decimal.Zero
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		r.fail("O campo '%s' deve ser numérico.", key)
		return decimal.Zero
	}
	value, err := decimal.NewFromString(string(raw))
	if err != nil {
		r.fail("O campo '%s' deve ser numérico.", key)
		return decimal.Zero
	}
	if !value.IsPositive() {
		r.fail("O campo '%s' deve ser positivo.", key)
		return decimal.Zero
	}
	if !value.Equal(value.Truncate(2)) {
		r.fail("O campo '%s' deve ter no máximo duas casas decimais.", key)
		return decimal.Zero
	}
	if value.GreaterThan(maxAmount) {
		r.fail("O campo '%s' excede o valor máximo permitido.", key)
		return decimal.Zero
	}
	return value
}

func (r *fieldReader) timestamp(key string) time.Time {
	value := r.str(key)
	if r.err != nil {
		return time.Time{}
	}
	parsed, err := time.Parse(models.TimeLayout, value)
	if err != nil {
		r.fail("O campo '%s' deve estar no formato yyyy-MM-ddTHH:mm:ssZ.", key)
		return time.Time{}
	}
	return parsed
}

func (r *fieldReader) patch(key string) models.AccountPatch {
	if r.err != nil {
		return models.AccountPatch{}
	}
	inner, ok := r.msg.object(key)
	if !ok {
		r.fail("O campo '%s' é obrigatório e deve ser um objeto.", key)
		return models.AccountPatch{}
	}

	sub := fieldReader{msg: inner}
	var patch models.AccountPatch
	if inner.Has("nome") {
		name := sub.name("nome")
		patch.Name = &name
	}
	if inner.Has("senha") {
		secret := sub.secret("senha")
		patch.Secret = &secret
	}
	if sub.err != nil {
		r.err = sub.err
		return models.AccountPatch{}
	}
	return patch
}
