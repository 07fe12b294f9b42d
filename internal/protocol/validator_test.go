package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDecode(t *testing.T, line string) Message {
	t.Helper()
	msg, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode(%s): %v", line, err)
	}
	return msg
}

func TestValidateHandshake(t *testing.T) {
	if _, err := ValidateHandshake(mustDecode(t, `{"operacao":"conectar"}`)); err != nil {
		t.Fatalf("conectar rejected: %v", err)
	}

	_, err := ValidateHandshake(mustDecode(t, `{"operacao":"usuario_ler","token":"x"}`))
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("err=%v want *Violation", err)
	}
	if v.Operation != OpReadAccount {
		t.Fatalf("Operation=%q want %q", v.Operation, OpReadAccount)
	}
}

func TestValidateUnknownOperation(t *testing.T) {
	_, err := Validate(mustDecode(t, `{"operacao":"saque"}`))
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("err=%v want *Violation", err)
	}
	if v.Operation != OpUnknown || v.Info != "Operação não reconhecida." {
		t.Fatalf("unexpected violation: %+v", v)
	}
}

func TestValidateAccepts(t *testing.T) {
	cases := []struct {
		line  string
		check func(Request) bool
	}{
		{`{"operacao":"conectar"}`, func(r Request) bool { return r.Operation == OpConnect }},
		{
			`{"operacao":"usuario_criar","cpf":"123.456.789-00","nome":"Ana","senha":"segredo"}`,
			func(r Request) bool { return r.CPF == "123.456.789-00" && r.Name == "Ana" && r.Secret == "segredo" },
		},
		{
			`{"operacao":"usuario_login","cpf":"123.456.789-00","senha":"x"}`,
			func(r Request) bool { return r.Secret == "x" },
		},
		{
			`{"operacao":"depositar","token":"t","valor_enviado":10.5}`,
			func(r Request) bool { return r.Amount.Equal(decimal.RequireFromString("10.5")) },
		},
		{
			`{"operacao":"transacao_criar","token":"t","cpf_destino":"222.222.222-22","valor":0.01}`,
			func(r Request) bool { return r.TargetCPF == "222.222.222-22" && r.Amount.Equal(decimal.New(1, -2)) },
		},
		{
			`{"operacao":"transacao_ler","token":"t","data_inicial":"2024-01-01T00:00:00Z","data_final":"2024-01-31T23:59:59Z"}`,
			func(r Request) bool {
				return r.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) && r.To.Day() == 31
			},
		},
		{
			`{"operacao":"usuario_atualizar","token":"t","usuario":{}}`,
			func(r Request) bool { return r.Patch.IsEmpty() },
		},
		{
			`{"operacao":"usuario_atualizar","token":"t","usuario":{"nome":"Bia"}}`,
			func(r Request) bool { return r.Patch.Name != nil && *r.Patch.Name == "Bia" && r.Patch.Secret == nil },
		},
		{
			`{"operacao":"erro_servidor","operacao_enviada":"depositar","info":""}`,
			func(r Request) bool { return r.ReportedOperation == OpDeposit },
		},
	}
	for _, tc := range cases {
		req, err := Validate(mustDecode(t, tc.line))
		if err != nil {
			t.Fatalf("Validate(%s): %v", tc.line, err)
		}
		if !tc.check(req) {
			t.Fatalf("Validate(%s) produced %+v", tc.line, req)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing cpf":        `{"operacao":"usuario_criar","nome":"Ana","senha":"segredo"}`,
		"bad cpf":            `{"operacao":"usuario_criar","cpf":"12345678900","nome":"Ana","senha":"segredo"}`,
		"short secret":       `{"operacao":"usuario_criar","cpf":"123.456.789-00","nome":"Ana","senha":"123"}`,
		"blank name":         `{"operacao":"usuario_criar","cpf":"123.456.789-00","nome":"  ","senha":"segredo"}`,
		"numeric name":       `{"operacao":"usuario_criar","cpf":"123.456.789-00","nome":7,"senha":"segredo"}`,
		"missing token":      `{"operacao":"usuario_ler"}`,
		"string amount":      `{"operacao":"depositar","token":"t","valor_enviado":"10"}`,
		"negative amount":    `{"operacao":"depositar","token":"t","valor_enviado":-1}`,
		"zero amount":        `{"operacao":"depositar","token":"t","valor_enviado":0}`,
		"three decimals":     `{"operacao":"depositar","token":"t","valor_enviado":1.005}`,
		"huge amount":        `{"operacao":"depositar","token":"t","valor_enviado":1e20}`,
		"bad target":         `{"operacao":"transacao_criar","token":"t","cpf_destino":"x","valor":1}`,
		"bad date":           `{"operacao":"transacao_ler","token":"t","data_inicial":"2024-01-01","data_final":"2024-01-02T00:00:00Z"}`,
		"missing patch":      `{"operacao":"usuario_atualizar","token":"t"}`,
		"patch not object":   `{"operacao":"usuario_atualizar","token":"t","usuario":"Bia"}`,
		"patch short secret": `{"operacao":"usuario_atualizar","token":"t","usuario":{"senha":"1"}}`,
		"missing info":       `{"operacao":"erro_servidor","operacao_enviada":"depositar"}`,
		"empty login secret": `{"operacao":"usuario_login","cpf":"123.456.789-00","senha":""}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			msg := mustDecode(t, line)
			_, err := Validate(msg)
			var v *Violation
			if !errors.As(err, &v) {
				t.Fatalf("err=%v want *Violation", err)
			}
			if v.Operation != msg.Operation {
				t.Fatalf("violation echoes %q want %q", v.Operation, msg.Operation)
			}
			if v.Info == "" {
				t.Fatal("violation info is empty")
			}
		})
	}
}

func TestLoginSecretKeepsWhitespace(t *testing.T) {
	req, err := Validate(mustDecode(t, `{"operacao":"usuario_login","cpf":"123.456.789-00","senha":" abcdef "}`))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if req.Secret != " abcdef " {
		t.Fatalf("secret=%q want it untouched", req.Secret)
	}
}

func TestRequiresSession(t *testing.T) {
	if (Request{Operation: OpLogin}).RequiresSession() {
		t.Fatal("login must not require a session")
	}
	if !(Request{Operation: OpDeposit}).RequiresSession() {
		t.Fatal("deposit requires a session")
	}
}
