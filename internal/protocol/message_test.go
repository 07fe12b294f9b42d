package protocol

import (
	"errors"
	"strings"
	"testing"

	"pix-server/internal/models"
)

func TestDecodeMalformed(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"not json",
		`["operacao"]`,
		`{"operacao": 5}`,
		`{"cpf": "123.456.789-00"}`,
		`{"operacao": "conectar"`,
	}
	for _, line := range lines {
		if _, err := Decode([]byte(line)); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("Decode(%q) err=%v want ErrMalformedMessage", line, err)
		}
	}
}

func TestDecodeKeepsFields(t *testing.T) {
	msg, err := Decode([]byte(`{"operacao":" usuario_login ","cpf":"111.111.111-11","extra":null}` + "\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Operation != OpLogin {
		t.Fatalf("Operation=%q", msg.Operation)
	}
	if !msg.Has("cpf") {
		t.Fatal("cpf should be present")
	}
	if msg.Has("extra") {
		t.Fatal("null fields count as absent")
	}
}

func TestEncodeSingleLine(t *testing.T) {
	acc := &models.Account{CPF: "111.111.111-11", Name: "Ana <b>"}
	resp := Success(OpReadAccount, "ok")
	resp.Account = acc.Response()

	line, err := Encode(resp)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(line)
	if strings.Contains(text, "\n") {
		t.Fatalf("encoded response spans lines: %q", text)
	}
	if !strings.Contains(text, `"saldo":0.00`) {
		t.Fatalf("balance should be a two-decimal number: %s", text)
	}
	if !strings.Contains(text, "<b>") {
		t.Fatalf("html should not be escaped: %s", text)
	}
	if strings.Contains(text, "token") || strings.Contains(text, "transacoes") {
		t.Fatalf("optional fields leaked: %s", text)
	}

	back, err := DecodeResponse(line)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if back.Account == nil || back.Account.Balance.String() != "0.00" {
		t.Fatalf("account did not survive: %+v", back.Account)
	}
}

func TestWithTransfersEmptyList(t *testing.T) {
	line, err := Encode(Success(OpReadTransfers, "ok").WithTransfers(nil))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(line), `"transacoes":[]`) {
		t.Fatalf("empty history should encode as []: %s", line)
	}
}
