package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a registered party. CPF is the natural key.
type Account struct {
	CPF        string          `json:"cpf"`
	Name       string          `json:"nome"`
	SecretHash string          `json:"-"`
	Balance    decimal.Decimal `json:"saldo"`
	CreatedAt  time.Time       `json:"criado_em"`
	UpdatedAt  time.Time       `json:"atualizado_em"`
}

// AccountPatch carries the profile fields of an update; nil means unchanged.
type AccountPatch struct {
	Name   *string
	Secret *string
}

func (p AccountPatch) IsEmpty() bool {
	return p.Name == nil && p.Secret == nil
}

type AccountResponse struct {
	CPF     string      `json:"cpf"`
	Name    string      `json:"nome"`
	Balance json.Number `json:"saldo"`
}

// PartyResponse identifies a side of a transfer in history listings.
type PartyResponse struct {
	CPF  string `json:"cpf"`
	Name string `json:"nome"`
}

func (a *Account) Response() *AccountResponse {
	return &AccountResponse{
		CPF:     a.CPF,
		Name:    a.Name,
		Balance: Money(a.Balance),
	}
}

func (a *Account) Party() *PartyResponse {
	return &PartyResponse{CPF: a.CPF, Name: a.Name}
}

// Money renders an amount as a JSON number with two decimals.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
