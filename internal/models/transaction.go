package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the wire format of every timestamp (always UTC).
const TimeLayout = "2006-01-02T15:04:05Z"

// Transfer is an immutable movement of funds. A deposit is a transfer whose
// sender and receiver are the same identity.
type Transfer struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"valor"`
	SenderCPF   string          `json:"cpf_enviador"`
	ReceiverCPF string          `json:"cpf_recebedor"`
	CreatedAt   time.Time       `json:"criado_em"`
	UpdatedAt   time.Time       `json:"atualizado_em"`
}

func (t *Transfer) IsDeposit() bool {
	return t.SenderCPF == t.ReceiverCPF
}

type TransferResponse struct {
	ID          string         `json:"id"`
	Amount      json.Number    `json:"valor_enviado"`
	SenderCPF   string         `json:"cpf_enviador"`
	ReceiverCPF string         `json:"cpf_recebedor"`
	Sender      *PartyResponse `json:"usuario_enviador,omitempty"`
	Receiver    *PartyResponse `json:"usuario_recebedor,omitempty"`
	CreatedAt   string         `json:"criado_em"`
	UpdatedAt   string         `json:"atualizado_em"`
}

// TransferEntry is a history row with the accounts that still exist
// resolved; Sender or Receiver is nil once that account is deleted.
type TransferEntry struct {
	Transfer Transfer
	Sender   *Account
	Receiver *Account
}

func (e TransferEntry) Response() TransferResponse {
	resp := TransferResponse{
		ID:          e.Transfer.ID,
		Amount:      Money(e.Transfer.Amount),
		SenderCPF:   e.Transfer.SenderCPF,
		ReceiverCPF: e.Transfer.ReceiverCPF,
		CreatedAt:   e.Transfer.CreatedAt.UTC().Format(TimeLayout),
		UpdatedAt:   e.Transfer.UpdatedAt.UTC().Format(TimeLayout),
	}
	if e.Sender != nil {
		resp.Sender = e.Sender.Party()
	}
	if e.Receiver != nil {
		resp.Receiver = e.Receiver.Party()
	}
	return resp
}
