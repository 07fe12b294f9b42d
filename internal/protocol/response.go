package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"pix-server/internal/models"
)

// Response is the envelope every request is answered with. Optional payload
// fields are omitted unless the operation produces them.
type Response struct {
	Operation string                     `json:"operacao"`
	Status    bool                       `json:"status"`
	Info      string                     `json:"info"`
	Token     string                     `json:"token,omitempty"`
	Account   *models.AccountResponse    `json:"usuario,omitempty"`
	Transfers *[]models.TransferResponse `json:"transacoes,omitempty"`
}

func Success(operation, info string) Response {
	return Response{Operation: operation, Status: true, Info: info}
}

func Failure(operation, info string) Response {
	return Response{Operation: operation, Status: false, Info: info}
}

func (r Response) WithTransfers(list []models.TransferResponse) Response {
	if list == nil {
		list = []models.TransferResponse{}
	}
	r.Transfers = &list
	return r
}

// Encode renders a response as a single line without the trailing newline.
func Encode(resp Response) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeResponse parses a response line; clients and tests use it.
func DecodeResponse(line []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(line), &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return resp, nil
}
