package protocol

// Operation names as they appear in the "operacao" field.
const (
	OpConnect        = "conectar"
	OpCreateAccount  = "usuario_criar"
	OpLogin          = "usuario_login"
	OpLogout         = "usuario_logout"
	OpReadAccount    = "usuario_ler"
	OpUpdateAccount  = "usuario_atualizar"
	OpDeleteAccount  = "usuario_deletar"
	OpDeposit        = "depositar"
	OpCreateTransfer = "transacao_criar"
	OpReadTransfers  = "transacao_ler"
	OpReportError    = "erro_servidor"

	// OpUnknown is echoed when a request names an operation outside the catalog.
	OpUnknown = "desconhecida"
)

var catalog = map[string]struct{}{
	OpConnect:        {},
	OpCreateAccount:  {},
	OpLogin:          {},
	OpLogout:         {},
	OpReadAccount:    {},
	OpUpdateAccount:  {},
	OpDeleteAccount:  {},
	OpDeposit:        {},
	OpCreateTransfer: {},
	OpReadTransfers:  {},
	OpReportError:    {},
}

func IsKnown(operation string) bool {
	_, ok := catalog[operation]
	return ok
}
