package i18n

func init() {
	Register("pt-BR", map[string]string{
		"UNKNOWN":           "ocorreu um erro inesperado",
		"VALIDATION":        "a requisição tem campos ausentes ou malformados",
		"DUPLICATE_NAME":    "já existe uma equipe chamada {{.name}}",
		"DUPLICATE_REQUEST": "já existe uma solicitação pendente para esta equipe",
		"LIMIT_EXCEEDED":    "você atingiu o limite de solicitações para esta equipe",
		"CAPACITY_EXCEEDED": "a equipe já está cheia",
		"STATE_CONFLICT":    "a operação não é permitida no estado atual",
		"PERMISSION_DENIED": "você não tem permissão para executar esta ação",
		"NOT_FOUND":         "o registro solicitado não foi encontrado",
		"TRANSIENT":         "o serviço está momentaneamente ocupado, tente novamente",
	})
}
