package errs

// Fixed user-facing texts. Internal detail never reaches the end user.
const (
	ApologyMessage        = "Desculpe, não consegui processar sua mensagem agora. Por favor, tente novamente em alguns instantes."
	InvalidAPIKeyMessage  = "Desculpe, a chave de acesso à base de conhecimento é inválida. Por favor, contate o administrador."
	HarmfulContentMessage = "Mensagem ignorada por conter conteúdo ofensivo."
	MessageTooLongMessage = "Sua mensagem é muito longa para que eu consiga processá-la adequadamente. Por favor, escreva-a de modo mais conciso."
)

// UserMessage maps any error to the fixed text shown to the end user.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindAuth:
		return InvalidAPIKeyMessage
	case KindContentFilter:
		return HarmfulContentMessage
	case KindMaxTokens:
		return MessageTooLongMessage
	default:
		return ApologyMessage
	}
}
