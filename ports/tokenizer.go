package ports

import "github.com/layer-3/gatekeeper/core"

// Tokenizer converts between domain objects and signed tokens.
// Parse failures of any kind wrap core.ErrMalformedToken.
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)

	ResetToToken(grant *core.ResetGrant) (string, error)
	TokenToReset(token string) (*core.ResetGrant, error)
}
