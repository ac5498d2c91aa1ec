package core

// CredentialKind tells which credential scheme a claim refers to.
type CredentialKind string

const (
	CredentialEmail  CredentialKind = "email"
	CredentialWallet CredentialKind = "wallet"
)

// CredentialClaim is the identity-kind field embedded in a session token.
// It is sealed: EmailClaim and WalletClaim are the only implementations.
type CredentialClaim interface {
	Kind() CredentialKind
	Value() string
	credentialClaim()
}

// EmailClaim binds a token to the identity's email.
type EmailClaim string

func (c EmailClaim) Kind() CredentialKind { return CredentialEmail }
func (c EmailClaim) Value() string        { return string(c) }
func (EmailClaim) credentialClaim()       {}

// WalletClaim binds a token to the identity's wallet address.
type WalletClaim string

func (c WalletClaim) Kind() CredentialKind { return CredentialWallet }
func (c WalletClaim) Value() string        { return string(c) }
func (WalletClaim) credentialClaim()       {}
