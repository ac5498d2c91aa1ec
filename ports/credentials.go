package ports

// PasswordHasher turns secrets into digests and checks them.
type PasswordHasher interface {
	Hash(secret string) (string, error)

	// Verify returns (false, nil) on mismatch and an error only for unusable digests.
	Verify(digest, secret string) (bool, error)
}

// SignerRecoverer handles wallet addresses and message signatures.
type SignerRecoverer interface {
	// CanonicalAddress validates raw and returns its canonical form.
	CanonicalAddress(raw string) (string, error)

	// RecoverSigner returns the canonical address that produced signature over message.
	RecoverSigner(message, signature string) (string, error)
}
