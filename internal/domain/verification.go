package domain

// VerificationSource identifies how a token address was verified.
type VerificationSource string

const (
	// SourceKnownList means the address matched the hard-coded allow-list.
	SourceKnownList VerificationSource = "KNOWN_LIST"
	// SourceRPCMetadata means getTokenSupply resolved the mint.
	SourceRPCMetadata VerificationSource = "RPC_METADATA"
	// SourceRPCAccountInfo means getAccountInfo resolved a mint account.
	SourceRPCAccountInfo VerificationSource = "RPC_ACCOUNT_INFO"
	// SourcePermissiveFallback means verification could not complete and
	// the token was accepted by policy rather than evidence.
	SourcePermissiveFallback VerificationSource = "PERMISSIVE_FALLBACK"
)

// VerificationResult is the outcome of on-chain verification for an address.
type VerificationResult struct {
	Address string
	Valid   bool
	Source  VerificationSource
}
