package recognition

import "errors"

// Failure taxonomy. Orchestrating components wrap these sentinels and the HTTP
// boundary maps them to a status class via errors.Is.
var (
	// ErrUnauthorized indicates a missing or empty subject identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadRequest indicates a missing or malformed required field.
	ErrBadRequest = errors.New("bad request")

	// ErrSigningFailure indicates the credential signing mechanism is
	// unreachable or misconfigured.
	ErrSigningFailure = errors.New("credential signing failed")

	// ErrClassificationParse indicates the model response was not valid JSON.
	ErrClassificationParse = errors.New("classifier output is not valid JSON")

	// ErrClassificationInvalid indicates the model response parsed but broke
	// the field contract.
	ErrClassificationInvalid = errors.New("classifier output violates contract")

	// ErrDuplicateKey indicates a (subject, timestamp) sort-key collision.
	ErrDuplicateKey = errors.New("record key already exists")

	// ErrPersistenceFailure indicates an unrecoverable store write, including
	// an exhausted collision retry.
	ErrPersistenceFailure = errors.New("record store write failed")

	// ErrEnrichmentFailure indicates credential minting failed for at least
	// one history item; partial results are never returned.
	ErrEnrichmentFailure = errors.New("history enrichment failed")
)
