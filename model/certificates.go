package model

import "time"

// Participant represents an address eligible to receive certificates.
// A participant is registered exactly once and the record is never mutated
// or deleted afterward; there is no un-registration.
type Participant struct {
	ObjectType   string    `json:"objectType"` // "Participant"
	Address      string    `json:"address"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registeredAt"`
	RegisteredBy string    `json:"registeredBy"`
	IsRegistered bool      `json:"isRegistered"`
}

// Certificate is one issued, non-transferable credential. Ownership is fixed
// at mint time; the only mutation ever applied is the one-way revocation flip.
// Records persist forever as historical, queryable facts.
type Certificate struct {
	ObjectType  string    `json:"objectType"` // "Certificate"
	TokenID     uint64    `json:"tokenId"`
	Recipient   string    `json:"recipient"`
	ContentHash string    `json:"contentHash"`
	Cohort      string    `json:"cohort"`
	TokenURI    string    `json:"tokenURI"`
	IssuedAt    time.Time `json:"issuedAt"`
	IssuedBy    string    `json:"issuedBy"`
	IsRevoked   bool      `json:"isRevoked"`
	RevokedAt   time.Time `json:"revokedAt"`
	RevokedBy   string    `json:"revokedBy"`
}

// VerificationResult is the fixed result shape of VerifyCertificate. A tokenId
// that was never issued yields the zero value of this struct: IsValid false,
// empty recipient (the zero-address sentinel) and IssuedAt 0. IsValid false with
// a non-empty Recipient means the certificate exists but was revoked.
type VerificationResult struct {
	IsValid     bool   `json:"isValid"`
	Recipient   string `json:"recipient"`
	ContentHash string `json:"contentHash"`
	Cohort      string `json:"cohort"`
	IssuedAt    int64  `json:"issuedAt"` // unix seconds; 0 when the certificate does not exist
}

// CertificateHistoryEntry represents one historical state of a certificate.
type CertificateHistoryEntry struct {
	TxID      string    `json:"txId"`
	Timestamp time.Time `json:"timestamp"`
	IsDelete  bool      `json:"isDelete"`
	IsRevoked bool      `json:"isRevoked"`
	Value     string    `json:"value"` // Raw JSON value of the certificate at that time
}

// PaginatedCertificateResponse is the structure returned by paginated certificate queries.
type PaginatedCertificateResponse struct {
	Certificates []*Certificate `json:"certificates"`
	NextBookmark string         `json:"nextBookmark"`
	FetchedCount int32          `json:"fetchedCount"`
}
