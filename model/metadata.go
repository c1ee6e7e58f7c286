package model

// CertificateMetadata is the expected shape of the off-chain metadata blob a
// tokenURI points at. The registry never dereferences or validates the blob;
// this type exists for clients that build and pin the blob before issuance.
type CertificateMetadata struct {
	Name        string              `json:"name,omitempty"`
	Description string              `json:"description,omitempty"`
	Image       string              `json:"image,omitempty"` // reference into the same content-addressed store
	Attributes  []MetadataAttribute `json:"attributes,omitempty"`
}

// MetadataAttribute is one trait/value pair in a metadata blob.
type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}
