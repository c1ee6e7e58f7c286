package contract

import (
	"fmt"

	"soulcert/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Certificate Lifecycle Operations ---

// IssueCertificate mints the next certificate for a registered recipient and
// returns the allocated token id. Restricted to issuer-role callers.
//
// Token ids are allocated with pre-increment semantics: the first certificate is
// 1, ids are dense and never reused. All preconditions are checked before the
// counter is touched, so a failed issuance does not leave a gap.
func (s *CertificateRegistryContract) IssueCertificate(ctx contractapi.TransactionContextInterface, recipient, tokenURI, contentHash, cohort string) (uint64, error) {
	caller, err := s.requireIssuer(ctx)
	if err != nil {
		return 0, fmt.Errorf("IssueCertificate: %w", err)
	}

	if err := s.validateRequiredString(recipient, "recipient", maxStringInputLength); err != nil {
		return 0, err
	}
	if err := s.validateRequiredString(tokenURI, "tokenURI", maxURILength); err != nil {
		return 0, err
	}
	if err := s.validateRequiredString(contentHash, "contentHash", maxStringInputLength); err != nil {
		return 0, err
	}
	if err := s.validateOptionalString(cohort, "cohort", maxStringInputLength); err != nil {
		return 0, err
	}

	participant, err := s.getParticipantByAddress(ctx, recipient)
	if err != nil {
		return 0, fmt.Errorf("IssueCertificate: %w", err)
	}
	if participant == nil || !participant.IsRegistered {
		return 0, fmt.Errorf("%w: address '%s'", ErrNotRegistered, recipient)
	}

	counter, err := s.readTokenCounter(ctx)
	if err != nil {
		return 0, fmt.Errorf("IssueCertificate: %w", err)
	}
	tokenID := counter + 1

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return 0, fmt.Errorf("IssueCertificate: %w", err)
	}

	// Minting is a move from no owner; it must pass the same choke point every
	// transfer-shaped operation funnels through.
	if err := s.authorizeMove(ctx, "", recipient, tokenID); err != nil {
		return 0, fmt.Errorf("IssueCertificate: %w", err)
	}

	cert := model.Certificate{
		ObjectType:  certificateObjectType,
		TokenID:     tokenID,
		Recipient:   recipient,
		ContentHash: contentHash,
		Cohort:      cohort,
		TokenURI:    tokenURI,
		IssuedAt:    now,
		IssuedBy:    caller,
		IsRevoked:   false,
	}

	if err := s.writeTokenCounter(ctx, tokenID); err != nil {
		return 0, fmt.Errorf("IssueCertificate: %w", err)
	}
	if err := s.putCertificate(ctx, &cert); err != nil {
		return 0, fmt.Errorf("IssueCertificate: %w", err)
	}

	ownershipKey, err := s.createOwnershipKey(ctx, recipient, tokenID)
	if err != nil {
		return 0, fmt.Errorf("IssueCertificate: failed to create ownership key for token %d: %w", tokenID, err)
	}
	if err := ctx.GetStub().PutState(ownershipKey, []byte(padTokenID(tokenID))); err != nil {
		return 0, fmt.Errorf("IssueCertificate: failed to save ownership index entry for token %d: %w", tokenID, err)
	}

	// The peer keeps one chaincode event per transaction, so the lock signal
	// rides inside the issuance payload instead of a second SetEvent call.
	s.emitRegistryEvent(ctx, "CertificateIssued", map[string]interface{}{
		"tokenId":     tokenID,
		"recipient":   recipient,
		"cohort":      cohort,
		"contentHash": contentHash,
		"timestamp":   now.Unix(),
		"locked":      true,
	})
	logger.Infof("Certificate %d issued to '%s' (cohort '%s') by issuer '%s'", tokenID, recipient, cohort, caller)
	return tokenID, nil
}

// RevokeCertificate flips a certificate's revocation flag. One-way: revocation
// is never reversible and a revoked certificate stays fully queryable.
// Restricted to issuer-role callers.
func (s *CertificateRegistryContract) RevokeCertificate(ctx contractapi.TransactionContextInterface, tokenID uint64) error {
	caller, err := s.requireIssuer(ctx)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}

	cert, err := s.getCertificateByID(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}
	if cert.IsRevoked {
		return fmt.Errorf("%w: token %d", ErrAlreadyRevoked, tokenID)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}

	cert.IsRevoked = true
	cert.RevokedAt = now
	cert.RevokedBy = caller
	if err := s.putCertificate(ctx, cert); err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}

	s.emitRegistryEvent(ctx, "CertificateRevoked", map[string]interface{}{
		"tokenId":   tokenID,
		"timestamp": now.Unix(),
	})
	logger.Infof("Certificate %d revoked by issuer '%s'", tokenID, caller)
	return nil
}
