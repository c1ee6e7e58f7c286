package contract

import (
	"encoding/json"
	"fmt"
	"strconv"

	"soulcert/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Query Functions ---

// VerifyCertificate returns the fixed verification shape for a token id. Public
// access. A token id that was never issued yields the zero-value sentinel
// result, not a failure; callers distinguish "revoked" from "never existed" by
// checking whether Recipient is empty.
func (s *CertificateRegistryContract) VerifyCertificate(ctx contractapi.TransactionContextInterface, tokenID uint64) (*model.VerificationResult, error) {
	logger.Debugf("VerifyCertificate: querying token %d", tokenID)
	if tokenID == 0 {
		return &model.VerificationResult{}, nil
	}
	certKey, err := s.createCertificateKey(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("VerifyCertificate: failed to create key for token %d: %w", tokenID, err)
	}
	certBytes, err := ctx.GetStub().GetState(certKey)
	if err != nil {
		return nil, fmt.Errorf("VerifyCertificate: failed to read token %d from ledger: %w", tokenID, err)
	}
	if certBytes == nil {
		return &model.VerificationResult{}, nil
	}
	var cert model.Certificate
	if err := json.Unmarshal(certBytes, &cert); err != nil {
		return nil, fmt.Errorf("VerifyCertificate: failed to unmarshal token %d data: %w", tokenID, err)
	}
	return &model.VerificationResult{
		IsValid:     !cert.IsRevoked,
		Recipient:   cert.Recipient,
		ContentHash: cert.ContentHash,
		Cohort:      cert.Cohort,
		IssuedAt:    cert.IssuedAt.Unix(),
	}, nil
}

// GetParticipantCertificates returns the token ids issued to an address, in
// issuance order. Public access. An address with no certificates yields an
// empty sequence.
func (s *CertificateRegistryContract) GetParticipantCertificates(ctx contractapi.TransactionContextInterface, address string) ([]uint64, error) {
	if err := s.validateRequiredString(address, "address", maxStringInputLength); err != nil {
		return nil, err
	}

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(ownershipObjectType, []string{address})
	if err != nil {
		return nil, fmt.Errorf("GetParticipantCertificates: failed to get ownership iterator for '%s': %w", address, err)
	}
	defer resultsIterator.Close()

	tokenIDs := []uint64{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetParticipantCertificates: failed to get next ownership entry: %v. Skipping.", iterErr)
			continue
		}
		tokenID, parseErr := strconv.ParseUint(string(queryResponse.Value), 10, 64)
		if parseErr != nil {
			logger.Warningf("GetParticipantCertificates: corrupt ownership entry '%s' for key '%s': %v. Skipping.", string(queryResponse.Value), queryResponse.Key, parseErr)
			continue
		}
		tokenIDs = append(tokenIDs, tokenID)
	}
	return tokenIDs, nil // Will be [] if empty, not null
}

// GetCertificate returns the full stored record for a token id. Public access.
func (s *CertificateRegistryContract) GetCertificate(ctx contractapi.TransactionContextInterface, tokenID uint64) (*model.Certificate, error) {
	logger.Debugf("GetCertificate: querying token %d", tokenID)
	cert, err := s.getCertificateByID(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("GetCertificate: %w", err)
	}
	return cert, nil
}

// TokenURI returns the off-chain metadata reference of a certificate. Public access.
func (s *CertificateRegistryContract) TokenURI(ctx contractapi.TransactionContextInterface, tokenID uint64) (string, error) {
	cert, err := s.getCertificateByID(ctx, tokenID)
	if err != nil {
		return "", fmt.Errorf("TokenURI: %w", err)
	}
	return cert.TokenURI, nil
}

// GetParticipant returns the stored participant record for an address. Public access.
func (s *CertificateRegistryContract) GetParticipant(ctx contractapi.TransactionContextInterface, address string) (*model.Participant, error) {
	if err := s.validateRequiredString(address, "address", maxStringInputLength); err != nil {
		return nil, err
	}
	participant, err := s.getParticipantByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("GetParticipant: %w", err)
	}
	if participant == nil {
		return nil, fmt.Errorf("%w: no participant registered at address '%s'", ErrNotFound, address)
	}
	return participant, nil
}

// TotalIssued returns the number of certificates ever issued, revoked ones
// included. Public access.
func (s *CertificateRegistryContract) TotalIssued(ctx contractapi.TransactionContextInterface) (uint64, error) {
	return s.readTokenCounter(ctx)
}

// GetAllCertificates returns a page of certificates in token id order.
// Public access.
func (s *CertificateRegistryContract) GetAllCertificates(ctx contractapi.TransactionContextInterface, pageSizeStr string, bookmark string) (*model.PaginatedCertificateResponse, error) {
	pageSize, err := strconv.ParseInt(pageSizeStr, 10, 32)
	if err != nil || pageSize <= 0 {
		logger.Warningf("GetAllCertificates: invalid pageSize '%s', using default of 10. Error: %v", pageSizeStr, err)
		pageSize = 10
	}
	if pageSize > 100 {
		logger.Warningf("GetAllCertificates: requested pageSize %d exceeds max of 100. Capping at 100.", pageSize)
		pageSize = 100
	}

	resultsIterator, metadata, err := ctx.GetStub().GetStateByPartialCompositeKeyWithPagination(certificateObjectType, []string{}, int32(pageSize), bookmark)
	if err != nil {
		return nil, fmt.Errorf("GetAllCertificates: paginated certificate scan failed: %w", err)
	}
	defer resultsIterator.Close()

	certificates := []*model.Certificate{}
	var fetchedCount int32
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetAllCertificates: error iterating results: %v. Skipping.", iterErr)
			continue
		}
		var cert model.Certificate
		if errUnmarshal := json.Unmarshal(queryResponse.Value, &cert); errUnmarshal != nil {
			logger.Warningf("GetAllCertificates: error unmarshalling certificate: %v. Skipping.", errUnmarshal)
			continue
		}
		certificates = append(certificates, &cert)
		fetchedCount++
	}

	return &model.PaginatedCertificateResponse{
		Certificates: certificates, // Will be [] if empty, not null
		NextBookmark: metadata.GetBookmark(),
		FetchedCount: fetchedCount,
	}, nil
}

// GetCertificateHistory returns every committed state of a certificate, oldest
// first as the peer returns them. Public access.
func (s *CertificateRegistryContract) GetCertificateHistory(ctx contractapi.TransactionContextInterface, tokenID uint64) ([]model.CertificateHistoryEntry, error) {
	if _, err := s.getCertificateByID(ctx, tokenID); err != nil {
		return nil, fmt.Errorf("GetCertificateHistory: %w", err)
	}

	certKey, err := s.createCertificateKey(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("GetCertificateHistory: failed to create key for token %d: %w", tokenID, err)
	}
	historyIter, err := ctx.GetStub().GetHistoryForKey(certKey)
	if err != nil {
		return nil, fmt.Errorf("GetCertificateHistory: failed to get history for token %d: %w", tokenID, err)
	}
	defer historyIter.Close()

	historyEntries := []model.CertificateHistoryEntry{}
	for historyIter.HasNext() {
		historyItem, iterErr := historyIter.Next()
		if iterErr != nil {
			logger.Warningf("GetCertificateHistory: error iterating history for token %d: %v. Skipping entry.", tokenID, iterErr)
			continue
		}
		var pastState model.Certificate
		if errUnmarshal := json.Unmarshal(historyItem.Value, &pastState); errUnmarshal != nil && !historyItem.IsDelete {
			logger.Warningf("GetCertificateHistory: corrupt historical value for token %d in tx '%s': %v. Returning entry with raw value only.", tokenID, historyItem.TxId, errUnmarshal)
		}

		historyEntries = append(historyEntries, model.CertificateHistoryEntry{
			TxID:      historyItem.TxId,
			Timestamp: historyItem.Timestamp.AsTime(),
			IsDelete:  historyItem.IsDelete,
			IsRevoked: pastState.IsRevoked,
			Value:     string(historyItem.Value),
		})
	}
	return historyEntries, nil // Will be [] if no history, not null
}
