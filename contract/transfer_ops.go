package contract

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Transfer Operations ---
//
// Certificates are soulbound: every transfer-shaped entry point funnels into
// authorizeMove, which rejects any move with a previous owner. The restriction
// lives at that single choke point, not per entry point, so a future
// transfer-capable entry point inherits it automatically.

// authorizeMove is the single guard all ownership changes pass through. A mint
// is represented explicitly as prevOwner == "" and is the only exempt move.
func (s *CertificateRegistryContract) authorizeMove(ctx contractapi.TransactionContextInterface, prevOwner, newOwner string, tokenID uint64) error {
	if prevOwner == "" {
		logger.Debugf("authorizeMove: mint of token %d to '%s' allowed", tokenID, newOwner)
		return nil
	}
	return fmt.Errorf("%w: token %d is permanently bound to '%s'", ErrNonTransferable, tokenID, prevOwner)
}

// transferCertificate resolves the certificate and runs the move through the
// choke point. Shared by every public transfer entry point.
func (s *CertificateRegistryContract) transferCertificate(ctx contractapi.TransactionContextInterface, from, to string, tokenID uint64) error {
	if err := s.validateRequiredString(from, "from", maxStringInputLength); err != nil {
		return err
	}
	if err := s.validateRequiredString(to, "to", maxStringInputLength); err != nil {
		return err
	}
	cert, err := s.getCertificateByID(ctx, tokenID)
	if err != nil {
		return err
	}
	return s.authorizeMove(ctx, cert.Recipient, to, tokenID)
}

// TransferCertificate is the direct transfer entry point. It fails with
// ErrNonTransferable for every existing certificate, regardless of caller.
func (s *CertificateRegistryContract) TransferCertificate(ctx contractapi.TransactionContextInterface, from, to string, tokenID uint64) error {
	logger.Debugf("Chaincode Call: TransferCertificate token %d from '%s' to '%s'", tokenID, from, to)
	return s.transferCertificate(ctx, from, to, tokenID)
}

// SafeTransferCertificate is the "safe" transfer variant. Same outcome as
// TransferCertificate; kept as a separate entry point for callers that expect
// the standard pair.
func (s *CertificateRegistryContract) SafeTransferCertificate(ctx contractapi.TransactionContextInterface, from, to string, tokenID uint64) error {
	logger.Debugf("Chaincode Call: SafeTransferCertificate token %d from '%s' to '%s'", tokenID, from, to)
	return s.transferCertificate(ctx, from, to, tokenID)
}

// SafeTransferCertificateWithData is the "safe" transfer variant carrying extra
// data. The data is never inspected; the move is rejected the same way.
func (s *CertificateRegistryContract) SafeTransferCertificateWithData(ctx contractapi.TransactionContextInterface, from, to string, tokenID uint64, data string) error {
	logger.Debugf("Chaincode Call: SafeTransferCertificateWithData token %d from '%s' to '%s' (%d bytes of data)", tokenID, from, to, len(data))
	return s.transferCertificate(ctx, from, to, tokenID)
}

// Locked reports whether a certificate is locked to its recipient. Every issued
// certificate is permanently locked; the query exists so external tooling can
// distinguish "exists and is locked" from "does not exist".
func (s *CertificateRegistryContract) Locked(ctx contractapi.TransactionContextInterface, tokenID uint64) (bool, error) {
	if _, err := s.getCertificateByID(ctx, tokenID); err != nil {
		return false, fmt.Errorf("Locked: %w", err)
	}
	return true, nil
}
