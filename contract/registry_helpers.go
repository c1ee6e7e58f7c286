package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"soulcert/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Core Helper Methods (used across multiple operations) ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func (s *CertificateRegistryContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// padTokenID renders a token id as a fixed-width decimal string so that the
// lexical order of composite keys matches numeric (and therefore issuance) order.
func padTokenID(tokenID uint64) string {
	return fmt.Sprintf("%012d", tokenID)
}

func (s *CertificateRegistryContract) createCertificateKey(ctx contractapi.TransactionContextInterface, tokenID uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(certificateObjectType, []string{padTokenID(tokenID)})
}

func (s *CertificateRegistryContract) createParticipantKey(ctx contractapi.TransactionContextInterface, address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: address cannot be empty", ErrInvalidArgument)
	}
	return ctx.GetStub().CreateCompositeKey(participantObjectType, []string{address})
}

func (s *CertificateRegistryContract) createOwnershipKey(ctx contractapi.TransactionContextInterface, address string, tokenID uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(ownershipObjectType, []string{address, padTokenID(tokenID)})
}

// --- Validation Helper Functions ---

func (s *CertificateRegistryContract) validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidArgument, field)
	}
	if len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidArgument, field, max)
	}
	return nil
}

func (s *CertificateRegistryContract) validateOptionalString(input, field string, max int) error {
	if input != "" && len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidArgument, field, max)
	}
	return nil
}

// --- State Accessors ---

// getCertificateByID is an internal helper to retrieve and unmarshal a certificate.
func (s *CertificateRegistryContract) getCertificateByID(ctx contractapi.TransactionContextInterface, tokenID uint64) (*model.Certificate, error) {
	if tokenID == 0 {
		return nil, fmt.Errorf("%w: token id 0 is never allocated", ErrNotFound)
	}
	certKey, err := s.createCertificateKey(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("getCertificateByID: failed to create key for token %d: %w", tokenID, err)
	}
	certBytes, err := ctx.GetStub().GetState(certKey)
	if err != nil {
		return nil, fmt.Errorf("getCertificateByID: failed to read token %d from ledger: %w", tokenID, err)
	}
	if certBytes == nil {
		return nil, fmt.Errorf("%w: token %d", ErrNotFound, tokenID)
	}
	var cert model.Certificate
	if err = json.Unmarshal(certBytes, &cert); err != nil {
		return nil, fmt.Errorf("getCertificateByID: failed to unmarshal token %d data: %w", tokenID, err)
	}
	return &cert, nil
}

func (s *CertificateRegistryContract) putCertificate(ctx contractapi.TransactionContextInterface, cert *model.Certificate) error {
	certKey, err := s.createCertificateKey(ctx, cert.TokenID)
	if err != nil {
		return fmt.Errorf("failed to create key for token %d: %w", cert.TokenID, err)
	}
	certBytes, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("failed to marshal certificate %d: %w", cert.TokenID, err)
	}
	if err := ctx.GetStub().PutState(certKey, certBytes); err != nil {
		return fmt.Errorf("failed to save certificate %d to ledger: %w", cert.TokenID, err)
	}
	return nil
}

// getParticipantByAddress retrieves a participant record, nil if none exists.
func (s *CertificateRegistryContract) getParticipantByAddress(ctx contractapi.TransactionContextInterface, address string) (*model.Participant, error) {
	participantKey, err := s.createParticipantKey(ctx, address)
	if err != nil {
		return nil, err
	}
	participantBytes, err := ctx.GetStub().GetState(participantKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read participant '%s' from ledger: %w", address, err)
	}
	if participantBytes == nil {
		return nil, nil
	}
	var participant model.Participant
	if err := json.Unmarshal(participantBytes, &participant); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participant '%s' data: %w", address, err)
	}
	return &participant, nil
}

// --- Token Counter ---

// readTokenCounter returns the number of token ids allocated so far.
func (s *CertificateRegistryContract) readTokenCounter(ctx contractapi.TransactionContextInterface) (uint64, error) {
	counterBytes, err := ctx.GetStub().GetState(tokenCounterKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read token counter: %w", err)
	}
	if counterBytes == nil {
		return 0, nil
	}
	counter, err := strconv.ParseUint(string(counterBytes), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt token counter value '%s': %w", string(counterBytes), err)
	}
	return counter, nil
}

func (s *CertificateRegistryContract) writeTokenCounter(ctx contractapi.TransactionContextInterface, counter uint64) error {
	if err := ctx.GetStub().PutState(tokenCounterKey, []byte(strconv.FormatUint(counter, 10))); err != nil {
		return fmt.Errorf("failed to save token counter: %w", err)
	}
	return nil
}

// --- Events ---

// emitRegistryEvent sends a chaincode event. Emission is coupled to the same
// transaction as the state change it describes; a failure to marshal or set the
// event is logged but never aborts the committed write.
func (s *CertificateRegistryContract) emitRegistryEvent(ctx contractapi.TransactionContextInterface, eventName string, payload map[string]interface{}) {
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitRegistryEvent: failed to marshal payload for event '%s': %v", eventName, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitRegistryEvent: failed to set event '%s': %v", eventName, errSet)
	}
}
