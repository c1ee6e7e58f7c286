package contract

import (
	"encoding/json"
	"fmt"

	"soulcert/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Participant Operations ---

// RegisterParticipant creates the one-time Participant record for an address.
// Restricted to issuer-role callers. Registration is permanent: there is no
// un-registration and the name is immutable once set.
func (s *CertificateRegistryContract) RegisterParticipant(ctx contractapi.TransactionContextInterface, address, name string) error {
	caller, err := s.requireIssuer(ctx)
	if err != nil {
		return fmt.Errorf("RegisterParticipant: %w", err)
	}

	logger.Infof("Issuer '%s' registering participant '%s' (%s)", caller, name, address)

	if err := s.validateRequiredString(address, "address", maxStringInputLength); err != nil {
		return err
	}
	if err := s.validateRequiredString(name, "name", maxStringInputLength); err != nil {
		return err
	}

	participantKey, err := s.createParticipantKey(ctx, address)
	if err != nil {
		return fmt.Errorf("RegisterParticipant: failed to create participant key for '%s': %w", address, err)
	}
	existing, err := ctx.GetStub().GetState(participantKey)
	if err != nil {
		return fmt.Errorf("RegisterParticipant: failed to check for existing participant '%s': %w", address, err)
	}
	if existing != nil {
		return fmt.Errorf("%w: address '%s'", ErrAlreadyRegistered, address)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RegisterParticipant: %w", err)
	}

	participant := model.Participant{
		ObjectType:   participantObjectType,
		Address:      address,
		Name:         name,
		RegisteredAt: now,
		RegisteredBy: caller,
		IsRegistered: true,
	}
	participantBytes, err := json.Marshal(participant)
	if err != nil {
		return fmt.Errorf("RegisterParticipant: failed to marshal participant '%s': %w", address, err)
	}
	if err := ctx.GetStub().PutState(participantKey, participantBytes); err != nil {
		return fmt.Errorf("RegisterParticipant: failed to save participant '%s' to ledger: %w", address, err)
	}

	s.emitRegistryEvent(ctx, "ParticipantRegistered", map[string]interface{}{
		"address":   address,
		"name":      name,
		"timestamp": now.Unix(),
	})
	logger.Infof("Participant '%s' registered at address '%s' by issuer '%s'", name, address, caller)
	return nil
}
