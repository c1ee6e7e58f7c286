package contract

import (
	"fmt"

	"soulcert/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("soulcert.registry")

// Object types for composite keys, also usable as 'docType' or 'objectType' in CouchDB.
const (
	certificateObjectType = "Certificate" // Stores Certificate objects. Attribute for composite key: zero-padded TokenID.
	participantObjectType = "Participant" // Stores Participant objects. Attribute for composite key: Address.
	ownershipObjectType   = "Ownership"   // Reverse index entry. Attributes: Address, zero-padded TokenID.
)

// tokenCounterKey holds the decimal value of the last allocated token id.
// The counter is dense and 1-based: the k-th successful issuance returns k.
const tokenCounterKey = "TokenCounter"

// Constants for input validation and limits
const (
	maxStringInputLength = 256
	maxURILength         = 2048
)

// CertificateRegistryContract manages soulbound (permanently non-transferable)
// certificates: participant registration, issuance, revocation and verification.
// @contract:CertificateRegistryContract
type CertificateRegistryContract struct {
	contractapi.Contract
}

// Instantiate is called during chaincode instantiation.
func (s *CertificateRegistryContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("CertificateRegistryContract Instantiated/Upgraded")
}

// --- Role Management Wrappers (Delegating to AccessManager) ---
// These are direct pass-throughs to AccessManager, keeping the contract API clean.

// BootstrapLedger grants the calling deployer both roles. It can run only once:
// it fails if any admin already exists.
func (s *CertificateRegistryContract) BootstrapLedger(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Chaincode Call: BootstrapLedger")
	return NewAccessManager(ctx).BootstrapDeployer()
}

func (s *CertificateRegistryContract) GrantRole(ctx contractapi.TransactionContextInterface, role, address string) error {
	logger.Infof("Chaincode Call: GrantRole '%s' to '%s'", role, address)
	return NewAccessManager(ctx).GrantRole(role, address)
}

func (s *CertificateRegistryContract) RevokeRole(ctx contractapi.TransactionContextInterface, role, address string) error {
	logger.Infof("Chaincode Call: RevokeRole '%s' from '%s'", role, address)
	return NewAccessManager(ctx).RevokeRole(role, address)
}

// HasRole reports whether address holds role. Public access.
func (s *CertificateRegistryContract) HasRole(ctx contractapi.TransactionContextInterface, role, address string) (bool, error) {
	logger.Debugf("Chaincode Call: HasRole '%s' for '%s'", role, address)
	return NewAccessManager(ctx).HasRole(role, address)
}

// GetRoleMembers returns every address holding the given role. Public access.
func (s *CertificateRegistryContract) GetRoleMembers(ctx contractapi.TransactionContextInterface, role string) ([]string, error) {
	logger.Debugf("Chaincode Call: GetRoleMembers for role '%s'", role)
	members, err := NewAccessManager(ctx).GetRoleMembers(role)
	if err != nil {
		return nil, fmt.Errorf("GetRoleMembers: %w", err)
	}
	return members, nil
}

// requireIssuer is the capability check at the top of every issuer-gated operation.
func (s *CertificateRegistryContract) requireIssuer(ctx contractapi.TransactionContextInterface) (string, error) {
	am := NewAccessManager(ctx)
	caller, err := am.GetCallerAddress()
	if err != nil {
		return "", fmt.Errorf("failed to resolve caller address: %w", err)
	}
	if err := am.RequireRole(model.RoleIssuer); err != nil {
		return "", err
	}
	return caller, nil
}
