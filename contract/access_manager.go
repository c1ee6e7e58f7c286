package contract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"soulcert/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var amLogger = flogging.MustGetLogger("soulcert.accessmanager")

// roleGrantObjectType is the composite key object type for the role relation.
// Attributes: Role, Address.
const roleGrantObjectType = "RoleGrant"

// ValidRoles defines the set of permissible roles in the system. No other roles exist.
var ValidRoles = map[string]bool{
	model.RoleAdmin:  true,
	model.RoleIssuer: true,
}

// AccessManager owns the role relation: a many-to-many mapping between the two
// fixed roles and addresses. Mutation is admin-gated; queries are public. It is
// queried via a capability check at the top of every gated registry operation.
type AccessManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewAccessManager creates a new instance of AccessManager.
func NewAccessManager(ctx contractapi.TransactionContextInterface) *AccessManager {
	return &AccessManager{Ctx: ctx}
}

func (am *AccessManager) getCurrentTxTimestamp() (time.Time, error) {
	ts, err := am.Ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

func (am *AccessManager) createRoleGrantKey(role, address string) (string, error) {
	return am.Ctx.GetStub().CreateCompositeKey(roleGrantObjectType, []string{role, address})
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// GetCallerAddress retrieves the address of the current transactor from the
// client identity.
func (am *AccessManager) GetCallerAddress() (string, error) {
	clientIdentity := am.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", fmt.Errorf("%w: client identity is nil from context", ErrUnauthorized)
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: client identity ID from context is empty", ErrUnauthorized)
	}
	return id, nil
}

// HasRole reports whether address holds role. An address with no grant record
// simply does not hold the role; this is not an error.
func (am *AccessManager) HasRole(role, address string) (bool, error) {
	roleLower := normalizeRole(role)
	if !ValidRoles[roleLower] {
		return false, fmt.Errorf("%w: invalid role '%s', valid roles are: %s, %s", ErrInvalidArgument, role, model.RoleAdmin, model.RoleIssuer)
	}
	if strings.TrimSpace(address) == "" {
		return false, fmt.Errorf("%w: address cannot be empty", ErrInvalidArgument)
	}
	grantKey, err := am.createRoleGrantKey(roleLower, address)
	if err != nil {
		return false, fmt.Errorf("failed to create role grant key for '%s'/'%s': %w", roleLower, address, err)
	}
	grantBytes, err := am.Ctx.GetStub().GetState(grantKey)
	if err != nil {
		return false, fmt.Errorf("ledger error checking role '%s' for '%s': %w", roleLower, address, err)
	}
	return grantBytes != nil, nil
}

// RequireRole enforces that the current caller holds the given role.
func (am *AccessManager) RequireRole(role string) error {
	caller, err := am.GetCallerAddress()
	if err != nil {
		return fmt.Errorf("failed to get current caller for role check: %w", err)
	}
	has, err := am.HasRole(role, caller)
	if err != nil {
		return fmt.Errorf("error checking role '%s' for caller '%s': %w", role, caller, err)
	}
	if !has {
		return fmt.Errorf("%w: caller '%s' does not have required role '%s'", ErrUnauthorized, caller, role)
	}
	amLogger.Debugf("Role check passed for role '%s' for caller '%s'.", role, caller)
	return nil
}

// GrantRole records a (role, address) assignment. Idempotent: granting a role an
// address already holds is a no-op. Restricted to admin callers.
func (am *AccessManager) GrantRole(role, address string) error {
	caller, err := am.GetCallerAddress()
	if err != nil {
		return fmt.Errorf("failed to get caller for GrantRole: %w", err)
	}
	if err := am.RequireRole(model.RoleAdmin); err != nil {
		return err
	}

	roleLower := normalizeRole(role)
	if !ValidRoles[roleLower] {
		return fmt.Errorf("%w: invalid role '%s', valid roles are: %s, %s", ErrInvalidArgument, role, model.RoleAdmin, model.RoleIssuer)
	}
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: address cannot be empty", ErrInvalidArgument)
	}

	grantKey, err := am.createRoleGrantKey(roleLower, address)
	if err != nil {
		return fmt.Errorf("failed to create role grant key for '%s'/'%s': %w", roleLower, address, err)
	}
	existing, err := am.Ctx.GetStub().GetState(grantKey)
	if err != nil {
		return fmt.Errorf("ledger error checking existing grant '%s'/'%s': %w", roleLower, address, err)
	}
	if existing != nil {
		amLogger.Infof("Role '%s' already granted to '%s'. No action needed.", roleLower, address)
		return nil
	}

	now, err := am.getCurrentTxTimestamp()
	if err != nil {
		return err
	}
	grant := model.RoleGrant{
		ObjectType: roleGrantObjectType,
		Role:       roleLower,
		Address:    address,
		GrantedBy:  caller,
		GrantedAt:  now,
	}
	grantBytes, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to marshal role grant for '%s'/'%s': %w", roleLower, address, err)
	}
	if err := am.Ctx.GetStub().PutState(grantKey, grantBytes); err != nil {
		return fmt.Errorf("failed to save role grant for '%s'/'%s': %w", roleLower, address, err)
	}
	amLogger.Infof("Role '%s' granted to '%s' by admin '%s'.", roleLower, address, caller)
	return nil
}

// RevokeRole removes a (role, address) assignment. Idempotent: revoking a role
// an address does not hold is a no-op. Restricted to admin callers.
//
// One restriction goes beyond plain relation mutation: an admin may not revoke
// their own admin role. Role management is admin-gated, so allowing the last
// admin to drop out would leave the relation permanently frozen.
func (am *AccessManager) RevokeRole(role, address string) error {
	caller, err := am.GetCallerAddress()
	if err != nil {
		return fmt.Errorf("failed to get caller for RevokeRole: %w", err)
	}
	if err := am.RequireRole(model.RoleAdmin); err != nil {
		return err
	}

	roleLower := normalizeRole(role)
	if !ValidRoles[roleLower] {
		return fmt.Errorf("%w: invalid role '%s', valid roles are: %s, %s", ErrInvalidArgument, role, model.RoleAdmin, model.RoleIssuer)
	}
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: address cannot be empty", ErrInvalidArgument)
	}
	if roleLower == model.RoleAdmin && address == caller {
		return fmt.Errorf("%w: admins cannot revoke their own admin role", ErrUnauthorized)
	}

	grantKey, err := am.createRoleGrantKey(roleLower, address)
	if err != nil {
		return fmt.Errorf("failed to create role grant key for '%s'/'%s': %w", roleLower, address, err)
	}
	existing, err := am.Ctx.GetStub().GetState(grantKey)
	if err != nil {
		return fmt.Errorf("ledger error checking existing grant '%s'/'%s': %w", roleLower, address, err)
	}
	if existing == nil {
		amLogger.Infof("Role '%s' not held by '%s'. No action taken for revocation.", roleLower, address)
		return nil
	}
	if err := am.Ctx.GetStub().DelState(grantKey); err != nil {
		return fmt.Errorf("failed to remove role grant for '%s'/'%s': %w", roleLower, address, err)
	}
	amLogger.Infof("Role '%s' revoked from '%s' by admin '%s'.", roleLower, address, caller)
	return nil
}

// AnyAdminExists checks if any admin grant is present on the ledger.
func (am *AccessManager) AnyAdminExists() (bool, error) {
	iterator, err := am.Ctx.GetStub().GetStateByPartialCompositeKey(roleGrantObjectType, []string{model.RoleAdmin})
	if err != nil {
		return false, fmt.Errorf("failed to query admin grants for AnyAdminExists: %w", err)
	}
	defer iterator.Close()
	return iterator.HasNext(), nil
}

// BootstrapDeployer grants the calling deployer both roles, with direct state
// writes and no admin check. It is the only path that may run without an
// existing admin and it refuses to run twice.
func (am *AccessManager) BootstrapDeployer() error {
	anyAdminAlreadyExists, err := am.AnyAdminExists()
	if err != nil {
		return fmt.Errorf("BootstrapDeployer: failed to check if any admin exists: %w", err)
	}
	if anyAdminAlreadyExists {
		return fmt.Errorf("%w: system already has admins, BootstrapLedger should not be re-run", ErrUnauthorized)
	}

	caller, err := am.GetCallerAddress()
	if err != nil {
		return fmt.Errorf("BootstrapDeployer: failed to get caller identity for bootstrap: %w", err)
	}
	now, err := am.getCurrentTxTimestamp()
	if err != nil {
		return fmt.Errorf("BootstrapDeployer: %w", err)
	}

	// The initial deployer holds both roles at creation time.
	for _, role := range []string{model.RoleAdmin, model.RoleIssuer} {
		grantKey, keyErr := am.createRoleGrantKey(role, caller)
		if keyErr != nil {
			return fmt.Errorf("BootstrapDeployer: failed to create grant key for role '%s': %w", role, keyErr)
		}
		grant := model.RoleGrant{
			ObjectType: roleGrantObjectType,
			Role:       role,
			Address:    caller,
			GrantedBy:  caller, // self-granted during bootstrap
			GrantedAt:  now,
		}
		grantBytes, marshalErr := json.Marshal(grant)
		if marshalErr != nil {
			return fmt.Errorf("BootstrapDeployer: failed to marshal bootstrap grant for role '%s': %w", role, marshalErr)
		}
		if err := am.Ctx.GetStub().PutState(grantKey, grantBytes); err != nil {
			return fmt.Errorf("BootstrapDeployer: failed to save bootstrap grant for role '%s': %w", role, err)
		}
	}
	amLogger.Infof("Ledger bootstrapped: deployer '%s' now holds roles '%s' and '%s'.", caller, model.RoleAdmin, model.RoleIssuer)
	return nil
}

// GetRoleMembers returns every address holding the given role, in key order.
func (am *AccessManager) GetRoleMembers(role string) ([]string, error) {
	roleLower := normalizeRole(role)
	if !ValidRoles[roleLower] {
		return nil, fmt.Errorf("%w: invalid role '%s', valid roles are: %s, %s", ErrInvalidArgument, role, model.RoleAdmin, model.RoleIssuer)
	}

	resultsIterator, err := am.Ctx.GetStub().GetStateByPartialCompositeKey(roleGrantObjectType, []string{roleLower})
	if err != nil {
		return nil, fmt.Errorf("failed to get role grant iterator for role '%s': %w", roleLower, err)
	}
	defer resultsIterator.Close()

	members := []string{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			amLogger.Warningf("GetRoleMembers: failed to get next grant from iterator: %v. Skipping.", iterErr)
			continue
		}
		var grant model.RoleGrant
		if err := json.Unmarshal(queryResponse.Value, &grant); err != nil {
			amLogger.Warningf("GetRoleMembers: failed to unmarshal grant for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		members = append(members, grant.Address)
	}
	return members, nil // Will be [] if empty, not null
}
