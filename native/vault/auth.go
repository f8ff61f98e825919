package vault

import "github.com/ethereum/go-ethereum/common"

// Action names a privileged entry point checked through the Authorizer.
type Action string

const (
	ActionAddStrategy        Action = "strategy.add"
	ActionUpdateStrategy     Action = "strategy.update"
	ActionUpdateStrategyFee  Action = "strategy.update_fee"
	ActionRevokeStrategy     Action = "strategy.revoke"
	ActionMigrateStrategy    Action = "strategy.migrate"
	ActionManageQueue        Action = "queue.manage"
	ActionManageHealthCheck  Action = "healthcheck.manage"
	ActionSetDepositLimit    Action = "config.deposit_limit"
	ActionSetFees            Action = "config.fees"
	ActionSetDegradation     Action = "config.degradation"
	ActionSetRewards         Action = "config.rewards"
	ActionActivateShutdown   Action = "shutdown.activate"
	ActionDeactivateShutdown Action = "shutdown.deactivate"
	ActionPause              Action = "pause"
	ActionUnpause            Action = "unpause"
	ActionContractAccess     Action = "access.contracts"
)

// Authorizer resolves whether a caller may perform an action. Role
// assignment and hand-over live outside the engine.
type Authorizer interface {
	HasRole(caller common.Address, action Action) bool
}

// Roles is a static Authorizer built from the three vault operators.
// Governance may do everything; management handles day to day strategy and
// queue tuning; the guardian may only stop things.
type Roles struct {
	Governance common.Address
	Management common.Address
	Guardian   common.Address
}

var (
	managementActions = map[Action]bool{
		ActionUpdateStrategy:    true,
		ActionManageQueue:       true,
		ActionManageHealthCheck: true,
	}
	guardianActions = map[Action]bool{
		ActionRevokeStrategy:   true,
		ActionActivateShutdown: true,
		ActionPause:            true,
	}
)

// HasRole implements Authorizer.
func (r Roles) HasRole(caller common.Address, action Action) bool {
	if caller == (common.Address{}) {
		return false
	}
	if caller == r.Governance {
		return true
	}
	if caller == r.Management && managementActions[action] {
		return true
	}
	return caller == r.Guardian && guardianActions[action]
}

func (e *Engine) authorize(caller common.Address, action Action) error {
	if e.auth == nil || !e.auth.HasRole(caller, action) {
		return ErrUnauthorized
	}
	return nil
}
