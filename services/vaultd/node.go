package vaultd

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vaultledger/config"
	"vaultledger/core/events"
	"vaultledger/core/state"
	"vaultledger/native/bank"
	"vaultledger/native/strategy"
	"vaultledger/native/vault"
	"vaultledger/observability"
	"vaultledger/storage"
)

var heightKey = []byte("vaultd/height")

// Node hosts a single vault over persistent state. Every transition runs
// under the node lock and is committed, or discarded, as a unit together
// with the events it produced.
type Node struct {
	mu sync.Mutex

	cfg        *config.Config
	logger     *slog.Logger
	state      *state.Manager
	asset      *bank.Ledger
	claim      *bank.Ledger
	engine     *vault.Engine
	events     *events.Buffer
	governance common.Address
	strategies []*strategy.Passive
	height     uint64
	metrics    *observability.VaultMetrics
}

// NewNode wires the ledger stack over db, creates the vault from cfg on
// first boot, and registers or reattaches the configured strategies.
func NewNode(cfg *config.Config, db storage.Database, logger *slog.Logger) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vaultd: configuration required")
	}
	if db == nil {
		return nil, fmt.Errorf("vaultd: database required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	roles, err := cfg.Vault.Roles.Parse()
	if err != nil {
		return nil, fmt.Errorf("vaultd: roles: %w", err)
	}
	asset, err := bank.NewLedger(cfg.Asset.Symbol, cfg.Asset.Decimals)
	if err != nil {
		return nil, fmt.Errorf("vaultd: asset: %w", err)
	}

	mgr := state.NewManager(db)
	buf := &events.Buffer{Next: events.Multi{
		observability.MetricsEmitter{},
		observability.LogEmitter{Logger: logger.With(slog.String("component", "events"))},
	}}
	asset.SetState(mgr)
	asset.SetEmitter(buf)

	engine := vault.NewEngine(cfg.VaultAddr(), asset, roles)
	engine.SetState(mgr.VaultStore(cfg.VaultAddr()))
	engine.SetEmitter(buf)
	engine.SetPauses(cfg.Global.Pauses)
	engine.SetBlockLock(cfg.Vault.BlockLock)
	contracts, err := cfg.Vault.ContractSet()
	if err != nil {
		return nil, fmt.Errorf("vaultd: contracts: %w", err)
	}
	engine.SetContractView(contracts)

	var claim *bank.Ledger
	if cfg.Vault.ClaimAsset != "" {
		if claim, err = bank.NewLedger(cfg.Vault.ClaimAsset, 18); err != nil {
			return nil, fmt.Errorf("vaultd: claim asset: %w", err)
		}
		if claim.Symbol() == asset.Symbol() {
			return nil, fmt.Errorf("vaultd: claim asset must differ from %s", asset.Symbol())
		}
		claim.SetState(mgr)
		claim.SetEmitter(buf)
		engine.SetClaimAsset(claim)
	}

	n := &Node{
		cfg:        cfg,
		logger:     logger,
		state:      mgr,
		asset:      asset,
		claim:      claim,
		engine:     engine,
		events:     buf,
		governance: roles.Governance,
		metrics:    observability.Vault(),
	}
	if _, err := mgr.KVGet(heightKey, &n.height); err != nil {
		return nil, fmt.Errorf("vaultd: load height: %w", err)
	}
	if err := n.Execute("bootstrap", n.bootstrap); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) bootstrap() error {
	_, err := n.engine.Vault()
	switch {
	case errors.Is(err, vault.ErrNotInitialised):
		genesis, err := n.cfg.Vault.ToGenesis()
		if err != nil {
			return fmt.Errorf("vaultd: genesis: %w", err)
		}
		if err := n.engine.Initialize(genesis); err != nil {
			return fmt.Errorf("vaultd: initialise vault: %w", err)
		}
		n.logger.Info("vault initialised",
			slog.String("vault", n.engine.Address().Hex()),
			slog.String("asset", n.asset.Symbol()))
	case err != nil:
		return err
	}

	for _, sc := range n.cfg.Strategies {
		passive, err := strategy.NewPassive(sc.Addr(), n.engine.Address(), n.asset)
		if err != nil {
			return err
		}
		if _, err := n.engine.Strategy(sc.Addr()); errors.Is(err, vault.ErrStrategyNotFound) {
			params, err := sc.Params()
			if err != nil {
				return err
			}
			if err := n.engine.AddStrategy(n.governance, passive, params); err != nil {
				return fmt.Errorf("vaultd: add strategy %s: %w", sc.Addr().Hex(), err)
			}
			n.logger.Info("strategy registered", slog.String("strategy", sc.Addr().Hex()))
		} else if err != nil {
			return err
		} else if err := n.engine.AttachStrategy(passive); err != nil {
			return err
		}
		n.strategies = append(n.strategies, passive)
	}
	return nil
}

// Execute runs fn as the next block. The block height advances for the
// engine's block lock; on success the state is committed and buffered events
// are released, otherwise both are discarded.
func (n *Node) Execute(operation string, fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	height := n.height + 1
	n.engine.SetBlockHeight(height)
	err := fn()
	if err == nil {
		err = n.state.KVPut(heightKey, height)
	}
	if err == nil {
		err = n.state.Commit()
	}
	if err != nil {
		n.state.Discard()
		n.events.Drop()
	} else {
		n.height = height
		n.events.Flush()
	}
	n.metrics.Observe(operation, time.Since(start), err)
	n.refreshMetricsLocked()
	return err
}

// View runs a read-only fn under the node lock.
func (n *Node) View(fn func(e *vault.Engine, asset *bank.Ledger) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fn(n.engine, n.asset)
}

// Height returns the last committed block height.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// Strategies returns the addresses of the strategies the node harvests.
func (n *Node) Strategies() []common.Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]common.Address, 0, len(n.strategies))
	for _, s := range n.strategies {
		out = append(out, s.Address())
	}
	return out
}

// HarvestAll reports every configured strategy, each in its own block. A
// failing strategy does not stop the others.
func (n *Node) HarvestAll() error {
	n.mu.Lock()
	targets := append([]*strategy.Passive(nil), n.strategies...)
	n.mu.Unlock()

	var errs []error
	for _, s := range targets {
		var outcome vault.ReportOutcome
		err := n.Execute("harvest", func() error {
			var err error
			outcome, err = s.Harvest(n.engine)
			return err
		})
		if err != nil {
			n.logger.Warn("harvest failed",
				slog.String("strategy", s.Address().Hex()),
				slog.Any("error", err))
			errs = append(errs, fmt.Errorf("harvest %s: %w", s.Address().Hex(), err))
			continue
		}
		n.logger.Info("harvested",
			slog.String("strategy", s.Address().Hex()),
			slog.String("credit", formatAmount(outcome.Credit)),
			slog.String("debtPaid", formatAmount(outcome.DebtPaid)),
			slog.String("fees", formatAmount(outcome.TotalFees)))
	}
	return errors.Join(errs...)
}

func (n *Node) refreshMetricsLocked() {
	v, err := n.engine.Vault()
	if err != nil {
		return
	}
	snapshot := observability.VaultSnapshot{
		Asset:             v.Asset,
		TotalShares:       v.TotalShares,
		TotalDebt:         v.TotalDebt,
		DebtRatio:         v.DebtRatio,
		EmergencyShutdown: v.EmergencyShutdown,
		Paused:            v.Paused,
	}
	if total, err := n.engine.TotalAssets(); err == nil {
		snapshot.TotalAssets = total
	}
	if pps, err := n.engine.PricePerShare(); err == nil {
		snapshot.PricePerShare = pps
	}
	if locked, err := n.engine.LockedProfit(); err == nil {
		snapshot.LockedProfit = locked
	}
	n.metrics.RecordSnapshot(snapshot)
	for _, addr := range v.Strategies {
		if entry, err := n.engine.Strategy(addr); err == nil {
			n.metrics.RecordStrategyDebt(v.Asset, addr.Hex(), entry.TotalDebt)
		}
	}
}
