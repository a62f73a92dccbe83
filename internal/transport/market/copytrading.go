package market

import (
	"errors"
	"time"

	"perpvenue/internal/copytrading"
	"perpvenue/internal/deferredexec"
	"perpvenue/internal/events"
	"perpvenue/internal/liquifund"
	"perpvenue/internal/numeric"
	"perpvenue/internal/pool"
	"perpvenue/internal/position"
	"perpvenue/internal/store"
)

// CopytradingVaultOwner is the fixed owner string the copy-trading vault's
// own positions are booked under (§4.J), the same name copytradingd's
// config uses (config.CopytradingdConfig.VaultOwner).
const CopytradingVaultOwner = "copytrading-vault"

const copytradingIdleBucket = "copytrading_vault_idle"

var copytradingIdleKey = store.StringKey("idle")

// copytrading.MarketGateway is built for a processor that can follow
// several markets at once; this deployment runs one copy-trading vault per
// market instance (mirroring countertrade's one-vault-per-market shape),
// so KnownMarkets always reports exactly the one token RunCopytrading was
// called for, and every lookup the gateway performs uses the same
// market-scoped tx the caller already holds.
type vaultGateway struct {
	tx    store.Tx
	token string
}

func (g *vaultGateway) KnownMarkets() []string { return []string{g.token} }

// OnChainCollateral is this deployment's "true" total: collateral deployed
// into the vault's open positions plus whatever it holds idle, not yet
// deployed or already freed by a close/remove. There is no separate chain
// to disagree with the ledger here, so this is the figure HasWork's
// drift check compares stats.Collateral against.
func (g *vaultGateway) OnChainCollateral(token string) (numeric.Collateral, error) {
	deployed, err := g.OpenPositionsCollateral(token)
	if err != nil {
		return numeric.Collateral{}, err
	}
	idle, err := loadIdleCollateral(g.tx)
	if err != nil {
		return numeric.Collateral{}, err
	}
	return deployed.Add(idle)
}

// OpenPositionsCollateral sums active collateral across the vault's open
// positions in this market. The vault never places limit orders of its
// own (leader actions apply synchronously against the current price, the
// way countertrade's do), so the locked-limit-order term §4.J's doc
// comment anticipates is always zero here.
func (g *vaultGateway) OpenPositionsCollateral(token string) (numeric.Collateral, error) {
	ids, err := position.ByOwner(g.tx, CopytradingVaultOwner)
	if err != nil {
		return numeric.Collateral{}, err
	}
	total := numeric.Collateral{}
	for _, id := range ids {
		pos, err := position.Get(g.tx, id)
		if err != nil {
			return numeric.Collateral{}, err
		}
		total, err = total.Add(pos.ActiveCollateral)
		if err != nil {
			return numeric.Collateral{}, err
		}
	}
	return total, nil
}

func loadIdleCollateral(tx store.Tx) (numeric.Collateral, error) {
	raw, err := tx.Get(copytradingIdleBucket, copytradingIdleKey)
	if errors.Is(err, store.ErrNotFound) {
		return numeric.Collateral{}, nil
	}
	if err != nil {
		return numeric.Collateral{}, err
	}
	var c numeric.Collateral
	if err := store.Decode(raw, &c); err != nil {
		return numeric.Collateral{}, err
	}
	return c, nil
}

func saveIdleCollateral(tx store.Tx, c numeric.Collateral) error {
	b, err := store.Encode(c)
	if err != nil {
		return err
	}
	return tx.Set(copytradingIdleBucket, copytradingIdleKey, b)
}

func addIdleCollateral(tx store.Tx, delta numeric.Collateral) error {
	cur, err := loadIdleCollateral(tx)
	if err != nil {
		return err
	}
	next, err := cur.Add(delta)
	if err != nil {
		return err
	}
	return saveIdleCollateral(tx, next)
}

func subIdleCollateral(tx store.Tx, delta numeric.Collateral) error {
	cur, err := loadIdleCollateral(tx)
	if err != nil {
		return err
	}
	return saveIdleCollateral(tx, cur.SaturatingSub(delta))
}

// RunCopytrading drives one iteration of the copy-trading processor (§4.J):
// HasWork picks a single unit of work in priority order, and this realises
// it against the rest of the engine.
func (sc *ServiceContext) RunCopytrading(tx store.Tx, rp RuntimeParams, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	gw := &vaultGateway{tx: tx, token: rp.Token}
	work, err := copytrading.HasWork(tx, rp.Copytrading, gw, now)
	if err != nil {
		return ExecuteResult{}, err
	}
	if err := sc.realizeCopytradingWork(tx, rp, gw, work, now, sink); err != nil {
		return ExecuteResult{}, err
	}
	sink.Emit(events.KindCopyTradingRebalance, now, map[string]any{"kind": string(work.Kind)})
	return ExecuteResult{}, nil
}

func (sc *ServiceContext) realizeCopytradingWork(tx store.Tx, rp RuntimeParams, gw *vaultGateway, work copytrading.Work, now time.Time, sink *events.Sink) error {
	switch work.Kind {
	case copytrading.WorkNone:
		return nil

	case copytrading.WorkLoadMarket:
		stats, err := copytrading.GetTokenStats(tx, work.Token)
		if err != nil {
			return err
		}
		stats.KnownMarket = true
		return copytrading.SetTokenStats(tx, stats)

	case copytrading.WorkRebalance:
		_, err := copytrading.Rebalance(tx, rp.Copytrading, CopytradingVaultOwner, work.Token)
		return err

	case copytrading.WorkComputeLpTokenValue:
		return copytrading.ComputeLpTokenValue(tx, gw, work.Token, now)

	case copytrading.WorkHandleDeferredExec:
		return sc.handleCopytradingDeferredExec(tx, work.Token, now)

	case copytrading.WorkProcessQueueItem:
		return sc.processCopytradingQueueItem(tx, rp, work.Token, now, sink)
	}
	return nil
}

// handleCopytradingDeferredExec resolves a queue item that is blocked on a
// deferred-exec outcome (§4.J step 5). Work doesn't carry the item's queue
// (inc vs dec), so this re-fetches the full QueueItem to get it.
func (sc *ServiceContext) handleCopytradingDeferredExec(tx store.Tx, token string, now time.Time) error {
	item, err := copytrading.InProgressAwaitingDeferredExec(tx, token)
	if err != nil {
		return err
	}
	if item == nil || item.DeferredExecID == nil {
		return nil
	}
	de, found, err := deferredexec.Get(tx, *item.DeferredExecID)
	if err != nil {
		return err
	}
	if !found {
		return copytrading.SetState(tx, item.Queue, item.ID, copytrading.StateFailed, "deferred exec item missing", nil)
	}
	switch de.Status.State {
	case deferredexec.StatePending:
		return nil
	case deferredexec.StateSuccess:
		return copytrading.SetState(tx, item.Queue, item.ID, copytrading.StateFinished, "", nil)
	case deferredexec.StateFailure:
		return copytrading.SetState(tx, item.Queue, item.ID, copytrading.StateFailed, de.Status.Reason, nil)
	}
	return nil
}

// processCopytradingQueueItem realises the oldest not-processed queue item
// (§4.J step 6). A failure in the action itself fails the queue item
// rather than aborting the whole RunCopytrading call, mirroring how a
// failed deferred-exec action records Failure instead of propagating.
func (sc *ServiceContext) processCopytradingQueueItem(tx store.Tx, rp RuntimeParams, token string, now time.Time, sink *events.Sink) error {
	item, err := copytrading.OldestNotProcessed(tx, token)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	if err := copytrading.SetState(tx, item.Queue, item.ID, copytrading.StateInProgress, "", nil); err != nil {
		return err
	}

	actionErr := sc.applyCopytradingAction(tx, rp, *item, now, sink)
	if actionErr != nil {
		return copytrading.SetState(tx, item.Queue, item.ID, copytrading.StateFailed, actionErr.Error(), nil)
	}
	return copytrading.SetState(tx, item.Queue, item.ID, copytrading.StateFinished, "", nil)
}

func (sc *ServiceContext) applyCopytradingAction(tx store.Tx, rp RuntimeParams, item copytrading.QueueItem, now time.Time, sink *events.Sink) error {
	action := item.Action
	switch action.Kind {
	case copytrading.ActionDeposit:
		if err := copytrading.Deposit(tx, item.Token, action.Depositor, action.Collateral); err != nil {
			return err
		}
		return addIdleCollateral(tx, action.Collateral)

	case copytrading.ActionWithdraw:
		free, err := loadIdleCollateral(tx)
		if err != nil {
			return err
		}
		out, err := copytrading.Withdraw(tx, item.Token, action.Depositor, action.Shares, free)
		if err != nil {
			return err
		}
		if err := subIdleCollateral(tx, out); err != nil {
			return err
		}
		sink.EmitIntent(events.IntentTransfer, action.Depositor, map[string]any{
			"amount": out.String(),
			"token":  item.Token,
		})
		return nil

	case copytrading.ActionLeaderOpen:
		return sc.copytradingLeaderOpen(tx, rp, action, now)

	case copytrading.ActionLeaderAdd:
		return sc.copytradingLeaderAdd(tx, rp, action, now)

	case copytrading.ActionLeaderClose:
		return sc.copytradingLeaderClose(tx, action, now, sink)

	case copytrading.ActionLeaderRemove:
		return sc.copytradingLeaderRemove(tx, rp, action)
	}
	return errUnhandledCopytradingAction(action.Kind)
}

func errUnhandledCopytradingAction(kind copytrading.ActionKind) error {
	return &unhandledActionError{kind: string(kind)}
}

type unhandledActionError struct{ kind string }

func (e *unhandledActionError) Error() string {
	return "copytrading: unhandled leader action " + e.kind
}

func paramBool(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func (sc *ServiceContext) copytradingLeaderOpen(tx store.Tx, rp RuntimeParams, action copytrading.Action, now time.Time) error {
	idle, err := loadIdleCollateral(tx)
	if err != nil {
		return err
	}
	depositDec, err := idle.Dec().Mul(action.CollateralFraction)
	if err != nil {
		return err
	}
	deposit := numeric.NewCollateral(depositDec)

	latest := latestPriceOrZero(tx, sc)
	id, err := position.NextID(tx)
	if err != nil {
		return err
	}
	_, err = position.Open(tx, id, position.OpenParams{
		Owner:             CopytradingVaultOwner,
		Collateral:        deposit,
		Leverage:          rp.Margin.MaxLeverage,
		Long:              paramBool(action.Params, "long"),
		Price:             position.PricePoint{Timestamp: now, PriceNotional: latest},
		LiquifundingDelay: rp.Liquifund.LiquifundingDelay,
		Margin:            rp.Margin,
	}, func(notionalAbs numeric.Dec) (numeric.Collateral, error) {
		return pool.LockCounterCollateral(tx, notionalAbs, rp.Margin.MaxLeverage)
	})
	if err != nil {
		return err
	}
	return subIdleCollateral(tx, deposit)
}

func (sc *ServiceContext) copytradingLeaderAdd(tx store.Tx, rp RuntimeParams, action copytrading.Action, now time.Time) error {
	ids, err := position.ByOwner(tx, CopytradingVaultOwner)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return sc.copytradingLeaderOpen(tx, rp, action, now)
	}
	idle, err := loadIdleCollateral(tx)
	if err != nil {
		return err
	}
	depositDec, err := idle.Dec().Mul(action.CollateralFraction)
	if err != nil {
		return err
	}
	deposit := numeric.NewCollateral(depositDec)
	_, err = position.AddCollateral(tx, ids[0], deposit, rp.Margin, latestPriceOrZero(tx, sc))
	if err != nil {
		return err
	}
	return subIdleCollateral(tx, deposit)
}

func (sc *ServiceContext) copytradingLeaderClose(tx store.Tx, action copytrading.Action, now time.Time, sink *events.Sink) error {
	ids, err := position.ByOwner(tx, CopytradingVaultOwner)
	if err != nil {
		return err
	}
	for _, id := range ids {
		pos, err := position.Get(tx, id)
		if err != nil {
			return err
		}
		if err := liquifund.Close(tx, pos, position.ReasonUserClose, now, sink); err != nil {
			return err
		}
		if err := pool.UnlockCounterCollateral(tx, pos.CounterCollateral); err != nil {
			return err
		}
		if err := addIdleCollateral(tx, pos.ActiveCollateral); err != nil {
			return err
		}
	}
	return nil
}

func (sc *ServiceContext) copytradingLeaderRemove(tx store.Tx, rp RuntimeParams, action copytrading.Action) error {
	ids, err := position.ByOwner(tx, CopytradingVaultOwner)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := position.RemoveCollateral(tx, ids[0], action.Collateral, rp.Margin, latestPriceOrZero(tx, sc)); err != nil {
		return err
	}
	return addIdleCollateral(tx, action.Collateral)
}
