package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"perpvenue/internal/crank"
	"perpvenue/internal/deferredexec"
	"perpvenue/internal/events"
	"perpvenue/internal/limitorder"
	"perpvenue/internal/liquifund"
	"perpvenue/internal/numeric"
	"perpvenue/internal/pool"
	"perpvenue/internal/position"
	"perpvenue/internal/pricepoint"
	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

// Execute dispatches a single ExecuteMsg against token's market state,
// committing the transaction and journalling the result on success and
// rolling back on failure, mirroring the single-threaded transactional
// step model every engine package is built against.
func (sc *ServiceContext) Execute(ctx context.Context, token string, msg ExecuteMsg, now time.Time) (ExecuteResult, error) {
	rp, err := sc.Market(token)
	if err != nil {
		return ExecuteResult{}, err
	}
	tx, err := sc.Begin(token)
	if err != nil {
		return ExecuteResult{}, err
	}

	sink := &events.Sink{}
	result, execErr := sc.dispatch(ctx, tx, rp, msg, now, sink)

	if _, jerr := sc.Journal.WriteSink(token, msg.Kind, sink, execErr); jerr != nil {
		if execErr == nil {
			execErr = jerr
		}
	}
	if execErr != nil {
		_ = tx.Rollback()
		return ExecuteResult{}, execErr
	}
	if err := tx.Commit(); err != nil {
		return ExecuteResult{}, err
	}
	result.Events = sink.Events
	result.Intents = sink.Intents
	return result, nil
}

func (sc *ServiceContext) dispatch(ctx context.Context, tx store.Tx, rp RuntimeParams, msg ExecuteMsg, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	switch msg.Kind {
	case KindOpenPosition:
		return sc.openPosition(tx, rp, msg.Params, now, sink)
	case KindUpdateAddCollateral:
		return sc.addCollateral(tx, rp, msg.Params, now, sink)
	case KindUpdateRemoveCollateral:
		return sc.removeCollateral(tx, rp, msg.Params, now, sink)
	case KindUpdateLeverage:
		return sc.setLeverage(tx, rp, msg.Params, now, sink)
	case KindUpdateTakeProfit, KindUpdateStopLoss, KindSetTriggerOrder:
		return sc.setOverrides(tx, rp, msg.Params, now, sink)
	case KindClosePosition:
		return sc.closePosition(tx, rp, msg.Params, now, sink)
	case KindCloseAllPositions:
		return sc.closeAllPositions(tx, rp, msg.Params, now, sink)
	case KindPlaceLimitOrder:
		return sc.placeLimitOrder(tx, msg.Params, now)
	case KindCancelLimitOrder:
		return sc.cancelLimitOrder(tx, msg.Params)
	case KindDepositLiquidity:
		return sc.depositLiquidity(tx, msg.Params, now)
	case KindWithdrawLiquidity:
		return sc.withdrawLiquidity(tx, msg.Params, now)
	case KindStakeLp:
		return sc.stakeLp(tx, msg.Params, now)
	case KindUnstakeXlp:
		return sc.unstakeXlp(tx, msg.Params, now)
	case KindStopUnstakingXlp:
		return sc.stopUnstakingXlp(tx, msg.Params, now)
	case KindCollectUnstakedLp:
		return sc.collectUnstakedLp(tx, msg.Params, now)
	case KindClaimYield, KindReinvestYield:
		return sc.claimYield(ctx, tx, msg.Params, msg.Kind == KindReinvestYield, now)
	case KindTransferDaoFees:
		return sc.transferDaoFees(ctx, tx, msg.Params)
	case KindProvideCrankFunds:
		return sc.provideCrankFunds(tx, msg.Params, now)
	case KindSetManualPrice:
		return sc.setManualPrice(tx, msg.Params, now)
	case KindCrank:
		return sc.runCrank(ctx, tx, rp, msg.Params, now, sink)
	case KindPerformDeferredExec:
		return sc.performDeferredExec(ctx, tx, rp, msg.Params, now, sink)
	case KindRunCountertrade:
		return sc.RunCountertrade(tx, rp, now, sink)
	case KindRunCopytrading:
		return sc.RunCopytrading(tx, rp, now, sink)
	default:
		return ExecuteResult{}, fmt.Errorf("market: unknown execute kind %q", msg.Kind)
	}
}

func decodeParams[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("market: decode params: %w", err)
	}
	return v, nil
}

// --- Position lifecycle ------------------------------------------------

type openPositionParams struct {
	Owner            string       `json:"owner"`
	Collateral       string       `json:"collateral"`
	Leverage         string       `json:"leverage"`
	Long             bool         `json:"long"`
	StopLossOverride *string      `json:"stop_loss_override,omitempty"`
	TakeProfitTrader *string      `json:"take_profit_trader,omitempty"`
}

func (sc *ServiceContext) openPosition(tx store.Tx, rp RuntimeParams, raw json.RawMessage, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	p, err := decodeParams[openPositionParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	collateral, err := numeric.ParseDec(p.Collateral)
	if err != nil {
		return ExecuteResult{}, err
	}
	leverage, err := numeric.ParseDec(p.Leverage)
	if err != nil {
		return ExecuteResult{}, err
	}
	latest, err := sc.PricePoints.Latest(tx)
	if err != nil {
		return ExecuteResult{}, err
	}

	sl, err := optionalPrice(p.StopLossOverride)
	if err != nil {
		return ExecuteResult{}, err
	}
	tp, err := optionalPrice(p.TakeProfitTrader)
	if err != nil {
		return ExecuteResult{}, err
	}

	id, err := position.NextID(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	pos, err := position.Open(tx, id, position.OpenParams{
		Owner:             p.Owner,
		Collateral:        numeric.NewCollateral(collateral),
		Leverage:          leverage,
		Long:              p.Long,
		Price:             position.PricePoint{Timestamp: latest.Timestamp, PriceNotional: latest.PriceNotional},
		StopLossOverride:  sl,
		TakeProfitTrader:  tp,
		LiquifundingDelay: rp.Liquifund.LiquifundingDelay,
		Margin:            rp.Margin,
	}, func(notionalAbs numeric.Dec) (numeric.Collateral, error) {
		return pool.LockCounterCollateral(tx, notionalAbs, rp.Margin.MaxLeverage)
	})
	if err != nil {
		return ExecuteResult{}, err
	}
	sink.Emit(events.KindPositionOpen, now, map[string]any{"position_id": pos.ID, "owner": pos.Owner})
	return ExecuteResult{}, nil
}

func optionalPrice(s *string) (*numeric.Price, error) {
	if s == nil {
		return nil, nil
	}
	d, err := numeric.ParseDec(*s)
	if err != nil {
		return nil, err
	}
	price := numeric.NewPrice(d)
	return &price, nil
}

type positionIDParams struct {
	PositionID uint64 `json:"position_id"`
	Amount     string `json:"amount,omitempty"`
	Leverage   string `json:"leverage,omitempty"`
}

func (sc *ServiceContext) addCollateral(tx store.Tx, rp RuntimeParams, raw json.RawMessage, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	p, err := decodeParams[positionIDParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	amount, err := numeric.ParseDec(p.Amount)
	if err != nil {
		return ExecuteResult{}, err
	}
	latest, err := sc.PricePoints.Latest(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	pos, err := position.AddCollateral(tx, p.PositionID, numeric.NewCollateral(amount), rp.Margin, latest.PriceNotional)
	if err != nil {
		return ExecuteResult{}, err
	}
	sink.Emit(events.KindPositionUpdate, now, map[string]any{"position_id": pos.ID})
	return ExecuteResult{}, nil
}

func (sc *ServiceContext) removeCollateral(tx store.Tx, rp RuntimeParams, raw json.RawMessage, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	p, err := decodeParams[positionIDParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	amount, err := numeric.ParseDec(p.Amount)
	if err != nil {
		return ExecuteResult{}, err
	}
	latest, err := sc.PricePoints.Latest(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	pos, err := position.RemoveCollateral(tx, p.PositionID, numeric.NewCollateral(amount), rp.Margin, latest.PriceNotional)
	if err != nil {
		return ExecuteResult{}, err
	}
	sink.Emit(events.KindPositionUpdate, now, map[string]any{"position_id": pos.ID})
	return ExecuteResult{}, nil
}

func (sc *ServiceContext) setLeverage(tx store.Tx, rp RuntimeParams, raw json.RawMessage, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	p, err := decodeParams[positionIDParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	leverage, err := numeric.ParseDec(p.Leverage)
	if err != nil {
		return ExecuteResult{}, err
	}
	latest, err := sc.PricePoints.Latest(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	pos, err := position.SetLeverage(tx, p.PositionID, leverage, rp.Margin, latest.PriceNotional)
	if err != nil {
		return ExecuteResult{}, err
	}
	sink.Emit(events.KindPositionUpdate, now, map[string]any{"position_id": pos.ID})
	return ExecuteResult{}, nil
}

type setOverridesParams struct {
	PositionID uint64  `json:"position_id"`
	StopLoss   *string `json:"stop_loss,omitempty"`
	TakeProfit *string `json:"take_profit,omitempty"`
}

func (sc *ServiceContext) setOverrides(tx store.Tx, rp RuntimeParams, raw json.RawMessage, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	p, err := decodeParams[setOverridesParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	sl, err := optionalPrice(p.StopLoss)
	if err != nil {
		return ExecuteResult{}, err
	}
	tp, err := optionalPrice(p.TakeProfit)
	if err != nil {
		return ExecuteResult{}, err
	}
	latest, err := sc.PricePoints.Latest(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	pos, err := position.SetOverrides(tx, p.PositionID, sl, tp, latest.PriceNotional)
	if err != nil {
		return ExecuteResult{}, err
	}
	sink.Emit(events.KindPositionUpdate, now, map[string]any{"position_id": pos.ID})
	return ExecuteResult{}, nil
}

type closePositionParams struct {
	PositionID uint64 `json:"position_id"`
	Owner      string `json:"owner"`
}

func (sc *ServiceContext) closePosition(tx store.Tx, rp RuntimeParams, raw json.RawMessage, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	p, err := decodeParams[closePositionParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	pos, err := position.CloseUser(tx, p.PositionID, p.Owner)
	if err != nil {
		return ExecuteResult{}, err
	}
	if err := liquifund.Close(tx, pos, position.ReasonUserClose, now, sink); err != nil {
		return ExecuteResult{}, err
	}
	if err := pool.UnlockCounterCollateral(tx, pos.CounterCollateral); err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{}, nil
}

type closeAllParams struct {
	Owner string `json:"owner"`
}

func (sc *ServiceContext) closeAllPositions(tx store.Tx, rp RuntimeParams, raw json.RawMessage, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	p, err := decodeParams[closeAllParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	ids, err := position.ByOwner(tx, p.Owner)
	if err != nil {
		return ExecuteResult{}, err
	}
	for _, id := range ids {
		pos, err := position.Get(tx, id)
		if err != nil {
			return ExecuteResult{}, err
		}
		if err := liquifund.Close(tx, pos, position.ReasonUserClose, now, sink); err != nil {
			return ExecuteResult{}, err
		}
		if err := pool.UnlockCounterCollateral(tx, pos.CounterCollateral); err != nil {
			return ExecuteResult{}, err
		}
	}
	return ExecuteResult{}, nil
}

// --- Limit orders --------------------------------------------------------

type placeLimitOrderParams struct {
	Owner     string         `json:"owner"`
	Trigger   string         `json:"trigger_price"`
	Ascending bool           `json:"ascending"`
	Params    map[string]any `json:"params,omitempty"`
}

func (sc *ServiceContext) placeLimitOrder(tx store.Tx, raw json.RawMessage, now time.Time) (ExecuteResult, error) {
	p, err := decodeParams[placeLimitOrderParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	trigger, err := numeric.ParseDec(p.Trigger)
	if err != nil {
		return ExecuteResult{}, err
	}
	_, err = limitorder.Place(tx, p.Owner, numeric.NewPrice(trigger), p.Ascending, p.Params, now)
	return ExecuteResult{}, err
}

type cancelLimitOrderParams struct {
	OrderID uint64 `json:"order_id"`
}

func (sc *ServiceContext) cancelLimitOrder(tx store.Tx, raw json.RawMessage) (ExecuteResult, error) {
	p, err := decodeParams[cancelLimitOrderParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{}, limitorder.Cancel(tx, p.OrderID)
}

// --- Liquidity pool ------------------------------------------------------

type depositLiquidityParams struct {
	Address         string  `json:"address"`
	Amount          string  `json:"amount"`
	StakeToXlp      bool    `json:"stake_to_xlp"`
	CooldownSeconds int64   `json:"cooldown_seconds,omitempty"`
	MaxLiquidityUsd *string `json:"max_liquidity_usd,omitempty"`
}

func (sc *ServiceContext) depositLiquidity(tx store.Tx, raw json.RawMessage, now time.Time) (ExecuteResult, error) {
	p, err := decodeParams[depositLiquidityParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	amount, err := numeric.ParseDec(p.Amount)
	if err != nil {
		return ExecuteResult{}, err
	}
	var maxUsd *numeric.Usd
	if p.MaxLiquidityUsd != nil {
		d, err := numeric.ParseDec(*p.MaxLiquidityUsd)
		if err != nil {
			return ExecuteResult{}, err
		}
		u := numeric.NewUsd(d)
		maxUsd = &u
	}
	latest, err := sc.PricePoints.Latest(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	err = pool.Deposit(tx, p.Address, numeric.NewCollateral(amount), p.StakeToXlp, now, p.CooldownSeconds, maxUsd, latest.PriceUsd)
	return ExecuteResult{}, err
}

type withdrawLiquidityParams struct {
	Address       string `json:"address"`
	Shares        string `json:"shares"`
	CarryLeverage string `json:"carry_leverage"`
}

func (sc *ServiceContext) withdrawLiquidity(tx store.Tx, raw json.RawMessage, now time.Time) (ExecuteResult, error) {
	p, err := decodeParams[withdrawLiquidityParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	shares, err := numeric.ParseDec(p.Shares)
	if err != nil {
		return ExecuteResult{}, err
	}
	carryLeverage, err := numeric.ParseDec(p.CarryLeverage)
	if err != nil {
		return ExecuteResult{}, err
	}
	long, short, err := position.OpenInterest(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	net, err := netNotional(long, short)
	if err != nil {
		return ExecuteResult{}, err
	}
	_, err = pool.Withdraw(tx, p.Address, numeric.NewLpToken(shares), now, net, carryLeverage)
	return ExecuteResult{}, err
}

func netNotional(long, short numeric.Dec) (numeric.Signed[numeric.Notional], error) {
	if long.Cmp(short) >= 0 {
		d, err := long.Sub(short)
		if err != nil {
			return numeric.Signed[numeric.Notional]{}, err
		}
		return numeric.Positive(numeric.NewNotional(d)), nil
	}
	d, err := short.Sub(long)
	if err != nil {
		return numeric.Signed[numeric.Notional]{}, err
	}
	return numeric.Negative(numeric.NewNotional(d)), nil
}

type addrAmountParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount,omitempty"`
}

func (sc *ServiceContext) stakeLp(tx store.Tx, raw json.RawMessage, now time.Time) (ExecuteResult, error) {
	p, err := decodeParams[addrAmountParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	amount, err := numeric.ParseDec(p.Amount)
	if err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{}, pool.StakeLp(tx, p.Address, numeric.NewLpToken(amount), now)
}

type unstakeXlpParams struct {
	Address         string `json:"address"`
	Amount          string `json:"amount"`
	UnstakeDuration string `json:"unstake_duration"`
}

func (sc *ServiceContext) unstakeXlp(tx store.Tx, raw json.RawMessage, now time.Time) (ExecuteResult, error) {
	p, err := decodeParams[unstakeXlpParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	amount, err := numeric.ParseDec(p.Amount)
	if err != nil {
		return ExecuteResult{}, err
	}
	dur, err := time.ParseDuration(p.UnstakeDuration)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("market: parse unstake_duration: %w", err)
	}
	return ExecuteResult{}, pool.UnstakeXlp(tx, p.Address, numeric.NewLpToken(amount), now, dur)
}

func (sc *ServiceContext) stopUnstakingXlp(tx store.Tx, raw json.RawMessage, now time.Time) (ExecuteResult, error) {
	p, err := decodeParams[addrAmountParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{}, pool.StopUnstakingXlp(tx, p.Address, now)
}

func (sc *ServiceContext) collectUnstakedLp(tx store.Tx, raw json.RawMessage, now time.Time) (ExecuteResult, error) {
	p, err := decodeParams[addrAmountParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	_, err = pool.CollectUnstakedLp(tx, p.Address, now)
	return ExecuteResult{}, err
}

func (sc *ServiceContext) claimYield(ctx context.Context, tx store.Tx, raw json.RawMessage, reinvest bool, now time.Time) (ExecuteResult, error) {
	p, err := decodeParams[addrAmountParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	amount, err := pool.ClaimYield(tx, p.Address, now)
	if err != nil {
		return ExecuteResult{}, err
	}
	if amount.IsZero() {
		return ExecuteResult{}, nil
	}
	if reinvest {
		var maxUsd *numeric.Usd
		latest, err := sc.PricePoints.Latest(tx)
		if err != nil {
			return ExecuteResult{}, err
		}
		return ExecuteResult{}, pool.Deposit(tx, p.Address, amount, false, now, 0, maxUsd, latest.PriceUsd)
	}
	return ExecuteResult{}, sc.Oracle.Transfer(ctx, p.Address, amount)
}

// --- Admin / crank ---------------------------------------------------------

type transferDaoFeesParams struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

func (sc *ServiceContext) transferDaoFees(ctx context.Context, tx store.Tx, raw json.RawMessage) (ExecuteResult, error) {
	p, err := decodeParams[transferDaoFeesParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	amount, err := numeric.ParseDec(p.Amount)
	if err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{}, sc.Oracle.Transfer(ctx, p.Recipient, numeric.NewCollateral(amount))
}

type provideCrankFundsParams struct {
	Amount string `json:"amount"`
}

func (sc *ServiceContext) provideCrankFunds(tx store.Tx, raw json.RawMessage, now time.Time) (ExecuteResult, error) {
	p, err := decodeParams[provideCrankFundsParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	amount, err := numeric.ParseDec(p.Amount)
	if err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{}, pool.ProvideCrankFunds(tx, numeric.NewCollateral(amount))
}

type setManualPriceParams struct {
	PriceNotional string `json:"price_notional"`
	PriceUsd      string `json:"price_usd"`
}

func (sc *ServiceContext) setManualPrice(tx store.Tx, raw json.RawMessage, now time.Time) (ExecuteResult, error) {
	p, err := decodeParams[setManualPriceParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	notional, err := numeric.ParseDec(p.PriceNotional)
	if err != nil {
		return ExecuteResult{}, err
	}
	usd, err := numeric.ParseDec(p.PriceUsd)
	if err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{}, sc.PricePoints.Append(tx, pricepoint.Point{
		Timestamp:     now,
		PriceNotional: numeric.NewPrice(notional),
		PriceUsd:      numeric.NewPrice(usd),
	})
}

type crankParams struct {
	Execs uint32 `json:"execs"`
}

func (sc *ServiceContext) runCrank(ctx context.Context, tx store.Tx, rp RuntimeParams, raw json.RawMessage, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	p, err := decodeParams[crankParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	if p.Execs == 0 {
		p.Execs = 1
	}
	_, err = crank.Run(tx, sc.PricePoints, rp.Liquifund, p.Execs, sc.CrankRewardAddr, rp.PerUnitCrankReward,
		sc.applyDeferred, sc.execLimitOrder, now, sink)
	return ExecuteResult{}, err
}

type performDeferredExecParams struct {
	DeferredExecID uint64 `json:"deferred_exec_id"`
}

func (sc *ServiceContext) performDeferredExec(ctx context.Context, tx store.Tx, rp RuntimeParams, raw json.RawMessage, now time.Time, sink *events.Sink) (ExecuteResult, error) {
	p, err := decodeParams[performDeferredExecParams](raw)
	if err != nil {
		return ExecuteResult{}, err
	}
	item, found, err := deferredexec.Get(tx, p.DeferredExecID)
	if err != nil {
		return ExecuteResult{}, err
	}
	if !found {
		return ExecuteResult{}, xerrors.New(xerrors.KindNotFoundDeferred, "deferred exec item not found")
	}
	latest, err := sc.PricePoints.Latest(tx)
	if err != nil {
		return ExecuteResult{}, err
	}
	result, applyErr := sc.applyDeferred(tx, item, latest)
	if applyErr != nil {
		crankPrice := latest.PriceNotional.Dec().String()
		return ExecuteResult{}, deferredexec.SetStatus(tx, item.ID, deferredexec.Failure(applyErr.Error(), true, &crankPrice))
	}
	return ExecuteResult{}, deferredexec.SetStatus(tx, item.ID, deferredexec.Success(result))
}

// applyDeferred re-applies a queued Action against the rest of the engine
// once its eligible price point is known (§4.G). Each ActionKind maps onto
// the same position/limitorder operation its immediate ExecuteMsg
// counterpart uses.
func (sc *ServiceContext) applyDeferred(tx store.Tx, item deferredexec.Item, price pricepoint.Point) (map[string]any, error) {
	raw, err := json.Marshal(item.Action.Params)
	if err != nil {
		return nil, err
	}
	rp, err := sc.Market(item.Action.Params["market"].(string))
	if err != nil {
		return nil, err
	}
	sink := &events.Sink{}
	switch item.Action.Kind {
	case deferredexec.ActionOpenPosition:
		_, err := sc.openPosition(tx, rp, raw, price.Timestamp, sink)
		return nil, err
	case deferredexec.ActionUpdatePositionAddCollateral, deferredexec.ActionUpdatePositionAddCollateralImpact:
		_, err := sc.addCollateral(tx, rp, raw, price.Timestamp, sink)
		return nil, err
	case deferredexec.ActionUpdatePositionRemoveCollateral, deferredexec.ActionUpdatePositionRemoveCollateralImpact:
		_, err := sc.removeCollateral(tx, rp, raw, price.Timestamp, sink)
		return nil, err
	case deferredexec.ActionUpdatePositionLeverage:
		_, err := sc.setLeverage(tx, rp, raw, price.Timestamp, sink)
		return nil, err
	case deferredexec.ActionClosePosition:
		_, err := sc.closePosition(tx, rp, raw, price.Timestamp, sink)
		return nil, err
	case deferredexec.ActionPlaceLimitOrder:
		_, err := sc.placeLimitOrder(tx, raw, price.Timestamp)
		return nil, err
	case deferredexec.ActionSetTriggerOrder:
		_, err := sc.setOverrides(tx, rp, raw, price.Timestamp, sink)
		return nil, err
	}
	return nil, fmt.Errorf("market: unhandled deferred action %q", item.Action.Kind)
}

// execLimitOrder turns a matured limit order into the position op its
// params describe — the crank-time counterpart of PlaceLimitOrder.
func (sc *ServiceContext) execLimitOrder(tx store.Tx, order limitorder.Order, price pricepoint.Point) error {
	kind, _ := order.Params["kind"].(string)
	marketToken, _ := order.Params["market"].(string)
	rp, err := sc.Market(marketToken)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(order.Params)
	if err != nil {
		return err
	}
	sink := &events.Sink{}
	switch kind {
	case KindOpenPosition:
		_, err := sc.openPosition(tx, rp, raw, price.Timestamp, sink)
		return err
	case KindClosePosition:
		_, err := sc.closePosition(tx, rp, raw, price.Timestamp, sink)
		return err
	}
	return fmt.Errorf("market: unhandled limit order kind %q", kind)
}
