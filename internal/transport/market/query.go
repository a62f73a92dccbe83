package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"perpvenue/internal/copytrading"
	"perpvenue/internal/deferredexec"
	"perpvenue/internal/limitorder"
	"perpvenue/internal/numeric"
	"perpvenue/internal/pool"
	"perpvenue/internal/position"
	"perpvenue/internal/store"
	"perpvenue/internal/xerrors"
)

// Query answers a single QueryMsg against token's market state inside a
// read-only transaction, rolled back once the read completes since a
// query never mutates.
func (sc *ServiceContext) Query(ctx context.Context, token string, msg QueryMsg, now time.Time) (any, error) {
	if _, err := sc.Market(token); err != nil {
		return nil, err
	}
	tx, err := sc.Begin(token)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	switch msg.Kind {
	case QueryStatus:
		return sc.queryStatus(tx)
	case QueryPosition:
		return sc.queryPosition(tx, msg.Params)
	case QueryPositions:
		return sc.queryPositions(tx, msg.Params)
	case QueryClosedPositionHistory:
		return sc.queryClosedHistory(tx, msg.Params)
	case QueryLpInfo:
		return sc.queryLpInfo(tx, msg.Params)
	case QueryDeltaNeutralityFee:
		return sc.queryDnf(tx, msg.Params)
	case QueryLimitOrders:
		return sc.queryLimitOrders(tx, msg.Params)
	case QueryDeferredExecs:
		return sc.queryDeferredExec(tx, msg.Params)
	case QuerySpotPrice:
		return sc.PricePoints.Latest(tx)
	case QueryLpBalances:
		return sc.queryLpBalances(tx, token, msg.Params)
	default:
		return nil, fmt.Errorf("market: unknown query kind %q", msg.Kind)
	}
}

type statusResult struct {
	LongOpenInterest  string `json:"long_open_interest"`
	ShortOpenInterest string `json:"short_open_interest"`
	Totals            pool.Totals
}

func (sc *ServiceContext) queryStatus(tx store.Tx) (any, error) {
	long, short, err := position.OpenInterest(tx)
	if err != nil {
		return nil, err
	}
	totals, err := pool.GetTotals(tx)
	if err != nil {
		return nil, err
	}
	return statusResult{
		LongOpenInterest:  long.String(),
		ShortOpenInterest: short.String(),
		Totals:            totals,
	}, nil
}

type positionIDQuery struct {
	PositionID uint64 `json:"position_id"`
}

func (sc *ServiceContext) queryPosition(tx store.Tx, raw json.RawMessage) (any, error) {
	p, err := decodeParams[positionIDQuery](raw)
	if err != nil {
		return nil, err
	}
	return position.Get(tx, p.PositionID)
}

type ownerQuery struct {
	Owner string `json:"owner"`
}

func (sc *ServiceContext) queryPositions(tx store.Tx, raw json.RawMessage) (any, error) {
	p, err := decodeParams[ownerQuery](raw)
	if err != nil {
		return nil, err
	}
	ids, err := position.ByOwner(tx, p.Owner)
	if err != nil {
		return nil, err
	}
	out := make([]position.Position, 0, len(ids))
	for _, id := range ids {
		pos, err := position.Get(tx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}

type closedHistoryQuery struct {
	Owner         string     `json:"owner"`
	AfterClosedAt *time.Time `json:"after_closed_at,omitempty"`
	AfterID       uint64     `json:"after_id,omitempty"`
	Limit         int        `json:"limit,omitempty"`
}

func (sc *ServiceContext) queryClosedHistory(tx store.Tx, raw json.RawMessage) (any, error) {
	p, err := decodeParams[closedHistoryQuery](raw)
	if err != nil {
		return nil, err
	}
	after := time.Time{}
	if p.AfterClosedAt != nil {
		after = *p.AfterClosedAt
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	return position.ClosedHistorySince(tx, p.Owner, after, p.AfterID, limit)
}

type providerQuery struct {
	Address string `json:"address"`
}

type lpInfoResult struct {
	Totals   pool.Totals
	Provider pool.Provider
}

func (sc *ServiceContext) queryLpInfo(tx store.Tx, raw json.RawMessage) (any, error) {
	p, err := decodeParams[providerQuery](raw)
	if err != nil {
		return nil, err
	}
	totals, err := pool.GetTotals(tx)
	if err != nil {
		return nil, err
	}
	if p.Address == "" {
		return lpInfoResult{Totals: totals}, nil
	}
	provider, err := pool.GetProvider(tx, p.Address)
	if err != nil {
		return nil, err
	}
	return lpInfoResult{Totals: totals, Provider: provider}, nil
}

type dnfQuery struct {
	CarryLeverage string `json:"carry_leverage"`
}

func (sc *ServiceContext) queryDnf(tx store.Tx, raw json.RawMessage) (any, error) {
	p, err := decodeParams[dnfQuery](raw)
	if err != nil {
		return nil, err
	}
	carryLeverage, err := numeric.ParseDec(p.CarryLeverage)
	if err != nil {
		return nil, err
	}
	long, short, err := position.OpenInterest(tx)
	if err != nil {
		return nil, err
	}
	net, err := netNotional(long, short)
	if err != nil {
		return nil, err
	}
	fee, err := pool.DeltaNeutralityFloor(net, carryLeverage)
	if err != nil {
		return nil, err
	}
	return map[string]string{"fee": fee.String()}, nil
}

type orderIDQuery struct {
	OrderID uint64 `json:"order_id"`
}

func (sc *ServiceContext) queryLimitOrders(tx store.Tx, raw json.RawMessage) (any, error) {
	p, err := decodeParams[orderIDQuery](raw)
	if err != nil {
		return nil, err
	}
	if p.OrderID == 0 {
		return nil, xerrors.New(xerrors.KindNotFoundOrder, "order_id required")
	}
	return limitorder.Get(tx, p.OrderID)
}

type lpBalancesQuery struct {
	Depositors []string `json:"depositors"`
}

// queryLpBalances batch-fetches several depositors' copy-trading pool
// balances for token in one store round trip (§4.J: AllowedLpTokenQueries
// bounds how many holders a single read may request), rather than one
// round trip per depositor.
func (sc *ServiceContext) queryLpBalances(tx store.Tx, token string, raw json.RawMessage) (any, error) {
	p, err := decodeParams[lpBalancesQuery](raw)
	if err != nil {
		return nil, err
	}
	rp, err := sc.Market(token)
	if err != nil {
		return nil, err
	}
	limit := rp.Copytrading.AllowedLpTokenQueries
	if limit > 0 && len(p.Depositors) > limit {
		p.Depositors = p.Depositors[:limit]
	}
	return copytrading.GetBalances(tx, token, p.Depositors)
}

type deferredExecQuery struct {
	DeferredExecID uint64 `json:"deferred_exec_id"`
}

func (sc *ServiceContext) queryDeferredExec(tx store.Tx, raw json.RawMessage) (any, error) {
	p, err := decodeParams[deferredExecQuery](raw)
	if err != nil {
		return nil, err
	}
	item, found, err := deferredexec.Get(tx, p.DeferredExecID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.New(xerrors.KindNotFoundDeferred, "deferred exec item not found")
	}
	return item, nil
}
