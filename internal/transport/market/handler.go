package market

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"

	"perpvenue/internal/xerrors"
)

// RegisterHandlers wires the execute/query surface onto server, the same
// goctl-style entry point the teacher's handler package exposed before it
// was superseded by this package.
func RegisterHandlers(server *rest.Server, sc *ServiceContext) {
	server.AddRoutes([]rest.Route{
		{Method: http.MethodPost, Path: "/markets/:token/execute", Handler: executeHandler(sc)},
		{Method: http.MethodPost, Path: "/markets/:token/query", Handler: queryHandler(sc)},
	})
}

type executeRequest struct {
	Token string `path:"token"`
	ExecuteMsg
}

func executeHandler(sc *ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req executeRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		result, err := sc.Execute(r.Context(), req.Token, req.ExecuteMsg, time.Now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, result)
	}
}

type queryRequest struct {
	Token string `path:"token"`
	QueryMsg
}

func queryHandler(sc *ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		result, err := sc.Query(r.Context(), req.Token, req.QueryMsg, time.Now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, result)
	}
}

// writeError maps an xerrors.Error's Kind onto an HTTP status: not-found
// kinds as 404, KindAuth as 403, validation/limit kinds as 400, everything
// else as 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := map[string]any{"error": err.Error()}

	var xerr *xerrors.Error
	if asXerror(err, &xerr) {
		body["kind"] = xerr.Kind.String()
		if xerr.Data != nil {
			body["data"] = xerr.Data
		}
		switch xerr.Kind {
		case xerrors.KindNotFoundPosition, xerrors.KindNotFoundOrder,
			xerrors.KindNotFoundDeferred, xerrors.KindNotFoundMarket:
			status = http.StatusNotFound
		case xerrors.KindAuth:
			status = http.StatusForbidden
		case xerrors.KindInsufficientMargin, xerrors.KindInsufficientLiquidity,
			xerrors.KindInsufficientCollateral, xerrors.KindInsufficientShares,
			xerrors.KindSlippageExceeded, xerrors.KindLeverageOutOfRange,
			xerrors.KindMaxGainsTooLarge, xerrors.KindMaxGainsInfiniteDisallowed,
			xerrors.KindMaxGainsShortDisallowed, xerrors.KindMinimumDeposit,
			xerrors.KindCooldownActive, xerrors.KindMarketClosed, xerrors.KindStale,
			xerrors.KindCongested, xerrors.KindIterationLimitReached:
			status = http.StatusBadRequest
		}
	} else {
		logx.Errorf("market transport: unclassified error: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func asXerror(err error, target **xerrors.Error) bool {
	type causer interface{ Unwrap() error }
	for err != nil {
		if xe, ok := err.(*xerrors.Error); ok {
			*target = xe
			return true
		}
		c, ok := err.(causer)
		if !ok {
			return false
		}
		err = c.Unwrap()
	}
	return false
}
