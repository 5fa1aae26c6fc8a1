package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"CycleLedger/internal/governance"
	"CycleLedger/internal/model"
)

type createProjectRequest struct {
	Handle string `json:"handle"`
	URI    string `json:"uri"`
}

type configureRequest struct {
	Target       sdkmath.Int `json:"target"`
	Currency     string      `json:"currency"`
	Duration     string      `json:"duration"`
	CycleLimit   uint8       `json:"cycle_limit"`
	DiscountRate uint16      `json:"discount_rate"`
	Ballot       string      `json:"ballot"`

	ReservedRate                    uint16 `json:"reserved_rate"`
	BondingCurveRate                uint16 `json:"bonding_curve_rate"`
	ReconfigurationBondingCurveRate uint16 `json:"reconfiguration_bonding_curve_rate"`

	Mods []model.TicketMod `json:"mods"`
}

type payRequest struct {
	Amount         sdkmath.Int   `json:"amount"`
	Currency       string        `json:"currency"`
	Beneficiary    model.Address `json:"beneficiary"`
	PreferUnstaked bool          `json:"prefer_unstaked"`
	Memo           string        `json:"memo"`
}

type amountRequest struct {
	Amount sdkmath.Int `json:"amount"`
}

type redeemRequest struct {
	Count          sdkmath.Int `json:"count"`
	MinReturned    sdkmath.Int `json:"min_returned"`
	PreferUnstaked bool        `json:"prefer_unstaked"`
}

type transferRequest struct {
	To     model.Address `json:"to"`
	Amount sdkmath.Int   `json:"amount"`
}

type ownerRequest struct {
	Owner model.Address `json:"owner"`
}

type operatorRequest struct {
	Operator model.Address `json:"operator"`
	Enabled  bool          `json:"enabled"`
}

type feeRequest struct {
	Fee uint16 `json:"fee"`
}

type appointRequest struct {
	Successor model.Address `json:"successor"`
}

func parseCurrency(s string) (model.Currency, error) {
	if s == "" {
		return model.CurrencyBase, nil
	}
	return model.ParseCurrency(s)
}

func (s *server) getGovernance(w http.ResponseWriter, _ *http.Request) {
	auth := s.fund.Authority()
	resp := map[string]interface{}{
		"governance":  auth.Governance(),
		"fee":         s.fund.Fee(),
		"fee_balance": s.fund.FeeBalance(),
	}
	if ap, ok := auth.Appointment().(governance.PendingAppointment); ok {
		resp["successor"] = ap.Successor
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) setFee(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req feeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.fund.SetFee(c, req.Fee); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint16{"fee": req.Fee})
}

func (s *server) appoint(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req appointRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.fund.AppointGovernance(c, req.Successor); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

func (s *server) accept(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.fund.AcceptGovernance(c); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.Address{"governance": c})
}

func (s *server) listProjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.fund.Projects())
}

func (s *server) createProject(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req createProjectRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.fund.CreateProject(c, req.Handle, req.URI)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.fund.Project(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) configure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	c, id, err := request(r, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	currency, err := parseCurrency(req.Currency)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var duration time.Duration
	if req.Duration != "" {
		if duration, err = time.ParseDuration(req.Duration); err != nil {
			s.fail(w, r, fmt.Errorf("duration: %v: %w", err, model.ErrInvalidParameters))
			return
		}
	}
	params := model.CycleParams{
		Target:       req.Target,
		Currency:     currency,
		Duration:     duration,
		CycleLimit:   req.CycleLimit,
		DiscountRate: req.DiscountRate,
		Ballot:       req.Ballot,
	}
	meta := model.CycleMetadata{
		ReservedRate:                    req.ReservedRate,
		BondingCurveRate:                req.BondingCurveRate,
		ReconfigurationBondingCurveRate: req.ReconfigurationBondingCurveRate,
	}
	fc, err := s.fund.Configure(c, id, params, meta, req.Mods)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (s *server) getCycle(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cur, err := s.fund.CurrentCycle(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := map[string]interface{}{"current": cur}
	if q, ok, err := s.fund.QueuedCycle(id); err == nil && ok {
		resp["queued"] = q
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) listCycles(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.fund.Project(id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.fund.Cycles(id))
}

func (s *server) getMods(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ms, err := s.fund.ActiveMods(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (s *server) pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	c, id, err := request(r, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	currency, err := parseCurrency(req.Currency)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.fund.Pay(c, id, req.Amount, currency, req.Beneficiary, req.PreferUnstaked, req.Memo)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) print(w http.ResponseWriter, r *http.Request) {
	c, id, err := request(r, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.fund.PrintReservedTickets(c, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) getReserved(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	printable, err := s.fund.ReservedPrintable(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"printable": printable,
		"tracking":  s.fund.Tracking(id),
	})
}

func (s *server) tap(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	c, id, err := request(r, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.fund.Tap(c, id, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) getFunds(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	funds, err := s.fund.Funds(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, funds)
}

func (s *server) getClaimable(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	count, ok := sdkmath.NewIntFromString(r.URL.Query().Get("count"))
	if !ok {
		s.fail(w, r, fmt.Errorf("count must be an integer: %w", model.ErrInvalidParameters))
		return
	}
	claim, err := s.fund.Claimable(id, count)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]sdkmath.Int{"claimable": claim})
}

func (s *server) redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	c, id, err := request(r, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	claim, err := s.fund.Redeem(c, id, req.Count, req.MinReturned, req.PreferUnstaked)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]sdkmath.Int{"claim": claim})
}

func (s *server) listHolders(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"supply":  s.fund.TotalSupplyOf(id),
		"holders": s.fund.Holders(id),
	})
}

func (s *server) getHolder(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	holder := model.Address(mux.Vars(r)["address"])
	writeJSON(w, http.StatusOK, s.fund.BalanceOf(id, holder))
}

func (s *server) stake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	c, id, err := request(r, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.fund.Stake(c, id, req.Amount); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.fund.BalanceOf(id, c))
}

func (s *server) unstake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	c, id, err := request(r, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.fund.Unstake(c, id, req.Amount); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.fund.BalanceOf(id, c))
}

func (s *server) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	c, id, err := request(r, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.fund.Transfer(c, id, req.To, req.Amount); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.fund.BalanceOf(id, c))
}

func (s *server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	c, id, err := request(r, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.fund.TransferOwnership(c, id, req.Owner); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.fund.Project(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) setOperator(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	c, id, err := request(r, &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.fund.SetOperator(c, id, req.Operator, req.Enabled); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operators": s.fund.Authority().Operators(id),
	})
}

func (s *server) listEvents(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			s.fail(w, r, fmt.Errorf("limit must be a positive integer: %w", model.ErrInvalidParameters))
			return
		}
	}
	events, err := s.fund.Events(id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
