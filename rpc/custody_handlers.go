package rpc

import (
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"jobescrow/crypto"
	"jobescrow/native/custody"
)

type custodyCreateParams struct {
	Realtor      string `json:"realtor"`
	Contractor   string `json:"contractor,omitempty"`
	Amount       string `json:"amount"`
	WorkLocation string `json:"workLocation,omitempty"`
	Description  string `json:"description,omitempty"`
}

type custodyIDParams struct {
	ID string `json:"id"`
}

type custodyActorParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type custodyFundParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
	Value  string `json:"value"`
}

type custodyBalanceParams struct {
	Address string `json:"address"`
}

type custodyCreateResult struct {
	ID string `json:"id"`
}

type votesJSON struct {
	RealtorAgreesPay       bool `json:"realtorAgreesPay"`
	ContractorAgreesPay    bool `json:"contractorAgreesPay"`
	RealtorAgreesRefund    bool `json:"realtorAgreesRefund"`
	ContractorAgreesRefund bool `json:"contractorAgreesRefund"`
}

type custodyJSON struct {
	ID              string    `json:"id"`
	Variant         string    `json:"variant"`
	Realtor         string    `json:"realtor"`
	Contractor      *string   `json:"contractor,omitempty"`
	Amount          string    `json:"amount"`
	Balance         string    `json:"balance"`
	Status          string    `json:"status"`
	CreatedAt       int64     `json:"createdAt"`
	DisputeOpenedAt *int64    `json:"disputeOpenedAt,omitempty"`
	Votes           votesJSON `json:"votes"`
	WorkLocation    string    `json:"workLocation,omitempty"`
	Description     string    `json:"description,omitempty"`
}

func custodyToJSON(inst *custody.Instance) custodyJSON {
	out := custodyJSON{
		ID:        hex.EncodeToString(inst.ID[:]),
		Variant:   inst.Variant.String(),
		Realtor:   crypto.MustNewAddress(crypto.EscrowPrefix, inst.Realtor[:]).String(),
		Amount:    inst.Amount.String(),
		Balance:   inst.Balance.String(),
		Status:    inst.Status.String(),
		CreatedAt: inst.CreatedAt,
		Votes: votesJSON{
			RealtorAgreesPay:       inst.Votes.RealtorAgreesPay,
			ContractorAgreesPay:    inst.Votes.ContractorAgreesPay,
			RealtorAgreesRefund:    inst.Votes.RealtorAgreesRefund,
			ContractorAgreesRefund: inst.Votes.ContractorAgreesRefund,
		},
		WorkLocation: inst.Meta.WorkLocation,
		Description:  inst.Meta.Description,
	}
	if inst.ContractorBound() {
		contractor := crypto.MustNewAddress(crypto.EscrowPrefix, inst.Contractor[:]).String()
		out.Contractor = &contractor
	}
	if inst.DisputeOpenedAt != 0 {
		openedAt := inst.DisputeOpenedAt
		out.DisputeOpenedAt = &openedAt
	}
	return out
}

func parseAddressParam(value, field string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, errors.New(field + ": " + err.Error())
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseAmountParam(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, errors.New(field + ": amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, errors.New(field + ": invalid integer amount")
	}
	return amount, nil
}

func parseIDParam(value string) ([32]byte, error) {
	var id [32]byte
	raw, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(value, "0x")))
	if err != nil {
		return id, errors.New("id: invalid hex identifier")
	}
	if len(raw) != 32 {
		return id, errors.New("id: identifier must be 32 bytes")
	}
	copy(id[:], raw)
	return id, nil
}

// custodyErrorCode maps an engine rejection onto the RPC error space.
func custodyErrorCode(err error) (int, int, string) {
	switch {
	case errors.Is(err, custody.ErrNotFound):
		return http.StatusNotFound, codeCustodyNotFound, "not_found"
	case errors.Is(err, custody.ErrUnauthorized):
		return http.StatusForbidden, codeCustodyForbidden, "forbidden"
	case errors.Is(err, custody.ErrWrongValue):
		return http.StatusBadRequest, codeCustodyValue, "wrong_value"
	case errors.Is(err, custody.ErrTimeoutNotReached):
		return http.StatusConflict, codeCustodyTimeout, "timeout_not_reached"
	case errors.Is(err, custody.ErrInvalidState):
		return http.StatusConflict, codeCustodyConflict, "conflict"
	default:
		return http.StatusInternalServerError, codeServerError, "internal_error"
	}
}

func writeCustodyError(w http.ResponseWriter, id any, err error) {
	status, code, message := custodyErrorCode(err)
	writeError(w, status, id, code, message, err.Error())
}

func (s *Server) handleCustodyCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.admitMutation(w, r, req) {
		return
	}
	var params custodyCreateParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	realtor, err := parseAddressParam(params.Realtor, "realtor")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	contractor, err := parseAddressParam(params.Contractor, "contractor")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmountParam(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	meta := custody.Metadata{WorkLocation: params.WorkLocation, Description: params.Description}
	inst, err := s.node.CreateFixedPair(realtor, contractor, amount, meta)
	if err != nil {
		writeCustodyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, custodyCreateResult{ID: hex.EncodeToString(inst.ID[:])})
}

func (s *Server) handleCustodyCreateOpenJob(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.admitMutation(w, r, req) {
		return
	}
	var params custodyCreateParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if strings.TrimSpace(params.Contractor) != "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "open job must not name a contractor")
		return
	}
	realtor, err := parseAddressParam(params.Realtor, "realtor")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmountParam(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	meta := custody.Metadata{WorkLocation: params.WorkLocation, Description: params.Description}
	inst, err := s.node.CreateOpenJob(realtor, amount, meta)
	if err != nil {
		writeCustodyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, custodyCreateResult{ID: hex.EncodeToString(inst.ID[:])})
}

// handleCustodyActor covers every mutation that takes (id, caller) and no
// value: accept, approve, withdraw, refund, dispute entry, votes and the
// timeout escape.
func (s *Server) handleCustodyActor(w http.ResponseWriter, r *http.Request, req *RPCRequest, name string, op func([32]byte, [20]byte) error) {
	if !s.admitMutation(w, r, req) {
		return
	}
	var params custodyActorParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseIDParam(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := op(id, caller); err != nil {
		writeCustodyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "ok", "operation": name})
}

func (s *Server) handleCustodyFund(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.admitMutation(w, r, req) {
		return
	}
	var params custodyFundParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseIDParam(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	value, err := parseAmountParam(params.Value, "value")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.Fund(id, caller, value); err != nil {
		writeCustodyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "ok", "operation": "fund"})
}

func (s *Server) handleCustodyGet(w http.ResponseWriter, req *RPCRequest) {
	var params custodyIDParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseIDParam(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	inst, err := s.node.GetInstance(id)
	if err != nil {
		writeCustodyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, custodyToJSON(inst))
}

func (s *Server) handleCustodyList(w http.ResponseWriter, req *RPCRequest) {
	ids, err := s.node.ListInstances()
	if err != nil {
		writeCustodyError(w, req.ID, err)
		return
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = hex.EncodeToString(id[:])
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleCustodyBalance(w http.ResponseWriter, req *RPCRequest) {
	var params custodyBalanceParams
	if err := unmarshalSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddressParam(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	acc, err := s.node.GetAccount(addr)
	if err != nil {
		writeCustodyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": acc.Balance.String()})
}
