package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/logger"
	"github.com/devkekops/weekender/internal/app/settlement"
)

type registerRequest struct {
	Referrer string `json:"referrer"`
}

type purchaseRequest struct {
	ProductID string `json:"product_id"`
}

type depositRequest struct {
	Amount json.Number `json:"amount"`
}

type secretRequest struct {
	Secret  string `json:"secret"`
	Confirm string `json:"confirm"`
}

type withdrawRequest struct {
	Amount  json.Number `json:"amount"`
	Secret  string      `json:"secret"`
	Confirm string      `json:"confirm"`
}

type correctPayoutRequest struct {
	Destination entity.PayoutDestination `json:"destination"`
	SyncAccount bool                     `json:"sync_account"`
}

type balanceResponse struct {
	settlement.Eligibility
	WithdrawableTotal decimal.Decimal `json:"withdrawable"`
}

type secretStepResponse struct {
	Step settlement.SecretStep `json:"step"`
}

type bonusResponse struct {
	AccountID   string          `json:"account_id"`
	LockedBonus decimal.Decimal `json:"locked_bonus"`
}

func (bh *BaseHandler) register() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body registerRequest
		if err := decodeJSON(req, &body); err != nil {
			invalidJSON(w, err)
			return
		}

		account, err := bh.engine.Register(req.Context(), body.Referrer)
		if err != nil {
			writeError(w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    createSession(account.ID, bh.secretKey),
			Path:     cookiePath,
			HttpOnly: true,
		})
		writeJSON(w, http.StatusOK, account)
	}
}

func (bh *BaseHandler) getAccount() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		account, err := bh.engine.Account(req.Context(), accountID(req))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func (bh *BaseHandler) getTeamIncome() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		team, err := bh.engine.TeamIncome(req.Context(), accountID(req))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, team)
	}
}

func (bh *BaseHandler) getNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		notifications, err := bh.engine.Notifications(req.Context(), accountID(req))
		if err != nil {
			writeError(w, err)
			return
		}
		if len(notifications) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, notifications)
	}
}

func (bh *BaseHandler) purchase() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body purchaseRequest
		if err := decodeJSON(req, &body); err != nil {
			invalidJSON(w, err)
			return
		}

		product, ok := bh.catalogue[body.ProductID]
		if !ok {
			writeError(w, &settlement.ValidationError{Field: "product_id", Reason: "unknown product"})
			return
		}

		order, err := bh.engine.Purchase(req.Context(), accountID(req), product)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func (bh *BaseHandler) getOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		orders, err := bh.engine.Orders(req.Context(), accountID(req))
		if err != nil {
			writeError(w, err)
			return
		}
		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func (bh *BaseHandler) requestDeposit() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body depositRequest
		if err := decodeJSON(req, &body); err != nil {
			invalidJSON(w, err)
			return
		}

		deposit, err := bh.engine.RequestDeposit(req.Context(), accountID(req), body.Amount.String())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, deposit)
	}
}

func (bh *BaseHandler) getPayout() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		payout, err := bh.engine.PayoutAccount(req.Context(), accountID(req))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payout)
	}
}

func (bh *BaseHandler) linkPayout() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var dest entity.PayoutDestination
		if err := decodeJSON(req, &dest); err != nil {
			invalidJSON(w, err)
			return
		}

		payout, err := bh.engine.LinkPayoutAccount(req.Context(), accountID(req), dest)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payout)
	}
}

func (bh *BaseHandler) secretStep() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		step, err := bh.engine.SecretStep(req.Context(), accountID(req))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, secretStepResponse{Step: step})
	}
}

func (bh *BaseHandler) setSecret() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body secretRequest
		if err := decodeJSON(req, &body); err != nil {
			invalidJSON(w, err)
			return
		}

		if err := bh.engine.SetSecret(req.Context(), accountID(req), body.Secret, body.Confirm); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, secretStepResponse{Step: settlement.SecretEnter})
	}
}

func (bh *BaseHandler) getBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		eligibility, err := bh.engine.Eligibility(req.Context(), accountID(req))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, balanceResponse{
			Eligibility:       eligibility,
			WithdrawableTotal: eligibility.Withdrawable(),
		})
	}
}

func (bh *BaseHandler) withdraw() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body withdrawRequest
		if err := decodeJSON(req, &body); err != nil {
			invalidJSON(w, err)
			return
		}

		request, err := bh.engine.Withdraw(req.Context(), settlement.WithdrawInput{
			AccountID: accountID(req),
			Amount:    body.Amount.String(),
			Secret:    body.Secret,
			Confirm:   body.Confirm,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	}
}

func (bh *BaseHandler) withdrawals() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		withdrawals, err := bh.engine.Withdrawals(req.Context(), accountID(req))
		if err != nil {
			writeError(w, err)
			return
		}
		if len(withdrawals) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, withdrawals)
	}
}

func (bh *BaseHandler) verifyDeposit() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		deposit, err := bh.engine.VerifyDeposit(req.Context(), chi.URLParam(req, "depositID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, deposit)
	}
}

func (bh *BaseHandler) verifyWithdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		request, err := bh.engine.Verify(req.Context(), chi.URLParam(req, "requestID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	}
}

func (bh *BaseHandler) rejectWithdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		request, err := bh.engine.Reject(req.Context(), chi.URLParam(req, "requestID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	}
}

func (bh *BaseHandler) correctPayout() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body correctPayoutRequest
		if err := decodeJSON(req, &body); err != nil {
			invalidJSON(w, err)
			return
		}

		requestID := chi.URLParam(req, "requestID")
		request, err := bh.engine.CorrectPayout(req.Context(), requestID, body.Destination, body.SyncAccount)
		if err != nil {
			writeError(w, err)
			return
		}
		logger.Logger.Info().Str("request", requestID).Bool("sync_account", body.SyncAccount).Msg("payout corrected by operator")
		writeJSON(w, http.StatusOK, request)
	}
}

func (bh *BaseHandler) audit() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		report, err := bh.engine.Audit(req.Context(), chi.URLParam(req, "accountID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (bh *BaseHandler) accountTeamIncome() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		team, err := bh.engine.TeamIncome(req.Context(), chi.URLParam(req, "accountID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, team)
	}
}

func (bh *BaseHandler) grantBonus() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "accountID")
		bonus, err := bh.engine.GrantLockedBonus(req.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bonusResponse{AccountID: id, LockedBonus: bonus})
	}
}
