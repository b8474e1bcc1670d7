package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devkekops/weekender/internal/app/config"
	"github.com/devkekops/weekender/internal/app/settlement"
)

type BaseHandler struct {
	*chi.Mux
	secretKey   string
	operatorKey string
	engine      *settlement.Engine
	catalogue   config.Catalogue
}

func NewBaseHandler(engine *settlement.Engine, catalogue config.Catalogue, secretKey, operatorKey string) *BaseHandler {
	bh := &BaseHandler{
		Mux:         chi.NewMux(),
		secretKey:   secretKey,
		operatorKey: operatorKey,
		engine:      engine,
		catalogue:   catalogue,
	}

	bh.Use(middleware.RequestID)
	bh.Use(middleware.RealIP)
	bh.Use(requestLog)
	bh.Use(middleware.Recoverer)

	bh.Use(middleware.Compress(5))
	bh.Use(gzipHandle)

	bh.Handle("/metrics", promhttp.Handler())

	bh.Route("/api/user", func(r chi.Router) {
		r.Post("/register", bh.register())

		r.Group(func(r chi.Router) {
			r.Use(authHandle(bh.secretKey))
			r.Get("/account", bh.getAccount())
			r.Get("/team", bh.getTeamIncome())
			r.Get("/notifications", bh.getNotifications())

			r.Post("/orders", bh.purchase())
			r.Get("/orders", bh.getOrders())
			r.Post("/deposits", bh.requestDeposit())

			r.Get("/payout", bh.getPayout())
			r.Put("/payout", bh.linkPayout())

			r.Get("/secret", bh.secretStep())
			r.Post("/secret", bh.setSecret())

			r.Route("/balance", func(r chi.Router) {
				r.Get("/", bh.getBalance())
				r.Post("/withdraw", bh.withdraw())
				r.Get("/withdrawals", bh.withdrawals())
			})
		})
	})

	bh.Route("/api/admin", func(r chi.Router) {
		r.Use(operatorHandle(bh.operatorKey))
		r.Post("/deposits/{depositID}/verify", bh.verifyDeposit())

		r.Route("/withdrawals/{requestID}", func(r chi.Router) {
			r.Post("/verify", bh.verifyWithdrawal())
			r.Post("/reject", bh.rejectWithdrawal())
			r.Put("/payout", bh.correctPayout())
		})

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/audit", bh.audit())
			r.Get("/team", bh.accountTeamIncome())
			r.Post("/bonus", bh.grantBonus())
		})
	})

	return bh
}
