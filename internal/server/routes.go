package server

import (
	"rankwatch/internal/handlers/api"
	"rankwatch/internal/middleware"
)

// Services are the collaborators the HTTP API exposes.
type Services struct {
	Checks    api.CheckService
	Projects  api.ProjectStore
	Keywords  api.KeywordStore
	Contacts  api.ContactStore
	Locations api.LocationResolver
	Ledger    api.Ledger
	AutoTrack api.CycleRunner
	Health    api.Pinger
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(svc Services) {
	auth := middleware.NewTokenAuth(s.Cfg.APIToken)
	if !auth.Enabled() {
		s.log.Warn("API_TOKEN is not set, /api routes are unauthenticated")
	}

	checkHandler := api.NewCheckHandler(svc.Checks)
	projectHandler := api.NewProjectHandler(svc.Projects, svc.Locations)
	keywordHandler := api.NewKeywordHandler(svc.Keywords)
	balanceHandler := api.NewBalanceHandler(svc.Ledger, svc.Contacts)
	autoTrackHandler := api.NewAutoTrackHandler(svc.AutoTrack)
	healthHandler := api.NewHealthHandler(svc.Health)

	s.App.Get("/healthz", healthHandler.Check)

	v1 := s.App.Group("/api/v1", auth.RequireToken)

	// Checks
	v1.Post("/checks", checkHandler.Request)
	v1.Post("/checks/sync", checkHandler.SyncPending)

	// Projects
	v1.Post("/projects", projectHandler.Create)
	v1.Post("/projects/:id/keywords", projectHandler.AddKeywords)

	// Keywords
	v1.Get("/keywords/:id", keywordHandler.Get)
	v1.Get("/keywords/:id/positions", keywordHandler.Positions)
	v1.Put("/keywords/:id/frequency", keywordHandler.SetFrequency)
	v1.Post("/keywords/:id/sync", checkHandler.SyncKeyword)
	v1.Post("/keywords/:id/live", checkHandler.LiveCheck)
	v1.Post("/keywords/:id/volume", checkHandler.Volume)

	// Balances
	v1.Get("/users/:id/balance", balanceHandler.Get)
	v1.Get("/users/:id/transactions", balanceHandler.Transactions)
	v1.Post("/users/:id/credits", balanceHandler.Credit)
	v1.Put("/users/:id/notify-email", balanceHandler.SetNotifyEmail)

	// Auto-tracking
	v1.Post("/autotrack/run", autoTrackHandler.Run)
}
