package router

import (
	"net/http"

	"github.com/stablestation/backend/internal/actions"
	"github.com/stablestation/backend/internal/auth"
	"github.com/stablestation/backend/internal/kits"
	"github.com/stablestation/backend/internal/payments"
)

// New returns an http.Handler that serves the API under /api/v1.
// authMW wraps every route that requires an authenticated account; the
// payment webhook authenticates itself via its HMAC signature instead.
func New(
	authHandler *auth.Handler,
	kitsHandler *kits.Handler,
	actionsHandler *actions.Handler,
	paymentsHandler *payments.Handler,
	authMW func(http.Handler) http.Handler,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)

	mux.Handle("POST "+base+"/starter-kits", authMW(http.HandlerFunc(kitsHandler.Create)))
	mux.Handle("GET "+base+"/starter-kits/available", authMW(http.HandlerFunc(kitsHandler.ListAvailable)))
	mux.Handle("POST "+base+"/starter-kits/available", authMW(http.HandlerFunc(kitsHandler.ClaimAvailable)))
	mux.Handle("POST "+base+"/starter-kits/{id}/claim", authMW(http.HandlerFunc(kitsHandler.Claim)))
	mux.Handle("POST "+base+"/starter-kits/{id}/give", authMW(http.HandlerFunc(kitsHandler.Give)))
	mux.Handle("POST "+base+"/starter-kits/request", authMW(http.HandlerFunc(kitsHandler.RequestOwn)))
	mux.Handle("GET "+base+"/starter-kits/created", authMW(http.HandlerFunc(kitsHandler.ListCreated)))
	mux.Handle("GET "+base+"/starter-kits/claimed", authMW(http.HandlerFunc(kitsHandler.ListClaimed)))

	mux.Handle("GET "+base+"/actions", authMW(http.HandlerFunc(actionsHandler.List)))
	mux.Handle("POST "+base+"/actions/{actionID}/start", authMW(http.HandlerFunc(actionsHandler.Start)))
	mux.Handle("POST "+base+"/actions/{actionID}/complete", authMW(http.HandlerFunc(actionsHandler.Complete)))

	mux.HandleFunc("POST "+base+"/webhooks/charges", paymentsHandler.HandleChargeWebhook)

	return mux
}
