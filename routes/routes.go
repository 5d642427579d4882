package routes

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"skillswap_server/controllers"
	"skillswap_server/services"
)

// Services bundles what the HTTP layer needs.
type Services struct {
	Members      *services.MemberService
	Verification *services.VerificationService
	Matches      *services.MatchService
	Chat         *services.ChatService
	Handshake    *services.HandshakeService
	Evidence     *services.EvidenceService
	Ratings      *services.RatingService
	Timeout      time.Duration
	Log          *zap.Logger
}

// RegisterRoutes sets up the routes for the application and returns the /api subrouter.
func RegisterRoutes(r *mux.Router, svc Services) *mux.Router {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(controllers.RequireActor)

	RegisterMemberRoutes(api, svc)
	RegisterClaimRoutes(api, svc)
	RegisterConversationRoutes(api, svc)
	if svc.Evidence != nil {
		RegisterEvidenceRoutes(api, svc)
	}
	if svc.Ratings != nil {
		RegisterRatingRoutes(api, svc)
	}
	return api
}

// RegisterMemberRoutes sets up routes under /api/members
func RegisterMemberRoutes(api *mux.Router, svc Services) {
	controller := controllers.NewMemberController(svc.Members, svc.Verification, svc.Matches, svc.Timeout, svc.Log)

	memberRouter := api.PathPrefix("/members").Subrouter()
	memberRouter.HandleFunc("", controller.Register).Methods("POST")
	memberRouter.HandleFunc("/{memberId}", controller.Get).Methods("GET")
	memberRouter.HandleFunc("/{memberId}", controller.Update).Methods("PATCH")
	memberRouter.HandleFunc("/{memberId}", controller.Delete).Methods("DELETE")
	memberRouter.HandleFunc("/{memberId}/approval", controller.SetApproval).Methods("POST")
	memberRouter.HandleFunc("/{memberId}/matches", controller.ListMatches).Methods("GET")
}

// RegisterClaimRoutes sets up routes under /api/claims
func RegisterClaimRoutes(api *mux.Router, svc Services) {
	controller := controllers.NewClaimController(svc.Verification, svc.Timeout, svc.Log)

	claimRouter := api.PathPrefix("/claims").Subrouter()
	claimRouter.HandleFunc("/pending", controller.Pending).Methods("GET")
	claimRouter.HandleFunc("/{memberId}/{skill}", controller.Submit).Methods("POST")
	claimRouter.HandleFunc("/{memberId}/{skill}/approve", controller.Approve).Methods("POST")
	claimRouter.HandleFunc("/{memberId}/{skill}/reject", controller.Reject).Methods("POST")
	claimRouter.HandleFunc("/{memberId}/{skill}/undo", controller.Undo).Methods("POST")
	claimRouter.HandleFunc("/{memberId}/{skill}/history", controller.History).Methods("GET")
}

// RegisterConversationRoutes sets up routes under /api/conversations
func RegisterConversationRoutes(api *mux.Router, svc Services) {
	controller := controllers.NewConversationController(svc.Chat, svc.Handshake, svc.Timeout, svc.Log)

	convRouter := api.PathPrefix("/conversations").Subrouter()
	convRouter.HandleFunc("", controller.Connect).Methods("POST")
	convRouter.HandleFunc("", controller.List).Methods("GET")
	convRouter.HandleFunc("/{conversationId}/messages", controller.Messages).Methods("GET")
	convRouter.HandleFunc("/{conversationId}/messages", controller.SendMessage).Methods("POST")
	convRouter.HandleFunc("/{conversationId}/match-request", controller.MatchRequest).Methods("POST")
	convRouter.HandleFunc("/{conversationId}/match-response", controller.MatchResponse).Methods("POST")
}

// RegisterEvidenceRoutes sets up routes under /api/evidence
func RegisterEvidenceRoutes(api *mux.Router, svc Services) {
	controller := controllers.NewEvidenceController(svc.Evidence, svc.Timeout, svc.Log)

	evidenceRouter := api.PathPrefix("/evidence").Subrouter()
	evidenceRouter.HandleFunc("/upload-url", controller.UploadURL).Methods("POST")
	evidenceRouter.HandleFunc("/read-url", controller.ReadURL).Methods("POST")
}

// RegisterRatingRoutes sets up the rating routes under /api/members
func RegisterRatingRoutes(api *mux.Router, svc Services) {
	controller := controllers.NewRatingController(svc.Ratings, svc.Timeout, svc.Log)

	api.HandleFunc("/members/{memberId}/ratings", controller.Rate).Methods("POST")
	api.HandleFunc("/members/{memberId}/ratings", controller.Summary).Methods("GET")
}
