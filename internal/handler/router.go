package handler

import (
	"net/http"

	"inboxpilot/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Handlers groups everything the router serves
type Handlers struct {
	Enrollments *EnrollmentHandler
	Previews    *PreviewHandler
	Emails      *EmailHandler
	Activity    *ActivityHandler
	Health      *HealthHandler
	Gatherer    prometheus.Gatherer
}

// NewRouter wires the HTTP routes. /health and /metrics are outside the
// workspace scope; everything else requires the tenancy headers.
func NewRouter(h Handlers, log logrus.FieldLogger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recovery(log), middleware.RequestLogger(log))

	router.HandleFunc("/health", h.Health.HandleHealth).Methods(http.MethodGet)
	if h.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := router.NewRoute().Subrouter()
	api.Use(middleware.Tenancy)

	api.HandleFunc("/sequences/{id}/enroll", h.Enrollments.Enroll).Methods(http.MethodPost)
	api.HandleFunc("/sequences/{id}/enrollments", h.Enrollments.List).Methods(http.MethodGet)
	api.HandleFunc("/sequences/{id}/enrollments/{enrollment_id}/stop", h.Enrollments.Stop).Methods(http.MethodPost)
	api.HandleFunc("/sequences/{id}/enrollments/{enrollment_id}/emails", h.Enrollments.ListEmails).Methods(http.MethodGet)
	api.HandleFunc("/sequences/{id}/steps/{step_order}/preview", h.Previews.Preview).Methods(http.MethodPost)
	api.HandleFunc("/emails/send-test", h.Emails.SendTest).Methods(http.MethodPost)
	api.HandleFunc("/activity", h.Activity.List).Methods(http.MethodGet)

	return router
}
