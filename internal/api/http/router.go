package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	platformhealth "github.com/gobigtech/status-service/platform/health/http"
)

// NewRouter создаёт и настраивает HTTP роутер Status Service.
// readiness - функция для проверки готовности сервиса; при false
// health endpoint возвращает 503 Service Unavailable.
func NewRouter(handler *Handler, readiness func() bool) chi.Router {
	router := chi.NewRouter()

	// Фронт ходит напрямую из браузера, поэтому разрешаем всё
	router.Use(corsMiddleware)

	router.Get("/status/{orderID}", handler.GetOrderStatus)
	router.Get("/ws/{orderID}", handler.Subscribe)

	router.Route("/orders", func(r chi.Router) {
		r.Get("/", handler.ListOrders)
		r.Get("/filtered", handler.FilterOrders)
		r.Get("/search", handler.SearchOrders)
		r.Get("/status/{status}", handler.OrdersByStatus)
		r.Get("/product/{productID}", handler.OrdersByProduct)
		r.Get("/{orderID}/events", handler.OrderEvents)
		r.Delete("/{orderID}", handler.DeleteOrder)
		r.Post("/bulk-delete", handler.BulkDeleteOrders)
	})

	router.Get("/statistics", handler.Statistics)
	router.Get("/reports/daily/{date}", handler.DailyReport)

	// Health без middleware-требований
	router.Get("/health", platformhealth.Handler("status", readiness))

	return router
}

// corsMiddleware выставляет разрешающие CORS заголовки
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
