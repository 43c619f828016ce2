package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/Musicofilo701/splicy-api/internal/auth"
	"github.com/Musicofilo701/splicy-api/internal/database"
)

type contextKey string

const restaurantKey contextKey = "restaurant"

// RestaurantStore defines the database methods the access gate needs.
// Satisfied by *database.Queries.
type RestaurantStore interface {
	GetRestaurantByAPIKey(ctx context.Context, apiKey string) (database.Restaurant, error)
	GetRestaurantByID(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
}

// Authenticate guards management endpoints. It accepts either an X-API-Key
// header (POS integrations) or an Authorization bearer session token
// (dashboard logins) and puts the resolved restaurant in the request context.
// Customer-facing payment submission is deliberately not behind this gate.
func Authenticate(store RestaurantStore, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				restaurant, err := store.GetRestaurantByAPIKey(r.Context(), apiKey)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
						return
					}
					log.Error().Err(err).Msg("lookup restaurant by api key")
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
					return
				}
				next.ServeHTTP(w, r.WithContext(withRestaurant(r.Context(), restaurant)))
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authentication credentials"})
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
				return
			}
			tokenStr := parts[1]

			claims, err := auth.ValidateToken(jwtSecret, tokenStr)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid session token"})
				return
			}

			restaurant, err := store.GetRestaurantByID(r.Context(), claims.RestaurantID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid session token"})
					return
				}
				log.Error().Err(err).Msg("lookup restaurant by id")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}

			// The stored token is the only valid session; rotation on login
			// revokes everything issued before.
			if !restaurant.SessionToken.Valid || restaurant.SessionToken.String != tokenStr {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session revoked"})
				return
			}
			if !restaurant.SessionExpires.Valid || restaurant.SessionExpires.Time.Before(time.Now()) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session expired"})
				return
			}

			next.ServeHTTP(w, r.WithContext(withRestaurant(r.Context(), restaurant)))
		})
	}
}

func withRestaurant(ctx context.Context, r database.Restaurant) context.Context {
	return context.WithValue(ctx, restaurantKey, &r)
}

// RestaurantFromContext returns the authenticated restaurant, or nil.
func RestaurantFromContext(ctx context.Context) *database.Restaurant {
	restaurant, _ := ctx.Value(restaurantKey).(*database.Restaurant)
	return restaurant
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
