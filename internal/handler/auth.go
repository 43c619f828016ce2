package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/Musicofilo701/splicy-api/internal/auth"
	"github.com/Musicofilo701/splicy-api/internal/database"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	CreateRestaurant(ctx context.Context, arg database.CreateRestaurantParams) (database.Restaurant, error)
	GetRestaurantByEmail(ctx context.Context, email string) (database.Restaurant, error)
	UpdateRestaurantSession(ctx context.Context, arg database.UpdateRestaurantSessionParams) (database.Restaurant, error)
}

// AuthHandler handles restaurant registration and login.
type AuthHandler struct {
	store      AuthStore
	jwtSecret  string
	sessionTTL time.Duration
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store AuthStore, jwtSecret string, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret, sessionTTL: sessionTTL}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
}

// --- Request / Response types ---

type registerRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	PosSystem string `json:"pos_system"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type restaurantResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PosSystem string    `json:"pos_system,omitempty"`
	APIKey    string    `json:"api_key"`
}

type sessionResponse struct {
	Restaurant     restaurantResponse `json:"restaurant"`
	SessionToken   string             `json:"session_token"`
	SessionExpires time.Time          `json:"session_expires"`
}

func dbRestaurantToResponse(r database.Restaurant) restaurantResponse {
	return restaurantResponse{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		PosSystem: r.PosSystem.String,
		APIKey:    r.APIKey,
	}
}

// --- Handlers ---

// Register handles POST /auth/register: creates the restaurant account and
// issues its API key and first session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name, email and password are required"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("hash password")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	apiKey, err := auth.NewAPIKey()
	if err != nil {
		log.Error().Err(err).Msg("generate api key")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	posSystem := pgtype.Text{}
	if req.PosSystem != "" {
		posSystem = pgtype.Text{String: req.PosSystem, Valid: true}
	}

	restaurant, err := h.store.CreateRestaurant(r.Context(), database.CreateRestaurantParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashed),
		PosSystem:    posSystem,
		APIKey:       apiKey,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		log.Error().Err(err).Msg("create restaurant")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respondWithSession(w, r, restaurant, http.StatusCreated)
}

// Login handles POST /auth/login. Issuing a fresh session token rotates the
// stored one, revoking any earlier session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	restaurant, err := h.store.GetRestaurantByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Msg("get restaurant by email")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(restaurant.PasswordHash), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	h.respondWithSession(w, r, restaurant, http.StatusOK)
}

// --- Helpers ---

func (h *AuthHandler) respondWithSession(w http.ResponseWriter, r *http.Request, restaurant database.Restaurant, status int) {
	token, expires, err := auth.GenerateSessionToken(h.jwtSecret, restaurant.ID, restaurant.Name, h.sessionTTL)
	if err != nil {
		log.Error().Err(err).Msg("generate session token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	restaurant, err = h.store.UpdateRestaurantSession(r.Context(), database.UpdateRestaurantSessionParams{
		ID:             restaurant.ID,
		SessionToken:   pgtype.Text{String: token, Valid: true},
		SessionExpires: pgtype.Timestamptz{Time: expires, Valid: true},
	})
	if err != nil {
		log.Error().Err(err).Msg("store session token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, status, sessionResponse{
		Restaurant:     dbRestaurantToResponse(restaurant),
		SessionToken:   token,
		SessionExpires: expires,
	})
}
