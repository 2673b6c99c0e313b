package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AppClaims defines our custom JWT claims structure. The subject claim
// carries the user id; nothing else is trusted from the token body.
type AppClaims struct {
	jwt.RegisteredClaims
}

// bearerToken extracts the credential from the Authorization header or,
// for browser WebSocket clients that cannot set headers, from the
// "token" query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// NewAuthMiddleware authenticates the request before any upgrade or
// room traffic happens. A missing credential and an invalid one are
// rejected with distinct messages so clients can tell them apart.
func NewAuthMiddleware(logger *slog.Logger, jwtSecret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			// couldn't extract metadata from request so something went wrong with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString := bearerToken(r)
			if tokenString == "" {
				logger.Warn("JWT token missing in request", "ip", reqMeta.IP)
				http.Error(w, "Missing token", http.StatusUnauthorized)
				return
			}

			// Parse and validate the JWT token with HMAC signing
			token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})

			// Reject token if invalid
			if err != nil || !token.Valid {
				logger.Warn("Invalid JWT token presented", "ip", reqMeta.IP, slog.Any("error", err))
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			// Extract claims and validate time-based fields
			if claims, ok := token.Claims.(*AppClaims); ok {
				if claims.Subject == "" {
					logger.Warn("Valid token missing 'sub' claim", "ip", reqMeta.IP)
					http.Error(w, "Invalid token", http.StatusUnauthorized)
					return
				}

				reqMeta.UserID = claims.Subject
				next.ServeHTTP(w, r)
				return
			}

			logger.Error("Failed to parse custom JWT claims",
				slog.Any("ip", reqMeta.IP),
			)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
		})
	}
}
