package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "anavi-monitor"

var errInvalidCredentials = errors.New("invalid credentials")

type claims struct {
	jwt.StandardClaims
}

func (s *server) checkCredentials(username string, password string) error {
	validUser := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !validUser || err != nil {
		return errInvalidCredentials
	}

	return nil
}

func (s *server) generateToken(username string) (string, int64, error) {
	now := s.timeFunc()
	expiresAt := now.Add(s.tokenLifetime).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   username,
			ExpiresAt: expiresAt,
			IssuedAt:  now.Unix(),
			Issuer:    tokenIssuer,
		},
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, expiresAt, nil
}

func (s *server) validateToken(tokenString string) error {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token")
	}

	return nil
}

// authJWT checks the bearer token. Browsers can not set headers on websocket requests, so
// allowQueryToken also accepts the token from the token query parameter.
func (s *server) authJWT(allowQueryToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else if allowQueryToken {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		err := s.validateToken(tokenString)
		if err != nil {
			log.Debug("rejected token", "remote", c.ClientIP(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}

func (s *server) handleLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	err := s.checkCredentials(req.Username, req.Password)
	if err != nil {
		log.Info("failed login attempt", "username", req.Username, "remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	token, expiresAt, err := s.generateToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": expiresAt})
}
