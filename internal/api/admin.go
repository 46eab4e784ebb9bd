package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminTokenHeader carries the admin token on /admin requests.
const AdminTokenHeader = "X-Admin-Token"

// HashToken creates a bcrypt hash of an admin token for configuration.
//
// Precondition: token must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckToken compares a plaintext token against a bcrypt hash.
//
// Postcondition: Returns true if token matches the hash.
func CheckToken(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if s.deps.AdminTokenHash == "" {
		return fiber.ErrNotFound
	}
	token := c.Get(AdminTokenHeader)
	if token == "" || !CheckToken(token, s.deps.AdminTokenHash) {
		s.log.Warn("admin token rejected", zap.String("ip", c.IP()), zap.String("path", c.Path()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid admin token"})
	}
	return c.Next()
}
