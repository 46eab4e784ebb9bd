package api

import (
	"errors"
	"fmt"
	"math"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/claim"
	"github.com/Unwrenchable/fizz-caps/internal/game/player"
	"github.com/Unwrenchable/fizz-caps/internal/game/raid"
	"github.com/Unwrenchable/fizz-caps/internal/issuer"
	"github.com/Unwrenchable/fizz-caps/internal/observability"
	"github.com/Unwrenchable/fizz-caps/internal/store"
)

type claimResponse struct {
	Success  bool             `json:"success"`
	Caps     int64            `json:"caps"`
	Gear     *player.GearItem `json:"gear"`
	Raid     *raid.Outcome    `json:"raid"`
	HP       int              `json:"hp"`
	Level    int              `json:"lvl"`
	LevelUp  bool             `json:"level_up"`
	Message  string           `json:"message"`
	Receipt  issuer.Receipt   `json:"receipt"`
	Explorer string           `json:"explorer"`
}

func (s *Server) handleClaim(c *fiber.Ctx) error {
	var req claim.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	st, err := s.deps.Claims.Claim(c.UserContext(), req)
	if err != nil {
		return s.claimError(c, req, err)
	}
	return c.JSON(claimResponse{
		Success:  true,
		Caps:     st.Caps,
		Gear:     st.Gear,
		Raid:     st.Raid,
		HP:       st.HP,
		Level:    st.Level,
		LevelUp:  st.LevelUp,
		Message:  st.Message,
		Receipt:  st.Receipt,
		Explorer: claim.ExplorerURL(s.deps.Cluster, st.Receipt.ID),
	})
}

// claimError maps orchestrator errors onto status codes. Server-side
// failures are reported by category only.
func (s *Server) claimError(c *fiber.Ctx, req claim.Request, err error) error {
	var (
		cooldown *claim.OnCooldownError
		level    *claim.LevelTooLowError
	)
	switch {
	case errors.As(err, &cooldown):
		retry := int64(math.Ceil(cooldown.Remaining.Seconds()))
		c.Set(fiber.HeaderRetryAfter, fmt.Sprint(retry))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":               err.Error(),
			"retry_after_seconds": retry,
		})
	case errors.As(err, &level),
		errors.Is(err, claim.ErrInvalidRequest),
		errors.Is(err, claim.ErrSpotNotFound):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, claim.ErrOutcomeUnknown):
		s.log.Error("claim outcome unknown", observability.Wallet(req.Wallet), zap.String("spot", req.Spot), zap.Error(err))
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": claim.ErrOutcomeUnknown.Error()})
	case errors.Is(err, claim.ErrIssuerFailure):
		s.log.Error("claim failed", observability.Wallet(req.Wallet), zap.String("spot", req.Spot), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": claim.ErrIssuerFailure.Error()})
	case errors.Is(err, claim.ErrStoreFailure):
		s.log.Error("claim failed", observability.Wallet(req.Wallet), zap.String("spot", req.Spot), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": claim.ErrStoreFailure.Error()})
	}
	return err
}

type locationView struct {
	Name      string  `json:"n"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Level     int     `json:"lvl"`
	Rarity    string  `json:"rarity,omitempty"`
	Radiation int     `json:"radiation,omitempty"`
	HighRisk  bool    `json:"high_risk"`
}

func (s *Server) handleLocations(c *fiber.Ctx) error {
	all := s.deps.Catalog.All()
	out := make([]locationView, 0, len(all))
	for _, l := range all {
		out = append(out, locationView{
			Name:      l.Name,
			Lat:       l.Lat,
			Lng:       l.Lng,
			Level:     l.RequiredLevel,
			Rarity:    l.Rarity,
			Radiation: l.Radiation,
			HighRisk:  l.HighRisk,
		})
	}
	return c.JSON(out)
}

type playerView struct {
	Wallet string `json:"wallet"`
	player.Record
	// OnChainCaps is the issuer-reported balance, when available.
	OnChainCaps *int64 `json:"onchain_caps,omitempty"`
}

// handlePlayer returns the stored record, or the default record for a
// wallet never seen. Lookups never create records.
func (s *Server) handlePlayer(c *fiber.Ctx) error {
	wallet := c.Params("wallet")
	if !claim.ValidWallet(wallet) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": claim.ErrInvalidRequest.Error()})
	}
	ctx := c.UserContext()

	rec, err := s.deps.Players.Lookup(ctx, wallet)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec = player.NewRecord()
	case err != nil:
		s.log.Error("loading player", observability.Wallet(wallet), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": claim.ErrStoreFailure.Error()})
	}

	view := playerView{Wallet: wallet, Record: rec}
	if s.deps.Balances != nil {
		bal, err := s.deps.Balances.Balance(ctx, wallet)
		if err != nil {
			s.log.Warn("reading ledger balance", observability.Wallet(wallet), zap.Error(err))
		} else {
			view.OnChainCaps = &bal
		}
	}
	return c.JSON(view)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.deps.Health.Ping(c.UserContext()); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleReport(c *fiber.Ctx) error {
	if s.deps.Reports == nil {
		return fiber.ErrNotFound
	}
	report, ok := s.deps.Reports.Last()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no reconciliation has run yet"})
	}
	return c.JSON(report)
}

func (s *Server) handleReconcile(c *fiber.Ctx) error {
	if s.deps.Reports == nil {
		return fiber.ErrNotFound
	}
	report, err := s.deps.Reports.Run(c.UserContext())
	if err != nil {
		s.log.Error("on-demand reconciliation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconciliation failed"})
	}
	return c.JSON(report)
}
