package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/receipt"
	"github.com/noah-isme/toko-pos/internal/register"
	"github.com/noah-isme/toko-pos/internal/sales"
)

const noRecentBillMessage = "No recent bill found. Create a bill from the POS screen first."

// Result pairs a receipt with its rendered view.
type Result struct {
	Receipt receipt.Receipt `json:"receipt"`
	View    receipt.Display `json:"view"`
}

// Service turns a register session's cart into a receipt.
type Service struct {
	sessions   *register.Manager
	serializer *receipt.Serializer
	slot       receipt.Slot
	events     *events.Bus
	view       receipt.ViewConfig
	logger     zerolog.Logger
}

// Config groups Service dependencies.
type Config struct {
	Sessions   *register.Manager
	Serializer *receipt.Serializer
	Slot       receipt.Slot
	Events     *events.Bus
	View       receipt.ViewConfig
	Logger     zerolog.Logger
}

// NewService constructs a checkout Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Sessions == nil || cfg.Slot == nil {
		return nil, errors.New("checkout requires sessions and a receipt slot")
	}
	if cfg.Serializer == nil {
		cfg.Serializer = receipt.NewSerializer()
	}
	return &Service{
		sessions:   cfg.Sessions,
		serializer: cfg.Serializer,
		slot:       cfg.Slot,
		events:     cfg.Events,
		view:       cfg.View,
		logger:     cfg.Logger,
	}, nil
}

// Checkout snapshots the session's bill, saves it as the latest receipt and
// resets the session for the next sale. On any failure the cart is kept.
func (s *Service) Checkout(ctx context.Context, sessionID string) (Result, error) {
	var rec receipt.Receipt
	err := s.sessions.With(sessionID, func(sess *register.Session) error {
		var err error
		rec, err = s.serializer.Checkout(sess.Cart.Entries(), sess.Bill())
		if err != nil {
			return err
		}
		if err := s.slot.Save(ctx, rec); err != nil {
			return fmt.Errorf("save receipt: %w", err)
		}
		sess.Reset()
		return nil
	})
	if err != nil {
		s.recordFailure(sessionID, err)
		return Result{}, mapError(err)
	}

	obs.IncCheckout("ok")
	total, _ := rec.GrandTotal.Float64()
	obs.ObserveSale(total)
	s.logger.Info().
		Str("session_id", sessionID).
		Str("receipt_id", rec.ID).
		Int("items", rec.ItemsCount()).
		Str("grand_total", rec.GrandTotal.StringFixed(2)).
		Msg("checkout_completed")

	if s.events != nil {
		if _, err := s.events.Emit(ctx, events.TopicSaleCompleted, rec.ID, sales.FromReceipt(rec)); err != nil {
			s.logger.Error().Err(err).Str("receipt_id", rec.ID).Msg("sale_event_failed")
		}
	}
	return Result{Receipt: rec, View: s.view.Render(rec)}, nil
}

// LastReceipt loads the most recent receipt for display.
func (s *Service) LastReceipt(ctx context.Context) (Result, error) {
	rec, err := s.slot.Load(ctx)
	if err != nil {
		return Result{}, mapError(err)
	}
	return Result{Receipt: rec, View: s.view.Render(rec)}, nil
}

func (s *Service) recordFailure(sessionID string, err error) {
	switch {
	case errors.Is(err, receipt.ErrEmptyCart):
		obs.IncCheckout("empty_cart")
		s.logger.Debug().Str("session_id", sessionID).Msg("checkout_empty_cart")
	case errors.Is(err, register.ErrSessionNotFound):
		obs.IncCheckout("no_session")
	default:
		obs.IncCheckout("error")
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("checkout_failed")
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, receipt.ErrEmptyCart):
		return common.Conflict("EMPTY_CART", "nothing to check out", err)
	case errors.Is(err, receipt.ErrNoReceipt):
		return common.NotFound("NO_RECENT_BILL", noRecentBillMessage, err)
	case errors.Is(err, register.ErrSessionNotFound):
		return register.MapError(err)
	default:
		return common.NewAppError("INTERNAL", "checkout failed", http.StatusInternalServerError, err)
	}
}
