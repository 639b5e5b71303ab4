package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/repositories"
)

const maxCartLineQuantity = 50

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Items    repositories.ItemRepository
	Bouquets repositories.BouquetRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	items    repositories.ItemRepository
	bouquets repositories.BouquetRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Items == nil {
		return nil, errors.New("cart service: item repository is required")
	}
	if deps.Bouquets == nil {
		return nil, errors.New("cart service: bouquet repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		items:    deps.Items,
		bouquets: deps.Bouquets,
		clock:    func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, ownerID string) (Cart, error) {
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}

	cart, err := s.carts.Get(ctx, uid)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			// A customer who has never carted anything gets an empty basket,
			// not an error.
			return Cart{OwnerID: uid, Lines: []CartLine{}}, nil
		}
		return Cart{}, mapRepositoryError(err)
	}
	return cart, nil
}

func (s *cartService) AddLine(ctx context.Context, cmd AddCartLineCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.OwnerID)
	refID := strings.TrimSpace(cmd.RefID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if refID == "" {
		return Cart{}, fmt.Errorf("%w: line reference id is required", ErrInvalidInput)
	}
	if !domain.ValidLineKind(cmd.Kind) {
		return Cart{}, fmt.Errorf("%w: unknown line kind %q", ErrInvalidInput, cmd.Kind)
	}
	if cmd.Quantity <= 0 || cmd.Quantity > maxCartLineQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidQuantity, maxCartLineQuantity)
	}

	unitPrice, stock, err := s.resolveLine(ctx, uid, cmd.Kind, refID)
	if err != nil {
		return Cart{}, err
	}

	cart, err := s.carts.Mutate(ctx, uid, func(cart *domain.Cart) error {
		for i := range cart.Lines {
			line := &cart.Lines[i]
			if line.Kind != cmd.Kind || line.RefID != refID {
				continue
			}
			next := line.Quantity + cmd.Quantity
			if next > maxCartLineQuantity {
				return fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidQuantity, maxCartLineQuantity)
			}
			if cmd.Kind == domain.LineKindProduct && next > stock {
				return fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, next, stock)
			}
			// The unit price snapshot from the first add wins; catalog edits
			// never reprice lines already in the basket.
			line.Quantity = next
			line.Subtotal = line.UnitPrice * int64(next)
			return nil
		}

		if cmd.Kind == domain.LineKindProduct && cmd.Quantity > stock {
			return fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, cmd.Quantity, stock)
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			Kind:      cmd.Kind,
			RefID:     refID,
			Quantity:  cmd.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  unitPrice * int64(cmd.Quantity),
		})
		return nil
	})
	if err != nil {
		return Cart{}, mapRepositoryError(err)
	}

	s.logger(ctx, "cart.line.added", map[string]any{
		"owner":    uid,
		"kind":     string(cmd.Kind),
		"ref":      refID,
		"quantity": cmd.Quantity,
	})
	return cart, nil
}

func (s *cartService) UpdateLineQuantity(ctx context.Context, cmd UpdateCartLineCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.OwnerID)
	refID := strings.TrimSpace(cmd.RefID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if refID == "" {
		return Cart{}, fmt.Errorf("%w: line reference id is required", ErrInvalidInput)
	}
	if cmd.Quantity <= 0 || cmd.Quantity > maxCartLineQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidQuantity, maxCartLineQuantity)
	}

	cart, err := s.carts.Mutate(ctx, uid, func(cart *domain.Cart) error {
		for i := range cart.Lines {
			line := &cart.Lines[i]
			if line.RefID != refID {
				continue
			}
			if line.Kind == domain.LineKindProduct {
				item, err := s.items.FindByID(ctx, refID)
				if err != nil {
					return mapRepositoryError(err)
				}
				if cmd.Quantity > item.Stock {
					return fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, cmd.Quantity, item.Stock)
				}
			}
			line.Quantity = cmd.Quantity
			line.Subtotal = line.UnitPrice * int64(cmd.Quantity)
			return nil
		}
		return fmt.Errorf("%w: cart line %q", ErrNotFound, refID)
	})
	if err != nil {
		return Cart{}, mapRepositoryError(err)
	}
	return cart, nil
}

func (s *cartService) RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.OwnerID)
	refID := strings.TrimSpace(cmd.RefID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if refID == "" {
		return Cart{}, fmt.Errorf("%w: line reference id is required", ErrInvalidInput)
	}

	cart, err := s.carts.Mutate(ctx, uid, func(cart *domain.Cart) error {
		for i := range cart.Lines {
			if cart.Lines[i].RefID != refID {
				continue
			}
			cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
			return nil
		}
		return fmt.Errorf("%w: cart line %q", ErrNotFound, refID)
	})
	if err != nil {
		return Cart{}, mapRepositoryError(err)
	}
	return cart, nil
}

func (s *cartService) ClearCart(ctx context.Context, ownerID string) (Cart, error) {
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}

	cart, err := s.carts.Mutate(ctx, uid, func(cart *domain.Cart) error {
		cart.Lines = []domain.CartLine{}
		return nil
	})
	if err != nil {
		return Cart{}, mapRepositoryError(err)
	}
	return cart, nil
}

// resolveLine snapshots the unit price for a new line and reports the stock
// ceiling for product lines. Custom bouquets are made to order so they carry
// no stock ceiling, but they must belong to the customer adding them.
func (s *cartService) resolveLine(ctx context.Context, ownerID string, kind LineKind, refID string) (int64, int, error) {
	switch kind {
	case domain.LineKindProduct:
		item, err := s.items.FindByID(ctx, refID)
		if err != nil {
			return 0, 0, mapRepositoryError(err)
		}
		if !item.IsAvailable {
			return 0, 0, fmt.Errorf("%w: item %q is not available", ErrNotFound, refID)
		}
		return item.EffectivePrice(), item.Stock, nil
	case domain.LineKindCustom:
		bouquet, err := s.bouquets.FindByID(ctx, refID)
		if err != nil {
			return 0, 0, mapRepositoryError(err)
		}
		if bouquet.OwnerID != ownerID {
			return 0, 0, fmt.Errorf("%w: bouquet %q", ErrAccessDenied, refID)
		}
		return bouquet.TotalPrice, maxCartLineQuantity, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown line kind %q", ErrInvalidInput, kind)
	}
}

var _ CartService = (*cartService)(nil)
