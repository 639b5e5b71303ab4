package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/platform/storage"
	"github.com/bloomfield/api/internal/repositories"
)

const (
	itemIDPrefix    = "itm_"
	bouquetIDPrefix = "bqt_"

	maxBouquetStems = 100
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var allowedImageContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ObjectURLSigner issues signed URLs for bucket objects, both uploads of
// catalog images and downloads of stored documents.
type ObjectURLSigner interface {
	SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error)
}

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Items       repositories.ItemRepository
	Bouquets    repositories.BouquetRepository
	Signer      ObjectURLSigner
	ImageBucket string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	items       repositories.ItemRepository
	bouquets    repositories.BouquetRepository
	signer      ObjectURLSigner
	imageBucket string
	sanitizer   *bluemonday.Policy
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Items == nil {
		return nil, errors.New("catalog service: item repository is required")
	}
	if deps.Bouquets == nil {
		return nil, errors.New("catalog service: bouquet repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		items:       deps.Items,
		bouquets:    deps.Bouquets,
		signer:      deps.Signer,
		imageBucket: strings.TrimSpace(deps.ImageBucket),
		sanitizer:   bluemonday.StrictPolicy(),
		clock:       func() time.Time { return clock().UTC() },
		newID:       idGen,
		logger:      logger,
	}, nil
}

func (s *catalogService) CreateItem(ctx context.Context, cmd UpsertItemCommand) (Item, error) {
	item, err := s.buildItem(cmd)
	if err != nil {
		return Item{}, err
	}
	item.ID = itemIDPrefix + s.newID()
	item.CreatedBy = strings.TrimSpace(cmd.ActorID)
	now := s.clock()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.ensureSlugFree(ctx, item.Slug, ""); err != nil {
		return Item{}, err
	}
	if err := s.items.Insert(ctx, item); err != nil {
		return Item{}, mapRepositoryError(err)
	}

	s.logger(ctx, "catalog.item.created", map[string]any{"item": item.ID, "slug": item.Slug})
	return item, nil
}

func (s *catalogService) UpdateItem(ctx context.Context, cmd UpsertItemCommand) (Item, error) {
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return Item{}, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	item, err := s.buildItem(cmd)
	if err != nil {
		return Item{}, err
	}
	item.ID = itemID

	current, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return Item{}, mapRepositoryError(err)
	}
	if item.Slug != current.Slug {
		if err := s.ensureSlugFree(ctx, item.Slug, itemID); err != nil {
			return Item{}, err
		}
	}
	// Stock moves only through AdjustStock; an edit never clobbers the count
	// racing checkouts are decrementing.
	item.Stock = current.Stock
	item.CreatedAt = current.CreatedAt
	item.CreatedBy = current.CreatedBy
	item.UpdatedAt = s.clock()

	if err := s.items.Update(ctx, item); err != nil {
		return Item{}, mapRepositoryError(err)
	}
	return item, nil
}

func (s *catalogService) DeleteItem(ctx context.Context, cmd DeleteItemCommand) error {
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	if err := s.items.SoftDelete(ctx, itemID, s.clock()); err != nil {
		return mapRepositoryError(err)
	}
	s.logger(ctx, "catalog.item.deleted", map[string]any{"item": itemID, "actor": cmd.ActorID})
	return nil
}

func (s *catalogService) GetItem(ctx context.Context, itemID string) (Item, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return Item{}, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return Item{}, mapRepositoryError(err)
	}
	return item, nil
}

func (s *catalogService) GetItemBySlug(ctx context.Context, slug string) (Item, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Item{}, fmt.Errorf("%w: slug is required", ErrInvalidInput)
	}
	item, err := s.items.FindBySlug(ctx, slug)
	if err != nil {
		return Item{}, mapRepositoryError(err)
	}
	return item, nil
}

func (s *catalogService) ListItems(ctx context.Context, cmd ListItemsCommand) (domain.Page[Item], error) {
	page, err := s.items.List(ctx, repositories.ItemListFilter{
		Category:      strings.TrimSpace(cmd.Category),
		FeaturedOnly:  cmd.FeaturedOnly,
		AvailableOnly: cmd.AvailableOnly,
		IncludeHidden: cmd.IncludeHidden,
		Pagination:    cmd.Pagination,
	})
	if err != nil {
		return domain.Page[Item]{}, mapRepositoryError(err)
	}
	return page, nil
}

func (s *catalogService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (Item, error) {
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return Item{}, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	if cmd.Delta == 0 {
		return Item{}, fmt.Errorf("%w: stock delta must be non-zero", ErrInvalidInput)
	}

	item, err := s.items.AdjustStock(ctx, itemID, cmd.Delta)
	if err != nil {
		err = mapRepositoryError(err)
		if errors.Is(err, ErrConflict) {
			return Item{}, fmt.Errorf("%w: stock cannot go below zero", ErrInsufficientStock)
		}
		return Item{}, err
	}

	s.logger(ctx, "catalog.stock.adjusted", map[string]any{
		"item":  itemID,
		"delta": cmd.Delta,
		"stock": item.Stock,
		"actor": cmd.ActorID,
	})
	return item, nil
}

func (s *catalogService) IssueImageUploadURL(ctx context.Context, cmd ItemImageUploadCommand) (SignedUpload, error) {
	if s.signer == nil || s.imageBucket == "" {
		return SignedUpload{}, errors.New("catalog service: image uploads are not configured")
	}
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return SignedUpload{}, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		return SignedUpload{}, mapRepositoryError(err)
	}

	object, err := storage.BuildObjectPath(storage.PurposeItemImage, storage.PathParams{
		ItemID:   itemID,
		UploadID: strings.ToLower(s.newID()),
		FileName: cmd.FileName,
	})
	if err != nil {
		return SignedUpload{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	result, err := s.signer.SignedURL(ctx, s.imageBucket, object, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			ContentType:         strings.TrimSpace(cmd.ContentType),
			AllowedContentTypes: allowedImageContentTypes,
			MaxSize:             10 << 20,
		},
	})
	if err != nil {
		return SignedUpload{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return SignedUpload{
		URL:         result.URL,
		ObjectPath:  object,
		ContentType: strings.TrimSpace(cmd.ContentType),
		ExpiresAt:   result.ExpiresAt,
	}, nil
}

func (s *catalogService) CreateBouquet(ctx context.Context, cmd CreateBouquetCommand) (Bouquet, error) {
	uid := strings.TrimSpace(cmd.OwnerID)
	if uid == "" {
		return Bouquet{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if len(cmd.Flowers) == 0 {
		return Bouquet{}, fmt.Errorf("%w: a bouquet needs at least one flower", ErrInvalidInput)
	}

	var total int64
	stems := 0
	flowers := make([]domain.BouquetFlower, 0, len(cmd.Flowers))
	for _, flower := range cmd.Flowers {
		name := strings.TrimSpace(flower.Name)
		if name == "" || strings.TrimSpace(flower.FlowerID) == "" {
			return Bouquet{}, fmt.Errorf("%w: flower id and name are required", ErrInvalidInput)
		}
		if flower.Count <= 0 {
			return Bouquet{}, fmt.Errorf("%w: flower count must be positive", ErrInvalidQuantity)
		}
		if flower.PricePerStem < 0 {
			return Bouquet{}, fmt.Errorf("%w: flower price must not be negative", ErrInvalidInput)
		}
		stems += flower.Count
		total += int64(flower.Count) * flower.PricePerStem
		flowers = append(flowers, domain.BouquetFlower{
			FlowerID:     strings.TrimSpace(flower.FlowerID),
			Name:         name,
			Count:        flower.Count,
			PricePerStem: flower.PricePerStem,
		})
	}
	if stems > maxBouquetStems {
		return Bouquet{}, fmt.Errorf("%w: a bouquet holds at most %d stems", ErrInvalidQuantity, maxBouquetStems)
	}
	if cmd.Wrapping.Price < 0 {
		return Bouquet{}, fmt.Errorf("%w: wrapping price must not be negative", ErrInvalidInput)
	}
	total += cmd.Wrapping.Price

	bouquet := domain.Bouquet{
		ID:            bouquetIDPrefix + s.newID(),
		OwnerID:       uid,
		Flowers:       flowers,
		Wrapping:      cmd.Wrapping,
		Note:          s.sanitizer.Sanitize(strings.TrimSpace(cmd.Note)),
		RecipientName: s.sanitizer.Sanitize(strings.TrimSpace(cmd.RecipientName)),
		TotalPrice:    total,
	}
	now := s.clock()
	bouquet.CreatedAt = now
	bouquet.UpdatedAt = now

	if err := s.bouquets.Insert(ctx, bouquet); err != nil {
		return Bouquet{}, mapRepositoryError(err)
	}
	return bouquet, nil
}

func (s *catalogService) GetBouquet(ctx context.Context, cmd GetBouquetCommand) (Bouquet, error) {
	bouquetID := strings.TrimSpace(cmd.BouquetID)
	if bouquetID == "" {
		return Bouquet{}, fmt.Errorf("%w: bouquet id is required", ErrInvalidInput)
	}
	bouquet, err := s.bouquets.FindByID(ctx, bouquetID)
	if err != nil {
		return Bouquet{}, mapRepositoryError(err)
	}
	if !cmd.IsAdmin && bouquet.OwnerID != strings.TrimSpace(cmd.ActorID) {
		return Bouquet{}, fmt.Errorf("%w: bouquet %q", ErrAccessDenied, bouquetID)
	}
	return bouquet, nil
}

func (s *catalogService) ListBouquets(ctx context.Context, ownerID string, pager Pagination) (domain.Page[Bouquet], error) {
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return domain.Page[Bouquet]{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	page, err := s.bouquets.ListByOwner(ctx, uid, pager)
	if err != nil {
		return domain.Page[Bouquet]{}, mapRepositoryError(err)
	}
	return page, nil
}

// buildItem validates and normalises the shared upsert payload.
func (s *catalogService) buildItem(cmd UpsertItemCommand) (domain.Item, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.Item{}, fmt.Errorf("%w: item name is required", ErrInvalidInput)
	}
	slug := strings.ToLower(strings.TrimSpace(cmd.Slug))
	if !slugPattern.MatchString(slug) {
		return domain.Item{}, fmt.Errorf("%w: slug must be lowercase letters, digits, and hyphens", ErrInvalidInput)
	}
	if cmd.Price < 0 {
		return domain.Item{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if cmd.DiscountPrice != nil && (*cmd.DiscountPrice < 0 || *cmd.DiscountPrice >= cmd.Price) {
		return domain.Item{}, fmt.Errorf("%w: discount price must be below the list price", ErrInvalidInput)
	}
	if cmd.Stock < 0 {
		return domain.Item{}, fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}

	return domain.Item{
		Name:            name,
		Slug:            slug,
		Description:     s.sanitizer.Sanitize(strings.TrimSpace(cmd.Description)),
		Price:           cmd.Price,
		DiscountPrice:   cmd.DiscountPrice,
		Category:        strings.ToLower(strings.TrimSpace(cmd.Category)),
		Images:          cmd.Images,
		IsFeatured:      cmd.IsFeatured,
		IsAvailable:     cmd.IsAvailable,
		Stock:           cmd.Stock,
		PreparationTime: cmd.PreparationTime,
	}, nil
}

// ensureSlugFree rejects a slug already used by a different live item.
func (s *catalogService) ensureSlugFree(ctx context.Context, slug, selfID string) error {
	existing, err := s.items.FindBySlug(ctx, slug)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil
		}
		return mapRepositoryError(err)
	}
	if existing.ID == selfID {
		return nil
	}
	return fmt.Errorf("%w: slug %q is taken", ErrAlreadyExists, slug)
}

var _ CatalogService = (*catalogService)(nil)
