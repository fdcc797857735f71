package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/rl1809/stockledger/internal/core/domain"
	"github.com/rl1809/stockledger/internal/port"
)

const (
	codePrefix       = "INV-"
	codeRetries      = 3
	defaultCodeCache = 4096
)

// CatalogService owns item identity and the non-quantity item fields.
type CatalogService struct {
	repo      port.CatalogRepository
	codes     *lru.Cache[string, int64]
	validate  *validator.Validate
	logger    *zap.Logger
	newCode   func() string
	cacheSize int
}

type CatalogOption func(*CatalogService)

func WithCatalogLogger(logger *zap.Logger) CatalogOption {
	return func(s *CatalogService) { s.logger = logger }
}

// WithCodeCacheSize bounds the code to id cache. Sizes below one keep the default.
func WithCodeCacheSize(size int) CatalogOption {
	return func(s *CatalogService) {
		if size > 0 {
			s.cacheSize = size
		}
	}
}

func WithCodeGenerator(gen func() string) CatalogOption {
	return func(s *CatalogService) { s.newCode = gen }
}

func NewCatalogService(repo port.CatalogRepository, opts ...CatalogOption) (*CatalogService, error) {
	s := &CatalogService{
		repo:      repo,
		validate:  newValidator(),
		logger:    zap.NewNop(),
		newCode:   GenerateCode,
		cacheSize: defaultCodeCache,
	}
	for _, opt := range opts {
		opt(s)
	}

	codes, err := lru.New[string, int64](s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("code cache: %w", err)
	}
	s.codes = codes
	return s, nil
}

// GenerateCode returns a new scannable item code such as INV-1A2B3C4D.
func GenerateCode() string {
	return codePrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Resolve finds an item by internal id or by code. Identifiers that parse as a
// positive integer are tried as ids first.
func (s *CatalogService) Resolve(ctx context.Context, identifier string) (*domain.Item, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, &domain.ValidationError{Field: "item", Message: "identifier is required"}
	}

	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil && id > 0 {
		item, err := s.repo.GetItem(ctx, id)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if id, ok := s.codes.Get(identifier); ok {
		item, err := s.repo.GetItem(ctx, id)
		switch {
		case err == nil && item.Code == identifier:
			return item, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
		s.codes.Remove(identifier)
	}

	item, err := s.repo.GetItemByCode(ctx, identifier)
	if err != nil {
		return nil, err
	}
	s.codes.Add(item.Code, item.ID)
	return item, nil
}

func (s *CatalogService) Create(ctx context.Context, spec domain.ItemSpec, actor domain.Actor) (*domain.Item, error) {
	spec.Code = strings.TrimSpace(spec.Code)
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Type == "" {
		spec.Type = domain.DefaultItemType
	}
	if spec.Category == "" {
		spec.Category = domain.DefaultItemCategory
	}
	if spec.QuantityTotal == 0 {
		spec.QuantityTotal = 1
	}

	if err := validateStruct(s.validate, spec); err != nil {
		return nil, err
	}
	if err := validateAttributes(spec.Attributes, false); err != nil {
		return nil, err
	}

	item := &domain.Item{
		Code:              spec.Code,
		Name:              spec.Name,
		Type:              spec.Type,
		Category:          spec.Category,
		Location:          spec.Location,
		Description:       spec.Description,
		Attributes:        spec.Attributes,
		QuantityTotal:     spec.QuantityTotal,
		QuantityAvailable: spec.QuantityTotal,
		QuantityInitial:   spec.QuantityTotal,
		CreatedBy:         actor.ID,
	}

	if item.Code != "" {
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, err
		}
	} else if err := s.createWithGeneratedCode(ctx, item); err != nil {
		return nil, err
	}

	s.codes.Add(item.Code, item.ID)
	s.logger.Info("item created",
		zap.Int64("item_id", item.ID),
		zap.String("code", item.Code),
		zap.Int("quantity_total", item.QuantityTotal),
		zap.Int64("created_by", actor.ID),
	)
	return item, nil
}

func (s *CatalogService) createWithGeneratedCode(ctx context.Context, item *domain.Item) error {
	var err error
	for attempt := 0; attempt <= codeRetries; attempt++ {
		item.Code = s.newCode()
		err = s.repo.CreateItem(ctx, item)
		if !errors.Is(err, domain.ErrDuplicateCode) {
			return err
		}
		s.logger.Warn("generated item code collided", zap.String("code", item.Code), zap.Int("attempt", attempt+1))
	}
	return err
}

func (s *CatalogService) Update(ctx context.Context, id int64, patch domain.ItemPatch) (*domain.Item, error) {
	if patch.Empty() {
		return nil, &domain.ValidationError{Field: "item", Message: "no fields to update"}
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, &domain.ValidationError{Field: "name", Message: "must not be empty"}
		}
		patch.Name = &name
	}
	if patch.QuantityTotal != nil && *patch.QuantityTotal < 1 {
		return nil, &domain.ValidationError{Field: "quantity_total", Message: "must be at least 1"}
	}
	if err := validateStruct(s.validate, patch); err != nil {
		return nil, err
	}
	if err := validateAttributes(patch.Attributes, true); err != nil {
		return nil, err
	}

	item, err := s.repo.UpdateItem(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("item updated", zap.Int64("item_id", item.ID), zap.String("code", item.Code))
	return item, nil
}

// Delete removes an item that has never moved.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}

	s.codes.Remove(item.Code)
	s.logger.Info("item deleted", zap.Int64("item_id", id), zap.String("code", item.Code))
	return nil
}

func (s *CatalogService) List(ctx context.Context, query domain.ItemQuery) (*domain.ItemPage, error) {
	page, limit, err := pageBounds(query.Page, query.Limit, defaultListLimit)
	if err != nil {
		return nil, err
	}
	query.Page, query.Limit = page, limit
	query.Search = strings.TrimSpace(query.Search)

	items, total, err := s.repo.ListItems(ctx, query)
	if err != nil {
		return nil, err
	}
	return &domain.ItemPage{Items: items, Pagination: domain.NewPagination(page, limit, total)}, nil
}
