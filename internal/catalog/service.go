package catalog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/common"
)

// ProductInput is the writable part of a product.
type ProductInput struct {
	Code          string          `json:"code" validate:"required,max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	SellPrice     decimal.Decimal `json:"sellPrice" validate:"gte=0"`
	PurchasePrice decimal.Decimal `json:"purchasePrice" validate:"gte=0"`
	LandedCost    decimal.Decimal `json:"landedCost" validate:"gte=0"`
	GSTRate       decimal.Decimal `json:"gstRate" validate:"gte=0,lte=100"`
	Stock         int             `json:"openingStock" validate:"gte=0"`
	ReorderLevel  int             `json:"reorderLevel" validate:"gte=0"`
}

// DefaultInput returns an input pre-filled with the form defaults. Decoding a
// request body into it leaves omitted fields at their defaults.
func DefaultInput() ProductInput {
	return ProductInput{GSTRate: decimal.NewFromInt(18), ReorderLevel: 10}
}

func (in ProductInput) product(id int64) Product {
	return Product{
		ID:            id,
		Code:          in.Code,
		Name:          in.Name,
		SellPrice:     in.SellPrice,
		PurchasePrice: in.PurchasePrice,
		LandedCost:    in.LandedCost,
		GSTRate:       in.GSTRate,
		Stock:         in.Stock,
		ReorderLevel:  in.ReorderLevel,
	}
}

// FieldError describes a single rejected input field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Service validates catalog writes and translates store errors.
type Service struct {
	store    Store
	validate *validator.Validate
	logger   zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  Store
	Logger zerolog.Logger
}

// NewService constructs a catalog Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog store is required")
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	v.RegisterTagNameFunc(jsonFieldName)
	return &Service{store: cfg.Store, validate: v, logger: cfg.Logger}, nil
}

// Lookup resolves a scanned or typed code. It satisfies the register lookup contract.
func (s *Service) Lookup(ctx context.Context, code string) (Product, error) {
	return s.store.ByCode(ctx, code)
}

func (s *Service) Search(ctx context.Context, query string) ([]Product, error) {
	products, err := s.store.Search(ctx, query)
	if err != nil {
		return nil, common.Internal(err)
	}
	return products, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	p, err := s.store.ByID(ctx, id)
	return p, s.mapError(err)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Product, error) {
	p, err := s.store.ByCode(ctx, code)
	return p, s.mapError(err)
}

func (s *Service) Create(ctx context.Context, in ProductInput) (Product, error) {
	in, err := s.normalise(in)
	if err != nil {
		return Product{}, err
	}
	created, err := s.store.Create(ctx, in.product(0))
	if err != nil {
		return Product{}, s.mapError(err)
	}
	s.logger.Info().Int64("product_id", created.ID).Str("code", created.Code).Msg("product_created")
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, in ProductInput) (Product, error) {
	in, err := s.normalise(in)
	if err != nil {
		return Product{}, err
	}
	updated, err := s.store.Update(ctx, in.product(id))
	if err != nil {
		return Product{}, s.mapError(err)
	}
	s.logger.Info().Int64("product_id", updated.ID).Str("code", updated.Code).Msg("product_updated")
	return updated, nil
}

func (s *Service) normalise(in ProductInput) (ProductInput, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return in, common.BadRequest("invalid product", err)
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
		return in, common.BadRequest("invalid product", err).WithDetails(map[string]any{"fields": fields})
	}
	return in, nil
}

func (s *Service) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return common.NotFound("PRODUCT_NOT_FOUND", "product not found", err)
	case errors.Is(err, ErrDuplicateCode):
		return common.NewAppError("DUPLICATE_CODE", "product code already exists", http.StatusConflict, err)
	default:
		return common.Internal(err)
	}
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}
