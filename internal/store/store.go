package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fioeflor/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("invalid request")
)

// StockError reports the supply whose availability check failed. Via is
// the material name for requirements resolved through a material, or
// "direto" for direct product links.
type StockError struct {
	SupplyID   string
	SupplyName string
	Unit       string
	Via        string
	Available  decimal.Decimal
	Required   decimal.Decimal
}

func (e *StockError) Error() string {
	msg := fmt.Sprintf("Estoque insuficiente do insumo %s: disponível %s %s, necessário %s %s",
		e.SupplyName, e.Available.String(), e.Unit, e.Required.String(), e.Unit)
	if e.Via != "" && e.Via != domain.RequirementViaDirect {
		msg += fmt.Sprintf(" (material %s)", e.Via)
	}
	return msg
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type messageError struct {
	sentinel error
	msg      string
}

func (e *messageError) Error() string { return e.msg }
func (e *messageError) Unwrap() error { return e.sentinel }

// NotFoundf wraps ErrNotFound with a user-facing message.
func NotFoundf(format string, args ...any) error {
	return &messageError{sentinel: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Invalidf wraps ErrValidation with a user-facing message.
func Invalidf(format string, args ...any) error {
	return &messageError{sentinel: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// InvalidQuantityf wraps ErrInvalidQuantity with a user-facing message.
func InvalidQuantityf(format string, args ...any) error {
	return &messageError{sentinel: ErrInvalidQuantity, msg: fmt.Sprintf(format, args...)}
}

type SaleFilter struct {
	From *time.Time
	To   *time.Time
}

type Repository interface {
	ListSupplies(ctx context.Context) ([]domain.Supply, error)
	GetSupply(ctx context.Context, id string) (*domain.Supply, error)
	CreateSupply(ctx context.Context, supply domain.Supply) (*domain.Supply, error)
	UpdateSupply(ctx context.Context, supply domain.Supply) (*domain.Supply, error)
	DeleteSupply(ctx context.Context, id string) error
	AdjustSupplyStock(ctx context.Context, id string, delta decimal.Decimal) (*domain.Supply, error)

	ListMaterials(ctx context.Context) ([]domain.Material, error)
	GetMaterial(ctx context.Context, id string) (*domain.Material, error)
	CreateMaterial(ctx context.Context, material domain.Material) (*domain.Material, error)
	UpdateMaterial(ctx context.Context, material domain.Material) (*domain.Material, error)
	DeleteMaterial(ctx context.Context, id string) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// CreateSale persists the sale and applies the supply requirements as
	// one atomic unit. Requirements are checked and decremented in order;
	// any failure leaves stock and sales untouched.
	CreateSale(ctx context.Context, sale domain.Sale, requirements []domain.SupplyRequirement) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error

	GetDashboardStats(ctx context.Context, now time.Time) (domain.DashboardStats, error)
	GetSalesReport(ctx context.Context, filter SaleFilter) (domain.SalesReport, error)
}
