package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Supply struct {
	ID       string          `json:"id"`
	Name     string          `json:"nome"`
	Stock    decimal.Decimal `json:"estoque"`
	Unit     string          `json:"unidade"`
	Category string          `json:"categoria"`
	UnitCost decimal.Decimal `json:"custoUnitario"`
}

type SupplyCreateRequest struct {
	Name     string           `json:"nome"`
	Stock    *decimal.Decimal `json:"estoque,omitempty"`
	Unit     string           `json:"unidade"`
	Category string           `json:"categoria"`
	UnitCost *decimal.Decimal `json:"custoUnitario,omitempty"`
}

type SupplyUpdateRequest struct {
	Name     *string          `json:"nome,omitempty"`
	Stock    *decimal.Decimal `json:"estoque,omitempty"`
	Unit     *string          `json:"unidade,omitempty"`
	Category *string          `json:"categoria,omitempty"`
	UnitCost *decimal.Decimal `json:"custoUnitario,omitempty"`
}

type StockAdjustRequest struct {
	Quantity decimal.Decimal `json:"quantidade"`
	Reason   string          `json:"motivo,omitempty"`
}

// StockMovement describes a single adjustment. It is returned to the
// caller for display and never persisted.
type StockMovement struct {
	Type     string          `json:"tipo"`
	Quantity decimal.Decimal `json:"quantidade"`
	Reason   string          `json:"motivo,omitempty"`
}

type StockAdjustResponse struct {
	Supply   Supply        `json:"insumo"`
	Movement StockMovement `json:"movimentacao"`
}

type MaterialSupply struct {
	SupplyID string          `json:"insumoId,omitempty"`
	Quantity decimal.Decimal `json:"quantidade"`
	Supply   *Supply         `json:"insumo,omitempty"`
}

type Material struct {
	ID          string           `json:"id"`
	Name        string           `json:"nome"`
	Description string           `json:"descricao,omitempty"`
	Supplies    []MaterialSupply `json:"insumos"`
}

type MaterialSupplyInput struct {
	SupplyID string          `json:"insumoId"`
	Quantity decimal.Decimal `json:"quantidade"`
}

type MaterialCreateRequest struct {
	Name        string                `json:"nome"`
	Description string                `json:"descricao,omitempty"`
	Supplies    []MaterialSupplyInput `json:"insumos"`
}

type MaterialUpdateRequest struct {
	Name        *string               `json:"nome,omitempty"`
	Description *string               `json:"descricao,omitempty"`
	Supplies    []MaterialSupplyInput `json:"insumos,omitempty"`
}

type ProductMaterial struct {
	MaterialID string          `json:"materialId,omitempty"`
	Quantity   decimal.Decimal `json:"quantidade"`
	Material   *Material       `json:"material,omitempty"`
}

type ProductSupply struct {
	SupplyID string          `json:"insumoId,omitempty"`
	Quantity decimal.Decimal `json:"quantidade"`
	Supply   *Supply         `json:"insumo,omitempty"`
}

type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"nome"`
	Description string            `json:"descricao,omitempty"`
	Price       decimal.Decimal   `json:"preco"`
	Cost        decimal.Decimal   `json:"custo"`
	Images      []string          `json:"imagens"`
	Materials   []ProductMaterial `json:"materiais"`
	Supplies    []ProductSupply   `json:"insumos"`
}

type ProductMaterialInput struct {
	MaterialID string          `json:"materialId"`
	Quantity   decimal.Decimal `json:"quantidade"`
}

type ProductSupplyInput struct {
	SupplyID string          `json:"insumoId"`
	Quantity decimal.Decimal `json:"quantidade"`
}

type ProductCreateRequest struct {
	Name        string                 `json:"nome"`
	Description string                 `json:"descricao,omitempty"`
	Price       decimal.Decimal        `json:"preco"`
	Cost        decimal.Decimal        `json:"custo"`
	Images      []string               `json:"imagens,omitempty"`
	Materials   []ProductMaterialInput `json:"materiais,omitempty"`
	Supplies    []ProductSupplyInput   `json:"insumos,omitempty"`
}

type ProductUpdateRequest struct {
	Name        *string                `json:"nome,omitempty"`
	Description *string                `json:"descricao,omitempty"`
	Price       *decimal.Decimal       `json:"preco,omitempty"`
	Cost        *decimal.Decimal       `json:"custo,omitempty"`
	Images      []string               `json:"imagens,omitempty"`
	Materials   []ProductMaterialInput `json:"materiais,omitempty"`
	Supplies    []ProductSupplyInput   `json:"insumos,omitempty"`
}

type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"nome"`
	Phone   string `json:"telefone,omitempty"`
	Address string `json:"endereco,omitempty"`
}

type CustomerCreateRequest struct {
	Name    string `json:"nome"`
	Phone   string `json:"telefone,omitempty"`
	Address string `json:"endereco,omitempty"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"nome,omitempty"`
	Phone   *string `json:"telefone,omitempty"`
	Address *string `json:"endereco,omitempty"`
}

type SaleItem struct {
	ProductID string          `json:"produtoId,omitempty"`
	Quantity  decimal.Decimal `json:"quantidade"`
	UnitPrice decimal.Decimal `json:"precoUnit"`
	Product   *Product        `json:"produto,omitempty"`
}

type Sale struct {
	ID         string          `json:"id"`
	Date       time.Time       `json:"data"`
	Total      decimal.Decimal `json:"valorTotal"`
	CustomerID *string         `json:"clienteId,omitempty"`
	Customer   *Customer       `json:"cliente,omitempty"`
	Items      []SaleItem      `json:"produtos"`
}

type SaleItemRequest struct {
	ProductID string           `json:"produtoId"`
	Quantity  decimal.Decimal  `json:"quantidade"`
	UnitPrice *decimal.Decimal `json:"precoUnit,omitempty"`
}

type SaleCreateRequest struct {
	CustomerID *string           `json:"clienteId,omitempty"`
	Date       *time.Time        `json:"data,omitempty"`
	TrackStock bool              `json:"controlarEstoque"`
	Items      []SaleItemRequest `json:"produtos"`
}

// SupplyRequirement is one flattened consumption path produced by the
// composition resolver. Duplicate supplies across paths stay separate
// entries and are applied in order.
type SupplyRequirement struct {
	SupplyID   string          `json:"insumoId"`
	SupplyName string          `json:"insumoNome"`
	Unit       string          `json:"unidade"`
	Quantity   decimal.Decimal `json:"quantidade"`
	Via        string          `json:"via"`
}

type BestSeller struct {
	ProductID   string          `json:"produtoId"`
	ProductName string          `json:"produtoNome"`
	Quantity    decimal.Decimal `json:"quantidade"`
	Revenue     decimal.Decimal `json:"receita"`
}

type DashboardStats struct {
	MonthRevenue   decimal.Decimal `json:"totalVendasMes"`
	TotalProducts  int             `json:"totalProdutos"`
	TotalCustomers int             `json:"totalClientes"`
	RecentSales    []Sale          `json:"vendasRecentes"`
	BestSellers    []BestSeller    `json:"produtosMaisVendidos"`
}

type SalesReport struct {
	From        *time.Time      `json:"dataInicio,omitempty"`
	To          *time.Time      `json:"dataFim,omitempty"`
	Revenue     decimal.Decimal `json:"totalVendas"`
	SaleCount   int             `json:"quantidadeVendas"`
	Sales       []Sale          `json:"vendas"`
	BestSellers []BestSeller    `json:"produtosMaisVendidos"`
}

type LoginRequest struct {
	Username string `json:"usuario"`
	Password string `json:"senha"`
}

type LoginResponse struct {
	AccessToken string `json:"token"`
	ExpiresAt   string `json:"expiraEm"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	SupplyCategoryStem     = "Haste"
	SupplyCategoryWire     = "Ferro"
	SupplyCategoryWrapping = "Embrulho"
	SupplyCategoryOther    = "Outros"
)

const (
	MovementTypeIn  = "entrada"
	MovementTypeOut = "saida"
)

const (
	RequirementViaDirect = "direto"
)
