package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fioeflor/backend/internal/cache"
	"fioeflor/backend/internal/domain"
	"fioeflor/backend/internal/store"
	"fioeflor/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const statsCacheKey = "fioeflor:stats:dashboard"

// Default unit cost applied to stem supplies created without an
// explicit custoUnitario.
var defaultStemUnitCost = decimal.NewFromFloat(2.50)

type Service struct {
	repo     store.Repository
	stats    cache.StatsCache
	statsTTL time.Duration
}

func New(repo store.Repository, stats cache.StatsCache, statsTTL time.Duration) *Service {
	if stats == nil {
		stats = cache.NoopStatsCache{}
	}
	if statsTTL <= 0 {
		statsTTL = 60 * time.Second
	}

	return &Service{
		repo:     repo,
		stats:    stats,
		statsTTL: statsTTL,
	}
}

func (s *Service) ListSupplies(ctx context.Context) ([]domain.Supply, error) {
	return s.repo.ListSupplies(ctx)
}

func (s *Service) GetSupply(ctx context.Context, id string) (domain.Supply, error) {
	supply, err := s.repo.GetSupply(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Supply{}, store.NotFoundf("Insumo não encontrado")
		}
		return domain.Supply{}, err
	}
	return *supply, nil
}

func (s *Service) CreateSupply(ctx context.Context, req domain.SupplyCreateRequest) (domain.Supply, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.TrimSpace(req.Unit)
	req.Category = strings.TrimSpace(req.Category)

	if err := validateName(req.Name); err != nil {
		return domain.Supply{}, err
	}
	if req.Unit == "" {
		return domain.Supply{}, store.Invalidf("unidade é obrigatória")
	}
	if !isSupplyCategory(req.Category) {
		return domain.Supply{}, store.Invalidf("categoria inválida: %s", req.Category)
	}

	stock := decimal.Zero
	if req.Stock != nil {
		if req.Stock.IsNegative() {
			return domain.Supply{}, store.Invalidf("estoque não pode ser negativo")
		}
		stock = *req.Stock
	}
	unitCost := decimal.Zero
	if req.UnitCost != nil {
		if req.UnitCost.IsNegative() {
			return domain.Supply{}, store.Invalidf("custo unitário não pode ser negativo")
		}
		unitCost = *req.UnitCost
	} else if req.Category == domain.SupplyCategoryStem {
		unitCost = defaultStemUnitCost
	}

	supply := domain.Supply{
		ID:       xid.New("ins"),
		Name:     req.Name,
		Stock:    stock,
		Unit:     req.Unit,
		Category: req.Category,
		UnitCost: unitCost,
	}

	created, err := s.repo.CreateSupply(ctx, supply)
	if err != nil {
		return domain.Supply{}, err
	}
	return *created, nil
}

func (s *Service) UpdateSupply(ctx context.Context, id string, req domain.SupplyUpdateRequest) (domain.Supply, error) {
	existing, err := s.repo.GetSupply(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Supply{}, store.NotFoundf("Insumo não encontrado")
		}
		return domain.Supply{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validateName(name); err != nil {
			return domain.Supply{}, err
		}
		updated.Name = name
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.Supply{}, store.Invalidf("unidade é obrigatória")
		}
		updated.Unit = unit
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if !isSupplyCategory(category) {
			return domain.Supply{}, store.Invalidf("categoria inválida: %s", category)
		}
		updated.Category = category
	}
	if req.Stock != nil {
		if req.Stock.IsNegative() {
			return domain.Supply{}, store.Invalidf("estoque não pode ser negativo")
		}
		updated.Stock = *req.Stock
	}
	if req.UnitCost != nil {
		if req.UnitCost.IsNegative() {
			return domain.Supply{}, store.Invalidf("custo unitário não pode ser negativo")
		}
		updated.UnitCost = *req.UnitCost
	}

	saved, err := s.repo.UpdateSupply(ctx, updated)
	if err != nil {
		return domain.Supply{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteSupply(ctx context.Context, id string) error {
	err := s.repo.DeleteSupply(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.NotFoundf("Insumo não encontrado")
	}
	if errors.Is(err, store.ErrValidation) {
		return store.Invalidf("Insumo em uso por materiais ou produtos")
	}
	return err
}

func (s *Service) AddSupplyStock(ctx context.Context, id string, req domain.StockAdjustRequest) (domain.StockAdjustResponse, error) {
	if !req.Quantity.IsPositive() {
		return domain.StockAdjustResponse{}, store.InvalidQuantityf("quantidade deve ser maior que zero")
	}

	supply, err := s.repo.AdjustSupplyStock(ctx, id, req.Quantity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.StockAdjustResponse{}, store.NotFoundf("Insumo não encontrado")
		}
		return domain.StockAdjustResponse{}, err
	}

	return domain.StockAdjustResponse{
		Supply: *supply,
		Movement: domain.StockMovement{
			Type:     domain.MovementTypeIn,
			Quantity: req.Quantity,
			Reason:   strings.TrimSpace(req.Reason),
		},
	}, nil
}

func (s *Service) RemoveSupplyStock(ctx context.Context, id string, req domain.StockAdjustRequest) (domain.StockAdjustResponse, error) {
	if !req.Quantity.IsPositive() {
		return domain.StockAdjustResponse{}, store.InvalidQuantityf("quantidade deve ser maior que zero")
	}

	supply, err := s.repo.AdjustSupplyStock(ctx, id, req.Quantity.Neg())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.StockAdjustResponse{}, store.NotFoundf("Insumo não encontrado")
		}
		return domain.StockAdjustResponse{}, err
	}

	return domain.StockAdjustResponse{
		Supply: *supply,
		Movement: domain.StockMovement{
			Type:     domain.MovementTypeOut,
			Quantity: req.Quantity,
			Reason:   strings.TrimSpace(req.Reason),
		},
	}, nil
}

func (s *Service) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	return s.repo.ListMaterials(ctx)
}

func (s *Service) GetMaterial(ctx context.Context, id string) (domain.Material, error) {
	material, err := s.repo.GetMaterial(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Material{}, store.NotFoundf("Material não encontrado")
		}
		return domain.Material{}, err
	}
	return *material, nil
}

func (s *Service) CreateMaterial(ctx context.Context, req domain.MaterialCreateRequest) (domain.Material, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateName(req.Name); err != nil {
		return domain.Material{}, err
	}

	links, err := s.materialLinks(ctx, req.Supplies)
	if err != nil {
		return domain.Material{}, err
	}

	material := domain.Material{
		ID:          xid.New("mat"),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Supplies:    links,
	}

	created, err := s.repo.CreateMaterial(ctx, material)
	if err != nil {
		return domain.Material{}, err
	}
	return *created, nil
}

func (s *Service) UpdateMaterial(ctx context.Context, id string, req domain.MaterialUpdateRequest) (domain.Material, error) {
	existing, err := s.repo.GetMaterial(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Material{}, store.NotFoundf("Material não encontrado")
		}
		return domain.Material{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validateName(name); err != nil {
			return domain.Material{}, err
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Supplies != nil {
		links, err := s.materialLinks(ctx, req.Supplies)
		if err != nil {
			return domain.Material{}, err
		}
		updated.Supplies = links
	}

	saved, err := s.repo.UpdateMaterial(ctx, updated)
	if err != nil {
		return domain.Material{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteMaterial(ctx context.Context, id string) error {
	err := s.repo.DeleteMaterial(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.NotFoundf("Material não encontrado")
	}
	if errors.Is(err, store.ErrValidation) {
		return store.Invalidf("Material em uso por produtos")
	}
	return err
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, store.NotFoundf("Produto %s não encontrado", id)
		}
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateName(req.Name); err != nil {
		return domain.Product{}, err
	}
	if req.Price.IsNegative() {
		return domain.Product{}, store.Invalidf("preço não pode ser negativo")
	}
	if req.Cost.IsNegative() {
		return domain.Product{}, store.Invalidf("custo não pode ser negativo")
	}

	materialLinks, supplyLinks, err := s.productLinks(ctx, req.Materials, req.Supplies)
	if err != nil {
		return domain.Product{}, err
	}

	images := req.Images
	if images == nil {
		images = []string{}
	}

	product := domain.Product{
		ID:          xid.New("prod"),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Cost:        req.Cost,
		Images:      images,
		Materials:   materialLinks,
		Supplies:    supplyLinks,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, store.NotFoundf("Produto %s não encontrado", id)
		}
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validateName(name); err != nil {
			return domain.Product{}, err
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return domain.Product{}, store.Invalidf("preço não pode ser negativo")
		}
		updated.Price = *req.Price
	}
	if req.Cost != nil {
		if req.Cost.IsNegative() {
			return domain.Product{}, store.Invalidf("custo não pode ser negativo")
		}
		updated.Cost = *req.Cost
	}
	if req.Images != nil {
		updated.Images = req.Images
	}
	if req.Materials != nil || req.Supplies != nil {
		materialInputs := req.Materials
		if materialInputs == nil {
			materialInputs = productMaterialInputs(existing.Materials)
		}
		supplyInputs := req.Supplies
		if supplyInputs == nil {
			supplyInputs = productSupplyInputs(existing.Supplies)
		}
		materialLinks, supplyLinks, err := s.productLinks(ctx, materialInputs, supplyInputs)
		if err != nil {
			return domain.Product{}, err
		}
		updated.Materials = materialLinks
		updated.Supplies = supplyLinks
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	err := s.repo.DeleteProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.NotFoundf("Produto %s não encontrado", id)
	}
	if errors.Is(err, store.ErrValidation) {
		return store.Invalidf("Produto em uso por vendas")
	}
	return err
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Customer{}, store.NotFoundf("Cliente não encontrado")
		}
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateName(req.Name); err != nil {
		return domain.Customer{}, err
	}

	customer := domain.Customer{
		ID:      xid.New("cli"),
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Customer{}, store.NotFoundf("Cliente não encontrado")
		}
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validateName(name); err != nil {
			return domain.Customer{}, err
		}
		updated.Name = name
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	err := s.repo.DeleteCustomer(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.NotFoundf("Cliente não encontrado")
	}
	return err
}

func (s *Service) ListSales(ctx context.Context, fromDate string, toDate string) ([]domain.Sale, error) {
	filter, err := parseSaleFilter(fromDate, toDate)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Sale{}, store.NotFoundf("Venda não encontrada")
		}
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ResolveProductSupplies flattens a product's composition into the
// supply quantities consumed by selling the requested amount. Direct
// supply links come first, then supplies reached through each material
// link, one requirement per path.
func (s *Service) ResolveProductSupplies(ctx context.Context, product domain.Product, quantity decimal.Decimal) ([]domain.SupplyRequirement, error) {
	if !quantity.IsPositive() {
		return nil, store.InvalidQuantityf("quantidade deve ser maior que zero")
	}

	requirements := make([]domain.SupplyRequirement, 0, len(product.Supplies)+len(product.Materials))
	for _, link := range product.Supplies {
		supply := link.Supply
		if supply == nil {
			fetched, err := s.repo.GetSupply(ctx, link.SupplyID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, store.NotFoundf("Insumo não encontrado")
				}
				return nil, err
			}
			supply = fetched
		}
		requirements = append(requirements, domain.SupplyRequirement{
			SupplyID:   supply.ID,
			SupplyName: supply.Name,
			Unit:       supply.Unit,
			Quantity:   link.Quantity.Mul(quantity),
			Via:        domain.RequirementViaDirect,
		})
	}

	for _, productLink := range product.Materials {
		material := productLink.Material
		if material == nil {
			fetched, err := s.repo.GetMaterial(ctx, productLink.MaterialID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, store.NotFoundf("Material não encontrado")
				}
				return nil, err
			}
			material = fetched
		}
		for _, materialLink := range material.Supplies {
			supply := materialLink.Supply
			if supply == nil {
				fetched, err := s.repo.GetSupply(ctx, materialLink.SupplyID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return nil, store.NotFoundf("Insumo não encontrado")
					}
					return nil, err
				}
				supply = fetched
			}
			requirements = append(requirements, domain.SupplyRequirement{
				SupplyID:   supply.ID,
				SupplyName: supply.Name,
				Unit:       supply.Unit,
				Quantity:   materialLink.Quantity.Mul(productLink.Quantity).Mul(quantity),
				Via:        material.Name,
			})
		}
	}

	return requirements, nil
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, store.Invalidf("a venda deve ter pelo menos um produto")
	}

	var customerID *string
	if req.CustomerID != nil && strings.TrimSpace(*req.CustomerID) != "" {
		id := strings.TrimSpace(*req.CustomerID)
		if _, err := s.repo.GetCustomer(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Sale{}, store.NotFoundf("Cliente não encontrado")
			}
			return domain.Sale{}, err
		}
		customerID = &id
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	total := decimal.Zero
	var requirements []domain.SupplyRequirement
	for _, line := range req.Items {
		if !line.Quantity.IsPositive() {
			return domain.Sale{}, store.InvalidQuantityf("quantidade deve ser maior que zero")
		}
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Sale{}, store.NotFoundf("Produto %s não encontrado", line.ProductID)
			}
			return domain.Sale{}, err
		}

		unitPrice := product.Price
		if line.UnitPrice != nil {
			if line.UnitPrice.IsNegative() {
				return domain.Sale{}, store.Invalidf("preço unitário não pode ser negativo")
			}
			unitPrice = *line.UnitPrice
		}

		items = append(items, domain.SaleItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
		})
		total = total.Add(line.Quantity.Mul(unitPrice))

		if req.TrackStock {
			resolved, err := s.ResolveProductSupplies(ctx, *product, line.Quantity)
			if err != nil {
				return domain.Sale{}, err
			}
			requirements = append(requirements, resolved...)
		}
	}

	date := time.Now().UTC()
	if req.Date != nil && !req.Date.IsZero() {
		date = req.Date.UTC()
	}

	sale := domain.Sale{
		ID:         xid.New("venda"),
		Date:       date,
		Total:      total,
		CustomerID: customerID,
		Items:      items,
	}

	created, err := s.repo.CreateSale(ctx, sale, requirements)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateStats(ctx)
	return *created, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	err := s.repo.DeleteSale(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.NotFoundf("Venda não encontrada")
	}
	if err == nil {
		s.invalidateStats(ctx)
	}
	return err
}

func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	if cached, found, err := s.stats.Get(ctx, statsCacheKey); err != nil {
		log.Printf("[service] WARN: stats cache read failed: %v", err)
	} else if found {
		return *cached, nil
	}

	stats, err := s.repo.GetDashboardStats(ctx, time.Now().UTC())
	if err != nil {
		return domain.DashboardStats{}, err
	}

	if err := s.stats.Set(ctx, statsCacheKey, &stats, s.statsTTL); err != nil {
		log.Printf("[service] WARN: stats cache write failed: %v", err)
	}
	return stats, nil
}

func (s *Service) SalesReport(ctx context.Context, fromDate string, toDate string) (domain.SalesReport, error) {
	filter, err := parseSaleFilter(fromDate, toDate)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return s.repo.GetSalesReport(ctx, filter)
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.stats.Delete(ctx, statsCacheKey); err != nil {
		log.Printf("[service] WARN: stats cache invalidation failed: %v", err)
	}
}

func (s *Service) materialLinks(ctx context.Context, inputs []domain.MaterialSupplyInput) ([]domain.MaterialSupply, error) {
	links := make([]domain.MaterialSupply, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input.SupplyID) == "" {
			return nil, store.Invalidf("insumoId é obrigatório")
		}
		if !input.Quantity.IsPositive() {
			return nil, store.InvalidQuantityf("quantidade deve ser maior que zero")
		}
		if _, err := s.repo.GetSupply(ctx, input.SupplyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, store.NotFoundf("Insumo não encontrado")
			}
			return nil, err
		}
		links = append(links, domain.MaterialSupply{SupplyID: input.SupplyID, Quantity: input.Quantity})
	}
	return links, nil
}

func (s *Service) productLinks(ctx context.Context, materials []domain.ProductMaterialInput, supplies []domain.ProductSupplyInput) ([]domain.ProductMaterial, []domain.ProductSupply, error) {
	materialLinks := make([]domain.ProductMaterial, 0, len(materials))
	for _, input := range materials {
		if strings.TrimSpace(input.MaterialID) == "" {
			return nil, nil, store.Invalidf("materialId é obrigatório")
		}
		if !input.Quantity.IsPositive() {
			return nil, nil, store.InvalidQuantityf("quantidade deve ser maior que zero")
		}
		if _, err := s.repo.GetMaterial(ctx, input.MaterialID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, store.NotFoundf("Material não encontrado")
			}
			return nil, nil, err
		}
		materialLinks = append(materialLinks, domain.ProductMaterial{MaterialID: input.MaterialID, Quantity: input.Quantity})
	}

	supplyLinks := make([]domain.ProductSupply, 0, len(supplies))
	for _, input := range supplies {
		if strings.TrimSpace(input.SupplyID) == "" {
			return nil, nil, store.Invalidf("insumoId é obrigatório")
		}
		if !input.Quantity.IsPositive() {
			return nil, nil, store.InvalidQuantityf("quantidade deve ser maior que zero")
		}
		if _, err := s.repo.GetSupply(ctx, input.SupplyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, store.NotFoundf("Insumo não encontrado")
			}
			return nil, nil, err
		}
		supplyLinks = append(supplyLinks, domain.ProductSupply{SupplyID: input.SupplyID, Quantity: input.Quantity})
	}

	return materialLinks, supplyLinks, nil
}

func productMaterialInputs(links []domain.ProductMaterial) []domain.ProductMaterialInput {
	inputs := make([]domain.ProductMaterialInput, 0, len(links))
	for _, link := range links {
		inputs = append(inputs, domain.ProductMaterialInput{MaterialID: link.MaterialID, Quantity: link.Quantity})
	}
	return inputs
}

func productSupplyInputs(links []domain.ProductSupply) []domain.ProductSupplyInput {
	inputs := make([]domain.ProductSupplyInput, 0, len(links))
	for _, link := range links {
		inputs = append(inputs, domain.ProductSupplyInput{SupplyID: link.SupplyID, Quantity: link.Quantity})
	}
	return inputs
}

func parseSaleFilter(fromDate string, toDate string) (store.SaleFilter, error) {
	filter := store.SaleFilter{}
	if strings.TrimSpace(fromDate) != "" {
		parsed, err := time.Parse("2006-01-02", fromDate)
		if err != nil {
			return store.SaleFilter{}, store.Invalidf("data inicial inválida: %s", fromDate)
		}
		from := parsed.UTC()
		filter.From = &from
	}
	if strings.TrimSpace(toDate) != "" {
		parsed, err := time.Parse("2006-01-02", toDate)
		if err != nil {
			return store.SaleFilter{}, store.Invalidf("data final inválida: %s", toDate)
		}
		to := parsed.UTC().Add(24*time.Hour - time.Nanosecond)
		filter.To = &to
	}
	return filter, nil
}

func validateName(name string) error {
	if len([]rune(name)) < 3 {
		return store.Invalidf("nome deve ter pelo menos 3 caracteres")
	}
	return nil
}

func isSupplyCategory(category string) bool {
	switch category {
	case domain.SupplyCategoryStem, domain.SupplyCategoryWire, domain.SupplyCategoryWrapping, domain.SupplyCategoryOther:
		return true
	default:
		return false
	}
}
