package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fioeflor/backend/internal/domain"
	"fioeflor/backend/internal/store"
	"fioeflor/backend/internal/xid"
)

type Store struct {
	mu        sync.RWMutex
	supplies  map[string]domain.Supply
	materials map[string]domain.Material
	products  map[string]domain.Product
	customers map[string]domain.Customer
	salesByID map[string]domain.Sale
}

func NewSeeded() *Store {
	dec := decimal.NewFromFloat

	supplies := []domain.Supply{
		{ID: "ins-arame", Name: "Arame Floral", Stock: dec(10), Unit: "metros", Category: domain.SupplyCategoryWire, UnitCost: dec(0.80)},
		{ID: "ins-rosa", Name: "Rosa Vermelha", Stock: dec(60), Unit: "unidades", Category: domain.SupplyCategoryStem, UnitCost: dec(2.50)},
		{ID: "ins-papel", Name: "Papel Kraft", Stock: dec(25), Unit: "metros", Category: domain.SupplyCategoryWrapping, UnitCost: dec(1.20)},
		{ID: "ins-fita", Name: "Fita de Cetim", Stock: dec(40), Unit: "metros", Category: domain.SupplyCategoryOther, UnitCost: dec(0.50)},
	}

	materials := []domain.Material{
		{
			ID:   "mat-estrutura",
			Name: "Estrutura Aramada",
			Supplies: []domain.MaterialSupply{
				{SupplyID: "ins-arame", Quantity: dec(2)},
			},
		},
		{
			ID:   "mat-laco",
			Name: "Laço Decorado",
			Supplies: []domain.MaterialSupply{
				{SupplyID: "ins-fita", Quantity: dec(1.5)},
			},
		},
	}

	products := []domain.Product{
		{
			ID:    "prod-buque",
			Name:  "Buquê Clássico",
			Price: dec(120),
			Cost:  dec(45),
			Materials: []domain.ProductMaterial{
				{MaterialID: "mat-estrutura", Quantity: dec(1)},
			},
			Supplies: []domain.ProductSupply{
				{SupplyID: "ins-arame", Quantity: dec(0.5)},
			},
		},
		{
			ID:    "prod-arranjo",
			Name:  "Arranjo de Rosas",
			Price: dec(85),
			Cost:  dec(30),
			Materials: []domain.ProductMaterial{
				{MaterialID: "mat-laco", Quantity: dec(1)},
			},
			Supplies: []domain.ProductSupply{
				{SupplyID: "ins-rosa", Quantity: dec(6)},
				{SupplyID: "ins-papel", Quantity: dec(1)},
			},
		},
	}

	customers := []domain.Customer{
		{ID: "cli-maria", Name: "Maria Souza", Phone: "(11) 98888-0001"},
		{ID: "cli-joao", Name: "João Pereira", Address: "Rua das Flores, 12"},
	}

	supplyMap := make(map[string]domain.Supply, len(supplies))
	for _, sp := range supplies {
		supplyMap[sp.ID] = sp
	}
	materialMap := make(map[string]domain.Material, len(materials))
	for _, m := range materials {
		materialMap[m.ID] = m
	}
	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	customerMap := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		customerMap[c.ID] = c
	}

	return &Store{
		supplies:  supplyMap,
		materials: materialMap,
		products:  productMap,
		customers: customerMap,
		salesByID: make(map[string]domain.Sale),
	}
}

func (s *Store) ListSupplies(_ context.Context) ([]domain.Supply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplies := make([]domain.Supply, 0, len(s.supplies))
	for _, sp := range s.supplies {
		supplies = append(supplies, sp)
	}
	slices.SortFunc(supplies, func(a, b domain.Supply) int {
		return cmpString(a.Name, b.Name)
	})
	return supplies, nil
}

func (s *Store) GetSupply(_ context.Context, id string) (*domain.Supply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supply, exists := s.supplies[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySupply := supply
	return &copySupply, nil
}

func (s *Store) CreateSupply(_ context.Context, supply domain.Supply) (*domain.Supply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(supply.Name) == "" {
		return nil, store.ErrValidation
	}
	if supply.Stock.IsNegative() {
		return nil, store.ErrValidation
	}
	if supply.ID == "" {
		supply.ID = xid.New("ins")
	}

	s.supplies[supply.ID] = supply
	created := supply
	return &created, nil
}

func (s *Store) UpdateSupply(_ context.Context, supply domain.Supply) (*domain.Supply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.supplies[supply.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(supply.Name) == "" || supply.Stock.IsNegative() {
		return nil, store.ErrValidation
	}

	s.supplies[supply.ID] = supply
	updated := supply
	return &updated, nil
}

func (s *Store) DeleteSupply(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.supplies[id]; !exists {
		return store.ErrNotFound
	}
	for _, m := range s.materials {
		for _, link := range m.Supplies {
			if link.SupplyID == id {
				return store.ErrValidation
			}
		}
	}
	for _, p := range s.products {
		for _, link := range p.Supplies {
			if link.SupplyID == id {
				return store.ErrValidation
			}
		}
	}
	delete(s.supplies, id)
	return nil
}

func (s *Store) AdjustSupplyStock(_ context.Context, id string, delta decimal.Decimal) (*domain.Supply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supply, exists := s.supplies[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	next := supply.Stock.Add(delta)
	if next.IsNegative() {
		return nil, &store.StockError{
			SupplyID:   supply.ID,
			SupplyName: supply.Name,
			Unit:       supply.Unit,
			Available:  supply.Stock,
			Required:   delta.Neg(),
		}
	}
	supply.Stock = next
	s.supplies[id] = supply
	updated := supply
	return &updated, nil
}

func (s *Store) ListMaterials(_ context.Context) ([]domain.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	materials := make([]domain.Material, 0, len(s.materials))
	for _, m := range s.materials {
		materials = append(materials, s.joinMaterial(m))
	}
	slices.SortFunc(materials, func(a, b domain.Material) int {
		return cmpString(a.Name, b.Name)
	})
	return materials, nil
}

func (s *Store) GetMaterial(_ context.Context, id string) (*domain.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	material, exists := s.materials[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	joined := s.joinMaterial(material)
	return &joined, nil
}

func (s *Store) CreateMaterial(_ context.Context, material domain.Material) (*domain.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(material.Name) == "" {
		return nil, store.ErrValidation
	}
	for _, link := range material.Supplies {
		if !link.Quantity.IsPositive() {
			return nil, store.ErrInvalidQuantity
		}
		if _, exists := s.supplies[link.SupplyID]; !exists {
			return nil, store.ErrNotFound
		}
	}
	if material.ID == "" {
		material.ID = xid.New("mat")
	}

	s.materials[material.ID] = cloneMaterial(material)
	joined := s.joinMaterial(s.materials[material.ID])
	return &joined, nil
}

func (s *Store) UpdateMaterial(_ context.Context, material domain.Material) (*domain.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.materials[material.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(material.Name) == "" {
		return nil, store.ErrValidation
	}
	for _, link := range material.Supplies {
		if !link.Quantity.IsPositive() {
			return nil, store.ErrInvalidQuantity
		}
		if _, exists := s.supplies[link.SupplyID]; !exists {
			return nil, store.ErrNotFound
		}
	}

	s.materials[material.ID] = cloneMaterial(material)
	joined := s.joinMaterial(s.materials[material.ID])
	return &joined, nil
}

func (s *Store) DeleteMaterial(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.materials[id]; !exists {
		return store.ErrNotFound
	}
	for _, p := range s.products {
		for _, link := range p.Materials {
			if link.MaterialID == id {
				return store.ErrValidation
			}
		}
	}
	delete(s.materials, id)
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, s.joinProduct(p))
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	joined := s.joinProduct(product)
	return &joined, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateProductLocked(product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	s.products[product.ID] = cloneProduct(product)
	joined := s.joinProduct(s.products[product.ID])
	return &joined, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if err := s.validateProductLocked(product); err != nil {
		return nil, err
	}

	s.products[product.ID] = cloneProduct(product)
	joined := s.joinProduct(s.products[product.ID])
	return &joined, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	for _, sale := range s.salesByID {
		for _, item := range sale.Items {
			if item.ProductID == id {
				return store.ErrValidation
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrValidation
	}
	if customer.ID == "" {
		customer.ID = xid.New("cli")
	}

	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[customer.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrValidation
	}

	s.customers[customer.ID] = customer
	updated := customer
	return &updated, nil
}

// DeleteCustomer detaches the customer from past sales instead of
// rejecting the delete; sales keep their totals with a null customer.
func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[id]; !exists {
		return store.ErrNotFound
	}
	for saleID, sale := range s.salesByID {
		if sale.CustomerID != nil && *sale.CustomerID == id {
			sale.CustomerID = nil
			s.salesByID[saleID] = sale
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if filter.From != nil && sale.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && sale.Date.After(*filter.To) {
			continue
		}
		sales = append(sales, s.joinSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	joined := s.joinSale(sale)
	return &joined, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, requirements []domain.SupplyRequirement) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	if sale.CustomerID != nil {
		if _, exists := s.customers[*sale.CustomerID]; !exists {
			return nil, store.ErrNotFound
		}
	}
	for _, item := range sale.Items {
		if !item.Quantity.IsPositive() {
			return nil, store.ErrInvalidQuantity
		}
		if _, exists := s.products[item.ProductID]; !exists {
			return nil, store.ErrNotFound
		}
	}

	// Requirements are replayed against a working copy in path order, so
	// each path is checked against stock already reduced by the previous
	// ones. Nothing is committed until every path passes.
	pending := make(map[string]decimal.Decimal, len(requirements))
	for _, req := range requirements {
		supply, exists := s.supplies[req.SupplyID]
		if !exists {
			return nil, store.ErrNotFound
		}
		available, ok := pending[req.SupplyID]
		if !ok {
			available = supply.Stock
		}
		if available.LessThan(req.Quantity) {
			return nil, &store.StockError{
				SupplyID:   supply.ID,
				SupplyName: supply.Name,
				Unit:       supply.Unit,
				Via:        req.Via,
				Available:  available,
				Required:   req.Quantity,
			}
		}
		pending[req.SupplyID] = available.Sub(req.Quantity)
	}

	for supplyID, remaining := range pending {
		supply := s.supplies[supplyID]
		supply.Stock = remaining
		s.supplies[supplyID] = supply
	}

	if sale.ID == "" {
		sale.ID = xid.New("venda")
	}
	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}

	s.salesByID[sale.ID] = cloneSale(sale)
	joined := s.joinSale(s.salesByID[sale.ID])
	return &joined, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.salesByID, id)
	return nil
}

func (s *Store) GetDashboardStats(_ context.Context, now time.Time) (domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	monthStart := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	stats := domain.DashboardStats{
		MonthRevenue:   decimal.Zero,
		TotalProducts:  len(s.products),
		TotalCustomers: len(s.customers),
		RecentSales:    make([]domain.Sale, 0, 5),
		BestSellers:    make([]domain.BestSeller, 0, 5),
	}

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		sales = append(sales, s.joinSale(sale))
		if !sale.Date.Before(monthStart) {
			stats.MonthRevenue = stats.MonthRevenue.Add(sale.Total)
		}
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	if len(sales) > 5 {
		stats.RecentSales = sales[:5]
	} else {
		stats.RecentSales = sales
	}
	stats.BestSellers = bestSellersLocked(s.salesByID, s.products, 5)
	return stats, nil
}

func (s *Store) GetSalesReport(_ context.Context, filter store.SaleFilter) (domain.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.SalesReport{
		From:    filter.From,
		To:      filter.To,
		Revenue: decimal.Zero,
		Sales:   make([]domain.Sale, 0, 16),
	}
	inRange := make(map[string]domain.Sale)
	for id, sale := range s.salesByID {
		if filter.From != nil && sale.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && sale.Date.After(*filter.To) {
			continue
		}
		inRange[id] = sale
		report.Revenue = report.Revenue.Add(sale.Total)
		report.SaleCount++
		report.Sales = append(report.Sales, s.joinSale(sale))
	}
	slices.SortFunc(report.Sales, func(a, b domain.Sale) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	report.BestSellers = bestSellersLocked(inRange, s.products, 10)
	return report, nil
}

func bestSellersLocked(sales map[string]domain.Sale, products map[string]domain.Product, limit int) []domain.BestSeller {
	byProduct := map[string]*domain.BestSeller{}
	for _, sale := range sales {
		for _, item := range sale.Items {
			entry := byProduct[item.ProductID]
			if entry == nil {
				name := item.ProductID
				if p, ok := products[item.ProductID]; ok {
					name = p.Name
				}
				entry = &domain.BestSeller{ProductID: item.ProductID, ProductName: name, Quantity: decimal.Zero, Revenue: decimal.Zero}
				byProduct[item.ProductID] = entry
			}
			entry.Quantity = entry.Quantity.Add(item.Quantity)
			entry.Revenue = entry.Revenue.Add(item.Quantity.Mul(item.UnitPrice))
		}
	}

	result := make([]domain.BestSeller, 0, len(byProduct))
	for _, entry := range byProduct {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.BestSeller) int {
		if a.Quantity.Equal(b.Quantity) {
			return cmpString(a.ProductName, b.ProductName)
		}
		if a.Quantity.GreaterThan(b.Quantity) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (s *Store) validateProductLocked(product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return store.ErrValidation
	}
	if product.Price.IsNegative() || product.Cost.IsNegative() {
		return store.ErrValidation
	}
	for _, link := range product.Materials {
		if !link.Quantity.IsPositive() {
			return store.ErrInvalidQuantity
		}
		if _, exists := s.materials[link.MaterialID]; !exists {
			return store.ErrNotFound
		}
	}
	for _, link := range product.Supplies {
		if !link.Quantity.IsPositive() {
			return store.ErrInvalidQuantity
		}
		if _, exists := s.supplies[link.SupplyID]; !exists {
			return store.ErrNotFound
		}
	}
	return nil
}

func (s *Store) joinMaterial(material domain.Material) domain.Material {
	joined := cloneMaterial(material)
	for i, link := range joined.Supplies {
		if supply, ok := s.supplies[link.SupplyID]; ok {
			copySupply := supply
			joined.Supplies[i].Supply = &copySupply
		}
	}
	return joined
}

func (s *Store) joinProduct(product domain.Product) domain.Product {
	joined := cloneProduct(product)
	for i, link := range joined.Materials {
		if material, ok := s.materials[link.MaterialID]; ok {
			joinedMaterial := s.joinMaterial(material)
			joined.Materials[i].Material = &joinedMaterial
		}
	}
	for i, link := range joined.Supplies {
		if supply, ok := s.supplies[link.SupplyID]; ok {
			copySupply := supply
			joined.Supplies[i].Supply = &copySupply
		}
	}
	return joined
}

func (s *Store) joinSale(sale domain.Sale) domain.Sale {
	joined := cloneSale(sale)
	if joined.CustomerID != nil {
		if customer, ok := s.customers[*joined.CustomerID]; ok {
			copyCustomer := customer
			joined.Customer = &copyCustomer
		}
	}
	for i, item := range joined.Items {
		if product, ok := s.products[item.ProductID]; ok {
			joinedProduct := s.joinProduct(product)
			joined.Items[i].Product = &joinedProduct
		}
	}
	return joined
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneMaterial(src domain.Material) domain.Material {
	dup := src
	links := make([]domain.MaterialSupply, len(src.Supplies))
	copy(links, src.Supplies)
	for i := range links {
		links[i].Supply = nil
	}
	dup.Supplies = links
	return dup
}

func cloneProduct(src domain.Product) domain.Product {
	dup := src
	images := make([]string, len(src.Images))
	copy(images, src.Images)
	dup.Images = images
	materials := make([]domain.ProductMaterial, len(src.Materials))
	copy(materials, src.Materials)
	for i := range materials {
		materials[i].Material = nil
	}
	dup.Materials = materials
	supplies := make([]domain.ProductSupply, len(src.Supplies))
	copy(supplies, src.Supplies)
	for i := range supplies {
		supplies[i].Supply = nil
	}
	dup.Supplies = supplies
	return dup
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	if src.CustomerID != nil {
		id := *src.CustomerID
		dup.CustomerID = &id
	}
	dup.Customer = nil
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	for i := range items {
		items[i].Product = nil
	}
	dup.Items = items
	return dup
}
