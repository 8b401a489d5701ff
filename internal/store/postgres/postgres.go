package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"fioeflor/backend/internal/domain"
	"fioeflor/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListSupplies(ctx context.Context) ([]domain.Supply, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nome, estoque, unidade, categoria, custo_unitario
		FROM insumos
		ORDER BY nome
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	supplies := make([]domain.Supply, 0, 64)
	for rows.Next() {
		var supply domain.Supply
		if err := rows.Scan(&supply.ID, &supply.Name, &supply.Stock, &supply.Unit, &supply.Category, &supply.UnitCost); err != nil {
			return nil, err
		}
		supplies = append(supplies, supply)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return supplies, nil
}

func (s *Store) GetSupply(ctx context.Context, id string) (*domain.Supply, error) {
	var supply domain.Supply
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nome, estoque, unidade, categoria, custo_unitario
		FROM insumos
		WHERE id = $1
	`, id).Scan(&supply.ID, &supply.Name, &supply.Stock, &supply.Unit, &supply.Category, &supply.UnitCost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundf("Insumo não encontrado")
		}
		return nil, err
	}
	return &supply, nil
}

func (s *Store) CreateSupply(ctx context.Context, supply domain.Supply) (*domain.Supply, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insumos (id, nome, estoque, unidade, categoria, custo_unitario, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, supply.ID, supply.Name, supply.Stock, supply.Unit, supply.Category, supply.UnitCost)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.Invalidf("Insumo já existe")
		}
		return nil, err
	}
	created := supply
	return &created, nil
}

func (s *Store) UpdateSupply(ctx context.Context, supply domain.Supply) (*domain.Supply, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE insumos
		SET nome = $2, estoque = $3, unidade = $4, categoria = $5, custo_unitario = $6, updated_at = now()
		WHERE id = $1
	`, supply.ID, supply.Name, supply.Stock, supply.Unit, supply.Category, supply.UnitCost)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.NotFoundf("Insumo não encontrado")
	}
	updated := supply
	return &updated, nil
}

func (s *Store) DeleteSupply(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM insumos WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrValidation
		}
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.NotFoundf("Insumo não encontrado")
	}
	return nil
}

func (s *Store) AdjustSupplyStock(ctx context.Context, id string, delta decimal.Decimal) (*domain.Supply, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var supply domain.Supply
	err = tx.QueryRowContext(ctx, `
		SELECT id, nome, estoque, unidade, categoria, custo_unitario
		FROM insumos
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&supply.ID, &supply.Name, &supply.Stock, &supply.Unit, &supply.Category, &supply.UnitCost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundf("Insumo não encontrado")
		}
		return nil, err
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

	_, err = tx.ExecContext(ctx, `
		UPDATE insumos SET estoque = $2, updated_at = now() WHERE id = $1
	`, id, next)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	supply.Stock = next
	return &supply, nil
}

func (s *Store) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nome, descricao
		FROM materiais
		ORDER BY nome
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := make([]domain.Material, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var material domain.Material
		if err := rows.Scan(&material.ID, &material.Name, &material.Description); err != nil {
			return nil, err
		}
		materials = append(materials, material)
		ids = append(ids, material.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	linksByMaterial, err := s.materialLinks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range materials {
		materials[i].Supplies = linksByMaterial[materials[i].ID]
		if materials[i].Supplies == nil {
			materials[i].Supplies = make([]domain.MaterialSupply, 0)
		}
	}
	return materials, nil
}

func (s *Store) GetMaterial(ctx context.Context, id string) (*domain.Material, error) {
	var material domain.Material
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nome, descricao
		FROM materiais
		WHERE id = $1
	`, id).Scan(&material.ID, &material.Name, &material.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundf("Material não encontrado")
		}
		return nil, err
	}

	links, err := s.materialLinks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	material.Supplies = links[id]
	if material.Supplies == nil {
		material.Supplies = make([]domain.MaterialSupply, 0)
	}
	return &material, nil
}

// materialLinks loads the supply composition rows for the given material
// ids, with the referenced supply joined in.
func (s *Store) materialLinks(ctx context.Context, materialIDs []string) (map[string][]domain.MaterialSupply, error) {
	result := make(map[string][]domain.MaterialSupply, len(materialIDs))
	if len(materialIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT mi.material_id, mi.insumo_id, mi.quantidade,
			i.id, i.nome, i.estoque, i.unidade, i.categoria, i.custo_unitario
		FROM material_insumos mi
		JOIN insumos i ON i.id = mi.insumo_id
		WHERE mi.material_id = ANY($1)
		ORDER BY i.nome
	`, materialIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var materialID string
		var link domain.MaterialSupply
		var supply domain.Supply
		if err := rows.Scan(&materialID, &link.SupplyID, &link.Quantity,
			&supply.ID, &supply.Name, &supply.Stock, &supply.Unit, &supply.Category, &supply.UnitCost); err != nil {
			return nil, err
		}
		link.Supply = &supply
		result[materialID] = append(result[materialID], link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateMaterial(ctx context.Context, material domain.Material) (*domain.Material, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO materiais (id, nome, descricao, created_at, updated_at)
		VALUES ($1,$2,$3,now(),now())
	`, material.ID, material.Name, material.Description)
	if err != nil {
		return nil, err
	}
	if err := insertMaterialLinks(ctx, tx, material.ID, material.Supplies); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetMaterial(ctx, material.ID)
}

func (s *Store) UpdateMaterial(ctx context.Context, material domain.Material) (*domain.Material, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE materiais SET nome = $2, descricao = $3, updated_at = now() WHERE id = $1
	`, material.ID, material.Name, material.Description)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.NotFoundf("Material não encontrado")
	}

	// Composition is replaced wholesale on update.
	if _, err := tx.ExecContext(ctx, `DELETE FROM material_insumos WHERE material_id = $1`, material.ID); err != nil {
		return nil, err
	}
	if err := insertMaterialLinks(ctx, tx, material.ID, material.Supplies); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetMaterial(ctx, material.ID)
}

func insertMaterialLinks(ctx context.Context, tx *sql.Tx, materialID string, links []domain.MaterialSupply) error {
	for _, link := range links {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO material_insumos (material_id, insumo_id, quantidade)
			VALUES ($1,$2,$3)
		`, materialID, link.SupplyID, link.Quantity)
		if err != nil {
			if isForeignKeyViolation(err) {
				return store.NotFoundf("Insumo %s não encontrado", link.SupplyID)
			}
			return err
		}
	}
	return nil
}

func (s *Store) DeleteMaterial(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM material_insumos WHERE material_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM materiais WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrValidation
		}
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.NotFoundf("Material não encontrado")
	}
	return tx.Commit()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nome, descricao, preco, custo, imagens
		FROM produtos
		ORDER BY nome
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
		ids = append(ids, product.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachProductLinks(ctx, products, ids); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, nome, descricao, preco, custo, imagens
		FROM produtos
		WHERE id = $1
	`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundf("Produto %s não encontrado", id)
		}
		return nil, err
	}

	products := []domain.Product{product}
	if err := s.attachProductLinks(ctx, products, []string{id}); err != nil {
		return nil, err
	}
	return &products[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	var imagesJSON []byte
	if err := row.Scan(&product.ID, &product.Name, &product.Description, &product.Price, &product.Cost, &imagesJSON); err != nil {
		return domain.Product{}, err
	}
	product.Images = make([]string, 0)
	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &product.Images); err != nil {
			return domain.Product{}, err
		}
	}
	return product, nil
}

func (s *Store) attachProductLinks(ctx context.Context, products []domain.Product, ids []string) error {
	for i := range products {
		products[i].Materials = make([]domain.ProductMaterial, 0)
		products[i].Supplies = make([]domain.ProductSupply, 0)
	}
	if len(ids) == 0 {
		return nil
	}
	index := make(map[string]int, len(products))
	for i, product := range products {
		index[product.ID] = i
	}

	materialRows, err := s.db.QueryContext(ctx, `
		SELECT pm.produto_id, pm.material_id, pm.quantidade, m.id, m.nome, m.descricao
		FROM produto_materiais pm
		JOIN materiais m ON m.id = pm.material_id
		WHERE pm.produto_id = ANY($1)
		ORDER BY m.nome
	`, ids)
	if err != nil {
		return err
	}
	materialIDs := make([]string, 0, 16)
	materialRefs := make([]*domain.Material, 0, 16)
	for materialRows.Next() {
		var productID string
		var link domain.ProductMaterial
		var material domain.Material
		if err := materialRows.Scan(&productID, &link.MaterialID, &link.Quantity, &material.ID, &material.Name, &material.Description); err != nil {
			_ = materialRows.Close()
			return err
		}
		link.Material = &material
		materialIDs = append(materialIDs, material.ID)
		materialRefs = append(materialRefs, link.Material)
		if i, ok := index[productID]; ok {
			products[i].Materials = append(products[i].Materials, link)
		}
	}
	if err := materialRows.Err(); err != nil {
		_ = materialRows.Close()
		return err
	}
	_ = materialRows.Close()

	// Composition resolution needs each joined material's own supply links.
	if len(materialIDs) > 0 {
		linksByMaterial, err := s.materialLinks(ctx, materialIDs)
		if err != nil {
			return err
		}
		for _, material := range materialRefs {
			material.Supplies = linksByMaterial[material.ID]
			if material.Supplies == nil {
				material.Supplies = make([]domain.MaterialSupply, 0)
			}
		}
	}

	supplyRows, err := s.db.QueryContext(ctx, `
		SELECT pi.produto_id, pi.insumo_id, pi.quantidade,
			i.id, i.nome, i.estoque, i.unidade, i.categoria, i.custo_unitario
		FROM produto_insumos pi
		JOIN insumos i ON i.id = pi.insumo_id
		WHERE pi.produto_id = ANY($1)
		ORDER BY i.nome
	`, ids)
	if err != nil {
		return err
	}
	defer supplyRows.Close()
	for supplyRows.Next() {
		var productID string
		var link domain.ProductSupply
		var supply domain.Supply
		if err := supplyRows.Scan(&productID, &link.SupplyID, &link.Quantity,
			&supply.ID, &supply.Name, &supply.Stock, &supply.Unit, &supply.Category, &supply.UnitCost); err != nil {
			return err
		}
		link.Supply = &supply
		if i, ok := index[productID]; ok {
			products[i].Supplies = append(products[i].Supplies, link)
		}
	}
	return supplyRows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	imagesJSON, err := json.Marshal(product.Images)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO produtos (id, nome, descricao, preco, custo, imagens, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, product.ID, product.Name, product.Description, product.Price, product.Cost, imagesJSON)
	if err != nil {
		return nil, err
	}
	if err := insertProductLinks(ctx, tx, product); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	imagesJSON, err := json.Marshal(product.Images)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE produtos
		SET nome = $2, descricao = $3, preco = $4, custo = $5, imagens = $6, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Description, product.Price, product.Cost, imagesJSON)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.NotFoundf("Produto %s não encontrado", product.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM produto_materiais WHERE produto_id = $1`, product.ID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM produto_insumos WHERE produto_id = $1`, product.ID); err != nil {
		return nil, err
	}
	if err := insertProductLinks(ctx, tx, product); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, product.ID)
}

func insertProductLinks(ctx context.Context, tx *sql.Tx, product domain.Product) error {
	for _, link := range product.Materials {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO produto_materiais (produto_id, material_id, quantidade)
			VALUES ($1,$2,$3)
		`, product.ID, link.MaterialID, link.Quantity)
		if err != nil {
			if isForeignKeyViolation(err) {
				return store.NotFoundf("Material %s não encontrado", link.MaterialID)
			}
			return err
		}
	}
	for _, link := range product.Supplies {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO produto_insumos (produto_id, insumo_id, quantidade)
			VALUES ($1,$2,$3)
		`, product.ID, link.SupplyID, link.Quantity)
		if err != nil {
			if isForeignKeyViolation(err) {
				return store.NotFoundf("Insumo %s não encontrado", link.SupplyID)
			}
			return err
		}
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM produto_materiais WHERE produto_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM produto_insumos WHERE produto_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM produtos WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrValidation
		}
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.NotFoundf("Produto %s não encontrado", id)
	}
	return tx.Commit()
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nome, telefone, endereco
		FROM clientes
		ORDER BY nome
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Address); err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nome, telefone, endereco
		FROM clientes
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundf("Cliente não encontrado")
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clientes (id, nome, telefone, endereco, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now(),now())
	`, customer.ID, customer.Name, customer.Phone, customer.Address)
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clientes SET nome = $2, telefone = $3, endereco = $4, updated_at = now() WHERE id = $1
	`, customer.ID, customer.Name, customer.Phone, customer.Address)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.NotFoundf("Cliente não encontrado")
	}
	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	// vendas.cliente_id carries ON DELETE SET NULL, so past sales keep
	// their history with the customer detached.
	res, err := s.db.ExecContext(ctx, `DELETE FROM clientes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.NotFoundf("Cliente não encontrado")
	}
	return nil
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, valor_total, cliente_id
		FROM vendas
		WHERE ($1::timestamptz IS NULL OR data >= $1)
			AND ($2::timestamptz IS NULL OR data <= $2)
		ORDER BY data DESC
	`, nullTimePtr(filter.From), nullTimePtr(filter.To))
	if err != nil {
		return nil, err
	}
	sales, err := collectSales(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachSaleDetails(ctx, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, valor_total, cliente_id
		FROM vendas
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	sales, err := collectSales(rows)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, store.NotFoundf("Venda não encontrada")
	}
	if err := s.attachSaleDetails(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func collectSales(rows *sql.Rows) ([]domain.Sale, error) {
	defer rows.Close()
	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		var customerID sql.NullString
		if err := rows.Scan(&sale.ID, &sale.Date, &sale.Total, &customerID); err != nil {
			return nil, err
		}
		sale.Date = sale.Date.UTC()
		if customerID.Valid {
			cid := customerID.String
			sale.CustomerID = &cid
		}
		sale.Items = make([]domain.SaleItem, 0, 4)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

// attachSaleDetails joins the line items (with their products) and the
// customer onto each sale.
func (s *Store) attachSaleDetails(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, 0, len(sales))
	index := make(map[string]int, len(sales))
	for i, sale := range sales {
		ids = append(ids, sale.ID)
		index[sale.ID] = i
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT vp.venda_id, vp.produto_id, vp.quantidade, vp.preco_unit,
			p.id, p.nome, p.descricao, p.preco, p.custo, p.imagens
		FROM venda_produtos vp
		JOIN produtos p ON p.id = vp.produto_id
		WHERE vp.venda_id = ANY($1)
		ORDER BY vp.id
	`, ids)
	if err != nil {
		return err
	}
	for itemRows.Next() {
		var saleID string
		var item domain.SaleItem
		var product domain.Product
		var imagesJSON []byte
		if err := itemRows.Scan(&saleID, &item.ProductID, &item.Quantity, &item.UnitPrice,
			&product.ID, &product.Name, &product.Description, &product.Price, &product.Cost, &imagesJSON); err != nil {
			_ = itemRows.Close()
			return err
		}
		product.Images = make([]string, 0)
		if len(imagesJSON) > 0 {
			if err := json.Unmarshal(imagesJSON, &product.Images); err != nil {
				_ = itemRows.Close()
				return err
			}
		}
		item.Product = &product
		if i, ok := index[saleID]; ok {
			sales[i].Items = append(sales[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return err
	}
	_ = itemRows.Close()

	customerIDs := make([]string, 0, len(sales))
	for _, sale := range sales {
		if sale.CustomerID != nil {
			customerIDs = append(customerIDs, *sale.CustomerID)
		}
	}
	if len(customerIDs) == 0 {
		return nil
	}

	customerRows, err := s.db.QueryContext(ctx, `
		SELECT id, nome, telefone, endereco
		FROM clientes
		WHERE id = ANY($1)
	`, customerIDs)
	if err != nil {
		return err
	}
	defer customerRows.Close()
	customers := make(map[string]domain.Customer, len(customerIDs))
	for customerRows.Next() {
		var customer domain.Customer
		if err := customerRows.Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Address); err != nil {
			return err
		}
		customers[customer.ID] = customer
	}
	if err := customerRows.Err(); err != nil {
		return err
	}
	for i := range sales {
		if sales[i].CustomerID == nil {
			continue
		}
		if customer, ok := customers[*sales[i].CustomerID]; ok {
			c := customer
			sales[i].Customer = &c
		}
	}
	return nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, requirements []domain.SupplyRequirement) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if len(requirements) > 0 {
		supplyIDs := make([]string, 0, len(requirements))
		seen := make(map[string]struct{}, len(requirements))
		for _, req := range requirements {
			if _, ok := seen[req.SupplyID]; ok {
				continue
			}
			seen[req.SupplyID] = struct{}{}
			supplyIDs = append(supplyIDs, req.SupplyID)
		}

		stockRows, err := tx.QueryContext(ctx, `
			SELECT id, nome, estoque, unidade
			FROM insumos
			WHERE id = ANY($1)
			FOR UPDATE
		`, supplyIDs)
		if err != nil {
			return nil, err
		}
		type supplyState struct {
			name  string
			unit  string
			stock decimal.Decimal
		}
		stock := make(map[string]supplyState, len(supplyIDs))
		for stockRows.Next() {
			var id string
			var state supplyState
			if err := stockRows.Scan(&id, &state.name, &state.stock, &state.unit); err != nil {
				_ = stockRows.Close()
				return nil, err
			}
			stock[id] = state
		}
		if err := stockRows.Err(); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		_ = stockRows.Close()

		// Requirements are applied path by path so each check sees the
		// decrements of the paths before it.
		for _, req := range requirements {
			state, ok := stock[req.SupplyID]
			if !ok {
				return nil, store.NotFoundf("Insumo não encontrado")
			}
			if state.stock.LessThan(req.Quantity) {
				return nil, &store.StockError{
					SupplyID:   req.SupplyID,
					SupplyName: state.name,
					Unit:       state.unit,
					Via:        req.Via,
					Available:  state.stock,
					Required:   req.Quantity,
				}
			}
			state.stock = state.stock.Sub(req.Quantity)
			stock[req.SupplyID] = state
		}

		for id, state := range stock {
			_, err := tx.ExecContext(ctx, `
				UPDATE insumos SET estoque = $2, updated_at = now() WHERE id = $1
			`, id, state.stock)
			if err != nil {
				return nil, err
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vendas (id, data, valor_total, cliente_id, created_at)
		VALUES ($1,$2,$3,$4,now())
	`, sale.ID, sale.Date, sale.Total, nullStringPtr(sale.CustomerID))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.NotFoundf("Cliente não encontrado")
		}
		return nil, err
	}

	for _, item := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO venda_produtos (venda_id, produto_id, quantidade, preco_unit)
			VALUES ($1,$2,$3,$4)
		`, sale.ID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.NotFoundf("Produto %s não encontrado", item.ProductID)
			}
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSale(ctx, sale.ID)
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM venda_produtos WHERE venda_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM vendas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.NotFoundf("Venda não encontrada")
	}
	return tx.Commit()
}

func (s *Store) GetDashboardStats(ctx context.Context, now time.Time) (domain.DashboardStats, error) {
	stats := domain.DashboardStats{
		MonthRevenue: decimal.Zero,
		RecentSales:  make([]domain.Sale, 0, 5),
		BestSellers:  make([]domain.BestSeller, 0, 5),
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(valor_total), 0)
		FROM vendas
		WHERE data >= $1
	`, monthStart).Scan(&stats.MonthRevenue)
	if err != nil {
		return stats, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM produtos`).Scan(&stats.TotalProducts); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clientes`).Scan(&stats.TotalCustomers); err != nil {
		return stats, err
	}

	recentRows, err := s.db.QueryContext(ctx, `
		SELECT id, data, valor_total, cliente_id
		FROM vendas
		ORDER BY data DESC
		LIMIT 5
	`)
	if err != nil {
		return stats, err
	}
	recent, err := collectSales(recentRows)
	if err != nil {
		return stats, err
	}
	if err := s.attachSaleDetails(ctx, recent); err != nil {
		return stats, err
	}
	stats.RecentSales = recent

	bestSellers, err := s.bestSellers(ctx, store.SaleFilter{}, 5)
	if err != nil {
		return stats, err
	}
	stats.BestSellers = bestSellers

	return stats, nil
}

func (s *Store) GetSalesReport(ctx context.Context, filter store.SaleFilter) (domain.SalesReport, error) {
	report := domain.SalesReport{
		From:        filter.From,
		To:          filter.To,
		Revenue:     decimal.Zero,
		Sales:       make([]domain.Sale, 0, 16),
		BestSellers: make([]domain.BestSeller, 0, 10),
	}

	sales, err := s.ListSales(ctx, filter)
	if err != nil {
		return report, err
	}
	report.Sales = sales
	report.SaleCount = len(sales)
	for _, sale := range sales {
		report.Revenue = report.Revenue.Add(sale.Total)
	}

	bestSellers, err := s.bestSellers(ctx, filter, 10)
	if err != nil {
		return report, err
	}
	report.BestSellers = bestSellers

	return report, nil
}

func (s *Store) bestSellers(ctx context.Context, filter store.SaleFilter, limit int) ([]domain.BestSeller, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vp.produto_id, p.nome,
			COALESCE(SUM(vp.quantidade), 0),
			COALESCE(SUM(vp.quantidade * vp.preco_unit), 0)
		FROM venda_produtos vp
		JOIN vendas v ON v.id = vp.venda_id
		JOIN produtos p ON p.id = vp.produto_id
		WHERE ($1::timestamptz IS NULL OR v.data >= $1)
			AND ($2::timestamptz IS NULL OR v.data <= $2)
		GROUP BY vp.produto_id, p.nome
		ORDER BY SUM(vp.quantidade) DESC, p.nome
		LIMIT $3
	`, nullTimePtr(filter.From), nullTimePtr(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sellers := make([]domain.BestSeller, 0, limit)
	for rows.Next() {
		var seller domain.BestSeller
		if err := rows.Scan(&seller.ProductID, &seller.ProductName, &seller.Quantity, &seller.Revenue); err != nil {
			return nil, err
		}
		sellers = append(sellers, seller)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sellers, nil
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
