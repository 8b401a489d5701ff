package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fioeflor/backend/internal/domain"
	"fioeflor/backend/internal/store"
)

func TestCreateSaleDecrementsSupplyStockAtomically(t *testing.T) {
	databaseURL := os.Getenv("FIOEFLOR_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set FIOEFLOR_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	supplyID := fmt.Sprintf("ins-it-%d", stamp)
	productID := fmt.Sprintf("prod-it-%d", stamp)
	saleID := fmt.Sprintf("venda-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM venda_produtos WHERE venda_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM vendas WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM produto_insumos WHERE produto_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM produtos WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM insumos WHERE id = $1`, supplyID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO insumos (id, nome, estoque, unidade, categoria, custo_unitario, created_at, updated_at)
		VALUES ($1, 'Arame IT', 10, 'metros', 'Ferro', 0.80, now(), now())
	`, supplyID); err != nil {
		t.Fatalf("insert supply: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO produtos (id, nome, descricao, preco, custo, imagens, created_at, updated_at)
		VALUES ($1, 'Buquê IT', '', 120, 0, '[]', now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO produto_insumos (produto_id, insumo_id, quantidade)
		VALUES ($1, $2, 2.5)
	`, productID, supplyID); err != nil {
		t.Fatalf("insert product link: %v", err)
	}

	sale := domain.Sale{
		ID:    saleID,
		Date:  time.Now().UTC(),
		Total: decimal.RequireFromString("360"),
		Items: []domain.SaleItem{
			{ProductID: productID, Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(120)},
		},
	}
	requirements := []domain.SupplyRequirement{
		{SupplyID: supplyID, SupplyName: "Arame IT", Unit: "metros", Quantity: decimal.RequireFromString("7.5"), Via: domain.RequirementViaDirect},
	}

	created, err := s.CreateSale(ctx, sale, requirements)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.Total.String() != "360" {
		t.Fatalf("expected total 360, got %s", created.Total.String())
	}

	var stock decimal.Decimal
	if err := s.db.QueryRowContext(ctx, `
		SELECT estoque FROM insumos WHERE id = $1
	`, supplyID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if !stock.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("expected stock 2.5 after sale, got %s", stock.String())
	}

	// A second sale needing more than the 2.5 left must fail without
	// touching stock or recording the sale.
	failing := domain.Sale{
		ID:    saleID + "-fail",
		Date:  time.Now().UTC(),
		Total: decimal.RequireFromString("240"),
		Items: []domain.SaleItem{
			{ProductID: productID, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(120)},
		},
	}
	_, err = s.CreateSale(ctx, failing, []domain.SupplyRequirement{
		{SupplyID: supplyID, SupplyName: "Arame IT", Unit: "metros", Quantity: decimal.NewFromInt(5), Via: domain.RequirementViaDirect},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT estoque FROM insumos WHERE id = $1
	`, supplyID).Scan(&stock); err != nil {
		t.Fatalf("query stock after failure: %v", err)
	}
	if !stock.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("expected stock unchanged at 2.5 after rejected sale, got %s", stock.String())
	}

	var saleCount int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vendas WHERE id = $1
	`, failing.ID).Scan(&saleCount); err != nil {
		t.Fatalf("count failed sale: %v", err)
	}
	if saleCount != 0 {
		t.Fatalf("expected rejected sale not to be recorded, found %d rows", saleCount)
	}
}
