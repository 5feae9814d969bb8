package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sofra-pos/api/internal/database"
	"github.com/sofra-pos/api/internal/enum"
)

// --- Mock transaction plumbing ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	commits   int
	rollbacks int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.rollbacks++
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

type mockTxBeginner struct {
	tx  *mockTx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// --- In-memory store fake ---

// fakeStore backs the store interfaces with maps, mirroring the conditional
// semantics of the real queries (zero rows -> pgx.ErrNoRows).
type fakeStore struct {
	products map[uuid.UUID]database.Product
	tables   map[uuid.UUID]database.RestaurantTable
	sales    map[uuid.UUID]database.Sale
	items    map[uuid.UUID]database.SaleItem
	itemSeq  map[uuid.UUID]int
	nextSeq  int

	totalsWrites []database.UpdateSaleTotalsParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[uuid.UUID]database.Product),
		tables:   make(map[uuid.UUID]database.RestaurantTable),
		sales:    make(map[uuid.UUID]database.Sale),
		items:    make(map[uuid.UUID]database.SaleItem),
		itemSeq:  make(map[uuid.UUID]int),
	}
}

func (f *fakeStore) addProduct(name, price string) uuid.UUID {
	id := uuid.New()
	p := database.Product{ID: id, Name: name, IsActive: true}
	if price != "" {
		p.SellPrice = makeNumeric(price)
	}
	f.products[id] = p
	return id
}

func (f *fakeStore) addTable(number int32) uuid.UUID {
	id := uuid.New()
	f.tables[id] = database.RestaurantTable{ID: id, Number: number, Status: enum.TableStatusAvailable}
	return id
}

func (f *fakeStore) addOpenSale() uuid.UUID {
	id := uuid.New()
	f.sales[id] = database.Sale{ID: id, PaymentStatus: enum.PaymentStatusPending, UserID: uuid.New()}
	return id
}

func (f *fakeStore) occupy(tableID, saleID uuid.UUID) {
	t := f.tables[tableID]
	t.Status = enum.TableStatusOccupied
	t.CurrentSaleID = pgtype.UUID{Bytes: saleID, Valid: true}
	f.tables[tableID] = t
}

func (f *fakeStore) addItem(saleID uuid.UUID, lineTotal string, d *database.SaleItem) uuid.UUID {
	it := database.SaleItem{ID: uuid.New(), SaleID: saleID, ProductID: uuid.New(), Qty: 1, LineTotal: makeNumeric(lineTotal)}
	if d != nil {
		it.ProductID = d.ProductID
		it.Qty = d.Qty
		it.UnitPrice = d.UnitPrice
		it.DiscountType = d.DiscountType
		it.DiscountValue = d.DiscountValue
	}
	f.items[it.ID] = it
	f.itemSeq[it.ID] = f.nextSeq
	f.nextSeq++
	return it.ID
}

func (f *fakeStore) GetProductsForOrder(_ context.Context, ids []uuid.UUID) ([]database.Product, error) {
	var out []database.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSale(_ context.Context, arg database.CreateSaleParams) (database.Sale, error) {
	s := database.Sale{
		ID:            uuid.New(),
		TotalAmount:   arg.TotalAmount,
		FinalAmount:   arg.FinalAmount,
		PaymentStatus: enum.PaymentStatusPending,
		UserID:        arg.UserID,
	}
	f.sales[s.ID] = s
	return s, nil
}

func (f *fakeStore) GetSale(_ context.Context, id uuid.UUID) (database.Sale, error) {
	s, ok := f.sales[id]
	if !ok {
		return database.Sale{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) GetOpenSale(_ context.Context, id uuid.UUID) (database.Sale, error) {
	s, ok := f.sales[id]
	if !ok || s.PaymentStatus != enum.PaymentStatusPending {
		return database.Sale{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) UpdateSaleTotals(_ context.Context, arg database.UpdateSaleTotalsParams) (database.Sale, error) {
	s, ok := f.sales[arg.ID]
	if !ok {
		return database.Sale{}, pgx.ErrNoRows
	}
	s.TotalAmount = arg.TotalAmount
	s.FinalAmount = arg.FinalAmount
	f.sales[arg.ID] = s
	f.totalsWrites = append(f.totalsWrites, arg)
	return s, nil
}

func (f *fakeStore) UpdateSaleDiscount(_ context.Context, arg database.UpdateSaleDiscountParams) (database.Sale, error) {
	s, ok := f.sales[arg.ID]
	if !ok || s.PaymentStatus != enum.PaymentStatusPending {
		return database.Sale{}, pgx.ErrNoRows
	}
	s.DiscountType = arg.DiscountType
	s.DiscountValue = arg.DiscountValue
	f.sales[arg.ID] = s
	return s, nil
}

func (f *fakeStore) MarkSalePaid(_ context.Context, arg database.MarkSalePaidParams) (database.Sale, error) {
	s, ok := f.sales[arg.ID]
	if !ok || s.PaymentStatus != enum.PaymentStatusPending {
		return database.Sale{}, pgx.ErrNoRows
	}
	s.PaymentStatus = enum.PaymentStatusPaid
	s.IsPaid = true
	s.PaymentMethod = pgtype.Text{String: arg.PaymentMethod, Valid: true}
	f.sales[arg.ID] = s
	return s, nil
}

func (f *fakeStore) MarkSaleMerged(_ context.Context, arg database.MarkSaleMergedParams) (database.Sale, error) {
	s, ok := f.sales[arg.ID]
	if !ok || s.PaymentStatus != enum.PaymentStatusPending {
		return database.Sale{}, pgx.ErrNoRows
	}
	s.PaymentStatus = enum.PaymentStatusMerged
	s.MergedIntoSaleID = pgtype.UUID{Bytes: arg.MergedIntoSaleID, Valid: true}
	f.sales[arg.ID] = s
	return s, nil
}

func (f *fakeStore) GetTable(_ context.Context, id uuid.UUID) (database.RestaurantTable, error) {
	t, ok := f.tables[id]
	if !ok {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) ClaimTable(_ context.Context, arg database.ClaimTableParams) (database.RestaurantTable, error) {
	t, ok := f.tables[arg.ID]
	if !ok || t.Status != enum.TableStatusAvailable || t.CurrentSaleID.Valid {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusOccupied
	t.CurrentSaleID = pgtype.UUID{Bytes: arg.SaleID, Valid: true}
	f.tables[arg.ID] = t
	return t, nil
}

func (f *fakeStore) ReleaseTable(_ context.Context, arg database.ReleaseTableParams) (database.RestaurantTable, error) {
	t, ok := f.tables[arg.ID]
	if !ok || !t.CurrentSaleID.Valid || uuid.UUID(t.CurrentSaleID.Bytes) != arg.SaleID {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusAvailable
	t.CurrentSaleID = pgtype.UUID{}
	t.OpenedAt = pgtype.Timestamptz{}
	f.tables[arg.ID] = t
	return t, nil
}

func (f *fakeStore) FreeMergedTable(_ context.Context, arg database.FreeMergedTableParams) (database.RestaurantTable, error) {
	t, ok := f.tables[arg.ID]
	if !ok || !t.CurrentSaleID.Valid || uuid.UUID(t.CurrentSaleID.Bytes) != arg.SaleID {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusAvailable
	t.CurrentSaleID = pgtype.UUID{}
	t.OpenedAt = pgtype.Timestamptz{}
	t.IsMerged = true
	t.MergedIntoTableID = pgtype.UUID{Bytes: arg.MergedIntoTableID, Valid: true}
	f.tables[arg.ID] = t
	return t, nil
}

func (f *fakeStore) CreateSaleItem(_ context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error) {
	it := database.SaleItem{
		ID:            uuid.New(),
		SaleID:        arg.SaleID,
		ProductID:     arg.ProductID,
		Qty:           arg.Qty,
		UnitPrice:     arg.UnitPrice,
		LineTotal:     arg.LineTotal,
		DiscountType:  arg.DiscountType,
		DiscountValue: arg.DiscountValue,
	}
	f.items[it.ID] = it
	f.itemSeq[it.ID] = f.nextSeq
	f.nextSeq++
	return it, nil
}

func (f *fakeStore) saleItems(saleID uuid.UUID) []database.SaleItem {
	var out []database.SaleItem
	for _, it := range f.items {
		if it.SaleID == saleID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return f.itemSeq[out[i].ID] < f.itemSeq[out[j].ID] })
	return out
}

func (f *fakeStore) ListSaleItemsBySale(_ context.Context, saleID uuid.UUID) ([]database.SaleItemWithProductRow, error) {
	var out []database.SaleItemWithProductRow
	for _, it := range f.saleItems(saleID) {
		name := ""
		if p, ok := f.products[it.ProductID]; ok {
			name = p.Name
		}
		out = append(out, database.SaleItemWithProductRow{SaleItem: it, ProductName: name})
	}
	return out, nil
}

func (f *fakeStore) ListSaleItemAmounts(_ context.Context, saleID uuid.UUID) ([]database.SaleItemAmountRow, error) {
	var out []database.SaleItemAmountRow
	for _, it := range f.saleItems(saleID) {
		out = append(out, database.SaleItemAmountRow{
			LineTotal:     it.LineTotal,
			DiscountType:  it.DiscountType,
			DiscountValue: it.DiscountValue,
		})
	}
	return out, nil
}

func (f *fakeStore) UpdateSaleItemDiscount(_ context.Context, arg database.UpdateSaleItemDiscountParams) (database.SaleItem, error) {
	it, ok := f.items[arg.ID]
	if !ok || it.SaleID != arg.SaleID {
		return database.SaleItem{}, pgx.ErrNoRows
	}
	it.DiscountType = arg.DiscountType
	it.DiscountValue = arg.DiscountValue
	f.items[arg.ID] = it
	return it, nil
}

func (f *fakeStore) DeleteSaleItem(_ context.Context, arg database.DeleteSaleItemParams) (uuid.UUID, error) {
	it, ok := f.items[arg.ID]
	if !ok || it.SaleID != arg.SaleID {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(f.items, arg.ID)
	return it.ID, nil
}

// --- Helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func newTestOrderService(store *fakeStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	return NewOrderService(pool, func(db database.DBTX) OrderStore { return store }), tx
}

func newTestTableService(store *fakeStore) (*TableService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	return NewTableService(pool, func(db database.DBTX) TableStore { return store }), tx
}

func newTestPaymentService(store *fakeStore) (*PaymentService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	return NewPaymentService(pool, func(db database.DBTX) PaymentStore { return store }), tx
}
