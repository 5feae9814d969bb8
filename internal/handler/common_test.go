package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sofra-pos/api/internal/auth"
	"github.com/sofra-pos/api/internal/database"
	"github.com/sofra-pos/api/internal/enum"
	"github.com/sofra-pos/api/internal/handler"
	"github.com/sofra-pos/api/internal/middleware"
	"github.com/sofra-pos/api/internal/service"
	"github.com/sofra-pos/api/internal/ws"
)

const testJWTSecret = "test-secret-for-handlers"

// --- Mock transaction plumbing ---

type mockTx struct{}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { return m, nil }
func (m *mockTx) Commit(ctx context.Context) error          { return nil }
func (m *mockTx) Rollback(ctx context.Context) error        { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *mockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *mockTx) Conn() *pgx.Conn                                              { return nil }

type mockPool struct{}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	return &mockTx{}, nil
}

// --- Notifier ---

type mockNotifier struct {
	events []ws.Event
}

func (m *mockNotifier) Broadcast(event ws.Event) {
	m.events = append(m.events, event)
}

func (m *mockNotifier) eventTypes() []string {
	types := make([]string, len(m.events))
	for i, e := range m.events {
		types[i] = e.Type
	}
	return types
}

// --- In-memory store ---

// memStore backs every handler and service store interface with maps,
// mirroring the conditional semantics of the real queries.
type memStore struct {
	users      map[uuid.UUID]database.User
	categories []database.Category
	products   map[uuid.UUID]database.Product
	tables     map[uuid.UUID]database.RestaurantTable
	sales      map[uuid.UUID]database.Sale
	items      map[uuid.UUID]database.SaleItem
	itemSeq    map[uuid.UUID]int
	nextSeq    int
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]database.User),
		products: make(map[uuid.UUID]database.Product),
		tables:   make(map[uuid.UUID]database.RestaurantTable),
		sales:    make(map[uuid.UUID]database.Sale),
		items:    make(map[uuid.UUID]database.SaleItem),
		itemSeq:  make(map[uuid.UUID]int),
	}
}

func (m *memStore) addUser(fullName, role string, pinHash string) uuid.UUID {
	id := uuid.New()
	u := database.User{ID: id, FullName: fullName, Role: role, IsActive: true}
	if pinHash != "" {
		u.PinHash = pgtype.Text{String: pinHash, Valid: true}
	}
	m.users[id] = u
	return id
}

func (m *memStore) addProduct(name, price string, categoryID uuid.UUID) uuid.UUID {
	id := uuid.New()
	p := database.Product{ID: id, Name: name, SellPrice: makeNumeric(price), IsActive: true}
	if categoryID != uuid.Nil {
		p.CategoryID = pgtype.UUID{Bytes: categoryID, Valid: true}
	}
	m.products[id] = p
	return id
}

func (m *memStore) addCategory(name string, sortOrder int32) uuid.UUID {
	id := uuid.New()
	m.categories = append(m.categories, database.Category{ID: id, Name: name, SortOrder: sortOrder})
	return id
}

func (m *memStore) addTable(number int32) uuid.UUID {
	id := uuid.New()
	m.tables[id] = database.RestaurantTable{ID: id, Number: number, Status: enum.TableStatusAvailable}
	return id
}

func (m *memStore) addOpenSale(userID uuid.UUID) uuid.UUID {
	id := uuid.New()
	m.sales[id] = database.Sale{ID: id, PaymentStatus: enum.PaymentStatusPending, UserID: userID}
	return id
}

func (m *memStore) occupy(tableID, saleID uuid.UUID) {
	t := m.tables[tableID]
	t.Status = enum.TableStatusOccupied
	t.CurrentSaleID = pgtype.UUID{Bytes: saleID, Valid: true}
	m.tables[tableID] = t
}

// --- AuthStore ---

func (m *memStore) ListUsers(_ context.Context) ([]database.User, error) {
	var out []database.User
	for _, u := range m.users {
		if u.IsActive {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Catalog ---

func (m *memStore) ListCategories(_ context.Context) ([]database.Category, error) {
	return m.categories, nil
}

func (m *memStore) ListProducts(_ context.Context) ([]database.Product, error) {
	var out []database.Product
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) ListProductsByCategory(_ context.Context, categoryID uuid.UUID) ([]database.Product, error) {
	var out []database.Product
	for _, p := range m.products {
		if p.IsActive && p.CategoryID.Valid && uuid.UUID(p.CategoryID.Bytes) == categoryID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) GetProductsForOrder(_ context.Context, ids []uuid.UUID) ([]database.Product, error) {
	var out []database.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- Tables ---

func (m *memStore) ListTables(_ context.Context) ([]database.RestaurantTable, error) {
	var out []database.RestaurantTable
	for _, t := range m.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memStore) GetTable(_ context.Context, id uuid.UUID) (database.RestaurantTable, error) {
	t, ok := m.tables[id]
	if !ok {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memStore) ClaimTable(_ context.Context, arg database.ClaimTableParams) (database.RestaurantTable, error) {
	t, ok := m.tables[arg.ID]
	if !ok || t.Status != enum.TableStatusAvailable || t.CurrentSaleID.Valid {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusOccupied
	t.CurrentSaleID = pgtype.UUID{Bytes: arg.SaleID, Valid: true}
	m.tables[arg.ID] = t
	return t, nil
}

func (m *memStore) ReleaseTable(_ context.Context, arg database.ReleaseTableParams) (database.RestaurantTable, error) {
	t, ok := m.tables[arg.ID]
	if !ok || !t.CurrentSaleID.Valid || uuid.UUID(t.CurrentSaleID.Bytes) != arg.SaleID {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusAvailable
	t.CurrentSaleID = pgtype.UUID{}
	t.OpenedAt = pgtype.Timestamptz{}
	m.tables[arg.ID] = t
	return t, nil
}

func (m *memStore) FreeMergedTable(_ context.Context, arg database.FreeMergedTableParams) (database.RestaurantTable, error) {
	t, ok := m.tables[arg.ID]
	if !ok || !t.CurrentSaleID.Valid || uuid.UUID(t.CurrentSaleID.Bytes) != arg.SaleID {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusAvailable
	t.CurrentSaleID = pgtype.UUID{}
	t.OpenedAt = pgtype.Timestamptz{}
	t.IsMerged = true
	t.MergedIntoTableID = pgtype.UUID{Bytes: arg.MergedIntoTableID, Valid: true}
	m.tables[arg.ID] = t
	return t, nil
}

// --- Sales ---

func (m *memStore) CreateSale(_ context.Context, arg database.CreateSaleParams) (database.Sale, error) {
	s := database.Sale{
		ID:            uuid.New(),
		TotalAmount:   arg.TotalAmount,
		FinalAmount:   arg.FinalAmount,
		PaymentStatus: enum.PaymentStatusPending,
		UserID:        arg.UserID,
	}
	m.sales[s.ID] = s
	return s, nil
}

func (m *memStore) GetSale(_ context.Context, id uuid.UUID) (database.Sale, error) {
	s, ok := m.sales[id]
	if !ok {
		return database.Sale{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *memStore) GetOpenSale(_ context.Context, id uuid.UUID) (database.Sale, error) {
	s, ok := m.sales[id]
	if !ok || s.PaymentStatus != enum.PaymentStatusPending {
		return database.Sale{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *memStore) UpdateSaleTotals(_ context.Context, arg database.UpdateSaleTotalsParams) (database.Sale, error) {
	s, ok := m.sales[arg.ID]
	if !ok {
		return database.Sale{}, pgx.ErrNoRows
	}
	s.TotalAmount = arg.TotalAmount
	s.FinalAmount = arg.FinalAmount
	m.sales[arg.ID] = s
	return s, nil
}

func (m *memStore) UpdateSaleDiscount(_ context.Context, arg database.UpdateSaleDiscountParams) (database.Sale, error) {
	s, ok := m.sales[arg.ID]
	if !ok || s.PaymentStatus != enum.PaymentStatusPending {
		return database.Sale{}, pgx.ErrNoRows
	}
	s.DiscountType = arg.DiscountType
	s.DiscountValue = arg.DiscountValue
	m.sales[arg.ID] = s
	return s, nil
}

func (m *memStore) MarkSalePaid(_ context.Context, arg database.MarkSalePaidParams) (database.Sale, error) {
	s, ok := m.sales[arg.ID]
	if !ok || s.PaymentStatus != enum.PaymentStatusPending {
		return database.Sale{}, pgx.ErrNoRows
	}
	s.PaymentStatus = enum.PaymentStatusPaid
	s.IsPaid = true
	s.PaymentMethod = pgtype.Text{String: arg.PaymentMethod, Valid: true}
	m.sales[arg.ID] = s
	return s, nil
}

func (m *memStore) MarkSaleMerged(_ context.Context, arg database.MarkSaleMergedParams) (database.Sale, error) {
	s, ok := m.sales[arg.ID]
	if !ok || s.PaymentStatus != enum.PaymentStatusPending {
		return database.Sale{}, pgx.ErrNoRows
	}
	s.PaymentStatus = enum.PaymentStatusMerged
	s.MergedIntoSaleID = pgtype.UUID{Bytes: arg.MergedIntoSaleID, Valid: true}
	m.sales[arg.ID] = s
	return s, nil
}

func (m *memStore) ListAbsorbedSales(_ context.Context, targetSaleID uuid.UUID) ([]database.Sale, error) {
	var out []database.Sale
	for _, s := range m.sales {
		if s.MergedIntoSaleID.Valid && uuid.UUID(s.MergedIntoSaleID.Bytes) == targetSaleID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) DailySalesSummary(_ context.Context) (database.DailySalesSummaryRow, error) {
	row := database.DailySalesSummaryRow{TotalPaid: makeNumeric("0")}
	total := decimal.Zero
	for _, s := range m.sales {
		if s.IsPaid {
			row.SaleCount++
			total = total.Add(numericToDecimal(s.FinalAmount))
		}
	}
	row.TotalPaid = makeNumeric(total.String())
	return row, nil
}

// --- Sale items ---

func (m *memStore) CreateSaleItem(_ context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error) {
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
	m.items[it.ID] = it
	m.itemSeq[it.ID] = m.nextSeq
	m.nextSeq++
	return it, nil
}

func (m *memStore) saleItems(saleID uuid.UUID) []database.SaleItem {
	var out []database.SaleItem
	for _, it := range m.items {
		if it.SaleID == saleID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.itemSeq[out[i].ID] < m.itemSeq[out[j].ID] })
	return out
}

func (m *memStore) ListSaleItemsBySale(_ context.Context, saleID uuid.UUID) ([]database.SaleItemWithProductRow, error) {
	var out []database.SaleItemWithProductRow
	for _, it := range m.saleItems(saleID) {
		name := ""
		if p, ok := m.products[it.ProductID]; ok {
			name = p.Name
		}
		out = append(out, database.SaleItemWithProductRow{SaleItem: it, ProductName: name})
	}
	return out, nil
}

func (m *memStore) ListSaleItemAmounts(_ context.Context, saleID uuid.UUID) ([]database.SaleItemAmountRow, error) {
	var out []database.SaleItemAmountRow
	for _, it := range m.saleItems(saleID) {
		out = append(out, database.SaleItemAmountRow{
			LineTotal:     it.LineTotal,
			DiscountType:  it.DiscountType,
			DiscountValue: it.DiscountValue,
		})
	}
	return out, nil
}

func (m *memStore) UpdateSaleItemDiscount(_ context.Context, arg database.UpdateSaleItemDiscountParams) (database.SaleItem, error) {
	it, ok := m.items[arg.ID]
	if !ok || it.SaleID != arg.SaleID {
		return database.SaleItem{}, pgx.ErrNoRows
	}
	it.DiscountType = arg.DiscountType
	it.DiscountValue = arg.DiscountValue
	m.items[arg.ID] = it
	return it, nil
}

func (m *memStore) DeleteSaleItem(_ context.Context, arg database.DeleteSaleItemParams) (uuid.UUID, error) {
	it, ok := m.items[arg.ID]
	if !ok || it.SaleID != arg.SaleID {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.items, arg.ID)
	return it.ID, nil
}

// --- Router setup and request helpers ---

func newTestRouter(store *memStore, notifier *mockNotifier) *chi.Mux {
	pool := &mockPool{}
	orderSvc := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore { return store })
	tableSvc := service.NewTableService(pool, func(db database.DBTX) service.TableStore { return store })
	paySvc := service.NewPaymentService(pool, func(db database.DBTX) service.PaymentStore { return store })

	r := chi.NewRouter()

	handler.NewAuthHandler(store, testJWTSecret, auth.NewPinLimiter()).RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/tables", handler.NewTableHandler(store, tableSvc, notifier).RegisterRoutes)
		r.Route("/categories", handler.NewCategoryHandler(store).RegisterRoutes)
		r.Route("/products", handler.NewProductHandler(store).RegisterRoutes)
		r.Route("/sales", func(r chi.Router) {
			handler.NewSaleHandler(store, orderSvc, notifier).RegisterRoutes(r)
			handler.NewPaymentHandler(paySvc, notifier).RegisterRoutes(r)
		})
		r.Route("/reports", handler.NewReportsHandler(store).RegisterRoutes)
	})

	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, userID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, userID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeListResponse(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func saleItemParams(saleID, productID uuid.UUID, qty int32, lineTotal string) database.CreateSaleItemParams {
	return database.CreateSaleItemParams{
		SaleID:    saleID,
		ProductID: productID,
		Qty:       qty,
		UnitPrice: makeNumeric(lineTotal),
		LineTotal: makeNumeric(lineTotal),
	}
}

// --- Numeric helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, _ := decimal.NewFromString(val.(string))
	return d
}
