package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thornwood/reagent-bank/api"
	"github.com/thornwood/reagent-bank/bank"
	"github.com/thornwood/reagent-bank/bank/store"
	"github.com/thornwood/reagent-bank/world"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	testAccount   = uint32(100)
	testCharacter = uint32(1001)
	testSession   = "1"
)

type testServer struct {
	router http.Handler
	store  *store.Memory
	world  *world.World
	bags   *world.Bags
}

func newTestServer(t *testing.T, cfg bank.Config) *testServer {
	t.Helper()
	catalog := world.NewCatalog(
		bank.ItemInfo{ID: 2589, Name: "Linen Cloth", Class: bank.ClassTradeGoods, Subclass: uint32(bank.CategoryCloth), MaxStack: 20},
		bank.ItemInfo{ID: 765, Name: "Silverleaf", Class: bank.ClassTradeGoods, Subclass: uint32(bank.CategoryHerb), MaxStack: 20},
	)
	w := world.New()
	bags := world.NewBags(catalog, world.BagLayout{Slots: 16})
	w.Join(world.NewPlayer(1, testAccount, testCharacter, bags))

	mem := store.NewMemory()
	svc := bank.NewService(mem, w, catalog, cfg)
	return &testServer{
		router: api.NewRouter(api.NewHandler(svc)),
		store:  mem,
		world:  w,
		bags:   bags,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// =============================================================================
// BANK ENDPOINTS
// =============================================================================

func TestAPI_DepositThenSummary(t *testing.T) {
	// GIVEN: A session holding 45 cloth
	// WHEN: POST deposit, then GET summary
	// THEN: The deposit reports 45 moved and the cloth line shows (1, 45)

	s := newTestServer(t, bank.Config{})
	require.NoError(t, s.bags.Add(2589, 45))

	rec := s.do(t, "POST", "/api/bank/"+testSession+"/deposit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dep := decode[api.MoveResponse](t, rec)
	require.Len(t, dep.Items, 1)
	assert.Equal(t, uint64(45), dep.Items[0].Amount)
	assert.False(t, dep.Empty)

	rec = s.do(t, "GET", "/api/bank/"+testSession+"/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sums := decode[[]api.CategorySummaryDTO](t, rec)
	var cloth api.CategorySummaryDTO
	for _, line := range sums {
		if line.Category == uint32(bank.CategoryCloth) {
			cloth = line
		}
	}
	assert.Equal(t, uint32(1), cloth.Distinct)
	assert.Equal(t, uint64(45), cloth.Total)
}

func TestAPI_DepositCategoryFilters(t *testing.T) {
	// GIVEN: Cloth and herbs in the bags
	// WHEN: Depositing only the herb category
	// THEN: Only the herb moves

	s := newTestServer(t, bank.Config{})
	require.NoError(t, s.bags.Add(2589, 20))
	require.NoError(t, s.bags.Add(765, 20))

	rec := s.do(t, "POST", "/api/bank/"+testSession+"/deposit/9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dep := decode[api.MoveResponse](t, rec)
	require.Len(t, dep.Items, 1)
	assert.Equal(t, uint32(765), dep.Items[0].ItemID)
}

func TestAPI_WithdrawItemEmptyBalance(t *testing.T) {
	// GIVEN: Nothing banked
	// WHEN: Withdrawing a known item
	// THEN: 200 with an empty move, not an error

	s := newTestServer(t, bank.Config{})

	rec := s.do(t, "POST", "/api/bank/"+testSession+"/withdraw/item/2589", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[api.MoveResponse](t, rec)
	assert.True(t, res.Empty)
}

func TestAPI_CategoryPagePagination(t *testing.T) {
	// GIVEN: Ten banked cloth items and the default page size of 7
	// WHEN: GET page 2
	// THEN: Three items, correct page info

	s := newTestServer(t, bank.Config{})
	entries := make(map[uint32]uint64)
	cats := make(map[uint32]bank.Category)
	for i := uint32(0); i < 10; i++ {
		entries[3000+i] = 5
		cats[3000+i] = bank.CategoryCloth
	}
	key := bank.StorageKey{AccountID: testAccount, CharacterID: testCharacter}
	require.NoError(t, s.store.UpsertMany(context.Background(), key, entries, cats, nil))

	rec := s.do(t, "GET", "/api/bank/"+testSession+"/categories/5?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[api.CategoryPageDTO](t, rec)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 10, page.TotalItems)
	assert.Len(t, page.Items, 3)
}

func TestAPI_ErrorMapping(t *testing.T) {
	// GIVEN: Various invalid requests
	// THEN: Each maps to its documented status

	s := newTestServer(t, bank.Config{})

	// Unknown category
	rec := s.do(t, "POST", "/api/bank/"+testSession+"/deposit/99", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Non-numeric requester
	rec = s.do(t, "POST", "/api/bank/abc/deposit", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Disconnected session
	s.world.Leave(1)
	rec = s.do(t, "POST", "/api/bank/"+testSession+"/deposit", "")
	assert.Equal(t, http.StatusGone, rec.Code)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

func TestAPI_AuditSummaryAndPurge(t *testing.T) {
	// GIVEN: An audited deposit
	// WHEN: GET the audit summary, then purge the account's records
	// THEN: The summary shows the deposit; the purge deletes one row

	s := newTestServer(t, bank.Config{AuditEnabled: true})
	require.NoError(t, s.bags.Add(2589, 30))
	rec := s.do(t, "POST", "/api/bank/"+testSession+"/deposit", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, "GET", "/api/admin/audit?account=100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[api.AuditReportDTO](t, rec)
	require.Len(t, report.Totals, 1)
	assert.Equal(t, "DEPOSIT", report.Totals[0].Action)
	assert.Equal(t, int64(30), report.Totals[0].Total)
	require.Len(t, report.TopMovers, 1)
	assert.Equal(t, "Linen Cloth", report.TopMovers[0].Name)
	assert.Equal(t, uint64(1), report.TotalEvents)

	rec = s.do(t, "POST", "/api/admin/purge", `{"accountId":100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	purge := decode[api.PurgeResponse](t, rec)
	assert.Equal(t, int64(1), purge.Deleted)
}

func TestAPI_AuditRequiresAccount(t *testing.T) {
	// GIVEN: No account parameter
	// WHEN: GET the audit summary / POST a purge without accountId
	// THEN: 400

	s := newTestServer(t, bank.Config{})

	rec := s.do(t, "GET", "/api/admin/audit", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/admin/purge", `{"characterId":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
