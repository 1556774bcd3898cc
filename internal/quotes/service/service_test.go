package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"orcamentos_backend/internal/events"
	"orcamentos_backend/internal/quotes/repository"
	"orcamentos_backend/internal/quotes/transport"
	"orcamentos_backend/platform/apperr"
	"orcamentos_backend/platform/idempotency"

	"github.com/shopspring/decimal"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.events))
	for i, e := range b.events {
		names[i] = e.EventName()
	}
	return names
}

type failingRefs struct{}

func (failingRefs) CompanyActive(context.Context, int64) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingRefs) ClientActive(context.Context, int64, int64) (bool, error) { return true, nil }

type fixture struct {
	svc   *Service
	store *repository.Memory
	guard *idempotency.MemoryGuard
	bus   *recordingBus
}

func newFixture() *fixture {
	store := repository.NewMemory()
	store.PutCompany(1, "Acme Serviços", true)
	store.PutCompany(2, "Beta Obras", true)
	store.PutCompany(3, "Inativa", false)
	store.PutClient(10, 1, "Maria", true)
	store.PutClient(11, 1, "João", false)

	guard := idempotency.NewMemoryGuard(30 * time.Second)
	bus := &recordingBus{}
	svc := New(store, store, guard, bus, nil)
	svc.now = func() time.Time { return time.Date(2026, 4, 20, 15, 30, 0, 0, time.UTC) }
	return &fixture{svc: svc, store: store, guard: guard, bus: bus}
}

func sampleRequest() transport.CreateQuoteRequest {
	client := int64(10)
	return transport.CreateQuoteRequest{
		ClientID:      &client,
		Reference:     "Reforma cozinha",
		TaxPercent:    d("10"),
		FreightAmount: d("20"),
		DiscountMode:  transport.DiscountFixedAmount,
		DiscountValue: d("30"),
		Services: []transport.QuoteItemRequest{
			{Description: "Mão de obra", Quantity: d("2"), UnitPrice: d("100")},
		},
		Materials: []transport.QuoteItemRequest{
			{Description: "Cimento", Quantity: d("1"), UnitPrice: d("50")},
		},
	}
}

func actor(company int64, requestID string) Actor {
	return Actor{CompanyID: company, UserID: 7, RequestID: requestID}
}

func TestCreate_PersistsQuoteWithServerSideTotals(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, actor(1, "req-1"), sampleRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.DocumentNumber != 1 {
		t.Fatalf("expected first document number 1, got %d", created.DocumentNumber)
	}
	assertDecimal(t, "total", created.Total, "265")

	got, err := f.svc.GetByID(ctx, 1, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != transport.QuoteStatusDraft {
		t.Fatalf("expected default status draft, got %q", got.Status)
	}
	if got.DiscountMode != transport.DiscountFixedAmount {
		t.Fatalf("expected fixed_amount, got %q", got.DiscountMode)
	}
	if len(got.Services) != 1 || len(got.Materials) != 1 {
		t.Fatalf("expected 1 service and 1 material, got %d/%d", len(got.Services), len(got.Materials))
	}
	assertDecimal(t, "service line total", got.Services[0].LineTotal, "200")
	assertDecimal(t, "subtotal", got.Totals.Subtotal, "250")
	assertDecimal(t, "tax", got.Totals.TaxAmount, "25")
	if !got.QuoteDate.Equal(time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected quote date to default to today, got %s", got.QuoteDate)
	}
	if got.UserID != 7 {
		t.Fatalf("expected creator 7, got %d", got.UserID)
	}
}

func TestCreate_SanitizesFreeText(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := sampleRequest()
	req.Reference = "  <b>Reforma</b>   cozinha "
	req.Notes = "Entrada &lt;script&gt;x&lt;/script&gt;\npelos fundos"
	req.Services[0].Description = "<i>Mão de obra</i>"

	created, err := f.svc.Create(ctx, actor(1, ""), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := f.svc.GetByID(ctx, 1, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Reference != "Reforma cozinha" {
		t.Fatalf("unexpected reference %q", got.Reference)
	}
	if got.Notes != "Entrada x\npelos fundos" {
		t.Fatalf("unexpected notes %q", got.Notes)
	}
	if got.Services[0].Description != "Mão de obra" {
		t.Fatalf("unexpected description %q", got.Services[0].Description)
	}

	req.Materials[0].Description = "<br>"
	if _, err := f.svc.Create(ctx, actor(1, ""), req); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for markup-only description, got %v", err)
	}
}

func TestCreate_SameRequestIDWithinTTLIsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, actor(1, "retry-me"), sampleRequest()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := f.svc.Create(ctx, actor(1, "retry-me"), sampleRequest())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on retry, got %v", err)
	}

	company := int64(1)
	list, _ := f.svc.List(ctx, &company, transport.ListQuotesRequest{})
	if len(list) != 1 {
		t.Fatalf("expected exactly one persisted quote, got %d", len(list))
	}
}

func TestCreate_RequestIDsAreScopedPerCompany(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := sampleRequest()
	req.ClientID = nil
	if _, err := f.svc.Create(ctx, actor(1, "shared"), req); err != nil {
		t.Fatalf("company 1: %v", err)
	}
	if _, err := f.svc.Create(ctx, actor(2, "shared"), req); err != nil {
		t.Fatalf("company 2 must not be blocked by company 1's request id: %v", err)
	}
}

func TestCreate_WithoutRequestIDIsNotDeduplicated(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Create(ctx, actor(1, ""), sampleRequest()); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if f.guard.Len() != 0 {
		t.Fatalf("expected no registered keys, got %d", f.guard.Len())
	}
}

func TestCreate_FailedWriteReleasesRequestID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, actor(1, "first"), sampleRequest()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := sampleRequest()
	taken := int64(1)
	req.DocumentNumber = &taken
	if _, err := f.svc.Create(ctx, actor(1, "second"), req); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected number conflict, got %v", err)
	}

	req.DocumentNumber = nil
	created, err := f.svc.Create(ctx, actor(1, "second"), req)
	if err != nil {
		t.Fatalf("expected retry after failure to succeed, got %v", err)
	}
	if created.DocumentNumber != 2 {
		t.Fatalf("expected number 2 after failed attempt, got %d", created.DocumentNumber)
	}
}

// panickingStore blows up on the first Create and delegates afterwards.
type panickingStore struct {
	*repository.Memory
	panicked bool
}

func (p *panickingStore) Create(ctx context.Context, quote *repository.Quote, items []repository.QuoteItem, override *int64) (int64, int64, error) {
	if !p.panicked {
		p.panicked = true
		panic("driver bug")
	}
	return p.Memory.Create(ctx, quote, items, override)
}

func TestCreate_PanicInStoreReleasesRequestID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	store := &panickingStore{Memory: f.store}
	svc := New(store, f.store, f.guard, f.bus, nil)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected store panic to propagate")
			}
		}()
		svc.Create(ctx, actor(1, "req-panic"), sampleRequest())
	}()

	if f.guard.Len() != 0 {
		t.Fatalf("expected request id to be released after panic, got %d live keys", f.guard.Len())
	}
	if _, err := svc.Create(ctx, actor(1, "req-panic"), sampleRequest()); err != nil {
		t.Fatalf("expected immediate retry to succeed, got %v", err)
	}
}

func TestCreate_ValidationHappensBeforeDeduplication(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := sampleRequest()
	req.ClientID = nil
	_, err := f.svc.Create(ctx, actor(4, "req"), req)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown company, got %v", err)
	}
	if f.guard.Len() != 0 {
		t.Fatal("a request failing validation must not hold its request id")
	}

	f.store.PutCompany(4, "Nova", true)
	if _, err := f.svc.Create(ctx, actor(4, "req"), req); err != nil {
		t.Fatalf("expected same request id to be usable after validation failure, got %v", err)
	}
}

func TestCreate_RejectsInvalidReferences(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []struct {
		name    string
		company int64
		client  int64
	}{
		{"inactive company", 3, 0},
		{"inactive client", 1, 11},
		{"unknown client", 1, 99},
		{"client of another company", 2, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := sampleRequest()
			req.ClientID = nil
			if tc.client != 0 {
				client := tc.client
				req.ClientID = &client
			}
			if _, err := f.svc.Create(ctx, actor(tc.company, ""), req); !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreate_ReferenceLookupFailureIsInternal(t *testing.T) {
	store := repository.NewMemory()
	svc := New(store, failingRefs{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), actor(1, ""), sampleRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.Is(err, apperr.KindValidation) {
		t.Fatal("storage failures must not surface as validation errors")
	}
}

func TestCreate_RejectsNegativeMoneyBeforeTouchingStore(t *testing.T) {
	f := newFixture()
	req := sampleRequest()
	req.FreightAmount = d("-1")

	if _, err := f.svc.Create(context.Background(), actor(1, "neg"), req); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.guard.Len() != 0 {
		t.Fatal("invalid payload must not register its request id")
	}
}

func TestCreate_ConcurrentRequestsGetDistinctNumbers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const n = 25
	type result struct {
		company int64
		number  int64
	}
	results := make(chan result, 2*n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, company := range []int64{1, 2} {
			wg.Add(1)
			go func(i int, company int64) {
				defer wg.Done()
				req := sampleRequest()
				req.ClientID = nil
				created, err := f.svc.Create(ctx, actor(company, fmt.Sprintf("req-%d", i)), req)
				if err != nil {
					t.Errorf("create: %v", err)
					return
				}
				results <- result{company: company, number: created.DocumentNumber}
			}(i, company)
		}
	}
	wg.Wait()
	close(results)

	seen := map[int64]map[int64]bool{1: {}, 2: {}}
	for r := range results {
		if seen[r.company][r.number] {
			t.Fatalf("company %d: duplicate number %d", r.company, r.number)
		}
		seen[r.company][r.number] = true
	}
	for company, numbers := range seen {
		if len(numbers) != n {
			t.Fatalf("company %d: expected %d numbers, got %d", company, n, len(numbers))
		}
		for k := int64(1); k <= n; k++ {
			if !numbers[k] {
				t.Fatalf("company %d: number %d missing", company, k)
			}
		}
	}
}

func TestCreate_ConcurrentRetriesHaveOneWinner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, actor(1, "double-click"), sampleRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.Is(err, apperr.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", n-1, ok, conflicts)
	}
}

func TestUpdate_ReplacesItemsRecomputesTotalsKeepsNumber(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, _ := f.svc.Create(ctx, actor(1, ""), sampleRequest())

	req := sampleRequest()
	ignored := int64(99)
	req.DocumentNumber = &ignored
	req.DiscountMode = transport.DiscountPercentServices
	req.DiscountValue = d("10")
	req.TaxPercent = decimal.Zero
	req.FreightAmount = decimal.Zero
	req.Status = transport.QuoteStatusApproved
	req.Services = []transport.QuoteItemRequest{{Description: "Pintura", Quantity: d("1"), UnitPrice: d("200")}}
	req.Materials = []transport.QuoteItemRequest{{Description: "Tinta", Quantity: d("2"), UnitPrice: d("50")}}

	updated, err := f.svc.Update(ctx, Actor{CompanyID: 1, UserID: 8}, created.ID, req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DocumentNumber != created.DocumentNumber {
		t.Fatalf("document number changed from %d to %d", created.DocumentNumber, updated.DocumentNumber)
	}
	if updated.UserID != 7 {
		t.Fatalf("expected owner to stay 7, got %d", updated.UserID)
	}
	if updated.Status != transport.QuoteStatusApproved {
		t.Fatalf("expected status approved, got %q", updated.Status)
	}
	if len(updated.Services) != 1 || updated.Services[0].Description != "Pintura" {
		t.Fatalf("expected items to be replaced, got %+v", updated.Services)
	}
	assertDecimal(t, "discount", updated.Totals.DiscountAmount, "20")
	assertDecimal(t, "total", updated.Totals.Total, "280")
}

func TestUpdate_StatusIsFreeForm(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := sampleRequest()
	req.Status = transport.QuoteStatusApproved
	created, _ := f.svc.Create(ctx, actor(1, ""), req)

	req.Status = transport.QuoteStatusDraft
	updated, err := f.svc.Update(ctx, actor(1, ""), created.ID, req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != transport.QuoteStatusDraft {
		t.Fatalf("expected approved -> draft to be allowed, got %q", updated.Status)
	}
}

func TestUpdate_UnknownOrOtherTenantQuoteIsNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, _ := f.svc.Create(ctx, actor(1, ""), sampleRequest())

	req := sampleRequest()
	req.ClientID = nil
	if _, err := f.svc.Update(ctx, actor(2, ""), created.ID, req); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
	if _, err := f.svc.Update(ctx, actor(1, ""), 9999, req); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestDelete_HidesQuoteAndNeverReusesNumber(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, _ := f.svc.Create(ctx, actor(1, ""), sampleRequest())
	if err := f.svc.Delete(ctx, actor(1, ""), first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := f.svc.GetByID(ctx, 1, first.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	company := int64(1)
	if list, _ := f.svc.List(ctx, &company, transport.ListQuotesRequest{}); len(list) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(list))
	}
	if _, err := f.svc.Update(ctx, actor(1, ""), first.ID, sampleRequest()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected update of removed quote to be not found, got %v", err)
	}

	second, _ := f.svc.Create(ctx, actor(1, ""), sampleRequest())
	if second.DocumentNumber == first.DocumentNumber {
		t.Fatal("number of a removed quote was reused")
	}
}

func TestLifecycleEventsArePublished(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, _ := f.svc.Create(ctx, actor(1, "evt"), sampleRequest())
	f.svc.Update(ctx, actor(1, ""), created.ID, sampleRequest())
	f.svc.Delete(ctx, actor(1, ""), created.ID)

	names := f.bus.names()
	want := []string{
		events.QuoteCreated{}.EventName(),
		events.QuoteUpdated{}.EventName(),
		events.QuoteDeleted{}.EventName(),
	}
	if len(names) != len(want) {
		t.Fatalf("expected events %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, names)
		}
	}
}

func TestListFiltersByStatusAndKPIs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.svc.Create(ctx, actor(1, ""), sampleRequest())
	approved := sampleRequest()
	approved.Status = transport.QuoteStatusApproved
	f.svc.Create(ctx, actor(1, ""), approved)

	company := int64(1)
	list, err := f.svc.List(ctx, &company, transport.ListQuotesRequest{Status: transport.QuoteStatusApproved})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != transport.QuoteStatusApproved {
		t.Fatalf("expected one approved quote, got %+v", list)
	}
	if list[0].CompanyName != "Acme Serviços" || list[0].ClientName == nil || *list[0].ClientName != "Maria" {
		t.Fatalf("expected joined names, got %q / %v", list[0].CompanyName, list[0].ClientName)
	}

	kpis, err := f.svc.KPIs(ctx, 1)
	if err != nil {
		t.Fatalf("kpis: %v", err)
	}
	if kpis.Count != 2 || kpis.ByStatus[transport.QuoteStatusApproved] != 1 {
		t.Fatalf("unexpected kpis %+v", kpis)
	}
	assertDecimal(t, "total value", kpis.TotalValue, "530")
	assertDecimal(t, "approved value", kpis.ApprovedValue, "265")
}
