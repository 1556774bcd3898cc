package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"orcamentos_backend/platform/apperr"
)

type memoryCompany struct {
	name    string
	active  bool
	removed bool
}

type memoryClient struct {
	companyID int64
	name      string
	active    bool
	removed   bool
}

// Memory is an in-process quote store used when STORAGE_DRIVER=memory and in
// tests. Writes for one company are serialized by a per-company mutex; item
// sets are staged outside the shared lock and swapped in whole, so readers
// never observe a partially written aggregate.
type Memory struct {
	mu          sync.RWMutex
	lastQuoteID int64
	lastItemID  int64
	quotes      map[int64]*Quote
	items       map[int64][]QuoteItem
	counters    map[int64]int64
	numbers     map[int64]map[int64]int64
	companies   map[int64]memoryCompany
	clients     map[int64]memoryClient

	lastActivityID int64
	activity       []Activity
	activityTasks  map[string]struct{}

	locksMu      sync.Mutex
	companyLocks map[int64]*sync.Mutex

	now func() time.Time
	// failItemWrite, when set, is consulted before staging each item and
	// aborts the write when it returns an error.
	failItemWrite func(quoteID int64, index int) error
}

// NewMemory creates an empty in-process store
func NewMemory() *Memory {
	return &Memory{
		quotes:        make(map[int64]*Quote),
		items:         make(map[int64][]QuoteItem),
		counters:      make(map[int64]int64),
		numbers:       make(map[int64]map[int64]int64),
		companies:     make(map[int64]memoryCompany),
		clients:       make(map[int64]memoryClient),
		activityTasks: make(map[string]struct{}),
		companyLocks:  make(map[int64]*sync.Mutex),
		now:           time.Now,
	}
}

// PutCompany registers reference data for a company.
func (m *Memory) PutCompany(id int64, name string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[id] = memoryCompany{name: name, active: active}
}

// RemoveCompany tombstones a company.
func (m *Memory) RemoveCompany(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.companies[id]; ok {
		c.removed = true
		m.companies[id] = c
	}
}

// PutClient registers reference data for a client of a company.
func (m *Memory) PutClient(id, companyID int64, name string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[id] = memoryClient{companyID: companyID, name: name, active: active}
}

// CompanyActive mirrors ReferenceReader.CompanyActive.
func (m *Memory) CompanyActive(_ context.Context, companyID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[companyID]
	return ok && c.active && !c.removed, nil
}

// ClientActive mirrors ReferenceReader.ClientActive.
func (m *Memory) ClientActive(_ context.Context, companyID, clientID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[clientID]
	return ok && c.companyID == companyID && c.active && !c.removed, nil
}

func (m *Memory) companyLock(companyID int64) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.companyLocks[companyID]
	if !ok {
		l = &sync.Mutex{}
		m.companyLocks[companyID] = l
	}
	return l
}

// Create implements the store contract of Repository.Create.
func (m *Memory) Create(ctx context.Context, quote *Quote, items []QuoteItem, override *int64) (int64, int64, error) {
	lock := m.companyLock(quote.CompanyID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	m.mu.RLock()
	number := m.counters[quote.CompanyID] + 1
	var taken bool
	if override != nil {
		number = *override
		_, taken = m.numbers[quote.CompanyID][number]
	}
	m.mu.RUnlock()

	if number <= 0 {
		return 0, 0, apperr.Validation("document number must be positive")
	}
	if taken {
		return 0, 0, apperr.Conflict(documentNumberTakenMsg)
	}

	staged, err := m.stageItems(0, items)
	if err != nil {
		return 0, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastQuoteID++
	now := m.now().UTC()
	stored := cloneQuote(quote)
	stored.ID = m.lastQuoteID
	stored.DocumentNumber = number
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.RemovedAt = nil

	m.assignItemIDs(stored.ID, staged)
	m.quotes[stored.ID] = stored
	m.items[stored.ID] = staged
	if number > m.counters[quote.CompanyID] {
		m.counters[quote.CompanyID] = number
	}
	if m.numbers[quote.CompanyID] == nil {
		m.numbers[quote.CompanyID] = make(map[int64]int64)
	}
	m.numbers[quote.CompanyID][number] = stored.ID

	quote.ID = stored.ID
	quote.DocumentNumber = number
	quote.CreatedAt = now
	quote.UpdatedAt = now
	for i := range items {
		items[i].ID = staged[i].ID
		items[i].QuoteID = stored.ID
	}
	return stored.ID, number, nil
}

// Update implements the store contract of Repository.Update.
func (m *Memory) Update(ctx context.Context, quote *Quote, items []QuoteItem) error {
	lock := m.companyLock(quote.CompanyID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	current, ok := m.quotes[quote.ID]
	live := ok && current.CompanyID == quote.CompanyID && current.RemovedAt == nil
	m.mu.RUnlock()
	if !live {
		return apperr.NotFound(quoteNotFoundMsg)
	}

	staged, err := m.stageItems(quote.ID, items)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// SoftDelete does not take the company lock, so the quote may have been
	// removed while items were staged.
	current, ok = m.quotes[quote.ID]
	if !ok || current.CompanyID != quote.CompanyID || current.RemovedAt != nil {
		return apperr.NotFound(quoteNotFoundMsg)
	}

	next := cloneQuote(quote)
	next.UserID = current.UserID
	next.DocumentNumber = current.DocumentNumber
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = m.now().UTC()
	next.RemovedAt = nil

	m.assignItemIDs(next.ID, staged)
	m.quotes[next.ID] = next
	m.items[next.ID] = staged

	quote.UserID = next.UserID
	quote.DocumentNumber = next.DocumentNumber
	quote.CreatedAt = next.CreatedAt
	quote.UpdatedAt = next.UpdatedAt
	return nil
}

func (m *Memory) stageItems(quoteID int64, items []QuoteItem) ([]QuoteItem, error) {
	staged := make([]QuoteItem, 0, len(items))
	for i, it := range items {
		if m.failItemWrite != nil {
			if err := m.failItemWrite(quoteID, i); err != nil {
				return nil, err
			}
		}
		staged = append(staged, it)
	}
	return staged, nil
}

// assignItemIDs must be called with m.mu held.
func (m *Memory) assignItemIDs(quoteID int64, items []QuoteItem) {
	for i := range items {
		m.lastItemID++
		items[i].ID = m.lastItemID
		items[i].QuoteID = quoteID
	}
}

// Get implements the store contract of Repository.Get.
func (m *Memory) Get(_ context.Context, id, companyID int64) (*Quote, []QuoteItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.quotes[id]
	if !ok || q.CompanyID != companyID || q.RemovedAt != nil {
		return nil, nil, apperr.NotFound(quoteNotFoundMsg)
	}
	items := cloneItems(m.items[id])
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
	return cloneQuote(q), items, nil
}

// List implements the store contract of Repository.List.
func (m *Memory) List(_ context.Context, params ListParams) ([]QuoteSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]QuoteSummary, 0, len(m.quotes))
	for _, q := range m.quotes {
		if q.RemovedAt != nil {
			continue
		}
		if params.CompanyID != nil && q.CompanyID != *params.CompanyID {
			continue
		}
		if params.Status != nil && q.Status != *params.Status {
			continue
		}
		s := QuoteSummary{Quote: *cloneQuote(q), CompanyName: m.companies[q.CompanyID].name}
		if q.ClientID != nil {
			if c, ok := m.clients[*q.ClientID]; ok {
				name := c.name
				s.ClientName = &name
			}
		}
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// SoftDelete implements the store contract of Repository.SoftDelete.
func (m *Memory) SoftDelete(_ context.Context, id, companyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[id]
	if !ok || q.CompanyID != companyID || q.RemovedAt != nil {
		return apperr.NotFound(quoteNotFoundMsg)
	}
	now := m.now().UTC()
	next := cloneQuote(q)
	next.RemovedAt = &now
	next.UpdatedAt = now
	m.quotes[id] = next
	return nil
}

// KPIs implements the store contract of Repository.KPIs.
func (m *Memory) KPIs(_ context.Context, companyID int64) (*KPIs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kpis := &KPIs{ByStatus: make(map[string]int64)}
	for _, q := range m.quotes {
		if q.CompanyID != companyID || q.RemovedAt != nil {
			continue
		}
		kpis.add(q.Status, 1, q.Total)
	}
	return kpis, nil
}
