package invoice

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps clients and invoices in memory (test/dev only).
type MemoryStore struct {
	mu       sync.RWMutex
	clients  map[string]Client
	invoices map[string]Invoice
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:  make(map[string]Client),
		invoices: make(map[string]Invoice),
	}
}

// CreateClient stores a new client.
func (s *MemoryStore) CreateClient(ctx context.Context, client Client) (Client, error) {
	_ = ctx
	if client.ID == "" {
		return Client{}, NewError(KindValidation, "client ID is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client.ID]; ok {
		return Client{}, NewError(KindConflict, fmt.Sprintf("client %q already exists", client.ID), nil)
	}
	s.clients[client.ID] = client
	return client, nil
}

// UpdateClient replaces an existing client.
func (s *MemoryStore) UpdateClient(ctx context.Context, client Client) (Client, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client.ID]; !ok {
		return Client{}, NewError(KindNotFound, fmt.Sprintf("client %q not found", client.ID), nil)
	}
	s.clients[client.ID] = client
	return client, nil
}

// GetClient returns a client by ID.
func (s *MemoryStore) GetClient(ctx context.Context, id string) (Client, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[id]
	if !ok {
		return Client{}, NewError(KindNotFound, fmt.Sprintf("client %q not found", id), nil)
	}
	return client, nil
}

// ListClients returns clients ordered by name.
func (s *MemoryStore) ListClients(ctx context.Context, filter ClientFilter) ([]Client, error) {
	_ = ctx
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	s.mu.RLock()
	out := make([]Client, 0, len(s.clients))
	for _, client := range s.clients {
		if query != "" && !clientMatches(client, query) {
			continue
		}
		out = append(out, client)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// DeleteClient removes a client.
func (s *MemoryStore) DeleteClient(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return NewError(KindNotFound, fmt.Sprintf("client %q not found", id), nil)
	}
	delete(s.clients, id)
	return nil
}

// CreateInvoice stores a new invoice.
func (s *MemoryStore) CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	_ = ctx
	if inv.ID == "" {
		return Invoice{}, NewError(KindValidation, "invoice ID is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[inv.ID]; ok {
		return Invoice{}, NewError(KindConflict, fmt.Sprintf("invoice %q already exists", inv.ID), nil)
	}
	if s.numberTaken(inv.Number, inv.ID) {
		return Invoice{}, NewError(KindConflict, fmt.Sprintf("invoice number %q already exists", inv.Number), nil)
	}
	s.invoices[inv.ID] = cloneInvoice(inv)
	return cloneInvoice(inv), nil
}

// UpdateInvoice replaces an existing invoice and its lines.
func (s *MemoryStore) UpdateInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[inv.ID]; !ok {
		return Invoice{}, NewError(KindNotFound, fmt.Sprintf("invoice %q not found", inv.ID), nil)
	}
	if s.numberTaken(inv.Number, inv.ID) {
		return Invoice{}, NewError(KindConflict, fmt.Sprintf("invoice number %q already exists", inv.Number), nil)
	}
	s.invoices[inv.ID] = cloneInvoice(inv)
	return cloneInvoice(inv), nil
}

// GetInvoice returns an invoice by ID.
func (s *MemoryStore) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, NewError(KindNotFound, fmt.Sprintf("invoice %q not found", id), nil)
	}
	return cloneInvoice(inv), nil
}

// ListInvoices returns invoices matching a filter, newest first.
func (s *MemoryStore) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	_ = ctx
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	s.mu.RLock()
	out := make([]Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.ClientID != "" && inv.ClientID != filter.ClientID {
			continue
		}
		if !filter.DueBefore.IsZero() && !inv.DueDate.Before(filter.DueBefore) {
			continue
		}
		if query != "" {
			name := strings.ToLower(s.clients[inv.ClientID].Name)
			if !strings.Contains(strings.ToLower(inv.Number), query) && !strings.Contains(name, query) {
				continue
			}
		}
		out = append(out, cloneInvoice(inv))
	}
	s.mu.RUnlock()

	SortInvoices(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// DeleteInvoice removes an invoice.
func (s *MemoryStore) DeleteInvoice(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[id]; !ok {
		return NewError(KindNotFound, fmt.Sprintf("invoice %q not found", id), nil)
	}
	delete(s.invoices, id)
	return nil
}

// SetStatus updates the status of an invoice.
func (s *MemoryStore) SetStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("invoice %q not found", id), nil)
	}
	inv.Status = status
	inv.UpdatedAt = updatedAt
	s.invoices[id] = inv
	return nil
}

// NumbersWithPrefix returns invoice numbers starting with prefix.
func (s *MemoryStore) NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for _, inv := range s.invoices {
		if strings.HasPrefix(inv.Number, prefix) {
			out = append(out, inv.Number)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) numberTaken(number, exceptID string) bool {
	if number == "" {
		return false
	}
	for id, inv := range s.invoices {
		if id != exceptID && inv.Number == number {
			return true
		}
	}
	return false
}

// SortInvoices orders invoices by issue date then number, newest first.
func SortInvoices(invoices []Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		if !invoices[i].IssueDate.Equal(invoices[j].IssueDate) {
			return invoices[i].IssueDate.After(invoices[j].IssueDate)
		}
		return invoices[i].Number > invoices[j].Number
	})
}

func clientMatches(client Client, query string) bool {
	return strings.Contains(strings.ToLower(client.Name), query) ||
		strings.Contains(strings.ToLower(client.Email), query) ||
		strings.Contains(strings.ToLower(client.RegistryCode), query)
}

func cloneInvoice(inv Invoice) Invoice {
	if inv.Lines != nil {
		inv.Lines = append([]LineItem(nil), inv.Lines...)
	}
	return inv
}
