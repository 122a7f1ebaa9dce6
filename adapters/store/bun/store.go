package invoicebun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-invoice/invoice"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Store persists clients and invoices in a Bun-backed database.
type Store struct {
	DB *bun.DB
}

var _ invoice.Store = (*Store)(nil)

// NewStore creates a Bun-backed store.
func NewStore(db *bun.DB) *Store {
	return &Store{DB: db}
}

// OpenSQLite opens a sqlite database through the sqliteshim driver.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// CreateSchema creates the tables the store needs when they are missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*clientModel)(nil),
		(*invoiceModel)(nil),
		(*lineModel)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	_, err := db.NewCreateIndex().
		Model((*lineModel)(nil)).
		Index("invoice_lines_invoice_id_idx").
		Column("invoice_id").
		IfNotExists().
		Exec(ctx)
	return err
}

// CreateClient inserts a client.
func (s *Store) CreateClient(ctx context.Context, client invoice.Client) (invoice.Client, error) {
	if err := s.ready(); err != nil {
		return invoice.Client{}, err
	}
	if client.ID == "" {
		return invoice.Client{}, invoice.NewError(invoice.KindValidation, "client ID is required", nil)
	}
	model := clientModelFrom(client)
	if _, err := s.DB.NewInsert().Model(&model).Exec(ctx); err != nil {
		return invoice.Client{}, mapWriteError(err, fmt.Sprintf("client %q already exists", client.ID))
	}
	return model.toClient(), nil
}

// UpdateClient replaces a client.
func (s *Store) UpdateClient(ctx context.Context, client invoice.Client) (invoice.Client, error) {
	if err := s.ready(); err != nil {
		return invoice.Client{}, err
	}
	model := clientModelFrom(client)
	res, err := s.DB.NewUpdate().Model(&model).WherePK().Exec(ctx)
	if err != nil {
		return invoice.Client{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return invoice.Client{}, invoice.NewError(invoice.KindNotFound, fmt.Sprintf("client %q not found", client.ID), nil)
	}
	return model.toClient(), nil
}

// GetClient returns a client by ID.
func (s *Store) GetClient(ctx context.Context, id string) (invoice.Client, error) {
	if err := s.ready(); err != nil {
		return invoice.Client{}, err
	}
	model := new(clientModel)
	err := s.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invoice.Client{}, invoice.NewError(invoice.KindNotFound, fmt.Sprintf("client %q not found", id), nil)
		}
		return invoice.Client{}, err
	}
	return model.toClient(), nil
}

// ListClients returns clients matching a filter ordered by name.
func (s *Store) ListClients(ctx context.Context, filter invoice.ClientFilter) ([]invoice.Client, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	models := make([]clientModel, 0)
	query := s.DB.NewSelect().Model(&models)
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where("(name LIKE ? OR email LIKE ? OR registry_code LIKE ?)", like, like, like)
	}
	if err := query.OrderExpr("name COLLATE NOCASE ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]invoice.Client, 0, len(models))
	for _, model := range models {
		out = append(out, model.toClient())
	}
	return out, nil
}

// DeleteClient removes a client.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.DB.NewDelete().Model((*clientModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return invoice.NewError(invoice.KindNotFound, fmt.Sprintf("client %q not found", id), nil)
	}
	return nil
}

// CreateInvoice inserts an invoice with its lines.
func (s *Store) CreateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	if err := s.ready(); err != nil {
		return invoice.Invoice{}, err
	}
	if inv.ID == "" {
		return invoice.Invoice{}, invoice.NewError(invoice.KindValidation, "invoice ID is required", nil)
	}
	model := invoiceModelFrom(inv)
	lines := lineModelsFrom(inv)

	err := s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := checkNumberFree(ctx, tx, inv.Number, inv.ID); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&model).Exec(ctx); err != nil {
			return mapWriteError(err, fmt.Sprintf("invoice %q already exists", inv.ID))
		}
		if len(lines) > 0 {
			if _, err := tx.NewInsert().Model(&lines).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return invoice.Invoice{}, err
	}
	return model.toInvoice(lines)
}

// UpdateInvoice replaces an invoice and its lines.
func (s *Store) UpdateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	if err := s.ready(); err != nil {
		return invoice.Invoice{}, err
	}
	model := invoiceModelFrom(inv)
	lines := lineModelsFrom(inv)

	err := s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := checkNumberFree(ctx, tx, inv.Number, inv.ID); err != nil {
			return err
		}
		res, err := tx.NewUpdate().Model(&model).WherePK().Exec(ctx)
		if err != nil {
			return mapWriteError(err, fmt.Sprintf("invoice number %q already exists", inv.Number))
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return invoice.NewError(invoice.KindNotFound, fmt.Sprintf("invoice %q not found", inv.ID), nil)
		}
		if _, err := tx.NewDelete().Model((*lineModel)(nil)).Where("invoice_id = ?", inv.ID).Exec(ctx); err != nil {
			return err
		}
		if len(lines) > 0 {
			if _, err := tx.NewInsert().Model(&lines).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return invoice.Invoice{}, err
	}
	return model.toInvoice(lines)
}

// GetInvoice returns an invoice with its lines.
func (s *Store) GetInvoice(ctx context.Context, id string) (invoice.Invoice, error) {
	if err := s.ready(); err != nil {
		return invoice.Invoice{}, err
	}
	model := new(invoiceModel)
	err := s.DB.NewSelect().Model(model).Where("inv.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invoice.Invoice{}, invoice.NewError(invoice.KindNotFound, fmt.Sprintf("invoice %q not found", id), nil)
		}
		return invoice.Invoice{}, err
	}
	lines, err := s.linesFor(ctx, []string{model.ID})
	if err != nil {
		return invoice.Invoice{}, err
	}
	return model.toInvoice(lines[model.ID])
}

// ListInvoices returns invoices matching a filter, newest first.
func (s *Store) ListInvoices(ctx context.Context, filter invoice.InvoiceFilter) ([]invoice.Invoice, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	models := make([]invoiceModel, 0)
	query := s.DB.NewSelect().Model(&models)
	if filter.Status != "" {
		query = query.Where("inv.status = ?", string(filter.Status))
	}
	if filter.ClientID != "" {
		query = query.Where("inv.client_id = ?", filter.ClientID)
	}
	if !filter.DueBefore.IsZero() {
		query = query.Where("inv.due_date < ?", filter.DueBefore.UTC())
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + q + "%"
		query = query.
			Join("LEFT JOIN clients AS c ON c.id = inv.client_id").
			Where("(inv.number LIKE ? OR c.name LIKE ?)", like, like)
	}
	query = query.Order("inv.issue_date DESC", "inv.number DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(models))
	for _, model := range models {
		ids = append(ids, model.ID)
	}
	lines, err := s.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]invoice.Invoice, 0, len(models))
	for _, model := range models {
		inv, err := model.toInvoice(lines[model.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// DeleteInvoice removes an invoice and its lines.
func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*invoiceModel)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return invoice.NewError(invoice.KindNotFound, fmt.Sprintf("invoice %q not found", id), nil)
		}
		_, err = tx.NewDelete().Model((*lineModel)(nil)).Where("invoice_id = ?", id).Exec(ctx)
		return err
	})
}

// SetStatus updates the status of an invoice.
func (s *Store) SetStatus(ctx context.Context, id string, status invoice.Status, updatedAt time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.DB.NewUpdate().Model((*invoiceModel)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", updatedAt.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return invoice.NewError(invoice.KindNotFound, fmt.Sprintf("invoice %q not found", id), nil)
	}
	return nil
}

// NumbersWithPrefix returns invoice numbers starting with prefix.
func (s *Store) NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	numbers := make([]string, 0)
	err := s.DB.NewSelect().
		Model((*invoiceModel)(nil)).
		Column("number").
		Where("number LIKE ?", prefix+"%").
		Order("number ASC").
		Scan(ctx, &numbers)
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (s *Store) linesFor(ctx context.Context, ids []string) (map[string][]lineModel, error) {
	out := make(map[string][]lineModel, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	models := make([]lineModel, 0)
	err := s.DB.NewSelect().
		Model(&models).
		Where("invoice_id IN (?)", bun.In(ids)).
		Order("invoice_id ASC", "position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, model := range models {
		out[model.InvoiceID] = append(out[model.InvoiceID], model)
	}
	return out, nil
}

func (s *Store) ready() error {
	if s == nil || s.DB == nil {
		return invoice.NewError(invoice.KindNotImpl, "invoice database not configured", nil)
	}
	return nil
}

func checkNumberFree(ctx context.Context, tx bun.Tx, number, exceptID string) error {
	if number == "" {
		return nil
	}
	exists, err := tx.NewSelect().
		Model((*invoiceModel)(nil)).
		Where("number = ?", number).
		Where("id <> ?", exceptID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return invoice.NewError(invoice.KindConflict, fmt.Sprintf("invoice number %q already exists", number), nil)
	}
	return nil
}

func mapWriteError(err error, conflictMsg string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT") {
		return invoice.NewError(invoice.KindConflict, conflictMsg, err)
	}
	return err
}
