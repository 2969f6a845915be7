package pricetables

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/pkg/db"
	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
)

const (
	maxNameLength = 120
	// Concurrent default toggles for one tenant can trip the partial unique
	// index; the loser re-runs the toggle.
	defaultToggleAttempts = 3
)

// Service manages tenant price tables and decides which table prices a quote.
type Service interface {
	Create(ctx context.Context, tenantID uuid.UUID, input CreateTableInput) (*PriceTableDTO, error)
	Update(ctx context.Context, tenantID uuid.UUID, id int64, input UpdateTableInput) (*PriceTableDTO, error)
	SetDefault(ctx context.Context, tenantID uuid.UUID, id int64) (*PriceTableDTO, error)
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (*PriceTableDTO, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]PriceTableDTO, error)
	// ResolveTable returns the pinned table when one is given, else the tenant
	// default. There is no fallback beyond that.
	ResolveTable(ctx context.Context, tenantID uuid.UUID, pinnedID *int64) (*PriceTableDTO, error)
}

type CreateTableInput struct {
	Name      string
	IsDefault bool
	Active    bool
}

type UpdateTableInput struct {
	Name   *string
	Active *bool
}

type service struct {
	repo *Repository
	tx   db.TxRunner
	now  func() time.Time
}

// NewService constructs a price table service instance.
func NewService(repo *Repository, tx db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("price table repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, tenantID uuid.UUID, input CreateTableInput) (*PriceTableDTO, error) {
	name, err := normalizeName(input.Name)
	if err != nil {
		return nil, err
	}
	if input.IsDefault && !input.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a default price table must be active")
	}

	table := &models.PriceTable{
		TenantID: tenantID,
		Name:     name,
		Active:   input.Active,
	}
	err = s.withToggleRetry(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		table.ID = 0
		table.IsDefault = false
		if err := txRepo.Create(ctx, table); err != nil {
			return err
		}
		if !input.IsDefault {
			return nil
		}
		if err := txRepo.ClearDefault(ctx, tenantID); err != nil {
			return err
		}
		if err := txRepo.MarkDefault(ctx, tenantID, table.ID); err != nil {
			return err
		}
		table.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, mapWriteError(err, "create price table")
	}
	dto := NewPriceTableDTO(*table)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, tenantID uuid.UUID, id int64, input UpdateTableInput) (*PriceTableDTO, error) {
	var updated *models.PriceTable
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		table, err := s.load(ctx, txRepo, tenantID, id)
		if err != nil {
			return err
		}
		if input.Name != nil {
			name, err := normalizeName(*input.Name)
			if err != nil {
				return err
			}
			table.Name = name
		}
		if input.Active != nil {
			if !*input.Active && table.IsDefault {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "the default price table cannot be deactivated; set another default first")
			}
			table.Active = *input.Active
		}
		table.UpdatedAt = s.now().UTC()
		if err := txRepo.Save(ctx, table); err != nil {
			return err
		}
		updated = table
		return nil
	})
	if err != nil {
		return nil, mapWriteError(err, "update price table")
	}
	dto := NewPriceTableDTO(*updated)
	return &dto, nil
}

// SetDefault clears the tenant's current default and marks id in one
// transaction, so readers never observe zero or two defaults.
func (s *service) SetDefault(ctx context.Context, tenantID uuid.UUID, id int64) (*PriceTableDTO, error) {
	var result *models.PriceTable
	err := s.withToggleRetry(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		table, err := s.load(ctx, txRepo, tenantID, id)
		if err != nil {
			return err
		}
		if !table.Active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "an inactive price table cannot be the default")
		}
		if table.IsDefault {
			result = table
			return nil
		}
		if err := txRepo.ClearDefault(ctx, tenantID); err != nil {
			return err
		}
		if err := txRepo.MarkDefault(ctx, tenantID, id); err != nil {
			return err
		}
		table.IsDefault = true
		result = table
		return nil
	})
	if err != nil {
		return nil, mapWriteError(err, "set default price table")
	}
	dto := NewPriceTableDTO(*result)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (*PriceTableDTO, error) {
	table, err := s.load(ctx, s.repo, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := NewPriceTableDTO(*table)
	return &dto, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID) ([]PriceTableDTO, error) {
	rows, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list price tables")
	}
	out := make([]PriceTableDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewPriceTableDTO(row))
	}
	return out, nil
}

func (s *service) ResolveTable(ctx context.Context, tenantID uuid.UUID, pinnedID *int64) (*PriceTableDTO, error) {
	if pinnedID != nil {
		table, err := s.load(ctx, s.repo, tenantID, *pinnedID)
		if err != nil {
			return nil, err
		}
		if !table.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price table is inactive").
				WithDetails(map[string]any{"price_table_id": table.ID})
		}
		dto := NewPriceTableDTO(*table)
		return &dto, nil
	}

	table, err := s.repo.FindDefault(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no default price table configured; pass price_table_id")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default price table")
	}
	dto := NewPriceTableDTO(*table)
	return &dto, nil
}

func (s *service) load(ctx context.Context, repo *Repository, tenantID uuid.UUID, id int64) (*models.PriceTable, error) {
	table, err := repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "price table not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price table")
	}
	return table, nil
}

func (s *service) withToggleRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < defaultToggleAttempts; attempt++ {
		err = s.tx.WithTx(ctx, fn)
		if !db.IsUniqueViolation(err, "ux_price_tables_tenant_default") && !db.IsRetryableTxError(err) {
			return err
		}
	}
	return err
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(name) > maxNameLength {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "name must be at most %d characters", maxNameLength)
	}
	return name, nil
}

func mapWriteError(err error, op string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent default price table change; retry")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
