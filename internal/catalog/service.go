package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
)

const maxNameLength = 200

// Service exposes the vaccine catalog to the pricing engine and staff tools.
type Service interface {
	Create(ctx context.Context, tenantID uuid.UUID, input CreateVaccineInput) (*VaccineDTO, error)
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (*VaccineDTO, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]VaccineDTO, error)
	// Names maps the tenant's vaccine ids to display names. Ids that are not in
	// the tenant catalog are absent from the result.
	Names(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]string, error)
	// EnsureOwned fails with NOT_FOUND when any id is outside the tenant catalog.
	EnsureOwned(ctx context.Context, tenantID uuid.UUID, ids []int64) error
}

// CreateVaccineInput is the payload to register a vaccine.
type CreateVaccineInput struct {
	Name string
}

type vaccineStore interface {
	Create(ctx context.Context, vaccine *models.Vaccine) error
	FindByID(ctx context.Context, tenantID uuid.UUID, id int64) (*models.Vaccine, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Vaccine, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []int64) ([]models.Vaccine, error)
}

type service struct {
	repo vaccineStore
}

// NewService constructs a catalog service instance.
func NewService(repo vaccineStore) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vaccine repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, tenantID uuid.UUID, input CreateVaccineInput) (*VaccineDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(name) > maxNameLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "name must be at most %d characters", maxNameLength)
	}

	vaccine := &models.Vaccine{TenantID: tenantID, Name: name}
	if err := s.repo.Create(ctx, vaccine); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vaccine")
	}
	dto := NewVaccineDTO(*vaccine)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (*VaccineDTO, error) {
	vaccine, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vaccine not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vaccine")
	}
	dto := NewVaccineDTO(*vaccine)
	return &dto, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID) ([]VaccineDTO, error) {
	rows, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vaccines")
	}
	out := make([]VaccineDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewVaccineDTO(row))
	}
	return out, nil
}

func (s *service) Names(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]string, error) {
	rows, err := s.repo.FindByIDs(ctx, tenantID, Distinct(ids))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vaccine names")
	}
	names := make(map[int64]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

func (s *service) EnsureOwned(ctx context.Context, tenantID uuid.UUID, ids []int64) error {
	names, err := s.Names(ctx, tenantID, ids)
	if err != nil {
		return err
	}
	if missing := Missing(ids, names); len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "vaccine not found").
			WithDetails(map[string]any{"vaccine_ids": missing})
	}
	return nil
}

// Distinct returns ids without duplicates, preserving first-seen order.
func Distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Missing lists, in ascending order, the ids absent from names.
func Missing(ids []int64, names map[int64]string) []int64 {
	var missing []int64
	for _, id := range Distinct(ids) {
		if _, ok := names[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}
