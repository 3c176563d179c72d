package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-ledger/generic"
)

// =============================================================================
// EMPLOYEE RATE CARDS (generic.RateCardSource)
// =============================================================================

// SaveEmployee inserts or replaces an employee rate card.
func (s *Store) SaveEmployee(ctx context.Context, card generic.EmployeeRateCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, full_day_rate, half_day_rate, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			full_day_rate = excluded.full_day_rate,
			half_day_rate = excluded.half_day_rate`,
		card.EmployeeID, card.Name, card.FullDayRate.String(), nullDecimal(card.HalfDayRate),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// EmployeeRateCard returns the card, or nil if the employee is unknown.
func (s *Store) EmployeeRateCard(ctx context.Context, id generic.EmployeeID) (*generic.EmployeeRateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, full_day_rate, half_day_rate FROM employees WHERE id = ?", id)
	card, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// ListEmployees returns all employee cards ordered by id.
func (s *Store) ListEmployees(ctx context.Context) ([]generic.EmployeeRateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, full_day_rate, half_day_rate FROM employees ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	cards := make([]generic.EmployeeRateCard, 0)
	for rows.Next() {
		card, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func scanEmployee(row scanner) (generic.EmployeeRateCard, error) {
	var (
		card generic.EmployeeRateCard
		full string
		half sql.NullString
	)
	if err := row.Scan(&card.EmployeeID, &card.Name, &full, &half); err != nil {
		return card, err
	}

	var err error
	if card.FullDayRate, err = decimal.NewFromString(full); err != nil {
		return card, fmt.Errorf("employee %s: bad full_day_rate: %w", card.EmployeeID, err)
	}
	if half.Valid {
		h, err := decimal.NewFromString(half.String)
		if err != nil {
			return card, fmt.Errorf("employee %s: bad half_day_rate: %w", card.EmployeeID, err)
		}
		card.HalfDayRate = &h
	}
	return card, nil
}

// =============================================================================
// COMPANY RATE CARDS
// =============================================================================

// SaveCompany inserts or replaces a company rate card.
func (s *Store) SaveCompany(ctx context.Context, card generic.CompanyRateCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (id, name, service_rate, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			service_rate = excluded.service_rate`,
		card.CompanyID, card.Name, card.ServiceRate.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save company: %w", err)
	}
	return nil
}

// CompanyRateCard returns the card, or nil if the company is unknown.
func (s *Store) CompanyRateCard(ctx context.Context, id generic.CompanyID) (*generic.CompanyRateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT id, name, service_rate FROM companies WHERE id = ?", id)
	card, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// ListCompanies returns all company cards ordered by id.
func (s *Store) ListCompanies(ctx context.Context) ([]generic.CompanyRateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, service_rate FROM companies ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	cards := make([]generic.CompanyRateCard, 0)
	for rows.Next() {
		card, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func scanCompany(row scanner) (generic.CompanyRateCard, error) {
	var (
		card generic.CompanyRateCard
		rate string
	)
	if err := row.Scan(&card.CompanyID, &card.Name, &rate); err != nil {
		return card, err
	}
	var err error
	if card.ServiceRate, err = decimal.NewFromString(rate); err != nil {
		return card, fmt.Errorf("company %s: bad service_rate: %w", card.CompanyID, err)
	}
	return card, nil
}

// SeedRateCards saves every card in one call. Used at startup.
func (s *Store) SeedRateCards(ctx context.Context, employees []generic.EmployeeRateCard, companies []generic.CompanyRateCard) error {
	for _, e := range employees {
		if err := s.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}
	for _, c := range companies {
		if err := s.SaveCompany(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
