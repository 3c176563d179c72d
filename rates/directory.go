package rates

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-ledger/generic"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DIRECTORY - Rate cards loaded from a YAML file
// =============================================================================

// File is the on-disk rate card format:
//
//	employees:
//	  - id: emp-1
//	    name: Ana
//	    full_day_rate: 15000
//	    half_day_rate: 8000   # optional
//	companies:
//	  - id: acme
//	    name: Acme Ltd
//	    service_rate: 20000
type File struct {
	Employees []EmployeeEntry `yaml:"employees"`
	Companies []CompanyEntry  `yaml:"companies"`
}

type EmployeeEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	FullDayRate string `yaml:"full_day_rate"`
	HalfDayRate string `yaml:"half_day_rate"`
}

type CompanyEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	ServiceRate string `yaml:"service_rate"`
}

// Directory is an immutable in-memory RateCardSource.
type Directory struct {
	employees map[generic.EmployeeID]generic.EmployeeRateCard
	companies map[generic.CompanyID]generic.CompanyRateCard
}

// NewDirectory builds a directory from cards. Later duplicates win.
func NewDirectory(employees []generic.EmployeeRateCard, companies []generic.CompanyRateCard) *Directory {
	d := &Directory{
		employees: make(map[generic.EmployeeID]generic.EmployeeRateCard, len(employees)),
		companies: make(map[generic.CompanyID]generic.CompanyRateCard, len(companies)),
	}
	for _, e := range employees {
		d.employees[e.EmployeeID] = e
	}
	for _, c := range companies {
		d.companies[c.CompanyID] = c
	}
	return d
}

// LoadDirectory reads a YAML rate card file.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rates: read %s: %w", path, err)
	}
	return ParseDirectory(data)
}

// ParseDirectory decodes YAML rate cards.
func ParseDirectory(data []byte) (*Directory, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("rates: decode: %w", err)
	}

	employees := make([]generic.EmployeeRateCard, 0, len(f.Employees))
	for i, e := range f.Employees {
		if e.ID == "" {
			return nil, fmt.Errorf("rates: employees[%d]: id is required", i)
		}
		full, err := decimal.NewFromString(e.FullDayRate)
		if err != nil {
			return nil, fmt.Errorf("rates: employee %s: full_day_rate: %w", e.ID, err)
		}
		card := generic.EmployeeRateCard{EmployeeID: generic.EmployeeID(e.ID), Name: e.Name, FullDayRate: full}
		if e.HalfDayRate != "" {
			half, err := decimal.NewFromString(e.HalfDayRate)
			if err != nil {
				return nil, fmt.Errorf("rates: employee %s: half_day_rate: %w", e.ID, err)
			}
			card.HalfDayRate = &half
		}
		employees = append(employees, card)
	}

	companies := make([]generic.CompanyRateCard, 0, len(f.Companies))
	for i, c := range f.Companies {
		if c.ID == "" {
			return nil, fmt.Errorf("rates: companies[%d]: id is required", i)
		}
		rate, err := decimal.NewFromString(c.ServiceRate)
		if err != nil {
			return nil, fmt.Errorf("rates: company %s: service_rate: %w", c.ID, err)
		}
		companies = append(companies, generic.CompanyRateCard{CompanyID: generic.CompanyID(c.ID), Name: c.Name, ServiceRate: rate})
	}

	return NewDirectory(employees, companies), nil
}

func (d *Directory) EmployeeRateCard(_ context.Context, id generic.EmployeeID) (*generic.EmployeeRateCard, error) {
	card, ok := d.employees[id]
	if !ok {
		return nil, nil
	}
	return &card, nil
}

func (d *Directory) CompanyRateCard(_ context.Context, id generic.CompanyID) (*generic.CompanyRateCard, error) {
	card, ok := d.companies[id]
	if !ok {
		return nil, nil
	}
	return &card, nil
}

// Employees returns all employee cards sorted by id.
func (d *Directory) Employees() []generic.EmployeeRateCard {
	out := make([]generic.EmployeeRateCard, 0, len(d.employees))
	for _, e := range d.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out
}

// Companies returns all company cards sorted by id.
func (d *Directory) Companies() []generic.CompanyRateCard {
	out := make([]generic.CompanyRateCard, 0, len(d.companies))
	for _, c := range d.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyID < out[j].CompanyID })
	return out
}
