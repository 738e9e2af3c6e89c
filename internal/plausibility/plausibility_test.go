package plausibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
)

func TestPolicy_Bounds(t *testing.T) {
	p := NewPolicy(config.DefaultPolicy())

	assert.True(t, p.MonthlyOK(100))
	assert.True(t, p.MonthlyOK(20000))
	assert.False(t, p.MonthlyOK(99))
	assert.False(t, p.MonthlyOK(20001))
	assert.Equal(t, ReasonMonthlyTooLow, p.MonthlyReason(50))
	assert.Equal(t, ReasonMonthlyTooHigh, p.MonthlyReason(25000))

	assert.True(t, p.AnnualOK(1200))
	assert.False(t, p.AnnualOK(1199))
}

func TestEngine_Check(t *testing.T) {
	e := NewEngine(NewPolicy(config.DefaultPolicy()))

	ok := &domain.PropertyRecord{
		Price:          domain.Ptr(250000.0),
		LivingSpaceSqm: domain.Ptr(72.0),
		Rooms:          domain.Ptr(3.0),
		YearBuilt:      domain.Ptr(1965),
		RentMonthly:    domain.Ptr(650.0),
		RentAnnual:     domain.Ptr(7800.0),
	}
	res := e.Check(ok)
	assert.True(t, res.Passed)
	assert.Empty(t, res.Rejected)

	bad := &domain.PropertyRecord{
		Price:          domain.Ptr(0.0),
		LivingSpaceSqm: domain.Ptr(753.0e3),
		Rooms:          domain.Ptr(753.0),
		YearBuilt:      domain.Ptr(19),
		RentMonthly:    domain.Ptr(12.5),
		RentAnnual:     domain.Ptr(150.0),
	}
	res = e.Check(bad)
	assert.False(t, res.Passed)
	assert.Equal(t, map[string]string{
		domain.FieldPrice:       ReasonPriceNotPos,
		domain.FieldLivingSpace: ReasonAreaRange,
		domain.FieldRooms:       ReasonRoomsRange,
		domain.FieldYearBuilt:   ReasonYearRange,
		domain.FieldRentMonthly: ReasonMonthlyTooLow,
		domain.FieldRentAnnual:  ReasonAnnualTooLow,
	}, res.Rejected)
}

func TestEngine_EmptyRecordPasses(t *testing.T) {
	e := NewEngine(NewPolicy(config.DefaultPolicy()))
	assert.True(t, e.Check(&domain.PropertyRecord{}).Passed)
}

func TestEngine_ApplyClearsRejected(t *testing.T) {
	e := NewEngine(NewPolicy(config.DefaultPolicy()))
	rec := &domain.PropertyRecord{
		Rooms:       domain.Ptr(3.0),
		RentMonthly: domain.Ptr(45000.0),
		Origins: map[string]domain.Origin{
			domain.FieldRooms:       domain.OriginPortal,
			domain.FieldRentMonthly: domain.OriginModel,
		},
	}

	res := e.Apply(rec)
	assert.False(t, res.Passed)
	assert.Nil(t, rec.RentMonthly)
	assert.Equal(t, 3.0, *rec.Rooms)
	assert.Equal(t, AbsentRejected, rec.Absent[domain.FieldRentMonthly])
	assert.NotContains(t, rec.Origins, domain.FieldRentMonthly)
	assert.Equal(t, domain.OriginPortal, rec.Origins[domain.FieldRooms])
}

func TestEngine_ApplyRederivesRentPair(t *testing.T) {
	e := NewEngine(NewPolicy(config.DefaultPolicy()))
	rec := &domain.PropertyRecord{
		RentMonthly: domain.Ptr(450.0),
		RentAnnual:  domain.Ptr(450.0),
		Origins: map[string]domain.Origin{
			domain.FieldRentMonthly: domain.OriginText,
			domain.FieldRentAnnual:  domain.OriginPortal,
		},
	}

	res := e.Apply(rec)
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonAnnualTooLow, res.Rejected[domain.FieldRentAnnual])
	require.NotNil(t, rec.RentAnnual)
	assert.Equal(t, 5400.0, *rec.RentAnnual)
	assert.Equal(t, 450.0, *rec.RentMonthly)
	assert.Equal(t, domain.OriginDerived, rec.Origins[domain.FieldRentAnnual])
	assert.NotContains(t, rec.Absent, domain.FieldRentAnnual)
}

func TestEngine_ApplyDropsHalfDerivedFromRejected(t *testing.T) {
	e := NewEngine(NewPolicy(config.DefaultPolicy()))
	rec := &domain.PropertyRecord{
		RentMonthly: domain.Ptr(45000.0),
		RentAnnual:  domain.Ptr(540000.0),
		Origins: map[string]domain.Origin{
			domain.FieldRentMonthly: domain.OriginModel,
			domain.FieldRentAnnual:  domain.OriginDerived,
		},
	}

	e.Apply(rec)
	assert.Nil(t, rec.RentMonthly)
	assert.Nil(t, rec.RentAnnual)
	assert.Equal(t, AbsentRejected, rec.Absent[domain.FieldRentAnnual])
}

func TestEngine_ApplyRejectsImplausibleDerivedHalf(t *testing.T) {
	e := NewEngine(NewPolicy(config.DefaultPolicy()))
	rec := &domain.PropertyRecord{
		RentMonthly: domain.Ptr(10.0),
		RentAnnual:  domain.Ptr(300000.0),
		Origins: map[string]domain.Origin{
			domain.FieldRentMonthly: domain.OriginText,
			domain.FieldRentAnnual:  domain.OriginPortal,
		},
	}

	res := e.Apply(rec)
	assert.False(t, res.Passed)
	assert.Equal(t, ReasonMonthlyTooHigh, res.Rejected[domain.FieldRentMonthly])
	assert.Nil(t, rec.RentMonthly)
	assert.Nil(t, rec.RentAnnual)
}
