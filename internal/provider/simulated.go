package provider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// SimulatedBureau derives a reproducible bureau report from the entity ID.
// It exists for development and demos; it is not a data source.
type SimulatedBureau struct {
	now func() time.Time
}

// NewSimulatedBureau creates a simulated bureau.
func NewSimulatedBureau() *SimulatedBureau {
	return &SimulatedBureau{now: time.Now}
}

// Name implements BureauProvider.
func (*SimulatedBureau) Name() string { return "simulated_bureau" }

// FetchBureau implements BureauProvider. Institutions have no bureau file.
func (s *SimulatedBureau) FetchBureau(ctx context.Context, entity domain.Entity) (*domain.CreditBureauData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := entity.(*domain.Institution); ok {
		return nil, nil
	}

	h := sha256.Sum256([]byte(entity.EntityID()))
	// Report date is pinned to the day so repeated pulls share a cache key.
	today := s.now().UTC().Truncate(24 * time.Hour)

	report := &domain.CreditBureauData{
		Source:      "simulated",
		LastUpdated: today,
	}

	// A hash byte below 36 marks a late month, below 8 a severely late one.
	for i := 0; i < 24; i++ {
		b := h[i%len(h)]
		rec := domain.PaymentRecord{
			Date:   today.AddDate(0, -(i + 1), 0),
			Amount: 250 + float64(b),
		}
		switch {
		case b < 8:
			rec.DaysLate = 90
		case b < 36:
			rec.DaysLate = 15
		}
		report.PaymentHistory = append(report.PaymentHistory, rec)
	}

	accounts := 1 + int(h[24]%4)
	for i := 0; i < accounts; i++ {
		limit := 1000 * float64(1+binary.BigEndian.Uint16(h[i*2:i*2+2])%20)
		report.CreditAccounts = append(report.CreditAccounts, domain.CreditAccount{
			AccountType:    "revolving",
			CreditLimit:    limit,
			Balance:        limit * float64(h[25+i]) / 255,
			MonthlyPayment: limit * 0.03,
			OpenedAt:       today.AddDate(-(1 + int(h[29]%10)), 0, 0),
		})
	}

	for i := 0; i < int(h[30]%9); i++ {
		report.Inquiries = append(report.Inquiries, domain.CreditInquiry{
			InquiredAt: today.AddDate(0, -(i + 1), 0),
			Kind:       "hard",
		})
	}

	if h[31] < 16 {
		report.PublicRecords = append(report.PublicRecords, domain.PublicRecord{
			RecordType: "judgment",
			Amount:     500 + float64(h[31])*100,
			FiledAt:    today.AddDate(-2, 0, 0),
		})
	}
	return report, nil
}

// SimulatedTelecom derives telecom and utility payment signals for
// individuals from the entity ID.
type SimulatedTelecom struct {
	now func() time.Time
}

// NewSimulatedTelecom creates a simulated alternative-data source.
func NewSimulatedTelecom() *SimulatedTelecom {
	return &SimulatedTelecom{now: time.Now}
}

// Name implements AlternativeProvider.
func (*SimulatedTelecom) Name() string { return "simulated_telecom" }

// FetchAlternative implements AlternativeProvider.
func (s *SimulatedTelecom) FetchAlternative(ctx context.Context, entity domain.Entity) ([]domain.AlternativeDataPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := entity.(*domain.Individual); !ok {
		return nil, nil
	}

	h := sha256.Sum256([]byte("alt:" + entity.EntityID()))
	today := s.now().UTC().Truncate(24 * time.Hour)

	return []domain.AlternativeDataPoint{
		{
			Source:      domain.AltSourceTelecom,
			Score:       float64(h[0]) / 255,
			Confidence:  0.6 + 0.4*float64(h[1])/255,
			LastUpdated: today,
			Details:     map[string]any{"months_on_network": 6 + int(h[2]%60)},
		},
		{
			Source:      domain.AltSourceUtilities,
			Score:       float64(h[3]) / 255,
			Confidence:  0.5 + 0.5*float64(h[4])/255,
			LastUpdated: today,
			Details:     map[string]any{"bills_paid_on_time": int(h[5] % 25)},
		},
	}, nil
}
