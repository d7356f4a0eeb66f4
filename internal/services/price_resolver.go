package services

import (
	"fmt"
	"time"

	"github.com/cabanaresort/reservations-backend/internal/models"
	"github.com/cabanaresort/reservations-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// PricingCatalog is the read-only slice of the database the resolver consumes
type PricingCatalog interface {
	GetDayPrices(cabanaID string, start, end time.Time) ([]models.CabanaDayPrice, error)
	GetRangePrices(cabanaID string, start, end time.Time) ([]models.CabanaRangePrice, error)
	GetConceptByID(id string) (*models.Concept, error)
	GetConceptProducts(conceptID string) ([]models.ConceptProduct, error)
	GetProductsByIDs(ids []string) (map[string]models.Product, error)
}

// PriceResolver computes itemized price breakdowns. It is pure with respect to
// state: it reads the catalog, takes no locks and mutates nothing.
type PriceResolver struct {
	catalog PricingCatalog
	logger  *logrus.Logger
}

// NewPriceResolver creates a new PriceResolver
func NewPriceResolver(catalog PricingCatalog, logger *logrus.Logger) *PriceResolver {
	return &PriceResolver{catalog: catalog, logger: logger}
}

const dayKeyLayout = "2006-01-02"

// CalculatePrice resolves the price for a stay on [start, end) with an
// optional concept and optional extras. Precedence per night: exact-day
// override, then the highest-priority range override covering the night,
// then zero. A night nothing prices stays at zero so an approver has to
// price it manually; there is no silent fallback rate.
//
// The caller validates the range. start == end yields a zero cabana total.
func (r *PriceResolver) CalculatePrice(cabanaID string, conceptID *string, start, end time.Time, extras []models.ExtraItemInput) (*models.PriceBreakdown, error) {
	breakdown := &models.PriceBreakdown{
		PriceSource: models.PriceSourceGeneral,
		LineItems:   []models.PriceLineItem{},
	}

	cabanaTotal, nightItems, err := r.resolveNights(cabanaID, start, end)
	if err != nil {
		return nil, err
	}
	breakdown.CabanaDailyTotal = cabanaTotal
	breakdown.LineItems = append(breakdown.LineItems, nightItems...)

	conceptOverrideTotal := 0.0
	if conceptID != nil {
		conceptTotal, overrideTotal, conceptItems, err := r.resolveConcept(*conceptID)
		if err != nil {
			return nil, err
		}
		breakdown.ConceptTotal = conceptTotal
		conceptOverrideTotal = overrideTotal
		breakdown.LineItems = append(breakdown.LineItems, conceptItems...)
	}

	if len(extras) > 0 {
		extrasTotal, extraItems, err := r.resolveExtrasAtSalePrice(extras)
		if err != nil {
			return nil, err
		}
		breakdown.ExtrasTotal = extrasTotal
		breakdown.LineItems = append(breakdown.LineItems, extraItems...)
	}

	breakdown.GrandTotal = breakdown.CabanaDailyTotal + breakdown.ConceptTotal + breakdown.ExtrasTotal

	// The source tag names the highest tier that contributed a non-zero
	// amount. Informational only.
	switch {
	case breakdown.CabanaDailyTotal > 0:
		breakdown.PriceSource = models.PriceSourceCabanaSpecific
	case conceptOverrideTotal > 0:
		breakdown.PriceSource = models.PriceSourceConceptSpecific
	default:
		breakdown.PriceSource = models.PriceSourceGeneral
	}

	return breakdown, nil
}

// SnapshotExtras resolves extra inputs into ExtraItem rows with the unit
// price frozen at the current sale price. Used when attaching extras to an
// approved reservation: later catalog changes never reprice stored extras.
func (r *PriceResolver) SnapshotExtras(reservationID, addedBy string, inputs []models.ExtraItemInput) ([]models.ExtraItem, error) {
	ids := make([]string, len(inputs))
	for i, input := range inputs {
		ids[i] = input.ProductID
	}

	products, err := r.catalog.GetProductsByIDs(ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.ExtraItem, 0, len(inputs))
	for _, input := range inputs {
		product, ok := products[input.ProductID]
		if !ok {
			return nil, models.NewValidationError("items.product_id",
				fmt.Sprintf("product %s does not exist or is inactive", input.ProductID))
		}
		items = append(items, models.ExtraItem{
			ReservationID: reservationID,
			ProductID:     product.ID,
			ProductName:   product.Name,
			Quantity:      input.Quantity,
			UnitPrice:     product.SalePrice,
			AddedBy:       addedBy,
		})
	}

	return items, nil
}

// resolveNights prices each night of [start, end). Day overrides win over
// range overrides; among overlapping ranges the highest priority wins.
func (r *PriceResolver) resolveNights(cabanaID string, start, end time.Time) (float64, []models.PriceLineItem, error) {
	dayPrices, err := r.catalog.GetDayPrices(cabanaID, start, end)
	if err != nil {
		return 0, nil, err
	}
	rangePrices, err := r.catalog.GetRangePrices(cabanaID, start, end)
	if err != nil {
		return 0, nil, err
	}

	byDay := make(map[string]float64, len(dayPrices))
	for _, dp := range dayPrices {
		byDay[dp.Day.Format(dayKeyLayout)] = dp.Price
	}

	total := 0.0
	items := []models.PriceLineItem{}
	for _, day := range validator.DaysBetween(start, end) {
		price, priced := byDay[day.Format(dayKeyLayout)]
		if !priced {
			// rangePrices is ordered highest priority first
			for _, rp := range rangePrices {
				if validator.Overlaps(day, day.AddDate(0, 0, 1), rp.StartDate, rp.EndDate) {
					price = rp.Price
					priced = true
					break
				}
			}
		}
		if !priced {
			continue
		}

		total += price
		items = append(items, models.PriceLineItem{
			Name:      fmt.Sprintf("Night %s", day.Format(dayKeyLayout)),
			Quantity:  1,
			UnitPrice: price,
			LineTotal: price,
			Source:    models.PriceSourceCabanaSpecific,
		})
	}

	return total, items, nil
}

// resolveConcept prices the concept bundle, charging the concept override
// when set and the product's general sale price otherwise. Also returns the
// portion of the total that came from overrides, for the source tag.
func (r *PriceResolver) resolveConcept(conceptID string) (float64, float64, []models.PriceLineItem, error) {
	concept, err := r.catalog.GetConceptByID(conceptID)
	if err != nil {
		return 0, 0, nil, err
	}
	if concept == nil {
		return 0, 0, nil, models.NewNotFoundError("concept", conceptID)
	}

	products, err := r.catalog.GetConceptProducts(conceptID)
	if err != nil {
		return 0, 0, nil, err
	}

	total := 0.0
	overrideTotal := 0.0
	items := make([]models.PriceLineItem, 0, len(products))
	for _, cp := range products {
		unitPrice := cp.SalePrice
		source := models.PriceSourceGeneral
		if cp.OverridePrice != nil {
			unitPrice = *cp.OverridePrice
			source = models.PriceSourceConceptSpecific
		}

		lineTotal := float64(cp.Quantity) * unitPrice
		total += lineTotal
		if cp.OverridePrice != nil {
			overrideTotal += lineTotal
		}

		items = append(items, models.PriceLineItem{
			Name:      cp.ProductName,
			Quantity:  cp.Quantity,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
			Source:    source,
		})
	}

	return total, overrideTotal, items, nil
}

// resolveExtrasAtSalePrice prices quote-time extras at the current general
// sale price
func (r *PriceResolver) resolveExtrasAtSalePrice(extras []models.ExtraItemInput) (float64, []models.PriceLineItem, error) {
	ids := make([]string, len(extras))
	for i, extra := range extras {
		ids[i] = extra.ProductID
	}

	products, err := r.catalog.GetProductsByIDs(ids)
	if err != nil {
		return 0, nil, err
	}

	total := 0.0
	items := make([]models.PriceLineItem, 0, len(extras))
	for _, extra := range extras {
		product, ok := products[extra.ProductID]
		if !ok {
			return 0, nil, models.NewValidationError("extras.product_id",
				fmt.Sprintf("product %s does not exist or is inactive", extra.ProductID))
		}

		lineTotal := float64(extra.Quantity) * product.SalePrice
		total += lineTotal
		items = append(items, models.PriceLineItem{
			Name:      product.Name,
			Quantity:  extra.Quantity,
			UnitPrice: product.SalePrice,
			LineTotal: lineTotal,
			Source:    models.PriceSourceGeneral,
		})
	}

	return total, items, nil
}
