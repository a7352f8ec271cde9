package services

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/pagination"
)

// portfolioService handles holding and position business logic.
type portfolioService struct {
	db *gorm.DB
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB) PortfolioServicer {
	return &portfolioService{db: db}
}

// CreateHolding creates a new holding for the user.
// Names must be unique per owner.
func (s *portfolioService) CreateHolding(userID uint, name, description string) (*models.Holding, error) {
	var count int64
	if err := s.db.Model(&models.Holding{}).
		Where("user_id = ? AND name = ?", userID, name).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateHoldingName
	}

	holding := &models.Holding{
		UserID:      userID,
		Name:        name,
		Description: description,
	}
	if err := s.db.Create(holding).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return holding, nil
}

// getOwnedHolding loads a holding without positions and verifies ownership.
// A missing holding is NotFound; someone else's holding is Forbidden.
func (s *portfolioService) getOwnedHolding(userID, holdingID uint) (*models.Holding, error) {
	var holding models.Holding
	if err := s.db.First(&holding, holdingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrHoldingNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if holding.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	return &holding, nil
}

// GetHolding returns a holding with its positions eagerly loaded.
func (s *portfolioService) GetHolding(userID, holdingID uint) (*models.Holding, error) {
	if _, err := s.getOwnedHolding(userID, holdingID); err != nil {
		return nil, err
	}

	var holding models.Holding
	if err := s.db.Preload("Positions").First(&holding, holdingID).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &holding, nil
}

// GetUserHoldings returns a paginated list of the user's holdings,
// positions excluded.
func (s *portfolioService) GetUserHoldings(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Holding], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Holding{}).Where("user_id = ?", userID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var holdings []models.Holding
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Scopes(pagination.Paginate(page)).Find(&holdings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(holdings, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateHolding updates a holding's name and/or description.
// Only fields that are provided (non-nil) are changed.
func (s *portfolioService) UpdateHolding(userID, holdingID uint, name, description *string) (*models.Holding, error) {
	holding, err := s.getOwnedHolding(userID, holdingID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name != nil && *name != holding.Name {
		var count int64
		if err := s.db.Model(&models.Holding{}).
			Where("user_id = ? AND name = ? AND id <> ?", userID, *name, holdingID).
			Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return nil, apperrors.ErrDuplicateHoldingName
		}
		updates["name"] = *name
	}
	if description != nil {
		updates["description"] = *description
	}

	if len(updates) > 0 {
		if err := s.db.Model(holding).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return holding, nil
}

// DeleteHolding deletes a holding and cascades to its positions and snapshots.
// Rows are removed outright rather than soft-deleted: the (user, name) and
// (holding, ticker) unique keys must be free for reuse afterwards.
func (s *portfolioService) DeleteHolding(userID, holdingID uint) error {
	holding, err := s.getOwnedHolding(userID, holdingID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Unscoped().Where("holding_id = ?", holdingID).Delete(&models.Position{}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		if txErr := tx.Where("holding_id = ?", holdingID).Delete(&models.HistorySnapshot{}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		if txErr := tx.Unscoped().Delete(holding).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	})
}

// AddPosition contributes quantity at unitCost to a holding's position for a
// ticker. The first contribution creates the position; later contributions
// for the same ticker are merged into the existing row: quantity is summed
// and the average buy price becomes the quantity-weighted mean, rounded to
// 2 decimals. The stored asset type is retained on merge; the incoming one
// is ignored. The merge re-reads the row under a row-level lock so two
// concurrent contributions cannot lose an update.
func (s *portfolioService) AddPosition(userID, holdingID uint, ticker string, quantity, unitCost decimal.Decimal, assetType models.AssetType) (*models.Position, error) {
	if !quantity.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity must be greater than zero")
	}
	if !unitCost.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unit cost must be greater than zero")
	}

	if _, err := s.getOwnedHolding(userID, holdingID); err != nil {
		return nil, err
	}

	ticker = strings.ToUpper(ticker)

	var position models.Position
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("holding_id = ? AND ticker = ?", holdingID, ticker).
			First(&position).Error

		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			position = models.Position{
				HoldingID:   holdingID,
				Ticker:      ticker,
				Quantity:    quantity,
				AvgBuyPrice: unitCost.Round(2),
				AssetType:   assetType,
			}
			if txErr := tx.Create(&position).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
			return nil
		}
		if txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}

		newQuantity := position.Quantity.Add(quantity)
		newCost := decimal.Zero
		if !newQuantity.IsZero() {
			// (oldQty*oldCost + qty*cost) / newQty, exact decimal arithmetic.
			totalCost := position.Quantity.Mul(position.AvgBuyPrice).Add(quantity.Mul(unitCost))
			newCost = totalCost.Div(newQuantity).Round(2)
		}

		if txErr := tx.Model(&position).Updates(map[string]interface{}{
			"quantity":      newQuantity,
			"avg_buy_price": newCost,
		}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		position.Quantity = newQuantity
		position.AvgBuyPrice = newCost
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &position, nil
}

// RemovePosition removes a position, identified by ticker, from a holding.
// The row is removed outright so the ticker can be contributed again later
// without tripping the (holding, ticker) unique key.
func (s *portfolioService) RemovePosition(userID, holdingID uint, ticker string) error {
	if _, err := s.getOwnedHolding(userID, holdingID); err != nil {
		return err
	}

	ticker = strings.ToUpper(ticker)

	var position models.Position
	if err := s.db.Where("holding_id = ? AND ticker = ?", holdingID, ticker).First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrPositionNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.db.Unscoped().Delete(&position).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
