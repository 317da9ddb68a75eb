package service

import (
	"context"
	"errors"
	"log"

	"waifuhospital/internal/apperr"
	"waifuhospital/internal/client"
	"waifuhospital/internal/dto"
	"waifuhospital/internal/model"
	"waifuhospital/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MerchandiseService interface {
	Create(ctx context.Context, creatorID string, req *dto.CreateMerchandiseRequest) (*model.Merchandise, error)
	Get(ctx context.Context, merchandiseID string) (*model.Merchandise, error)
	ListApproved(ctx context.Context) ([]*model.Merchandise, error)
	ListByCharacter(ctx context.Context, characterID string) ([]*model.Merchandise, error)
	ListMine(ctx context.Context, creatorID string) ([]*model.Merchandise, error)
	Update(ctx context.Context, userID, merchandiseID string, req *dto.UpdateMerchandiseRequest) (*model.Merchandise, error)
	Delete(ctx context.Context, userID, merchandiseID string) error
}

type merchandiseServiceImpl struct {
	merchandiseRepo    repository.MerchandiseRepository
	characterRepo      repository.CharacterRepository
	userRepo           repository.UserRepository
	paymentGateway     client.PaymentGateway
	fulfillmentGateway client.FulfillmentGateway
	imageHost          client.ImageHost
}

func NewMerchandiseService(
	merchandiseRepo repository.MerchandiseRepository,
	characterRepo repository.CharacterRepository,
	userRepo repository.UserRepository,
	paymentGateway client.PaymentGateway,
	fulfillmentGateway client.FulfillmentGateway,
	imageHost client.ImageHost,
) MerchandiseService {
	return &merchandiseServiceImpl{
		merchandiseRepo:    merchandiseRepo,
		characterRepo:      characterRepo,
		userRepo:           userRepo,
		paymentGateway:     paymentGateway,
		fulfillmentGateway: fulfillmentGateway,
		imageHost:          imageHost,
	}
}

var merchandiseCategories = map[string]bool{
	"t-shirt":   true,
	"mug":       true,
	"poster":    true,
	"sticker":   true,
	"hoodie":    true,
	"hat":       true,
	"phonecase": true,
	"other":     true,
}

// Create registers merchandise for one of the creator's characters and
// publishes it to the fulfillment gateway. Fulfillment publishing is best
// effort; an item without synced variants sells without print integration.
func (s *merchandiseServiceImpl) Create(ctx context.Context, creatorID string, req *dto.CreateMerchandiseRequest) (*model.Merchandise, error) {
	if req.Name == "" || req.ImageURL == "" {
		return nil, apperr.Validation("name and image are required")
	}
	if req.Price <= 0 {
		return nil, apperr.Validation("price must be positive")
	}
	if !merchandiseCategories[req.Category] {
		return nil, apperr.Validation("unknown category %q", req.Category)
	}

	character, err := s.characterRepo.FindByID(ctx, req.CharacterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("character not found")
		}
		return nil, apperr.Internal("load character", err)
	}
	if character.CreatorID != creatorID {
		return nil, apperr.Forbidden("only the character's creator can sell its merchandise")
	}

	creator, err := s.userRepo.FindByID(ctx, creatorID)
	if err != nil {
		return nil, apperr.Internal("load creator", err)
	}

	// Creators usually list merchandise before finishing payout onboarding.
	// Create the connected account lazily so their sales have somewhere to
	// settle; the onboarding flow reuses the same account later.
	if creator.StripeConnect.AccountID == "" {
		accountID, err := s.paymentGateway.CreateConnectedAccount(ctx, client.AccountProfile{
			UserID:   creator.ID,
			Email:    creator.Email,
			Username: creator.Username,
			Country:  creator.StripeConnect.Country,
		})
		if err != nil {
			return nil, apperr.External("stripe", err)
		}
		if err := s.userRepo.SetStripeAccountID(ctx, creator.ID, accountID); err != nil {
			return nil, apperr.Internal("store connected account id", err)
		}
		creator.StripeConnect.AccountID = accountID
	}

	// Rehost the product image so listings survive the source URL going away.
	// Hosting is cosmetic; on failure the original URL is kept.
	imageURL := req.ImageURL
	if imageID, err := s.imageHost.UploadFromURL(ctx, req.ImageURL, map[string]string{
		"characterId": character.ID,
		"creatorId":   creatorID,
	}); err == nil {
		imageURL = s.imageHost.DeliveryURL(imageID)
	} else {
		log.Printf("merchandise image rehost failed: %v", err)
	}

	merch := &model.Merchandise{
		ID:                     uuid.NewString(),
		Name:                   req.Name,
		Description:            req.Description,
		Price:                  req.Price,
		ImageURL:               imageURL,
		CharacterID:            character.ID,
		CreatorID:              creatorID,
		Category:               req.Category,
		AvailableSizes:         req.AvailableSizes,
		AvailableColors:        req.AvailableColors,
		CreatorRevenuePercent:  80,
		PlatformFeePercent:     20,
		StripeConnectAccountID: creator.StripeConnect.AccountID,
	}

	product, err := s.fulfillmentGateway.CreateProduct(ctx, client.SyncProductRequest{
		Name:       req.Name,
		ImageURL:   req.ImageURL,
		ExternalID: merch.ID,
		Category:   req.Category,
		Sizes:      req.AvailableSizes,
		Colors:     req.AvailableColors,
	})
	if err != nil {
		log.Printf("merchandise %s: fulfillment product creation failed: %v", merch.ID, err)
	} else {
		merch.PrintfulProductID = product.ID
		merch.PrintfulExternalID = merch.ID
		for _, v := range product.Variants {
			merch.PrintfulVariants = append(merch.PrintfulVariants, model.MerchandiseVariant{
				VariantID:   v.VariantID,
				ExternalID:  v.ExternalID,
				RetailPrice: v.RetailPrice,
				Size:        v.Size,
				Color:       v.Color,
			})
		}
		if len(product.Variants) > 0 {
			if cost, err := s.fulfillmentGateway.GetProductionCost(ctx, product.Variants[0].VariantID); err == nil {
				merch.ProductionCost = cost
			}
		}
	}

	if err := s.merchandiseRepo.Create(ctx, merch); err != nil {
		return nil, apperr.Internal("store merchandise", err)
	}

	return merch, nil
}

func (s *merchandiseServiceImpl) Get(ctx context.Context, merchandiseID string) (*model.Merchandise, error) {
	merch, err := s.merchandiseRepo.FindByID(ctx, merchandiseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("merchandise not found")
		}
		return nil, apperr.Internal("load merchandise", err)
	}
	return merch, nil
}

func (s *merchandiseServiceImpl) ListApproved(ctx context.Context) ([]*model.Merchandise, error) {
	merch, err := s.merchandiseRepo.ListApproved(ctx)
	if err != nil {
		return nil, apperr.Internal("list merchandise", err)
	}
	return merch, nil
}

func (s *merchandiseServiceImpl) ListByCharacter(ctx context.Context, characterID string) ([]*model.Merchandise, error) {
	merch, err := s.merchandiseRepo.ListByCharacter(ctx, characterID)
	if err != nil {
		return nil, apperr.Internal("list merchandise", err)
	}
	return merch, nil
}

func (s *merchandiseServiceImpl) ListMine(ctx context.Context, creatorID string) ([]*model.Merchandise, error) {
	merch, err := s.merchandiseRepo.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, apperr.Internal("list merchandise", err)
	}
	return merch, nil
}

func (s *merchandiseServiceImpl) Update(ctx context.Context, userID, merchandiseID string, req *dto.UpdateMerchandiseRequest) (*model.Merchandise, error) {
	merch, err := s.merchandiseRepo.FindByID(ctx, merchandiseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("merchandise not found")
		}
		return nil, apperr.Internal("load merchandise", err)
	}
	if merch.CreatorID != userID {
		return nil, apperr.Forbidden("only the creator can edit merchandise")
	}

	if req.Name != nil {
		merch.Name = *req.Name
	}
	if req.Description != nil {
		merch.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, apperr.Validation("price must be positive")
		}
		merch.Price = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, apperr.Validation("stock cannot be negative")
		}
		merch.Stock = *req.Stock
	}
	if req.IsApproved != nil {
		merch.IsApproved = *req.IsApproved
	}

	if err := s.merchandiseRepo.Update(ctx, merch); err != nil {
		return nil, apperr.Internal("update merchandise", err)
	}

	return merch, nil
}

// Delete removes the listing. Historical purchases keep their snapshots, so
// sold items disappearing from the catalog does not corrupt order history.
func (s *merchandiseServiceImpl) Delete(ctx context.Context, userID, merchandiseID string) error {
	merch, err := s.merchandiseRepo.FindByID(ctx, merchandiseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("merchandise not found")
		}
		return apperr.Internal("load merchandise", err)
	}
	if merch.CreatorID != userID {
		return apperr.Forbidden("only the creator can delete merchandise")
	}

	if err := s.merchandiseRepo.Delete(ctx, merchandiseID); err != nil {
		return apperr.Internal("delete merchandise", err)
	}
	return nil
}
