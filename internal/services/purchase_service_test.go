// internal/services/purchase_service_test.go
package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/blockmart/blockmart-backend/internal/config"
	"github.com/blockmart/blockmart-backend/internal/database"
	"github.com/blockmart/blockmart-backend/internal/models"
)

// fakePaymentGateway extends the transfer fake with the buyer-facing surface
// so PurchaseService can run against a real database without touching Stripe.
type fakePaymentGateway struct {
	fakeTransferGateway
	refunds []string
}

func (g *fakePaymentGateway) CreateCheckoutSession(req CheckoutSessionRequest) (*CheckoutSession, error) {
	return &CheckoutSession{
		ID:  "cs_test_" + req.PurchaseID,
		URL: "https://checkout.example.test/" + req.PurchaseID,
	}, nil
}

func (g *fakePaymentGateway) RefundPayment(paymentRef string, amountMinor int64) (string, error) {
	g.refunds = append(g.refunds, paymentRef)
	return "re_" + paymentRef, nil
}

func (g *fakePaymentGateway) GetProcessingFee(paymentRef string) (int64, error) {
	return 59, nil
}

// PurchaseFulfillmentTestSuite runs the purchase state machine against a
// throwaway Postgres container, since the transition guarantees depend on
// row locking and transactional behavior an in-memory fake cannot exhibit.
type PurchaseFulfillmentTestSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	db        *gorm.DB
	gateway   *fakePaymentGateway
	service   *PurchaseService
}

func TestPurchaseFulfillmentTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed suite in short mode")
	}
	suite.Run(t, new(PurchaseFulfillmentTestSuite))
}

func (s *PurchaseFulfillmentTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := tcpostgres.Run(s.ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("blockmart_test"),
		tcpostgres.WithUsername("blockmart"),
		tcpostgres.WithPassword("blockmart"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		s.T().Skipf("could not start postgres container: %v", err)
	}
	s.container = container

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(database.RunMigrations(db))
	s.db = db
}

func (s *PurchaseFulfillmentTestSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PurchaseFulfillmentTestSuite) SetupTest() {
	s.gateway = &fakePaymentGateway{}
	cfg := &config.Config{
		Payment: config.PaymentConfig{
			CheckoutFeeBps:  1500,
			DefaultCurrency: "usd",
		},
		Frontend: config.FrontendConfig{BaseURL: "http://localhost:3000"},
	}
	licenses := NewLicenseService(s.db, nil)
	s.service = NewPurchaseService(s.db, cfg, s.gateway, licenses)
}

// seedPendingPurchase persists a buyer, one published block per price, and a
// pending purchase with one line item per block.
func (s *PurchaseFulfillmentTestSuite) seedPendingPurchase(prices ...float64) (*models.Purchase, []models.Block) {
	buyer := models.User{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Username:  fmt.Sprintf("buyer-%s", uuid.NewString()[:8]),
		Email:     fmt.Sprintf("buyer-%s@example.test", uuid.NewString()[:8]),
		UserType:  models.UserTypeBuyer,
		Status:    models.UserStatusActive,
	}
	s.Require().NoError(buyer.SetPassword("Sup3r-secret!"))
	s.Require().NoError(s.db.Create(&buyer).Error)

	creator := newCreator(models.StripeAccountEnabled)
	creator.Username = fmt.Sprintf("creator-%s", uuid.NewString()[:8])
	creator.Email = fmt.Sprintf("creator-%s@example.test", uuid.NewString()[:8])
	s.Require().NoError(creator.SetPassword("Sup3r-secret!"))
	s.Require().NoError(s.db.Create(&creator).Error)

	var subtotal float64
	blocks := make([]models.Block, 0, len(prices))
	for i, price := range prices {
		block := models.Block{
			BaseModel: models.BaseModel{ID: uuid.New()},
			CreatorID: creator.ID,
			Title:     fmt.Sprintf("Pricing Table %d", i+1),
			Category:  "marketing",
			Framework: "react",
			Price:     price,
			Currency:  "usd",
			Status:    models.BlockStatusPublished,
		}
		s.Require().NoError(s.db.Create(&block).Error)
		blocks = append(blocks, block)
		subtotal += price
	}

	purchase := models.Purchase{
		BaseModel:         models.BaseModel{ID: uuid.New()},
		BuyerID:           buyer.ID,
		Status:            models.PurchaseStatusPending,
		SubtotalAmount:    subtotal,
		PlatformFeeAmount: subtotal * 0.15,
		TotalAmount:       subtotal * 1.15,
		Currency:          "usd",
	}
	s.Require().NoError(s.db.Create(&purchase).Error)

	for _, block := range blocks {
		item := models.PurchaseItem{
			BaseModel:   models.BaseModel{ID: uuid.New()},
			PurchaseID:  purchase.ID,
			BlockID:     block.ID,
			UnitPrice:   block.Price,
			LicenseType: models.LicenseTypePersonal,
			Quantity:    1,
		}
		s.Require().NoError(s.db.Create(&item).Error)
	}

	return &purchase, blocks
}

func (s *PurchaseFulfillmentTestSuite) licenseCount(purchaseID uuid.UUID) int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.License{}).
		Where("purchase_id = ?", purchaseID).Count(&n).Error)
	return n
}

func (s *PurchaseFulfillmentTestSuite) TestFulfillMintsOneLicensePerItem() {
	purchase, blocks := s.seedPendingPurchase(29.00, 49.00)

	fulfilled, err := s.service.FulfillPurchase(purchase.ID, "pi_first")
	s.Require().NoError(err)

	s.Equal(models.PurchaseStatusPaid, fulfilled.Status)
	s.Equal("pi_first", fulfilled.PaymentReference)
	s.NotNil(fulfilled.PaidAt)
	s.Len(fulfilled.Licenses, 2)
	s.Equal(int64(2), s.licenseCount(purchase.ID))

	for _, block := range blocks {
		var reloaded models.Block
		s.Require().NoError(s.db.First(&reloaded, block.ID).Error)
		s.Equal(int64(1), reloaded.SoldCount)
	}
}

func (s *PurchaseFulfillmentTestSuite) TestFulfillRedeliveryReturnsExistingLicenses() {
	purchase, _ := s.seedPendingPurchase(19.00)

	first, err := s.service.FulfillPurchase(purchase.ID, "pi_original")
	s.Require().NoError(err)
	s.Require().Len(first.Licenses, 1)

	// A redelivered confirmation must resolve without minting again and
	// without clobbering the payment reference from the first delivery.
	second, err := s.service.FulfillPurchase(purchase.ID, "pi_redelivered")
	s.Require().NoError(err)

	s.Equal(models.PurchaseStatusPaid, second.Status)
	s.Equal("pi_original", second.PaymentReference)
	s.Len(second.Licenses, 1)
	s.Equal(first.Licenses[0].ID, second.Licenses[0].ID)
	s.Equal(int64(1), s.licenseCount(purchase.ID))
}

func (s *PurchaseFulfillmentTestSuite) TestFulfillConcurrentDeliveriesMintOnce() {
	purchase, _ := s.seedPendingPurchase(9.00, 19.00, 29.00)

	const deliveries = 8
	var wg sync.WaitGroup
	errs := make(chan error, deliveries)

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.service.FulfillPurchase(purchase.ID, fmt.Sprintf("pi_worker_%d", n))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	var reloaded models.Purchase
	s.Require().NoError(s.db.First(&reloaded, purchase.ID).Error)
	s.Equal(models.PurchaseStatusPaid, reloaded.Status)
	s.Equal(int64(3), s.licenseCount(purchase.ID))
}

func (s *PurchaseFulfillmentTestSuite) TestFailPurchaseAfterPaidRejected() {
	purchase, _ := s.seedPendingPurchase(19.00)

	_, err := s.service.FulfillPurchase(purchase.ID, "pi_paid")
	s.Require().NoError(err)

	err = s.service.FailPurchase(purchase.ID)
	s.ErrorIs(err, ErrInvalidStateTransition)
}

func (s *PurchaseFulfillmentTestSuite) TestRefundRevokesLicenses() {
	purchase, _ := s.seedPendingPurchase(39.00)

	_, err := s.service.FulfillPurchase(purchase.ID, "pi_to_refund")
	s.Require().NoError(err)

	refunded, err := s.service.RefundPurchase(purchase.ID, "buyer request")
	s.Require().NoError(err)

	s.Equal(models.PurchaseStatusRefunded, refunded.Status)
	s.Equal([]string{"pi_to_refund"}, s.gateway.refunds)
	s.Require().Len(refunded.Licenses, 1)
	s.Equal(models.LicenseStatusRevoked, refunded.Licenses[0].Status)
}
