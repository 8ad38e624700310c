package api

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/inkpress/account_service/config"
	"github.com/inkpress/account_service/infra/queue"
	"github.com/inkpress/account_service/internal/api/rest/handlers"
	"github.com/inkpress/account_service/internal/domain"
	"github.com/inkpress/account_service/internal/helper"
	"github.com/inkpress/account_service/internal/repository"
	"github.com/inkpress/account_service/internal/seed"
	"github.com/inkpress/account_service/internal/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func StartServer(cfg config.Config) {
	app := fiber.New()

	// ---------- Middleware ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.BaseURL,
		AllowHeaders:     "Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// ---------- DB ----------
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DatabaseDSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("database connection error: %v", err)
	}
	log.Println("database connected")

	// ---------- Repositories ----------
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	userRoleRepo := repository.NewUserRoleRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// ---------- MIGRATION + SEED (guarded by advisory lock) ----------
	// one fixed lock id so concurrent instances serialize bootstrap
	const migrateLockID int64 = 20260831

	if err := db.Exec("SELECT pg_advisory_lock(?)", migrateLockID).Error; err != nil {
		log.Fatalf("migration lock error: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Role{},
		&domain.UserRole{},
		&domain.Article{},
		&domain.AuditLog{},
	); err != nil {
		log.Fatalf("migration error: %v", err)
	}
	log.Println("migration successful")

	seeder := seed.New(userRepo, roleRepo, userRoleRepo, cfg.IsProduction())
	if err := seeder.Run(cfg.Seed); err != nil {
		log.Fatalf("seeding error: %v", err)
	}

	if err := db.Exec("SELECT pg_advisory_unlock(?)", migrateLockID).Error; err != nil {
		log.Printf("migration unlock error: %v", err)
	}

	// ---------- Infra ----------
	kafkaProducer := queue.NewProducer(
		cfg.KafkaBroker,
		cfg.KafkaTopic,
		cfg.KafkaUsername,
		cfg.KafkaPassword,
	)

	authHelper := helper.SetupAuth(cfg.AccessSecret)

	// ---------- Services ----------
	accountSvc := services.NewAccountService(
		userRepo,
		roleRepo,
		userRoleRepo,
		auditRepo,
		kafkaProducer,
	)
	articleSvc := services.NewArticleService(articleRepo)

	// ---------- Handlers ----------
	accountHandler := handlers.NewAccountHandler(accountSvc, authHelper)
	accountHandler.SetupRoutes(app)
	articleHandler := handlers.NewArticleHandler(articleSvc, accountSvc, authHelper)
	articleHandler.SetupRoutes(app)

	// ---------- Health ----------
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// ---------- Listen ----------
	addr := cfg.ServerPort
	log.Println("listening on", addr)
	log.Fatal(app.Listen(addr))
}
