package main // Entry point package

import (
    "context"
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/event-booking/internal/config"
    "github.com/iliyamo/event-booking/internal/database"
    "github.com/iliyamo/event-booking/internal/handler"
    "github.com/iliyamo/event-booking/internal/mailer"
    "github.com/iliyamo/event-booking/internal/middleware"
    "github.com/iliyamo/event-booking/internal/payment"
    "github.com/iliyamo/event-booking/internal/queue"
    "github.com/iliyamo/event-booking/internal/repository"
    "github.com/iliyamo/event-booking/internal/router"
    "github.com/iliyamo/event-booking/internal/service"
)

func main() {
    _ = godotenv.Load() // .env is optional; real environment always wins
    cfg := config.Load()

    logg := logrus.New()
    logg.SetFormatter(&logrus.JSONFormatter{})
    if cfg.Env == "dev" {
        logg.SetLevel(logrus.DebugLevel)
    }

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    rdb := config.NewRedisClient()

    // Repositories
    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    events := repository.NewEventRepo(db)
    bookings := repository.NewBookingRepo(db)
    payments := repository.NewPaymentRepo(db)
    tickets := repository.NewTicketRepo(db)

    // Settlement pipeline
    gateway := payment.NewClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalSecret)
    issuer := service.NewTicketIssuer(tickets, logg)
    settlement := service.NewSettlement(
        db, events, bookings, payments, issuer, users,
        gateway, queue.PublishBookingConfirmed,
        service.SettlementConfig{
            Currency:   cfg.Currency,
            ReturnURL:  cfg.PayPalReturnURL,
            CancelURL:  cfg.PayPalCancelURL,
            BookingTTL: time.Duration(cfg.BookingTTLMin) * time.Minute,
        },
        logg,
    )

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    settlement.StartReaper(ctx, time.Minute)

    // Confirmation mail consumer
    m := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
    go queue.StartBookingConsumer(m, logg)

    e := echo.New()
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

    router.RegisterRoutes(e)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
    router.RegisterPublic(e,
        handler.NewEventHandler(events),
        handler.NewTicketHandler(tickets),
        middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
    )
    router.RegisterBookings(e, handler.NewBookingHandler(settlement, bookings, payments, tickets), cfg.JWTSecret)
    router.RegisterAdmin(e, handler.NewAdminEventHandler(events), cfg.JWTSecret)

    addr := ":" + cfg.Port
    logg.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")

    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
