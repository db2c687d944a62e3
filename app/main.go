// Файл: main.go

package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"order-sync/internal/backend"
	"order-sync/internal/dto"
	"order-sync/internal/entities"
	"order-sync/internal/mutator"
	"order-sync/internal/override"
	"order-sync/internal/report"
	"order-sync/internal/resolver"
	"order-sync/internal/services"
	"order-sync/internal/store"
	"order-sync/internal/stubserver"
	"order-sync/pkg/config"
	"order-sync/pkg/customvalidator"
	applogger "order-sync/pkg/logger"
	"order-sync/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or could not be loaded.")
	}

	logger := applogger.NewLogger()
	defer logger.Sync()

	cfg := config.New()

	v := validator.New()
	if err := customvalidator.RegisterCustomValidations(v); err != nil {
		logger.Fatal("Ошибка регистрации кастомных правил валидации", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Кеш переопределений: Redis для общих сессий, иначе - в памяти с уборкой.
	var overrideCache override.Cache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			logger.Fatal("не удалось подключиться к Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
		}
		overrideCache = override.NewRedisCache(redisClient, logger)
	} else {
		memCache := override.NewMemoryCache(logger)
		memCache.StartSweeper(ctx, cfg.Sync.SweepInterval)
		overrideCache = memCache
	}

	// Бэкенд-заглушка в том же процессе: демо работает без внешнего API.
	stub := stubserver.NewStubServer(logger)
	go func() {
		if err := stub.Start("127.0.0.1:8080"); err != nil {
			logger.Warn("заглушка бэкенда остановлена", zap.Error(err))
		}
	}()
	time.Sleep(200 * time.Millisecond)

	bk := backend.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)

	st := store.NewStore(logger)
	res := resolver.NewResolver(st, cfg.Sync.CommitGraceWindow, logger)
	mut := mutator.NewMutator(st, v, res, logger)
	svc := services.NewOrderSyncService(st, mut, res, overrideCache, bk, v, logger, cfg.Sync)

	logger.Info("🚀 Демо ядра синхронизации заказов")

	// 1. Загрузка заказа и фиксация оплаты.
	order, err := svc.LoadOrder(ctx, 101)
	if err != nil {
		logger.Fatal("загрузка заказа не удалась", zap.Error(err))
	}
	logger.Info("заказ загружен",
		zap.String("code", order.Code), zap.Int64("total", order.TotalAmount))

	if err := svc.RecordPayment(ctx, 101, dto.RecordPaymentDTO{Amount: 500, Method: "esewa"}); err != nil {
		logger.Error("оплата не прошла", zap.Error(err))
	}
	order, _ = svc.GetOrder(101)
	logger.Info("оплата зафиксирована",
		zap.Int64("paid", order.PaidAmount), zap.Int64("remaining", order.RemainingAmount()))

	// 2. Отказ сети: оптимистичная правка откатывается.
	stub.FailNextPatch("шлюз логистики недоступен")
	if err := svc.UpdateFulfillmentType(ctx, 101, entities.FulfillmentOutsideValley); err != nil {
		order, _ = svc.GetOrder(101)
		logger.Warn("способ доставки откачен",
			zap.String("fulfillment_type", order.FulfillmentType), zap.Error(err))
	}

	// 3. Назначение логистики: производное поле маскируется на ttl.
	stub.SetDeliveryTypeLag(true)
	if err := svc.AssignLogistics(ctx, 101, dto.AssignLogisticsDTO{
		ProviderID:   1,
		ProviderName: "Valley Express",
		RiderID:      utils.Uint64Ptr(7),
		CoveredArea:  "Thamel",
		DeliveryType: "D2B",
	}); err != nil {
		logger.Error("назначение логистики не удалось", zap.Error(err))
	}

	if err := svc.Refresh(ctx, 101); err != nil {
		logger.Error("рефреш не удался", zap.Error(err))
	}
	effective, _ := svc.EffectiveDeliveryType(ctx, 101)
	logger.Info("эффективный тип доставки (маска поверх отстающего бэкенда)",
		zap.String("delivery_type", effective))

	// 4. Позиция с временным ID.
	if err := svc.AddItem(ctx, 101, dto.CreateOrderItemDTO{
		ProductID: 3, Name: "Рюкзак", Quantity: 1, UnitPrice: 900,
	}); err != nil {
		logger.Error("добавление позиции не удалось", zap.Error(err))
	}

	// 5. Debounce-подбор филиала по двум полям.
	done := make(chan struct{})
	filter := svc.NewBranchFilter(func(branches []entities.Branch) {
		for _, b := range branches {
			logger.Info("найден филиал", zap.String("name", b.Name), zap.String("area", b.CoveredArea))
		}
		close(done)
	})
	filter.OnNameInput("k")
	filter.OnNameInput("ka")
	filter.OnNameInput("kat")
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		logger.Warn("подбор филиала не успел")
	}

	// 6. Выгрузка отчёта.
	if err := os.MkdirAll(cfg.Report.OutputDir, 0o755); err != nil {
		logger.Fatal("не удалось создать каталог отчётов", zap.Error(err))
	}
	exporter := report.NewExcelExporter(overrideCache, logger)
	file, err := exporter.Export(ctx, st.List())
	if err != nil {
		logger.Fatal("сборка отчёта не удалась", zap.Error(err))
	}
	path := filepath.Join(cfg.Report.OutputDir, "orders_"+time.Now().Format("2006-01-02")+".xlsx")
	if err := file.SaveAs(path); err != nil {
		logger.Fatal("сохранение отчёта не удалось", zap.Error(err))
	}
	logger.Info("отчёт выгружен", zap.String("path", path))
}
