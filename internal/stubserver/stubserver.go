package stubserver

import (
	"net/http"
	"sync"
	"time"

	"order-sync/internal/entities"

	"github.com/aarondl/null/v8"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StubServer - встраиваемый бэкенд-заглушка бэкофиса: пять эндпоинтов ядра
// синхронизации поверх фикстур в памяти. Используется демо-бинарём и тестами
// HTTP-клиента. Умеет впрыскивать отказы и задержки.
type StubServer struct {
	mu         sync.Mutex
	echo       *echo.Echo
	logger     *zap.Logger
	orders     map[uint64]*entities.Order
	branches   []entities.Branch
	riders     []entities.Rider
	products   []entities.Product
	nextItemID int

	failNextPatch   string
	latency         time.Duration
	lagDeliveryType bool
}

func NewStubServer(logger *zap.Logger) *StubServer {
	s := &StubServer{
		echo:       echo.New(),
		logger:     logger,
		orders:     make(map[uint64]*entities.Order),
		nextItemID: 1000,
	}
	s.echo.HideBanner = true
	s.seed()
	s.registerRoutes()
	return s
}

// Handler отдаёт http.Handler для httptest и для встраивания в демо.
func (s *StubServer) Handler() http.Handler {
	return s.echo
}

// Start поднимает заглушку на адресе (блокирует).
func (s *StubServer) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *StubServer) registerRoutes() {
	s.echo.GET("/orders/:id", s.findOrder)
	s.echo.PATCH("/orders/:id", s.patchOrder)
	s.echo.POST("/orders/:id/items", s.createItem)
	s.echo.DELETE("/orders/:id/items/:itemId", s.deleteItem)
	s.echo.GET("/lookup", s.lookup)
}

// FailNextPatch заставляет следующий PATCH ответить 502 с заданным сообщением.
func (s *StubServer) FailNextPatch(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextPatch = message
}

// SetLatency добавляет искусственную задержку каждому запросу.
func (s *StubServer) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// SetDeliveryTypeLag моделирует отставание производного поля: пока включено,
// GET отдаёт delivery_type = null, хотя PATCH его уже сохранил.
func (s *StubServer) SetDeliveryTypeLag(lag bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lagDeliveryType = lag
}

// SeedOrder кладёт заказ в фикстуры (для тестов).
func (s *StubServer) SeedOrder(order *entities.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order.Clone()
}

func (s *StubServer) seed() {
	now := time.Now()
	s.orders[101] = &entities.Order{
		ID:              101,
		Code:            "ORD-0101",
		CustomerName:    "Суреш Тапа",
		CustomerPhone:   "+9779801234567",
		StatusID:        1,
		FulfillmentType: entities.FulfillmentInsideValley,
		TotalAmount:     1200,
		AdvanceAmount:   0,
		PaidAmount:      0,
		Items: []entities.OrderItem{
			{ID: "11", ProductID: 1, Name: "Пуховик", Quantity: 1, UnitPrice: 1200},
		},
	}
	s.orders[101].CreatedAt = &now

	s.orders[102] = &entities.Order{
		ID:              102,
		Code:            "ORD-0102",
		CustomerName:    "Анита Гурунг",
		CustomerPhone:   "+9779807654321",
		StatusID:        1,
		FulfillmentType: entities.FulfillmentInsideValley,
		TotalAmount:     3400,
		AdvanceAmount:   400,
		PaidAmount:      0,
		Items: []entities.OrderItem{
			{ID: "21", ProductID: 2, Name: "Кроссовки", Quantity: 2, UnitPrice: 1700},
		},
	}

	s.branches = []entities.Branch{
		{ID: 1, Name: "Kathmandu Central", CoveredArea: "Thamel, Lazimpat", Address: "Durbar Marg"},
		{ID: 2, Name: "Lalitpur Hub", CoveredArea: "Patan, Jawalakhel", Address: "Pulchowk Rd"},
		{ID: 3, Name: "Bhaktapur Point", CoveredArea: "Suryabinayak", Address: "Arniko Hwy"},
	}
	s.riders = []entities.Rider{
		{ID: 7, Name: "Бикаш Шрестха", PhoneNumber: "+9779811111111", ProviderID: 1},
		{ID: 8, Name: "Дипак Раи", PhoneNumber: "+9779822222222", ProviderID: 1},
	}
	s.products = []entities.Product{
		{ID: 1, Name: "Пуховик", UnitPrice: 1200, InStock: true},
		{ID: 2, Name: "Кроссовки", UnitPrice: 1700, InStock: true},
		{ID: 3, Name: "Рюкзак", UnitPrice: 900, InStock: false},
	}
}

// statusPaid - статус "оплачен", который сервер проставляет сам, когда
// оплата закрывает остаток. Клиент это значение предсказать не может.
const statusPaid uint64 = 5

// normalizeOrder - серверные пересчёты после PATCH.
func normalizeOrder(order *entities.Order) {
	if order.RemainingAmount() <= 0 && order.TotalAmount > 0 {
		order.StatusID = statusPaid
	}
	// Производная классификация доставки: внутри долины с назначенной
	// логистикой - доставка до филиала.
	if order.Logistics != nil && !order.DeliveryType.Valid &&
		order.FulfillmentType == entities.FulfillmentInsideValley {
		order.DeliveryType = null.StringFrom("D2B")
	}
}
