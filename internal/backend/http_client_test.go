package backend_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	. "order-sync/internal/backend"
	"order-sync/internal/dto"
	"order-sync/internal/entities"
	"order-sync/internal/stubserver"
	apperrors "order-sync/pkg/errors"
	"order-sync/pkg/types"
	"order-sync/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) (*HTTPClient, *stubserver.StubServer) {
	t.Helper()
	stub := stubserver.NewStubServer(zap.NewNop())
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, 5*time.Second, zap.NewNop()), stub
}

func TestHTTPClient_FetchOrder(t *testing.T) {
	client, _ := newTestClient(t)

	order, err := client.FetchOrder(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), order.ID)
	assert.Equal(t, "ORD-0101", order.Code)
	assert.Equal(t, "Суреш Тапа", order.CustomerName)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(1200), order.Items[0].UnitPrice)
}

func TestHTTPClient_FetchOrderNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.FetchOrder(context.Background(), 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHTTPClient_PatchOrderServerRecalculates(t *testing.T) {
	client, _ := newTestClient(t)

	// Оплата закрывает остаток: сервер сам переводит заказ в "оплачен".
	order, err := client.PatchOrder(context.Background(), 101, dto.UpdateOrderDTO{
		PaidAmount: utils.Int64Ptr(1200),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), order.PaidAmount)
	assert.Equal(t, int64(0), order.RemainingAmount())
	assert.Equal(t, uint64(5), order.StatusID, "статус пересчитан сервером")
}

func TestHTTPClient_PatchOrderInjectedFailure(t *testing.T) {
	client, stub := newTestClient(t)

	stub.FailNextPatch("шлюз оплат недоступен")
	_, err := client.PatchOrder(context.Background(), 101, dto.UpdateOrderDTO{
		PaidAmount: utils.Int64Ptr(100),
	})
	require.Error(t, err)

	// Отказ одноразовый: следующий PATCH проходит.
	order, err := client.PatchOrder(context.Background(), 101, dto.UpdateOrderDTO{
		PaidAmount: utils.Int64Ptr(100),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), order.PaidAmount)
}

func TestHTTPClient_ItemLifecycle(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	item, err := client.CreateItem(ctx, 101, dto.CreateOrderItemDTO{
		ProductID: 3, Name: "Рюкзак", Quantity: 1, UnitPrice: 900,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "Рюкзак", item.Name)

	order, err := client.FetchOrder(ctx, 101)
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, int64(2100), order.TotalAmount, "сумма заказа выросла на позицию")

	require.NoError(t, client.DeleteItem(ctx, 101, item.ID))
	order, err = client.FetchOrder(ctx, 101)
	require.NoError(t, err)
	assert.Len(t, order.Items, 1)

	assert.ErrorIs(t, client.DeleteItem(ctx, 101, "нет-такой"), apperrors.ErrNotFound)
}

func TestHTTPClient_SearchLookup(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	result, err := client.SearchLookup(ctx, types.LookupQuery{Kind: types.LookupBranch, Search: "lalit"})
	require.NoError(t, err)
	require.Len(t, result.Branches, 1)
	assert.Equal(t, "Lalitpur Hub", result.Branches[0].Name)

	// Фильтр по зоне покрытия.
	result, err = client.SearchLookup(ctx, types.LookupQuery{Kind: types.LookupBranch, Area: "patan"})
	require.NoError(t, err)
	require.Len(t, result.Branches, 1)
	assert.Equal(t, "Lalitpur Hub", result.Branches[0].Name)

	result, err = client.SearchLookup(ctx, types.LookupQuery{Kind: types.LookupRider})
	require.NoError(t, err)
	assert.Len(t, result.Riders, 2)

	result, err = client.SearchLookup(ctx, types.LookupQuery{Kind: types.LookupProduct, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Products, 2)
}

func TestHTTPClient_DeliveryTypeLag(t *testing.T) {
	client, stub := newTestClient(t)
	ctx := context.Background()

	_, err := client.PatchOrder(ctx, 101, dto.UpdateOrderDTO{
		Logistics: &entities.LogisticsAssignment{ProviderID: 1, ProviderName: "Valley Express"},
	})
	require.NoError(t, err)

	// Пока производное поле "отстаёт", GET отдаёт null.
	stub.SetDeliveryTypeLag(true)
	order, err := client.FetchOrder(ctx, 101)
	require.NoError(t, err)
	assert.False(t, order.DeliveryType.Valid)

	stub.SetDeliveryTypeLag(false)
	order, err = client.FetchOrder(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, "D2B", order.DeliveryType.String)
}

func TestHTTPClient_BackendUnavailable(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1", 200*time.Millisecond, zap.NewNop())

	_, err := client.FetchOrder(context.Background(), 101)
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
}
