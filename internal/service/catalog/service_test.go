package catalog

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/pos/internal/datastore"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/settings"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

type fakeRemote struct {
	mu       sync.Mutex
	products []domain.Product
	getErr   error
	addErr   error
	updErr   error
	delErr   error
	added    []domain.Product
	updated  []domain.Product
	deleted  []string
	getCalls int
}

func (f *fakeRemote) TestConnection(context.Context) error { return nil }

func (f *fakeRemote) GetProducts(_ context.Context, _ string) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return append([]domain.Product(nil), f.products...), nil
}

func (f *fakeRemote) AddProduct(_ context.Context, _ string, p domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, p)
	return nil
}

func (f *fakeRemote) UpdateProduct(_ context.Context, _ string, p domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updErr != nil {
		return f.updErr
	}
	f.updated = append(f.updated, p)
	return nil
}

func (f *fakeRemote) DeleteProduct(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func quietLogger() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

func newStore(t *testing.T, catalogID string) *datastore.Store {
	t.Helper()
	store, err := datastore.Open(context.Background(), memory.NewKeyValueStore(), settings.Default(),
		datastore.WithLogger(quietLogger()),
		datastore.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	if catalogID != "" {
		_, err = store.UpdateShop(context.Background(), domain.ShopUpdate{Name: "Aung Ko", RemoteCatalogID: catalogID})
		require.NoError(t, err)
	}
	return store
}

func rice() ProductInput {
	return ProductInput{ID: "A1", Name: "Rice", Cost: decimal.NewFromInt(400), Profit: decimal.NewFromInt(25)}
}

func TestAddProduct_LocalOnly(t *testing.T) {
	store := newStore(t, "")
	remote := &fakeRemote{}
	svc := NewService(store, remote, quietLogger())

	res, err := svc.AddProduct(context.Background(), rice())
	require.NoError(t, err)
	assert.False(t, res.Synced)
	assert.False(t, res.Queued)
	assert.True(t, decimal.NewFromInt(500).Equal(res.Product.Price))
	assert.True(t, store.HasProduct("A1"))
	assert.Zero(t, remote.getCalls)
}

func TestAddProduct_ExplicitPrice(t *testing.T) {
	store := newStore(t, "")
	svc := NewService(store, nil, quietLogger())

	in := rice()
	price := decimal.NewFromInt(550)
	in.Price = &price
	res, err := svc.AddProduct(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, price.Equal(res.Product.Price))
}

func TestAddProduct_LocalDuplicate(t *testing.T) {
	store := newStore(t, "sheet-1")
	remote := &fakeRemote{}
	svc := NewService(store, remote, quietLogger())

	_, err := svc.AddProduct(context.Background(), rice())
	require.NoError(t, err)

	_, err = svc.AddProduct(context.Background(), rice())
	require.ErrorIs(t, err, domain.ErrProductExists)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, store.Products(), 1)
	assert.Len(t, remote.added, 1)
}

func TestAddProduct_InvalidInput(t *testing.T) {
	svc := NewService(newStore(t, ""), nil, quietLogger())

	_, err := svc.AddProduct(context.Background(), ProductInput{ID: "A1", Name: "Rice"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAddProduct_RemoteSynced(t *testing.T) {
	store := newStore(t, "sheet-1")
	remote := &fakeRemote{}
	svc := NewService(store, remote, quietLogger())

	res, err := svc.AddProduct(context.Background(), rice())
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.False(t, res.Queued)
	require.Len(t, remote.added, 1)
	assert.Equal(t, "A1", remote.added[0].ID)
	assert.True(t, store.HasProduct("A1"))
	assert.Empty(t, store.PendingSync())
}

func TestAddProduct_RemoteDuplicate(t *testing.T) {
	store := newStore(t, "sheet-1")
	remote := &fakeRemote{products: []domain.Product{domain.NewProduct("A1", "Rice", decimal.NewFromInt(1), decimal.NewFromInt(1))}}
	svc := NewService(store, remote, quietLogger())

	_, err := svc.AddProduct(context.Background(), rice())
	require.ErrorIs(t, err, domain.ErrProductExists)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, store.HasProduct("A1"))
	assert.Empty(t, remote.added)
}

func TestAddProduct_RemoteRejectsDuplicateMessage(t *testing.T) {
	store := newStore(t, "sheet-1")
	remote := &fakeRemote{addErr: &domain.RemoteError{Message: "Product ID already exists"}}
	svc := NewService(store, remote, quietLogger())

	_, err := svc.AddProduct(context.Background(), rice())
	require.ErrorIs(t, err, domain.ErrProductExists)
	assert.False(t, store.HasProduct("A1"))
	assert.Empty(t, store.PendingSync())
}

func TestAddProduct_DuplicateCheckFailureProceeds(t *testing.T) {
	store := newStore(t, "sheet-1")
	remote := &fakeRemote{getErr: domain.ErrRemoteUnreachable}
	svc := NewService(store, remote, quietLogger())

	res, err := svc.AddProduct(context.Background(), rice())
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Len(t, remote.added, 1)
}

func TestAddProduct_RemoteFailureQueues(t *testing.T) {
	store := newStore(t, "sheet-1")
	remote := &fakeRemote{getErr: domain.ErrRemoteUnreachable, addErr: domain.ErrRemoteUnreachable}
	svc := NewService(store, remote, quietLogger())

	res, err := svc.AddProduct(context.Background(), rice())
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.False(t, res.Synced)
	assert.True(t, store.HasProduct("A1"))

	pending := store.PendingSync()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.SyncActionAddProduct, pending[0].Action)

	payload, err := pending[0].DecodeProductPayload()
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", payload.CatalogID)
	require.NotNil(t, payload.Product)
	assert.Equal(t, "A1", payload.Product.ID)
}

func TestUpdateProduct(t *testing.T) {
	store := newStore(t, "sheet-1")
	remote := &fakeRemote{}
	svc := NewService(store, remote, quietLogger())
	_, err := svc.AddProduct(context.Background(), rice())
	require.NoError(t, err)

	in := rice()
	in.Name = "Jasmine rice"
	res, err := svc.UpdateProduct(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Synced)
	require.Len(t, remote.updated, 1)

	got, err := svc.Get("A1")
	require.NoError(t, err)
	assert.Equal(t, "Jasmine rice", got.Name)
}

func TestUpdateProduct_RemoteFailureQueues(t *testing.T) {
	store := newStore(t, "sheet-1")
	remote := &fakeRemote{}
	svc := NewService(store, remote, quietLogger())
	_, err := svc.AddProduct(context.Background(), rice())
	require.NoError(t, err)

	remote.updErr = domain.ErrRemoteServer
	res, err := svc.UpdateProduct(context.Background(), rice())
	require.NoError(t, err)
	assert.True(t, res.Queued)

	pending := store.PendingSync()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.SyncActionUpdateProduct, pending[0].Action)
}

func TestUpdateProduct_Unknown(t *testing.T) {
	svc := NewService(newStore(t, ""), nil, quietLogger())
	_, err := svc.UpdateProduct(context.Background(), rice())
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestDeleteProduct(t *testing.T) {
	store := newStore(t, "sheet-1")
	remote := &fakeRemote{}
	svc := NewService(store, remote, quietLogger())
	_, err := svc.AddProduct(context.Background(), rice())
	require.NoError(t, err)

	remote.delErr = errors.New("boom")
	res, err := svc.DeleteProduct(context.Background(), "A1")
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.False(t, store.HasProduct("A1"))

	pending := store.PendingSync()
	require.Len(t, pending, 1)
	payload, err := pending[0].DecodeProductPayload()
	require.NoError(t, err)
	assert.Equal(t, "A1", payload.ProductID)
	assert.Nil(t, payload.Product)

	_, err = svc.DeleteProduct(context.Background(), "A1")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestSearchAndList(t *testing.T) {
	svc := NewService(newStore(t, ""), nil, quietLogger())
	_, err := svc.AddProduct(context.Background(), rice())
	require.NoError(t, err)
	_, err = svc.AddProduct(context.Background(), ProductInput{ID: "B2", Name: "Oil", Cost: decimal.NewFromInt(100), Profit: decimal.NewFromInt(10)})
	require.NoError(t, err)

	assert.Len(t, svc.List(), 2)
	found := svc.Search("oi")
	require.Len(t, found, 1)
	assert.Equal(t, "B2", found[0].ID)
}

func TestSync(t *testing.T) {
	t.Run("requires catalog id", func(t *testing.T) {
		svc := NewService(newStore(t, ""), &fakeRemote{}, quietLogger())
		_, err := svc.Sync(context.Background())
		require.ErrorIs(t, err, domain.ErrCatalogIDRequired)
	})

	t.Run("requires remote", func(t *testing.T) {
		svc := NewService(newStore(t, "sheet-1"), nil, quietLogger())
		_, err := svc.Sync(context.Background())
		require.ErrorIs(t, err, domain.ErrRemoteNotConfigured)
	})

	t.Run("replaces local catalog", func(t *testing.T) {
		store := newStore(t, "sheet-1")
		remote := &fakeRemote{}
		svc := NewService(store, remote, quietLogger())
		_, err := svc.AddProduct(context.Background(), rice())
		require.NoError(t, err)

		remote.products = []domain.Product{
			domain.NewProduct("X1", "Tea", decimal.NewFromInt(100), decimal.NewFromInt(50)),
			domain.NewProduct("X2", "Sugar", decimal.NewFromInt(200), decimal.NewFromInt(50)),
		}
		n, err := svc.Sync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.False(t, store.HasProduct("A1"))
		assert.True(t, store.HasProduct("X2"))
	})

	t.Run("zero markup rows are accepted", func(t *testing.T) {
		store := newStore(t, "sheet-1")
		remote := &fakeRemote{products: []domain.Product{
			domain.NewProduct("A1", "Rice", decimal.NewFromInt(400), decimal.NewFromInt(25)),
			domain.NewProduct("B2", "Water", decimal.NewFromInt(300), decimal.Zero),
		}}
		svc := NewService(store, remote, quietLogger())

		n, err := svc.Sync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, store.Products(), 2)
		assert.True(t, store.HasProduct("B2"))
	})

	t.Run("empty remote keeps local", func(t *testing.T) {
		store := newStore(t, "sheet-1")
		svc := NewService(store, &fakeRemote{}, quietLogger())
		_, err := svc.AddProduct(context.Background(), rice())
		require.NoError(t, err)

		n, err := svc.Sync(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.True(t, store.HasProduct("A1"))
	})

	t.Run("remote failure", func(t *testing.T) {
		svc := NewService(newStore(t, "sheet-1"), &fakeRemote{getErr: domain.ErrRemoteUnreachable}, quietLogger())
		_, err := svc.Sync(context.Background())
		require.ErrorIs(t, err, domain.ErrRemoteUnreachable)
	})
}
