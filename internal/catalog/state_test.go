package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
	mediarepository "github.com/chrisfit/storefront/internal/media/repository"
	productdomain "github.com/chrisfit/storefront/internal/product/domain"
	"github.com/chrisfit/storefront/internal/product/repository"
	"github.com/chrisfit/storefront/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func seedProduct(t *testing.T, conn *gorm.DB, id int64, code, name string, active, featured bool, created time.Time) {
	t.Helper()
	require.NoError(t, repository.Provide().Insert(context.Background(), conn, &productdomain.Product{
		ID:         id,
		Code:       code,
		Name:       name,
		Price:      decimal.RequireFromString("50"),
		IsActive:   active,
		IsFeatured: featured,
		Sizes:      datatypes.JSONSlice[string]{"M"},
		Colors:     datatypes.JSONSlice[string]{},
		CreatedAt:  created,
		UpdatedAt:  created,
	}))
}

func TestRefreshAndQueries(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&productdomain.Product{}, &mediadomain.ProductImage{}))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedProduct(t, conn, 1, "0007", "Legging X", true, true, base)
	seedProduct(t, conn, 2, "0100", "Sports BRA", true, false, base.Add(time.Hour))
	seedProduct(t, conn, 3, "0200", "Hidden Legging", false, true, base.Add(2*time.Hour))

	mediaRepo := mediarepository.Provide()
	require.NoError(t, mediaRepo.InsertMany(context.Background(), conn, []mediadomain.ProductImage{
		{ID: 10, ProductID: 1, URL: "https://cdn/1/clip.mp4", Position: 2},
		{ID: 11, ProductID: 1, URL: "https://cdn/1/pic.jpg", Position: 4},
	}))

	state := New(Params{DB: conn, Log: zap.NewNop(), Repo: repository.Provide(), MediaRepo: mediaRepo})
	assert.Empty(t, state.List(ListFilter{}))

	require.NoError(t, state.Refresh(context.Background()))

	all := state.List(ListFilter{})
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].ID)
	assert.Equal(t, "1", all[1].ID)

	assert.Len(t, state.List(ListFilter{Query: "bra"}), 1)
	assert.Len(t, state.List(ListFilter{Query: "LEGGING"}), 1)
	assert.Len(t, state.List(ListFilter{Query: "010"}), 1)
	assert.Len(t, state.List(ListFilter{Limit: 1}), 1)

	featured := state.Featured()
	require.Len(t, featured, 1)
	assert.Equal(t, "1", featured[0].ID)
	require.NotNil(t, featured[0].Cover)
	assert.Equal(t, 2, featured[0].Cover.Position)
	assert.Equal(t, mediadomain.TypeVideo, featured[0].Cover.Type)
	assert.Equal(t, "video/mp4", featured[0].Cover.MimeType)

	item, ok := state.Get("1")
	require.True(t, ok)
	assert.Nil(t, item.Media[0])
	assert.Equal(t, "https://cdn/1/pic.jpg", item.Media[3].URL)

	_, ok = state.Get("3")
	assert.False(t, ok)
}

// stallingRepo blocks the first List call after it has read from the database.
type stallingRepo struct {
	productdomain.Repository

	calls   atomic.Int32
	read    chan struct{}
	release chan struct{}
}

func (r *stallingRepo) List(ctx context.Context, conn *gorm.DB, filter productdomain.ListRequest) ([]productdomain.Product, error) {
	items, err := r.Repository.List(ctx, conn, filter)
	if r.calls.Add(1) == 1 {
		close(r.read)
		<-r.release
	}
	return items, err
}

func TestRefreshDoesNotPublishStaleRead(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&productdomain.Product{}, &mediadomain.ProductImage{}))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedProduct(t, conn, 1, "0001", "Legging X", true, false, base)

	repo := &stallingRepo{
		Repository: repository.Provide(),
		read:       make(chan struct{}),
		release:    make(chan struct{}),
	}
	state := New(Params{DB: conn, Log: zap.NewNop(), Repo: repo, MediaRepo: mediarepository.Provide()})

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- state.Refresh(context.Background())
	}()
	<-repo.read

	seedProduct(t, conn, 2, "0002", "Sports Bra", true, false, base.Add(time.Hour))

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- state.Refresh(context.Background())
	}()

	// give the second refresh a chance to run ahead of the stalled one
	time.Sleep(20 * time.Millisecond)
	close(repo.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, state.List(ListFilter{}), 2)
}
