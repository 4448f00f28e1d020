package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/daniyalaisha/syriamall-sub001/internal/domain"
	pfirestore "github.com/daniyalaisha/syriamall-sub001/internal/platform/firestore"
	"github.com/daniyalaisha/syriamall-sub001/internal/platform/pagination"
	"github.com/daniyalaisha/syriamall-sub001/internal/repositories"
)

const (
	productCollection  = "products"
	categoryCollection = "categories"
	bannerCollection   = "banners"
)

// CatalogRepository serves products, categories and banners from Firestore.
type CatalogRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil),
	}, nil
}

// ListProducts returns a page of products matching the filter, newest first.
func (r *CatalogRepository) ListProducts(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	coll, err := r.collectionRef(ctx, productCollection)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	query := coll.Query
	if filter.OnlyActive {
		query = query.Where("active", "==", true)
	}
	if filter.CategoryID != nil {
		query = query.Where("categoryId", "==", strings.TrimSpace(*filter.CategoryID))
	}
	if filter.VendorID != nil {
		query = query.Where("vendorId", "==", strings.TrimSpace(*filter.VendorID))
	}
	if filter.Featured != nil {
		query = query.Where("featured", "==", *filter.Featured)
	}
	if filter.FlashSale != nil {
		query = query.Where("flashSale", "==", *filter.FlashSale)
	}
	if term := normalizeSearchTerm(filter.Search); term != "" {
		query = query.Where("searchTerms", "array-contains", term)
	}

	dir := firestore.Desc
	if filter.SortOrder == domain.SortAsc {
		dir = firestore.Asc
	}
	query = query.OrderBy("createdAt", dir).OrderBy(firestore.DocumentID, dir)

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	var fetchLimit int
	if limit > 0 {
		fetchLimit = limit + 1
		query = query.Limit(fetchLimit)
	}

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeCatalogToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("catalog.listProducts: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenTime, tokenID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("catalog.listProducts", err)
		}
		product, err := decodeProduct(snap)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, err
		}
		products = append(products, product)
	}

	nextToken := ""
	if limit > 0 && len(products) == fetchLimit {
		last := products[len(products)-1]
		nextToken = encodeCatalogToken(last.CreatedAt, last.ID)
		products = products[:len(products)-1]
	}

	return domain.CursorPage[domain.Product]{
		Items:         products,
		NextPageToken: nextToken,
	}, nil
}

// GetProduct fetches a single product by ID.
func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// GetProducts loads snapshots for the given IDs. Missing products are absent
// from the result rather than an error so cart loads survive deleted items.
func (r *CatalogRepository) GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		refs = append(refs, client.Collection(productCollection).Doc(id))
	}
	if len(refs) == 0 {
		return map[string]domain.Product{}, nil
	}

	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("catalog.getProducts", err)
	}

	out := make(map[string]domain.Product, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		product, err := decodeProduct(snap)
		if err != nil {
			return nil, err
		}
		out[product.ID] = product
	}
	return out, nil
}

// ListCategories returns all active categories in display order.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	coll, err := r.collectionRef(ctx, categoryCollection)
	if err != nil {
		return nil, err
	}

	iter := coll.Where("active", "==", true).OrderBy("sortIndex", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var categories []domain.Category
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("catalog.listCategories", err)
		}
		var doc categoryDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode category %s: %w", snap.Ref.ID, err)
		}
		categories = append(categories, doc.toDomain(snap.Ref.ID))
	}
	return categories, nil
}

// ListBanners returns active banners in display order, filtered by schedule.
func (r *CatalogRepository) ListBanners(ctx context.Context, now time.Time) ([]domain.Banner, error) {
	coll, err := r.collectionRef(ctx, bannerCollection)
	if err != nil {
		return nil, err
	}

	iter := coll.Where("active", "==", true).OrderBy("sortIndex", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var banners []domain.Banner
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("catalog.listBanners", err)
		}
		var doc bannerDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode banner %s: %w", snap.Ref.ID, err)
		}
		banner := doc.toDomain(snap.Ref.ID)
		if banner.VisibleAt(now) {
			banners = append(banners, banner)
		}
	}
	return banners, nil
}

// UpsertProduct writes a product document, deriving search terms from names.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}

	doc := productDocumentFrom(product)
	if _, err := r.products.Set(ctx, id, doc); err != nil {
		return domain.Product{}, err
	}
	return doc.toDomain(id), nil
}

// AdjustStock applies a stock delta inside a transaction. Oversell attempts
// fail with a conflict.
func (r *CatalogRepository) AdjustStock(ctx context.Context, productID string, delta int) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("catalog repository: product id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := client.Collection(productCollection).Doc(productID)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}
		next := doc.Stock + delta
		if next < 0 {
			return status.Errorf(codes.FailedPrecondition, "insufficient stock for product %s", productID)
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "stock", Value: next},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return pfirestore.WrapError("catalog.adjustStock", err)
	}
	return nil
}

// ApplyRating folds an approved review rating into the product aggregates.
func (r *CatalogRepository) ApplyRating(ctx context.Context, productID string, rating int) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("catalog repository: product id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	docRef := client.Collection(productCollection).Doc(productID)
	_, err = docRef.Update(ctx, []firestore.Update{
		{Path: "ratingSum", Value: firestore.Increment(int64(rating))},
		{Path: "ratingCount", Value: firestore.Increment(int64(1))},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return pfirestore.WrapError("catalog.applyRating", err)
	}
	return nil
}

func (r *CatalogRepository) collectionRef(ctx context.Context, name string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(name), nil
}

func decodeProduct(snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var doc productDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

type productDocument struct {
	VendorID    string            `firestore:"vendorId"`
	CategoryID  string            `firestore:"categoryId"`
	Name        map[string]string `firestore:"name"`
	Description map[string]string `firestore:"description"`
	Price       int64             `firestore:"price"`
	SalePrice   int64             `firestore:"salePrice"`
	Currency    string            `firestore:"currency"`
	Stock       int               `firestore:"stock"`
	ImageURLs   []string          `firestore:"imageUrls"`
	Featured    bool              `firestore:"featured"`
	FlashSale   bool              `firestore:"flashSale"`
	RatingSum   int64             `firestore:"ratingSum"`
	RatingCount int64             `firestore:"ratingCount"`
	Active      bool              `firestore:"active"`
	SearchTerms []string          `firestore:"searchTerms"`
	CreatedAt   time.Time         `firestore:"createdAt"`
	UpdatedAt   time.Time         `firestore:"updatedAt"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		VendorID:    d.VendorID,
		CategoryID:  d.CategoryID,
		Name:        domain.LocalizedText(d.Name),
		Description: domain.LocalizedText(d.Description),
		Price:       d.Price,
		SalePrice:   d.SalePrice,
		Currency:    d.Currency,
		Stock:       d.Stock,
		ImageURLs:   d.ImageURLs,
		Featured:    d.Featured,
		FlashSale:   d.FlashSale,
		RatingSum:   d.RatingSum,
		RatingCount: d.RatingCount,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func productDocumentFrom(p domain.Product) productDocument {
	return productDocument{
		VendorID:    p.VendorID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		SalePrice:   p.SalePrice,
		Currency:    p.Currency,
		Stock:       p.Stock,
		ImageURLs:   p.ImageURLs,
		Featured:    p.Featured,
		FlashSale:   p.FlashSale,
		RatingSum:   p.RatingSum,
		RatingCount: p.RatingCount,
		Active:      p.Active,
		SearchTerms: buildSearchTerms(p.Name),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type categoryDocument struct {
	Slug      string            `firestore:"slug"`
	Name      map[string]string `firestore:"name"`
	ImageURL  string            `firestore:"imageUrl"`
	SortIndex int               `firestore:"sortIndex"`
	Active    bool              `firestore:"active"`
	CreatedAt time.Time         `firestore:"createdAt"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}

func (d categoryDocument) toDomain(id string) domain.Category {
	return domain.Category{
		ID:        id,
		Slug:      d.Slug,
		Name:      domain.LocalizedText(d.Name),
		ImageURL:  d.ImageURL,
		SortIndex: d.SortIndex,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type bannerDocument struct {
	Title     map[string]string `firestore:"title"`
	ImageURL  string            `firestore:"imageUrl"`
	TargetURL string            `firestore:"targetUrl"`
	SortIndex int               `firestore:"sortIndex"`
	Active    bool              `firestore:"active"`
	StartsAt  *time.Time        `firestore:"startsAt"`
	EndsAt    *time.Time        `firestore:"endsAt"`
	CreatedAt time.Time         `firestore:"createdAt"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}

func (d bannerDocument) toDomain(id string) domain.Banner {
	return domain.Banner{
		ID:        id,
		Title:     domain.LocalizedText(d.Title),
		ImageURL:  d.ImageURL,
		TargetURL: d.TargetURL,
		SortIndex: d.SortIndex,
		Active:    d.Active,
		StartsAt:  d.StartsAt,
		EndsAt:    d.EndsAt,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// buildSearchTerms lowercases and tokenises every localized name variant so
// a single array-contains query covers both scripts.
func buildSearchTerms(name domain.LocalizedText) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, value := range name {
		for _, token := range strings.Fields(strings.ToLower(value)) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			terms = append(terms, token)
		}
	}
	return terms
}

func normalizeSearchTerm(raw string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func encodeCatalogToken(createdAt time.Time, docID string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.UTC().Format(time.RFC3339Nano), docID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeCatalogToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", errors.New("invalid token format")
	}
	raw, rawOK := cursor.StartAfter[0].(string)
	docID, idOK := cursor.StartAfter[1].(string)
	if !rawOK || !idOK || docID == "" {
		return time.Time{}, "", errors.New("invalid token format")
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, docID, nil
}

// Ensure interface compliance.
var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
