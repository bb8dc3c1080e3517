package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"

	"github.com/catalog-console/catalog-console/internal/shared"
)

// Products is the product API bound to one session.
type Products struct {
	client  *Client
	session Session
}

// List returns every product. Concurrent identical calls with the same
// credential share one request.
func (p *Products) List(ctx context.Context) ([]Product, error) {
	key := "list"
	if p.session != nil {
		if credential, ok := p.session.Credential(ctx); ok {
			key += ":" + credential
		}
	}
	ch := p.client.lists.DoChan(key, func() (any, error) {
		var out []Product
		err := p.client.do(context.WithoutCancel(ctx), p.session, call{method: http.MethodGet, route: "/products", path: "/products", out: &out})
		return out, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if res.Shared && p.session != nil && errors.Is(res.Err, shared.ErrAuthorization) {
				p.session.Expire(ctx)
			}
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]Product)), nil
	}
}

// Get returns one product by SKU.
func (p *Products) Get(ctx context.Context, sku string) (Product, error) {
	var out Product
	err := p.client.do(ctx, p.session, call{method: http.MethodGet, route: "/products/{sku}", path: skuPath(sku), out: &out})
	return out, err
}

// Create adds a product; the API assigns the SKU.
func (p *Products) Create(ctx context.Context, req ProductRequest) (Product, error) {
	var out Product
	err := p.client.do(ctx, p.session, call{method: http.MethodPost, route: "/products", path: "/products", body: req, out: &out})
	return out, err
}

// Update changes name and price. Any InitialStock is not sent.
func (p *Products) Update(ctx context.Context, sku string, req ProductRequest) (Product, error) {
	req.InitialStock = nil
	var out Product
	err := p.client.do(ctx, p.session, call{method: http.MethodPut, route: "/products/{sku}", path: skuPath(sku), body: req, out: &out})
	return out, err
}

// Enable makes the product available.
func (p *Products) Enable(ctx context.Context, sku string) (Product, error) {
	var out Product
	err := p.client.do(ctx, p.session, call{method: http.MethodPatch, route: "/products/{sku}/enable", path: skuPath(sku) + "/enable", out: &out})
	return out, err
}

// Disable makes the product unavailable.
func (p *Products) Disable(ctx context.Context, sku string) (Product, error) {
	var out Product
	err := p.client.do(ctx, p.session, call{method: http.MethodPatch, route: "/products/{sku}/disable", path: skuPath(sku) + "/disable", out: &out})
	return out, err
}

// Delete removes a product. The API refuses enabled or stocked products.
func (p *Products) Delete(ctx context.Context, sku string) error {
	return p.client.do(ctx, p.session, call{method: http.MethodDelete, route: "/products/{sku}", path: skuPath(sku)})
}

func skuPath(sku string) string {
	return "/products/" + url.PathEscape(sku)
}
