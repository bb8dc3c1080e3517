package catalog

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/catalog-console/catalog-console/internal/gateway"
)

// productForm holds the raw values so a rejected submission can be re-rendered as typed.
type productForm struct {
	Name         string
	Price        string
	InitialStock string
}

type productInput struct {
	Name         string   `validate:"required"`
	Price        *float64 `validate:"required,gte=0"`
	InitialStock *int     `validate:"omitempty,gte=0"`
}

var fieldMessages = map[string]string{
	"Name.required":    "Product name is required",
	"Price.required":   "Price is required",
	"Price.gte":        "Price must be greater than or equal to 0",
	"InitialStock.gte": "Initial stock must be greater than or equal to 0",
}

var fieldKeys = map[string]string{
	"Name":         "name",
	"Price":        "price",
	"InitialStock": "initialStock",
}

func formFromValues(values url.Values) productForm {
	return productForm{
		Name:         strings.TrimSpace(values.Get("name")),
		Price:        strings.TrimSpace(values.Get("price")),
		InitialStock: strings.TrimSpace(values.Get("initialStock")),
	}
}

func formFromProduct(p gateway.Product) productForm {
	return productForm{Name: p.Name, Price: strconv.FormatFloat(p.Price, 'f', 2, 64)}
}

// request validates the form. withStock selects the create variant. Field
// errors are keyed by form field name.
func (f productForm) request(v *validator.Validate, withStock bool) (gateway.ProductRequest, map[string]string) {
	fieldErrors := make(map[string]string)
	input := productInput{Name: f.Name}

	if f.Price != "" {
		price, err := strconv.ParseFloat(f.Price, 64)
		if err != nil || math.IsInf(price, 0) || math.IsNaN(price) {
			fieldErrors["price"] = "Price must be a number"
		} else {
			input.Price = &price
		}
	}
	if withStock && f.InitialStock != "" {
		stock, err := strconv.Atoi(f.InitialStock)
		if err != nil {
			fieldErrors["initialStock"] = "Initial stock must be a whole number"
		} else {
			input.InitialStock = &stock
		}
	}

	if err := v.Struct(input); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				key := fieldKeys[fe.Field()]
				if _, seen := fieldErrors[key]; seen {
					continue
				}
				msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
				if !ok {
					msg = fe.Error()
				}
				fieldErrors[key] = msg
			}
		}
	}
	if len(fieldErrors) > 0 {
		return gateway.ProductRequest{}, fieldErrors
	}

	req := gateway.ProductRequest{Name: input.Name, Price: *input.Price}
	if withStock {
		req.InitialStock = input.InitialStock
	}
	return req, nil
}
