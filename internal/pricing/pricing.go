// Package pricing holds the static package and device catalogs. Prices are
// in USD. Lookups for unknown names return a typed configuration error so a
// bad request never crashes a worker.
package pricing

import (
	"sort"
	"time"

	"github.com/tlux-store/tlux-api/internal/models"
)

// Package is a time-boxed access product.
type Package struct {
	Name     string
	Price    float64
	Duration time.Duration
}

// packages is keyed by the name stored on transactions.
var packages = map[string]Package{
	"Bronze":  {Name: "Bronze", Price: 39.68, Duration: 7 * 24 * time.Hour},
	"Silver":  {Name: "Silver", Price: 87.30, Duration: 30 * 24 * time.Hour},
	"Gold":    {Name: "Gold", Price: 190.48, Duration: 90 * 24 * time.Hour},
	"Premium": {Name: "Premium", Price: 396.83, Duration: 365 * 24 * time.Hour},
}

// PackageByName resolves a package or reports models.ErrUnknownPackage.
func PackageByName(name string) (Package, error) {
	p, ok := packages[name]
	if !ok {
		return Package{}, models.ErrUnknownPackage
	}
	return p, nil
}

// Packages returns the catalog sorted by price for display.
func Packages() []Package {
	out := make([]Package, 0, len(packages))
	for _, p := range packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// UnlockService is one unlockable device model: what we charge, what the
// supplier charges us, and the supplier's service selector for the order.
type UnlockService struct {
	Model        string
	SellPrice    float64
	SupplierCost float64
	ServiceID    int
}

// unlockCatalog covers the no-signal unlock line. Sell prices keep a
// minimum 20% margin over the supplier.
var unlockCatalog = map[string]UnlockService{
	"iPhone XR":           {Model: "iPhone XR", SellPrice: 60.00, SupplierCost: 50.00, ServiceID: 101},
	"iPhone XS":           {Model: "iPhone XS", SellPrice: 60.00, SupplierCost: 50.00, ServiceID: 102},
	"iPhone XS Max":       {Model: "iPhone XS Max", SellPrice: 60.00, SupplierCost: 50.00, ServiceID: 103},
	"iPhone 11":           {Model: "iPhone 11", SellPrice: 66.00, SupplierCost: 55.00, ServiceID: 104},
	"iPhone 11 Pro":       {Model: "iPhone 11 Pro", SellPrice: 72.00, SupplierCost: 60.00, ServiceID: 105},
	"iPhone 11 Pro Max":   {Model: "iPhone 11 Pro Max", SellPrice: 78.00, SupplierCost: 65.00, ServiceID: 106},
	"iPhone 12 Mini":      {Model: "iPhone 12 Mini", SellPrice: 66.00, SupplierCost: 55.00, ServiceID: 107},
	"iPhone 12":           {Model: "iPhone 12", SellPrice: 72.00, SupplierCost: 60.00, ServiceID: 108},
	"iPhone 12 Pro":       {Model: "iPhone 12 Pro", SellPrice: 78.00, SupplierCost: 65.00, ServiceID: 109},
	"iPhone 12 Pro Max":   {Model: "iPhone 12 Pro Max", SellPrice: 84.00, SupplierCost: 70.00, ServiceID: 110},
	"iPhone 13 Mini":      {Model: "iPhone 13 Mini", SellPrice: 66.00, SupplierCost: 55.00, ServiceID: 111},
	"iPhone 13":           {Model: "iPhone 13", SellPrice: 90.00, SupplierCost: 70.00, ServiceID: 112},
	"iPhone 13 Pro":       {Model: "iPhone 13 Pro", SellPrice: 90.00, SupplierCost: 75.00, ServiceID: 113},
	"iPhone 13 Pro Max":   {Model: "iPhone 13 Pro Max", SellPrice: 108.00, SupplierCost: 85.00, ServiceID: 114},
	"iPhone 14":           {Model: "iPhone 14", SellPrice: 96.00, SupplierCost: 80.00, ServiceID: 115},
	"iPhone 14 Plus":      {Model: "iPhone 14 Plus", SellPrice: 102.00, SupplierCost: 85.00, ServiceID: 116},
	"iPhone 14 Pro":       {Model: "iPhone 14 Pro", SellPrice: 108.00, SupplierCost: 90.00, ServiceID: 117},
	"iPhone 14 Pro Max":   {Model: "iPhone 14 Pro Max", SellPrice: 114.00, SupplierCost: 95.00, ServiceID: 118},
	"iPhone 15":           {Model: "iPhone 15", SellPrice: 102.00, SupplierCost: 85.00, ServiceID: 119},
	"iPhone 15 Plus":      {Model: "iPhone 15 Plus", SellPrice: 108.00, SupplierCost: 90.00, ServiceID: 120},
	"iPhone 15 Pro":       {Model: "iPhone 15 Pro", SellPrice: 126.00, SupplierCost: 105.00, ServiceID: 121},
	"iPhone 15 Pro Max":   {Model: "iPhone 15 Pro Max", SellPrice: 132.00, SupplierCost: 110.00, ServiceID: 122},
	"iPhone SE (2nd gen)": {Model: "iPhone SE (2nd gen)", SellPrice: 66.00, SupplierCost: 55.00, ServiceID: 123},
	"iPhone SE (3rd gen)": {Model: "iPhone SE (3rd gen)", SellPrice: 66.00, SupplierCost: 55.00, ServiceID: 124},
}

// UnlockByModel resolves a device model or reports models.ErrUnknownModel.
func UnlockByModel(model string) (UnlockService, error) {
	s, ok := unlockCatalog[model]
	if !ok {
		return UnlockService{}, models.ErrUnknownModel
	}
	return s, nil
}

// UnlockModels returns the catalog sorted by model name.
func UnlockModels() []UnlockService {
	out := make([]UnlockService, 0, len(unlockCatalog))
	for _, s := range unlockCatalog {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}
