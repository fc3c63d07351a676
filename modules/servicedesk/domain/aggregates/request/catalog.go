package request

import (
	"slices"

	"github.com/iota-uz/servicedesk/pkg/serrors"
)

type Category string

const (
	CategoryLaptop   Category = "Laptop"
	CategoryDesktop  Category = "Desktop"
	CategoryPrinter  Category = "Printer"
	CategorySoftware Category = "Software"
)

// NotApplicable is stored as the OS/vendor of categories that do not ask for one.
const NotApplicable = "N/A"

const BrandAntivirus = "Anti-virus & Security"

// Variant is the field set of one device category.
type Variant struct {
	Category Category `json:"category"`
	Brands   []string `json:"brands"`
	// AsksOS is false when the OS/vendor field is fixed to NotApplicable.
	AsksOS bool `json:"asksOs"`
	// Vendors lists the nested choices of a brand, keyed by brand. The chosen
	// vendor is stored as the OS/vendor value.
	Vendors map[string][]string `json:"vendors,omitempty"`
}

var catalog = []Variant{
	{
		Category: CategoryLaptop,
		Brands:   []string{"HP", "Acer", "Dell", "Asus", "Lenovo", "Apple", "MSI", "Razer", "Samsung", "Microsoft", "Other"},
		AsksOS:   true,
	},
	{
		Category: CategoryDesktop,
		Brands:   []string{"Dell", "HP", "Apple", "Lenovo", "Acer", "Custom Build", "Other"},
		AsksOS:   true,
	},
	{
		Category: CategoryPrinter,
		Brands:   []string{"HP", "Canon", "Epson", "Brother", "Xerox", "Lexmark", "Samsung", "Other"},
	},
	{
		Category: CategorySoftware,
		Brands:   []string{"OS Installation", BrandAntivirus, "Data Recovery", "Other"},
		AsksOS:   true,
		Vendors: map[string][]string{
			BrandAntivirus: {"McAfee", "NPAV", "Quick Heal", "Kaspersky", "Bitdefender", "Other"},
		},
	},
}

// Catalog returns a copy of every category variant in display order.
func Catalog() []Variant {
	out := make([]Variant, 0, len(catalog))
	for _, v := range catalog {
		cp := v
		cp.Brands = slices.Clone(v.Brands)
		if v.Vendors != nil {
			cp.Vendors = make(map[string][]string, len(v.Vendors))
			for k, vendors := range v.Vendors {
				cp.Vendors[k] = slices.Clone(vendors)
			}
		}
		out = append(out, cp)
	}
	return out
}

func VariantOf(c Category) (Variant, bool) {
	for _, v := range catalog {
		if v.Category == c {
			return v, true
		}
	}
	return Variant{}, false
}

func (v Variant) HasBrand(brand string) bool {
	return slices.Contains(v.Brands, brand)
}

// check applies the variant's own rules on top of the struct tags. Brands
// with nested vendors take the vendor in the OS/vendor field.
func (v Variant) check(brand, osVersionOrVendor string) serrors.ValidationErrors {
	errs := serrors.ValidationErrors{}
	if brand != "" && !v.HasBrand(brand) {
		errs["brand"] = serrors.NewFieldError(
			"brand", "VALIDATION_BRAND", "brand is not offered for "+string(v.Category), "ValidationErrors.brand",
		)
	}
	if vendors, nested := v.Vendors[brand]; nested && !slices.Contains(vendors, osVersionOrVendor) {
		errs["osVersionOrVendor"] = serrors.NewFieldError(
			"osVersionOrVendor", "VALIDATION_ONEOF", "osVersionOrVendor is not a listed vendor", "ValidationErrors.oneof",
		)
	}
	return errs
}
