package signing

import (
	"context"

	"trainhub/platform/signing-backend/internal/documents"
	"trainhub/platform/signing-backend/pkg/pdf"
)

// ZoneProvider returns the signature zones it knows for doc; an empty result
// hands over to the next provider of a ZoneChain.
type ZoneProvider interface {
	Zones(ctx context.Context, doc *documents.Document) ([]pdf.Zone, error)
}

type ZoneProviderFunc func(ctx context.Context, doc *documents.Document) ([]pdf.Zone, error)

func (f ZoneProviderFunc) Zones(ctx context.Context, doc *documents.Document) ([]pdf.Zone, error) {
	return f(ctx, doc)
}

// ZoneChain evaluates providers in order; the first non-empty result wins.
type ZoneChain []ZoneProvider

func (c ZoneChain) Resolve(ctx context.Context, doc *documents.Document) ([]pdf.Zone, error) {
	for _, p := range c {
		zones, err := p.Zones(ctx, doc)
		if err != nil {
			return nil, err
		}
		if len(zones) > 0 {
			return zones, nil
		}
	}
	return nil, nil
}

// StaticZones always returns zones.
func StaticZones(zones []pdf.Zone) ZoneProvider {
	return ZoneProviderFunc(func(context.Context, *documents.Document) ([]pdf.Zone, error) {
		return zones, nil
	})
}

// DocumentZones reads metadata.sign_zones of the document itself.
func DocumentZones() ZoneProvider {
	return ZoneProviderFunc(func(_ context.Context, doc *documents.Document) ([]pdf.Zone, error) {
		if doc == nil {
			return nil, nil
		}
		return doc.SignZones(), nil
	})
}

// TemplateZones reads the sign_zones column of the organization's default template for the document type.
func TemplateZones(repo documents.Repository) ZoneProvider {
	return ZoneProviderFunc(func(ctx context.Context, doc *documents.Document) ([]pdf.Zone, error) {
		if doc == nil {
			return nil, nil
		}
		tpl, err := repo.GetDefaultTemplate(ctx, doc.OrganizationID, doc.DocType())
		if err != nil || tpl == nil {
			return nil, err
		}
		return tpl.Zones(), nil
	})
}
