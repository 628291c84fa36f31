package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-cli/internal/browser"
	"github.com/sells-group/maps-cli/internal/model"
)

// ErrPageNotReady is returned when the detail page never shows its heading.
var ErrPageNotReady = eris.New("extract: page not ready")

// Assembler builds one Place per rendered detail page.
type Assembler struct {
	ready        string
	readyTimeout time.Duration
	chains       map[Field]Chain
}

// NewAssembler creates an Assembler from sel. readyTimeout bounds the wait
// for the readiness selector.
func NewAssembler(sel Selectors, readyTimeout time.Duration) *Assembler {
	chains := make(map[Field]Chain, len(sel.Fields))
	for field, lookups := range sel.Fields {
		chains[field] = NewChain(field, lookups)
	}
	ready := sel.Ready
	if ready == "" {
		ready = "h1"
	}
	return &Assembler{
		ready:        ready,
		readyTimeout: readyTimeout,
		chains:       chains,
	}
}

// Assemble waits for the page heading, then extracts every field. The
// returned Place may have an empty name; callers check Viable.
func (a *Assembler) Assemble(ctx context.Context, page browser.Page) (model.Place, error) {
	if err := page.WaitFor(ctx, a.ready, a.readyTimeout); err != nil {
		if ctx.Err() != nil {
			return model.Place{}, ctx.Err()
		}
		return model.Place{}, eris.Wrapf(ErrPageNotReady, "extract: %v", err)
	}

	p := model.NewPlace()
	p.Name = a.field(ctx, page, FieldName)
	p.Address = a.field(ctx, page, FieldAddress)
	p.Website = a.field(ctx, page, FieldWebsite)
	p.PhoneNumber = a.field(ctx, page, FieldPhoneNumber)
	p.PlaceType = a.field(ctx, page, FieldPlaceType)
	p.OpensAt = a.field(ctx, page, FieldOpensAt)
	p.Introduction = a.field(ctx, page, FieldIntroduction)
	p.ReviewsCount = ParseReviewCount(a.field(ctx, page, FieldReviewsCount))
	p.ReviewsAverage = ParseRating(a.field(ctx, page, FieldReviewsAverage))
	p.SourceURL = page.CurrentURL(ctx)

	return p, nil
}

func (a *Assembler) field(ctx context.Context, page browser.Page, f Field) string {
	chain, ok := a.chains[f]
	if !ok {
		return ""
	}
	return chain.Extract(ctx, page)
}
