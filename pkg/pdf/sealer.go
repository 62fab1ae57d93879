package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"trainhub/platform/signing-backend/pkg/security"
)

var (
	ErrInvalidPDF     = errors.New("pdf: source is not a valid PDF")
	ErrZoneNotFound   = errors.New("pdf: signature zone not found")
	ErrZoneOutOfRange = errors.New("pdf: signature zone outside document")
	ErrRenderMark     = errors.New("pdf: failed to render signature mark")
)

// Info dictionary keys written on every seal.
const (
	PropSealCount = "Seal.Count"
	propSealFmt   = "Seal.%d.%s"
)

func init() {
	// keep pdfcpu off the user config directory
	model.ConfigPath = "disable"
}

// SealOptions describes the signer whose mark is applied.
type SealOptions struct {
	SignerName  string
	SignerEmail string
	SignedAt    time.Time
	IP          string
	Zones       []Zone
	// SignZoneID selects the zone; empty means DefaultZoneID.
	SignZoneID string
}

type SealResult struct {
	SealedPDF     []byte
	IntegrityHash string
	// Zone is nil when the document declares no zones and only provenance was recorded.
	Zone      *Zone
	SealIndex int
}

// Sealer embeds a signature mark and provenance into a PDF.
type Sealer interface {
	Seal(ctx context.Context, source []byte, signaturePayload string, opts SealOptions) (*SealResult, error)
}

type pdfcpuSealer struct{}

func NewSealer() Sealer {
	return &pdfcpuSealer{}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (s *pdfcpuSealer) Seal(ctx context.Context, source []byte, signaturePayload string, opts SealOptions) (*SealResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conf := newConfiguration()

	dims, err := api.PageDims(bytes.NewReader(source), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	props, err := api.Properties(bytes.NewReader(source), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	zone, err := selectZone(opts, len(dims))
	if err != nil {
		return nil, err
	}

	stamped := source
	if zone != nil {
		dim := dims[zone.Page-1]
		wms, err := buildMarks(zone, dim.Width, dim.Height, signaturePayload, opts)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := api.AddWatermarksSliceMap(bytes.NewReader(source), &buf, map[int][]*model.Watermark{zone.Page: wms}, conf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRenderMark, err)
		}
		stamped = buf.Bytes()
	}

	index := sealCount(props) + 1
	signedAt := opts.SignedAt.UTC()
	if signedAt.IsZero() {
		signedAt = time.Now().UTC()
	}
	provenance := map[string]string{PropSealCount: strconv.Itoa(index)}
	put := func(field, value string) {
		if value != "" {
			provenance[fmt.Sprintf(propSealFmt, index, field)] = value
		}
	}
	put("Signer", opts.SignerName)
	put("Email", opts.SignerEmail)
	put("SignedAt", signedAt.Format(time.RFC3339))
	put("IP", opts.IP)
	if zone != nil {
		put("Zone", zone.ID)
	}

	var out bytes.Buffer
	if err := api.AddProperties(bytes.NewReader(stamped), &out, provenance, conf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderMark, err)
	}

	sealed := out.Bytes()
	return &SealResult{
		SealedPDF:     sealed,
		IntegrityHash: security.ContentHash(sealed),
		Zone:          zone,
		SealIndex:     index,
	}, nil
}

// Provenance returns the seal properties recorded in a PDF.
func Provenance(source []byte) (map[string]string, error) {
	props, err := api.Properties(bytes.NewReader(source), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return props, nil
}

func sealCount(props map[string]string) int {
	n, err := strconv.Atoi(props[PropSealCount])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func selectZone(opts SealOptions, pageCount int) (*Zone, error) {
	if len(opts.Zones) == 0 {
		return nil, nil
	}
	id := opts.SignZoneID
	if id == "" {
		id = DefaultZoneID
	}
	z, ok := FindZone(opts.Zones, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}
	if z.Page < 1 || z.Page > pageCount {
		return nil, fmt.Errorf("%w: %s on page %d of %d", ErrZoneOutOfRange, z.ID, z.Page, pageCount)
	}
	if z.W <= 0 || z.H <= 0 || z.X < 0 || z.Y < 0 || z.X+z.W > 1.0001 || z.Y+z.H > 1.0001 {
		return nil, fmt.Errorf("%w: %s has invalid bounds", ErrZoneOutOfRange, z.ID)
	}
	return &z, nil
}

// buildMarks lays out the signature and its caption inside the zone.
// pdfcpu offsets are measured from the bottom-left corner in points.
func buildMarks(z *Zone, pageW, pageH float64, payload string, opts SealOptions) ([]*model.Watermark, error) {
	x := z.X * pageW
	w := z.W * pageW
	h := z.H * pageH
	bottom := pageH - (z.Y*pageH + h)

	captionH := math.Min(h*0.25, 9)
	markH := h - captionH
	markY := bottom + captionH

	var mark *model.Watermark
	var err error
	if img, cfg, ok := decodeImage(payload); ok {
		scale := math.Min(w/float64(cfg.Width), markH/float64(cfg.Height))
		desc := fmt.Sprintf("position:bl, offset:%.2f %.2f, scalefactor:%.4f abs, rotation:0", x, markY, scale)
		mark, err = api.ImageWatermarkForReader(bytes.NewReader(img), desc, true, false, types.POINTS)
	} else {
		points := int(math.Max(6, math.Min(24, markH*0.6)))
		desc := fmt.Sprintf("fontname:Times-Italic, points:%d, fillcolor:#1a1a6e, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0", points, x, markY)
		mark, err = api.TextWatermark(typedSignature(payload, opts.SignerName), desc, true, false, types.POINTS)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderMark, err)
	}

	signedAt := opts.SignedAt.UTC()
	if signedAt.IsZero() {
		signedAt = time.Now().UTC()
	}
	caption := fmt.Sprintf("%s - %s", opts.SignerName, signedAt.Format("02/01/2006 15:04 UTC"))
	capDesc := fmt.Sprintf("fontname:Helvetica, points:6, fillcolor:#333333, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0", x, bottom)
	capMark, err := api.TextWatermark(caption, capDesc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderMark, err)
	}

	return []*model.Watermark{mark, capMark}, nil
}

// decodeImage accepts a data URL or bare base64 PNG/JPEG.
func decodeImage(payload string) ([]byte, image.Config, bool) {
	data := strings.TrimSpace(payload)
	if strings.HasPrefix(data, "data:") {
		idx := strings.Index(data, ",")
		if idx < 0 || !strings.Contains(data[:idx], ";base64") {
			return nil, image.Config{}, false
		}
		data = data[idx+1:]
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(data); err != nil {
			return nil, image.Config{}, false
		}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return nil, image.Config{}, false
	}
	return b, cfg, true
}

func typedSignature(payload, signerName string) string {
	p := strings.TrimSpace(payload)
	if p == "" || len(p) > 60 || strings.HasPrefix(p, "data:") {
		if signerName == "" {
			return "Signataire"
		}
		return signerName
	}
	return p
}
