package magazine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/five82/toolroom/internal/api"
)

// MaxPDFSize bounds the datasheets accepted for extraction.
const MaxPDFSize = 20 << 20

var pdfMagic = []byte("%PDF-")

var (
	// ErrNotPDF is returned for files without a PDF header.
	ErrNotPDF = errors.New("file is not a PDF")
	// ErrTooLarge is returned for files above MaxPDFSize.
	ErrTooLarge = errors.New("file too large")
)

// Extractor reads magazine properties out of a datasheet.
type Extractor interface {
	Extract(ctx context.Context, name string, r io.Reader) (api.MagazineProperties, error)
}

// StubExtractor validates the upload and returns fixed sample properties.
// Text recognition is delegated to an external service that is not wired
// in; the stub keeps the upload flow usable end to end.
type StubExtractor struct{}

// Extract checks the PDF header and size, then returns the sample data.
func (StubExtractor) Extract(ctx context.Context, name string, r io.Reader) (api.MagazineProperties, error) {
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return api.MagazineProperties{}, fmt.Errorf("extract %s: %w", name, ErrNotPDF)
	}
	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(r, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return api.MagazineProperties{}, fmt.Errorf("extract %s: %w", name, ErrNotPDF)
	}
	n, err := io.Copy(io.Discard, io.LimitReader(r, MaxPDFSize))
	if err != nil {
		return api.MagazineProperties{}, fmt.Errorf("read %s: %w", name, err)
	}
	if n+int64(len(head)) >= MaxPDFSize {
		return api.MagazineProperties{}, fmt.Errorf("extract %s: %w", name, ErrTooLarge)
	}
	if err := ctx.Err(); err != nil {
		return api.MagazineProperties{}, err
	}
	return SampleProperties(), nil
}

// SampleProperties is the data the stub extractor returns.
func SampleProperties() api.MagazineProperties {
	return api.MagazineProperties{
		CustomerName:      "Sample Customer GmbH",
		CustomerNumber:    "C-10042",
		CustomerCountry:   "DE",
		OrderNumber:       "ORD-2024-0815",
		ProductionDate:    "2024-03-18",
		ProductionWeek:    lo.ToPtr(12),
		SerialNumber:      "MAG-58213",
		MagazineType:      "Bar feeder 12ft",
		BarDiameterMin:    lo.ToPtr(5.0),
		BarDiameterMax:    lo.ToPtr(80.0),
		BarLength:         lo.ToPtr(3700.0),
		ColorCode:         "RAL 7035",
		ColorName:         "Light grey",
		LatheManufacturer: "DMG Mori",
		LatheModel:        "CTX 450",
		SpindleHeight:     lo.ToPtr(1120.0),
		FeedDirection:     "left-to-right",
		Voltage:           lo.ToPtr(400),
		Frequency:         lo.ToPtr(50),
		ControlVoltage:    lo.ToPtr(24),
		PowerKW:           lo.ToPtr(1.5),
		PLCVersion:        "3.2.1",
		SoftwareVersion:   "7.4",
		HasCECertificate:  lo.ToPtr(true),
	}
}

// ExtractFile opens path and runs x on it.
func ExtractFile(ctx context.Context, x Extractor, path string) (api.MagazineProperties, error) {
	f, err := os.Open(path)
	if err != nil {
		return api.MagazineProperties{}, fmt.Errorf("open datasheet: %w", err)
	}
	defer func() { _ = f.Close() }()
	return x.Extract(ctx, filepath.Base(path), f)
}
